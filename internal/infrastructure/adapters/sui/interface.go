package sui

import "context"

// LedgerClient defines the Sui JSON-RPC operations the service consumes
type LedgerClient interface {
	// GetObject fetches an object by id
	GetObject(ctx context.Context, objectID string, opts ObjectOptions) (*ObjectResponse, error)

	// GetCoins returns one page of coins owned by an address
	GetCoins(ctx context.Context, owner, coinType string, cursor *string, limit int) (*CoinPage, error)

	// QueryEvents returns one page of events for a filter
	QueryEvents(ctx context.Context, filter EventFilter, cursor *EventCursor, limit int, descending bool) (*EventPage, error)

	// MoveCall builds unsigned transaction bytes for a Move call
	MoveCall(ctx context.Context, req MoveCallRequest) (*TransactionBytes, error)

	// ExecuteTransactionBlock submits signed transaction bytes
	ExecuteTransactionBlock(ctx context.Context, txBytes string, signatures []string, opts TransactionBlockResponseOptions, requestType string) (*TransactionBlockResponse, error)
}

// Ensure Client implements LedgerClient interface
var _ LedgerClient = (*Client)(nil)
