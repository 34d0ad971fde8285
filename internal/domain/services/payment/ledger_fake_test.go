package payment

import (
	"context"
	"encoding/base64"
	"strconv"
	"sync"

	"github.com/suiflow/suiflow_service/internal/infrastructure/adapters/sui"
)

// fakeLedger is an in-memory node. Holdings are a fixed snapshot, like a
// node that lags behind execution, so concurrent callers see the same coins.
type fakeLedger struct {
	mu sync.Mutex

	coins        []sui.Coin
	coinPageSize int
	coinsErr     error

	object    *sui.ObjectResponse
	objectErr error

	events     map[string][]sui.Event
	eventsErr  error
	pageLimits []int

	moveCallErr error
	executeErr  error
	abortWith   string
	executeResp *sui.TransactionBlockResponse
	consumed    map[string]bool
	moveCalls   []sui.MoveCallRequest
	signatures  []string

	calls map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		events:   map[string][]sui.Event{},
		consumed: map[string]bool{},
		calls:    map[string]int{},
	}
}

func (f *fakeLedger) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeLedger) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeLedger) GetObject(ctx context.Context, objectID string, opts sui.ObjectOptions) (*sui.ObjectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[sui.MethodGetObject]++
	if f.objectErr != nil {
		return nil, f.objectErr
	}
	return f.object, nil
}

func (f *fakeLedger) GetCoins(ctx context.Context, owner, coinType string, cursor *string, limit int) (*sui.CoinPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[sui.MethodGetCoins]++
	if f.coinsErr != nil {
		return nil, f.coinsErr
	}

	start := 0
	if cursor != nil {
		start, _ = strconv.Atoi(*cursor)
	}
	size := len(f.coins) - start
	if f.coinPageSize > 0 && size > f.coinPageSize {
		size = f.coinPageSize
	}
	page := &sui.CoinPage{Data: append([]sui.Coin{}, f.coins[start:start+size]...)}
	if next := start + size; next < len(f.coins) {
		c := strconv.Itoa(next)
		page.NextCursor = &c
		page.HasNextPage = true
	}
	return page, nil
}

func (f *fakeLedger) QueryEvents(ctx context.Context, filter sui.EventFilter, cursor *sui.EventCursor, limit int, descending bool) (*sui.EventPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[sui.MethodQueryEvents]++
	f.pageLimits = append(f.pageLimits, limit)
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}

	all, ok := f.events[filter.MoveEventType]
	if !ok {
		return nil, &sui.Error{Method: sui.MethodQueryEvents, Cause: sui.CauseUnknownEventType, Code: -32602, Message: "Invalid params"}
	}

	start := 0
	if cursor != nil {
		for i, ev := range all {
			if ev.ID == *cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := &sui.EventPage{Data: append([]sui.Event{}, all[start:end]...)}
	if end < len(all) {
		next := all[end-1].ID
		page.NextCursor = &next
		page.HasNextPage = true
	}
	return page, nil
}

func (f *fakeLedger) MoveCall(ctx context.Context, req sui.MoveCallRequest) (*sui.TransactionBytes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[sui.MethodMoveCall]++
	f.moveCalls = append(f.moveCalls, req)
	if f.moveCallErr != nil {
		return nil, f.moveCallErr
	}
	// The last argument names the object the transaction consumes.
	key := req.Function
	if n := len(req.Arguments); n > 1 {
		if id, ok := req.Arguments[n-1].(string); ok {
			key = id
		}
	}
	return &sui.TransactionBytes{TxBytes: base64.StdEncoding.EncodeToString([]byte(key))}, nil
}

func (f *fakeLedger) ExecuteTransactionBlock(ctx context.Context, txBytes string, signatures []string, opts sui.TransactionBlockResponseOptions, requestType string) (*sui.TransactionBlockResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[sui.MethodExecuteTxBlock]++
	f.signatures = append(f.signatures, signatures...)
	if f.executeErr != nil {
		return nil, f.executeErr
	}

	raw, _ := base64.StdEncoding.DecodeString(txBytes)
	key := string(raw)
	if f.consumed[key] {
		return nil, &sui.Error{
			Method:  sui.MethodExecuteTxBlock,
			Cause:   sui.CauseObjectConsumed,
			Code:    -32002,
			Message: "ObjectVersionUnavailableForConsumption",
		}
	}

	if f.executeResp != nil {
		return f.executeResp, nil
	}

	digest := "digest-" + key + "-" + strconv.Itoa(f.calls[sui.MethodExecuteTxBlock])
	if f.abortWith != "" {
		return &sui.TransactionBlockResponse{
			Digest:     digest,
			RawEffects: []byte(`{"status":{"status":"failure","error":"` + f.abortWith + `"}}`),
		}, nil
	}

	f.consumed[key] = true
	return &sui.TransactionBlockResponse{
		Digest:     digest,
		RawEffects: []byte(`{"status":{"status":"success"}}`),
		Events: []sui.Event{{
			ID:         sui.EventCursor{TxDigest: digest, EventSeq: "0"},
			Type:       "0xpkg::payment_processor::PaymentCompleted",
			ParsedJSON: []byte(`{"total_amount":"60000000","merchant_received":"50000000","admin_fee":"10000000"}`),
		}},
	}, nil
}

var _ sui.LedgerClient = (*fakeLedger)(nil)

func coin(id string, balance uint64) sui.Coin {
	return sui.Coin{
		CoinType:     "0x2::sui::SUI",
		CoinObjectID: id,
		Version:      "1",
		Digest:       "d-" + id,
		Balance:      strconv.FormatUint(balance, 10),
	}
}
