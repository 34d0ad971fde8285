package sui

import (
	"encoding/json"
	"strconv"
)

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCErrorBody   `json:"error,omitempty"`
}

// RPCErrorBody is the error member of a JSON-RPC response.
type RPCErrorBody struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ObjectOptions selects which parts of an object sui_getObject returns.
type ObjectOptions struct {
	ShowType    bool `json:"showType,omitempty"`
	ShowOwner   bool `json:"showOwner,omitempty"`
	ShowContent bool `json:"showContent,omitempty"`
}

// ObjectResponse is the result of sui_getObject.
type ObjectResponse struct {
	Data  *ObjectData  `json:"data,omitempty"`
	Error *ObjectError `json:"error,omitempty"`
}

// ObjectData carries an object's reference and, when requested, its content.
type ObjectData struct {
	ObjectID string          `json:"objectId"`
	Version  string          `json:"version"`
	Digest   string          `json:"digest"`
	Type     string          `json:"type,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"`
}

// ObjectError is returned inline by sui_getObject for missing or deleted objects.
type ObjectError struct {
	Code     string `json:"code"`
	ObjectID string `json:"object_id,omitempty"`
}

// Coin is one entry of suix_getCoins.
type Coin struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Version      string `json:"version"`
	Digest       string `json:"digest"`
	Balance      string `json:"balance"`
}

// BalanceValue parses the decimal-string balance.
func (c Coin) BalanceValue() (uint64, error) {
	return strconv.ParseUint(c.Balance, 10, 64)
}

// CoinPage is a page of coins.
type CoinPage struct {
	Data        []Coin  `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// EventFilter selects events by Move event type.
type EventFilter struct {
	MoveEventType string `json:"MoveEventType"`
}

// EventCursor identifies an event and doubles as a pagination cursor.
type EventCursor struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// Event is one entry of suix_queryEvents.
type Event struct {
	ID                EventCursor     `json:"id"`
	PackageID         string          `json:"packageId"`
	TransactionModule string          `json:"transactionModule"`
	Sender            string          `json:"sender"`
	Type              string          `json:"type"`
	ParsedJSON        json.RawMessage `json:"parsedJson"`
	TimestampMs       string          `json:"timestampMs,omitempty"`
}

// Timestamp parses the millisecond timestamp; zero when absent.
func (e Event) Timestamp() int64 {
	ms, err := strconv.ParseInt(e.TimestampMs, 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

// EventPage is a page of events.
type EventPage struct {
	Data        []Event      `json:"data"`
	NextCursor  *EventCursor `json:"nextCursor"`
	HasNextPage bool         `json:"hasNextPage"`
}

// MoveCallRequest describes an unsafe_moveCall invocation.
type MoveCallRequest struct {
	Signer        string
	PackageID     string
	Module        string
	Function      string
	TypeArguments []string
	Arguments     []interface{}
	Gas           *string
	GasBudget     uint64
}

// TransactionBytes is the result of unsafe_moveCall.
type TransactionBytes struct {
	TxBytes      string          `json:"txBytes"`
	Gas          json.RawMessage `json:"gas,omitempty"`
	InputObjects json.RawMessage `json:"inputObjects,omitempty"`
}

// TransactionBlockResponseOptions selects what sui_executeTransactionBlock returns.
type TransactionBlockResponseOptions struct {
	ShowInput          bool `json:"showInput,omitempty"`
	ShowEffects        bool `json:"showEffects,omitempty"`
	ShowEvents         bool `json:"showEvents,omitempty"`
	ShowObjectChanges  bool `json:"showObjectChanges,omitempty"`
	ShowBalanceChanges bool `json:"showBalanceChanges,omitempty"`
}

// TransactionBlockResponse is the result of sui_executeTransactionBlock.
type TransactionBlockResponse struct {
	Digest     string          `json:"digest"`
	RawEffects json.RawMessage `json:"effects,omitempty"`
	Events     []Event         `json:"events,omitempty"`
	Errors     []string        `json:"errors,omitempty"`
	// ConfirmedLocalExecution is nil when the node did not report it.
	ConfirmedLocalExecution *bool `json:"confirmedLocalExecution,omitempty"`
}

// TransactionEffects is the subset of effects the service inspects.
type TransactionEffects struct {
	Status ExecutionStatus `json:"status"`
}

// ExecutionStatus reports whether the transaction executed or aborted.
type ExecutionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Effects decodes the execution status out of RawEffects.
func (r *TransactionBlockResponse) Effects() (*TransactionEffects, error) {
	if len(r.RawEffects) == 0 {
		return nil, nil
	}
	var eff TransactionEffects
	if err := json.Unmarshal(r.RawEffects, &eff); err != nil {
		return nil, err
	}
	return &eff, nil
}
