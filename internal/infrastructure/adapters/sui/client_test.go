package sui

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// rpcServer answers every request with handler's result or error.
func rpcServer(t *testing.T, handler func(req RPCRequest) (interface{}, *RPCErrorBody)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		var req RPCRequest
		assert.NoError(t, json.Unmarshal(body, &req))

		result, rpcErr := handler(req)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestNewClient(t *testing.T) {
	logger := zap.NewNop()

	t.Run("defaults to testnet URL", func(t *testing.T) {
		client := NewClient(Config{}, logger)
		assert.Equal(t, TestnetURL, client.URL())
	})

	t.Run("uses mainnet URL", func(t *testing.T) {
		client := NewClient(Config{Network: "mainnet"}, logger)
		assert.Equal(t, MainnetURL, client.URL())
	})

	t.Run("respects custom RPC URL", func(t *testing.T) {
		client := NewClient(Config{RPCURL: "https://custom.node/", Network: "mainnet"}, logger)
		assert.Equal(t, "https://custom.node", client.URL())
	})
}

func TestGetObject(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns object content", func(t *testing.T) {
		server := rpcServer(t, func(req RPCRequest) (interface{}, *RPCErrorBody) {
			assert.Equal(t, MethodGetObject, req.Method)
			assert.Equal(t, "0xproc", req.Params[0])
			return map[string]interface{}{
				"data": map[string]interface{}{
					"objectId": "0xproc",
					"version":  "7",
					"digest":   "dig",
					"content":  map[string]interface{}{"fields": map[string]interface{}{"total_payments_processed": "3"}},
				},
			}, nil
		})
		defer server.Close()

		client := NewClient(Config{RPCURL: server.URL}, logger)
		resp, err := client.GetObject(context.Background(), "0xproc", ObjectOptions{ShowContent: true})

		require.NoError(t, err)
		require.NotNil(t, resp.Data)
		assert.Equal(t, "7", resp.Data.Version)
		assert.Contains(t, string(resp.Data.Content), "total_payments_processed")
	})

	t.Run("inline error maps to object not found", func(t *testing.T) {
		server := rpcServer(t, func(req RPCRequest) (interface{}, *RPCErrorBody) {
			return map[string]interface{}{"error": map[string]interface{}{"code": "notExists", "object_id": "0xgone"}}, nil
		})
		defer server.Close()

		client := NewClient(Config{RPCURL: server.URL}, logger)
		_, err := client.GetObject(context.Background(), "0xgone", ObjectOptions{})

		require.Error(t, err)
		assert.Equal(t, CauseObjectNotFound, CauseOf(err))
	})
}

func TestGetCoins(t *testing.T) {
	server := rpcServer(t, func(req RPCRequest) (interface{}, *RPCErrorBody) {
		assert.Equal(t, MethodGetCoins, req.Method)
		assert.Equal(t, "0xowner", req.Params[0])
		assert.Equal(t, "0x2::sui::SUI", req.Params[1])
		cursor := "c1"
		return CoinPage{
			Data: []Coin{
				{CoinObjectID: "0xa", Balance: "80", Version: "1", Digest: "d1"},
				{CoinObjectID: "0xb", Balance: "150", Version: "1", Digest: "d2"},
			},
			NextCursor:  &cursor,
			HasNextPage: true,
		}, nil
	})
	defer server.Close()

	client := NewClient(Config{RPCURL: server.URL}, zap.NewNop())
	page, err := client.GetCoins(context.Background(), "0xowner", "0x2::sui::SUI", nil, 0)

	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "c1", *page.NextCursor)

	balance, err := page.Data[1].BalanceValue()
	require.NoError(t, err)
	assert.Equal(t, uint64(150), balance)
}

func TestQueryEvents(t *testing.T) {
	logger := zap.NewNop()

	t.Run("sends filter and pagination", func(t *testing.T) {
		server := rpcServer(t, func(req RPCRequest) (interface{}, *RPCErrorBody) {
			assert.Equal(t, MethodQueryEvents, req.Method)
			assert.Len(t, req.Params, 4)
			filter := req.Params[0].(map[string]interface{})
			assert.Equal(t, "0xpkg::payment_processor::PaymentCompleted", filter["MoveEventType"])
			assert.Nil(t, req.Params[1])
			assert.Equal(t, float64(10), req.Params[2])
			assert.Equal(t, true, req.Params[3])
			return EventPage{Data: []Event{{ID: EventCursor{TxDigest: "tx1", EventSeq: "0"}, TimestampMs: "1700000000000"}}}, nil
		})
		defer server.Close()

		client := NewClient(Config{RPCURL: server.URL}, logger)
		page, err := client.QueryEvents(context.Background(),
			EventFilter{MoveEventType: "0xpkg::payment_processor::PaymentCompleted"}, nil, 10, true)

		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, int64(1700000000000), page.Data[0].Timestamp())
	})

	t.Run("invalid params maps to unknown event type", func(t *testing.T) {
		server := rpcServer(t, func(req RPCRequest) (interface{}, *RPCErrorBody) {
			return nil, &RPCErrorBody{Code: -32602, Message: "Invalid params"}
		})
		defer server.Close()

		client := NewClient(Config{RPCURL: server.URL}, logger)
		_, err := client.QueryEvents(context.Background(), EventFilter{MoveEventType: "0xnope::m::E"}, nil, 10, true)

		require.Error(t, err)
		assert.Equal(t, CauseUnknownEventType, CauseOf(err))
		assert.True(t, IsApplicationError(err))
	})
}

func TestMoveCall(t *testing.T) {
	server := rpcServer(t, func(req RPCRequest) (interface{}, *RPCErrorBody) {
		assert.Equal(t, MethodMoveCall, req.Method)
		assert.Len(t, req.Params, 8)
		assert.Equal(t, "0xsigner", req.Params[0])
		assert.Equal(t, "payment_processor", req.Params[2])
		assert.Equal(t, "process_payment", req.Params[3])
		assert.Equal(t, []interface{}{}, req.Params[4])
		assert.Nil(t, req.Params[6])
		assert.Equal(t, "10000000", req.Params[7])
		return TransactionBytes{TxBytes: "AAEC"}, nil
	})
	defer server.Close()

	client := NewClient(Config{RPCURL: server.URL}, zap.NewNop())
	tx, err := client.MoveCall(context.Background(), MoveCallRequest{
		Signer:    "0xsigner",
		PackageID: "0xpkg",
		Module:    "payment_processor",
		Function:  "process_payment",
		Arguments: []interface{}{"0xproc", "0xcoin"},
		GasBudget: 10_000_000,
	})

	require.NoError(t, err)
	assert.Equal(t, "AAEC", tx.TxBytes)
}

func TestExecuteTransactionBlock(t *testing.T) {
	logger := zap.NewNop()

	t.Run("decodes effects status", func(t *testing.T) {
		server := rpcServer(t, func(req RPCRequest) (interface{}, *RPCErrorBody) {
			assert.Equal(t, MethodExecuteTxBlock, req.Method)
			assert.Equal(t, WaitForLocalExecution, req.Params[3])
			return map[string]interface{}{
				"digest":  "Dg1",
				"effects": map[string]interface{}{"status": map[string]interface{}{"status": "failure", "error": "MoveAbort(1)"}},
			}, nil
		})
		defer server.Close()

		client := NewClient(Config{RPCURL: server.URL}, logger)
		resp, err := client.ExecuteTransactionBlock(context.Background(), "AAEC", []string{"sig"},
			TransactionBlockResponseOptions{ShowEffects: true}, WaitForLocalExecution)

		require.NoError(t, err)
		effects, err := resp.Effects()
		require.NoError(t, err)
		assert.Equal(t, StatusFailure, effects.Status.Status)
		assert.Equal(t, "MoveAbort(1)", effects.Status.Error)
	})

	t.Run("locked object maps to consumed", func(t *testing.T) {
		server := rpcServer(t, func(req RPCRequest) (interface{}, *RPCErrorBody) {
			return nil, &RPCErrorBody{Code: -32002, Message: "Transaction is rejected as invalid: ObjectVersionUnavailableForConsumption"}
		})
		defer server.Close()

		client := NewClient(Config{RPCURL: server.URL}, logger)
		_, err := client.ExecuteTransactionBlock(context.Background(), "AAEC", []string{"sig"},
			TransactionBlockResponseOptions{}, WaitForLocalExecution)

		require.Error(t, err)
		assert.Equal(t, CauseObjectConsumed, CauseOf(err))
	})
}

func TestCallTransportErrors(t *testing.T) {
	logger := zap.NewNop()

	t.Run("rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := NewClient(Config{RPCURL: server.URL}, logger)
		err := client.Call(context.Background(), MethodGetObject, nil, nil)

		assert.Equal(t, CauseRateLimited, CauseOf(err))
		assert.False(t, IsApplicationError(err))
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewClient(Config{RPCURL: server.URL}, logger)
		err := client.Call(context.Background(), MethodGetObject, nil, nil)

		assert.Equal(t, CauseServer, CauseOf(err))
	})

	t.Run("unreachable node", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		client := NewClient(Config{RPCURL: url}, logger)
		err := client.Call(context.Background(), MethodGetObject, nil, nil)

		assert.Equal(t, CauseTransport, CauseOf(err))
	})

	t.Run("breaker opens after repeated transport failures", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClient(Config{RPCURL: server.URL, RequestsPerSecond: 1000}, logger)
		for i := 0; i < 5; i++ {
			_ = client.Call(context.Background(), MethodGetObject, nil, nil)
		}
		err := client.Call(context.Background(), MethodGetObject, nil, nil)
		assert.Equal(t, CauseServer, CauseOf(err))

		err = client.Call(context.Background(), MethodGetObject, nil, nil)
		assert.Equal(t, CauseCircuitOpen, CauseOf(err))
		assert.Equal(t, 6, calls)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   RPCErrorBody
		want   Cause
	}{
		{"unknown event type", MethodQueryEvents, RPCErrorBody{Code: -32602, Message: "Invalid params"}, CauseUnknownEventType},
		{"invalid params elsewhere", MethodGetCoins, RPCErrorBody{Code: -32602, Message: "Invalid params"}, CauseInvalidParams},
		{"lock conflict", MethodExecuteTxBlock, RPCErrorBody{Code: -32002, Message: "ObjectLockConflict"}, CauseObjectConsumed},
		{"deleted coin during build", MethodMoveCall, RPCErrorBody{Code: -32602, Message: "Object 0xa is deleted"}, CauseObjectConsumed},
		{"missing object", MethodGetObject, RPCErrorBody{Code: -32000, Message: "Object not found"}, CauseObjectNotFound},
		{"server error", MethodGetCoins, RPCErrorBody{Code: -32000, Message: "busy"}, CauseServer},
		{"internal error", MethodGetCoins, RPCErrorBody{Code: -32603, Message: "oops"}, CauseServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			assert.Equal(t, tt.want, classify(tt.method, &body))
		})
	}
}
