package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
	domainerrors "github.com/suiflow/suiflow_service/internal/domain/errors"
	"github.com/suiflow/suiflow_service/internal/domain/services/signing"
	"github.com/suiflow/suiflow_service/pkg/logger"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) ProcessPayment(ctx context.Context, req entities.PaymentRequest, customer signing.Identity) (*entities.PaymentReceipt, error) {
	args := m.Called(ctx, req, customer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentReceipt), args.Error(1)
}

func (m *MockPaymentService) WithdrawAdminFees(ctx context.Context) (*entities.SubmissionResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SubmissionResult), args.Error(1)
}

func (m *MockPaymentService) Stats(ctx context.Context) (*entities.ContractStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ContractStats), args.Error(1)
}

func (m *MockPaymentService) PaymentEvents(ctx context.Context, limit int) ([]entities.LedgerEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.LedgerEvent), args.Error(1)
}

func (m *MockPaymentService) AdminFeeEvents(ctx context.Context, limit int) ([]entities.LedgerEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.LedgerEvent), args.Error(1)
}

func (m *MockPaymentService) Coins(ctx context.Context, owner string) ([]entities.FundingUnit, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.FundingUnit), args.Error(1)
}

type memoryStatsCache struct {
	stats map[string]*entities.ContractStats
}

func (c *memoryStatsCache) SetStats(_ context.Context, id string, s *entities.ContractStats) error {
	c.stats[id] = s
	return nil
}

func (c *memoryStatsCache) GetStats(_ context.Context, id string) (*entities.ContractStats, error) {
	if s, ok := c.stats[id]; ok {
		return s, nil
	}
	return nil, errors.New("cache miss")
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func setupRouter(h *PaymentHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/stats", h.GetStats)
	router.GET("/api/payments", h.GetPayments)
	router.GET("/api/admin-fees", h.GetAdminFees)
	router.GET("/api/coins/:address", h.GetCoins)
	router.POST("/api/process-payment", h.ProcessPayment)
	router.POST("/api/withdraw-fees", h.WithdrawFees)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func customerKey() string {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return base64.StdEncoding.EncodeToString(seed)
}

func paymentEvent() entities.LedgerEvent {
	return entities.LedgerEvent{
		ID:                entities.EventID{TxDigest: "tx1", EventSeq: "0"},
		Kind:              entities.EventPaymentCompleted,
		TimestampMs:       1_700_000_000_000,
		TransactionDigest: "tx1",
		Data: []byte(`{"merchant_id":[115,104,111,112],"product_id":"widget",
			"total_amount":"60000000","merchant_received":"50000000","admin_fee":"10000000"}`),
	}
}

func TestGetStats(t *testing.T) {
	stats := &entities.ContractStats{
		AdminAddress:           "0xadmin",
		TotalFeesCollected:     60_000_000,
		TotalPaymentsProcessed: 6,
		FetchedAt:              time.Now(),
	}

	t.Run("fresh stats are cached", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("Stats", mock.Anything).Return(stats, nil)
		cache := &memoryStatsCache{stats: map[string]*entities.ContractStats{}}

		code, env := do(t, setupRouter(NewPaymentHandler(svc, cache, "0xproc", logger.NewNop())), http.MethodGet, "/api/stats", nil)

		assert.Equal(t, http.StatusOK, code)
		assert.True(t, env.Success)
		var got StatsResponse
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, "60000000", got.TotalFeesCollected)
		assert.Equal(t, "0.06", got.TotalFeesCollectedSUI.String())
		assert.Equal(t, "6", got.TotalPaymentsProcessed)
		assert.False(t, got.Stale)
		assert.Same(t, stats, cache.stats["0xproc"])
	})

	t.Run("ledger failure falls back to cache", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("Stats", mock.Anything).Return(nil, domainerrors.QueryFailedError("processor stats", errors.New("timeout")))
		cache := &memoryStatsCache{stats: map[string]*entities.ContractStats{"0xproc": stats}}

		code, env := do(t, setupRouter(NewPaymentHandler(svc, cache, "0xproc", logger.NewNop())), http.MethodGet, "/api/stats", nil)

		assert.Equal(t, http.StatusOK, code)
		var got StatsResponse
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.True(t, got.Stale)
	})

	t.Run("ledger failure without cache", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("Stats", mock.Anything).Return(nil, domainerrors.ObjectNotFoundError("0xproc", nil))

		code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodGet, "/api/stats", nil)

		assert.Equal(t, http.StatusInternalServerError, code)
		assert.False(t, env.Success)
		assert.Equal(t, "OBJECT_NOT_FOUND", env.Code)
	})
}

func TestGetPayments(t *testing.T) {
	t.Run("default limit", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("PaymentEvents", mock.Anything, DefaultListLimit).Return([]entities.LedgerEvent{paymentEvent()}, nil)

		code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodGet, "/api/payments", nil)

		assert.Equal(t, http.StatusOK, code)
		var events []EventResponse
		require.NoError(t, json.Unmarshal(env.Data, &events))
		require.Len(t, events, 1)
		assert.Equal(t, "tx1:0", events[0].ID)
		require.NotNil(t, events[0].Payment)
		assert.Equal(t, "shop", events[0].Payment.MerchantID)
		assert.Equal(t, "0.01", events[0].Payment.AdminFeeSUI.String())
		assert.Contains(t, string(events[0].Data), `"admin_fee":"10000000"`)
	})

	t.Run("undecodable payload is passed through raw", func(t *testing.T) {
		ev := paymentEvent()
		ev.Data = []byte(`[1,2,3]`)
		svc := new(MockPaymentService)
		svc.On("PaymentEvents", mock.Anything, DefaultListLimit).Return([]entities.LedgerEvent{ev}, nil)

		code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodGet, "/api/payments", nil)

		assert.Equal(t, http.StatusOK, code)
		var events []EventResponse
		require.NoError(t, json.Unmarshal(env.Data, &events))
		require.Len(t, events, 1)
		assert.Nil(t, events[0].Payment)
		assert.JSONEq(t, `[1,2,3]`, string(events[0].Data))
	})

	t.Run("no events yet is an empty list", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("PaymentEvents", mock.Anything, 5).Return([]entities.LedgerEvent{}, nil)

		code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodGet, "/api/payments?limit=5", nil)

		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `[]`, string(env.Data))
	})

	for _, limit := range []string{"0", "-3", "abc", "5000"} {
		t.Run("invalid limit "+limit, func(t *testing.T) {
			svc := new(MockPaymentService)

			code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodGet, "/api/payments?limit="+limit, nil)

			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "INVALID_ARGUMENT", env.Code)
			svc.AssertNotCalled(t, "PaymentEvents", mock.Anything, mock.Anything)
		})
	}
}

func TestGetAdminFees(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("AdminFeeEvents", mock.Anything, 3).Return([]entities.LedgerEvent{{
		ID:   entities.EventID{TxDigest: "tx9", EventSeq: "1"},
		Kind: entities.EventAdminFeeWithdrawn,
		Data: []byte(`{"admin":"0xadmin","amount_withdrawn":"20000000"}`),
	}}, nil)

	code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodGet, "/api/admin-fees?limit=3", nil)

	assert.Equal(t, http.StatusOK, code)
	var events []EventResponse
	require.NoError(t, json.Unmarshal(env.Data, &events))
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Withdrawal)
	assert.Equal(t, "20000000", events[0].Withdrawal.AmountWithdrawn)
	assert.Equal(t, "0.02", events[0].Withdrawal.AmountWithdrawnSUI.String())
}

func TestProcessPayment(t *testing.T) {
	body := map[string]string{
		"merchantAddress":    "0xmerchant",
		"merchantId":         "shop",
		"productId":          "widget",
		"customerPrivateKey": customerKey(),
	}

	t.Run("success", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("ProcessPayment", mock.Anything, entities.PaymentRequest{
			MerchantAddress: "0xmerchant",
			MerchantID:      "shop",
			ProductID:       "widget",
		}, mock.AnythingOfType("*signing.KeypairIdentity")).Return(&entities.PaymentReceipt{
			SubmissionResult: entities.SubmissionResult{TransactionDigest: "Dg1"},
			FundingUnit:      entities.FundingUnit{ID: "0xcoin"},
			RequiredAmount:   60_000_000,
		}, nil)

		code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodPost, "/api/process-payment", body)

		assert.Equal(t, http.StatusOK, code)
		var got SubmissionResponse
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, "Dg1", got.TransactionDigest)
		assert.Equal(t, "0xcoin", got.FundingUnitID)
		assert.Equal(t, "60000000", got.Amount)
		assert.Equal(t, "0.06", got.AmountSUI.String())
		svc.AssertExpectations(t)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc := new(MockPaymentService)
		code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodPost, "/api/process-payment",
			map[string]string{"merchantAddress": "0xmerchant"})

		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Missing required fields", env.Error)
		svc.AssertNotCalled(t, "ProcessPayment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bad key", func(t *testing.T) {
		svc := new(MockPaymentService)
		bad := map[string]string{}
		for k, v := range body {
			bad[k] = v
		}
		bad["customerPrivateKey"] = "not-base64!"

		code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodPost, "/api/process-payment", bad)

		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, ErrCodeInvalidKey, env.Code)
	})

	t.Run("insufficient funds is a server error", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, domainerrors.InsufficientFundsError("0xcustomer", 60_000_000))

		code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodPost, "/api/process-payment", body)

		assert.Equal(t, http.StatusInternalServerError, code)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Error)
	})

	t.Run("lost race", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("ProcessPayment", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, domainerrors.NewSubmissionError(domainerrors.UnitAlreadyConsumed, errors.New("object deleted")))

		code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodPost, "/api/process-payment", body)

		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, domainerrors.UnitAlreadyConsumed.Code(), env.Code)
	})
}

func TestWithdrawFees(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("WithdrawAdminFees", mock.Anything).Return(&entities.SubmissionResult{TransactionDigest: "Dg2"}, nil)

		code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodPost, "/api/withdraw-fees", nil)

		assert.Equal(t, http.StatusOK, code)
		assert.Contains(t, string(env.Data), "Dg2")
	})

	t.Run("no admin identity", func(t *testing.T) {
		svc := new(MockPaymentService)
		svc.On("WithdrawAdminFees", mock.Anything).Return(nil, domainerrors.UnauthorizedOperationError("withdraw_admin_fees"))

		code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodPost, "/api/withdraw-fees", nil)

		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, "UNAUTHORIZED_OPERATION", env.Code)
	})
}

func TestGetCoins(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("Coins", mock.Anything, "0xowner").Return([]entities.FundingUnit{
		{ID: "0xc1", Balance: 1_500_000_000, CoinType: entities.DefaultCoinType},
	}, nil)

	code, env := do(t, setupRouter(NewPaymentHandler(svc, nil, "0xproc", logger.NewNop())), http.MethodGet, "/api/coins/0xowner", nil)

	assert.Equal(t, http.StatusOK, code)
	var coins []CoinResponse
	require.NoError(t, json.Unmarshal(env.Data, &coins))
	require.Len(t, coins, 1)
	assert.Equal(t, "1500000000", coins[0].Balance)
	assert.Equal(t, "1.5", coins[0].BalanceSUI.String())
}
