package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
	domainerrors "github.com/suiflow/suiflow_service/internal/domain/errors"
	"github.com/suiflow/suiflow_service/internal/domain/services/signing"
	"github.com/suiflow/suiflow_service/pkg/logger"
)

// PaymentService is the slice of the payment orchestrator the API exposes
type PaymentService interface {
	ProcessPayment(ctx context.Context, req entities.PaymentRequest, customer signing.Identity) (*entities.PaymentReceipt, error)
	WithdrawAdminFees(ctx context.Context) (*entities.SubmissionResult, error)
	Stats(ctx context.Context) (*entities.ContractStats, error)
	PaymentEvents(ctx context.Context, limit int) ([]entities.LedgerEvent, error)
	AdminFeeEvents(ctx context.Context, limit int) ([]entities.LedgerEvent, error)
	Coins(ctx context.Context, owner string) ([]entities.FundingUnit, error)
}

// StatsCache serves the last known stats when the ledger is unreachable
type StatsCache interface {
	SetStats(ctx context.Context, processorID string, stats *entities.ContractStats) error
	GetStats(ctx context.Context, processorID string) (*entities.ContractStats, error)
}

// PaymentHandler serves the payment, stats, event and coin endpoints
type PaymentHandler struct {
	service     PaymentService
	cache       StatsCache
	processorID string
	logger      *logger.Logger
}

// NewPaymentHandler creates a payment handler. cache may be nil.
func NewPaymentHandler(service PaymentService, cache StatsCache, processorID string, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:     service,
		cache:       cache,
		processorID: processorID,
		logger:      log,
	}
}

// ProcessPaymentRequest is the body of POST /api/process-payment
type ProcessPaymentRequest struct {
	MerchantAddress    string `json:"merchantAddress" binding:"required"`
	MerchantID         string `json:"merchantId" binding:"required"`
	ProductID          string `json:"productId" binding:"required"`
	PaymentCoinID      string `json:"paymentCoinId"`
	CustomerPrivateKey string `json:"customerPrivateKey" binding:"required"`
}

// StatsResponse renders processor stats with SUI amounts alongside MIST
type StatsResponse struct {
	AdminAddress           string          `json:"adminAddress"`
	TotalFeesCollected     string          `json:"totalFeesCollected"`
	TotalFeesCollectedSUI  decimal.Decimal `json:"totalFeesCollectedSui"`
	TotalPaymentsProcessed string          `json:"totalPaymentsProcessed"`
	FetchedAt              time.Time       `json:"fetchedAt"`
	Stale                  bool            `json:"stale,omitempty"`
}

// EventResponse is one processor event
type EventResponse struct {
	ID                string      `json:"id"`
	Kind              string      `json:"kind"`
	TransactionDigest string      `json:"transactionDigest"`
	Timestamp         time.Time   `json:"timestamp"`
	TimestampMs       int64       `json:"timestampMs"`
	Payment           *PaymentFee `json:"payment,omitempty"`
	Withdrawal        *Withdrawal `json:"withdrawal,omitempty"`
	// Data is the event payload exactly as the ledger reported it.
	Data json.RawMessage `json:"data,omitempty"`
}

// PaymentFee is a decoded PaymentCompleted payload
type PaymentFee struct {
	MerchantAddress     string          `json:"merchantAddress,omitempty"`
	MerchantID          string          `json:"merchantId"`
	ProductID           string          `json:"productId"`
	TotalAmount         string          `json:"totalAmount"`
	TotalAmountSUI      decimal.Decimal `json:"totalAmountSui"`
	MerchantReceived    string          `json:"merchantReceived"`
	MerchantReceivedSUI decimal.Decimal `json:"merchantReceivedSui"`
	AdminFee            string          `json:"adminFee"`
	AdminFeeSUI         decimal.Decimal `json:"adminFeeSui"`
}

// Withdrawal is a decoded AdminFeeWithdrawn payload
type Withdrawal struct {
	Admin              string          `json:"admin,omitempty"`
	AmountWithdrawn    string          `json:"amountWithdrawn"`
	AmountWithdrawnSUI decimal.Decimal `json:"amountWithdrawnSui"`
}

// CoinResponse is one funding unit
type CoinResponse struct {
	ObjectID   string          `json:"objectId"`
	Balance    string          `json:"balance"`
	BalanceSUI decimal.Decimal `json:"balanceSui"`
	Version    string          `json:"version"`
	Digest     string          `json:"digest"`
	CoinType   string          `json:"coinType"`
}

// SubmissionResponse is returned by the value-moving endpoints
type SubmissionResponse struct {
	TransactionDigest string           `json:"transactionDigest"`
	FundingUnitID     string           `json:"fundingUnitId,omitempty"`
	Amount            string           `json:"amount,omitempty"`
	AmountSUI         *decimal.Decimal `json:"amountSui,omitempty"`
	Message           string           `json:"message"`
}

// GetStats handles GET /api/stats. When the ledger read fails and a cached
// snapshot exists, the snapshot is returned marked stale.
func (h *PaymentHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		if cached := h.cachedStats(ctx); cached != nil {
			requestLogger(c, h.logger).Warn("Serving cached stats",
				"request_id", getRequestID(c),
				"error", err)
			resp := statsResponse(cached)
			resp.Stale = true
			respondSuccess(c, resp)
			return
		}
		respondDomainError(c, h.logger, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.SetStats(ctx, h.processorID, stats); err != nil {
			requestLogger(c, h.logger).Warn("Failed to cache stats", "error", err)
		}
	}
	respondSuccess(c, statsResponse(stats))
}

func (h *PaymentHandler) cachedStats(ctx context.Context) *entities.ContractStats {
	if h.cache == nil {
		return nil
	}
	stats, err := h.cache.GetStats(ctx, h.processorID)
	if err != nil {
		return nil
	}
	return stats
}

// GetPayments handles GET /api/payments
func (h *PaymentHandler) GetPayments(c *gin.Context) {
	h.listEvents(c, h.service.PaymentEvents)
}

// GetAdminFees handles GET /api/admin-fees
func (h *PaymentHandler) GetAdminFees(c *gin.Context) {
	h.listEvents(c, h.service.AdminFeeEvents)
}

func (h *PaymentHandler) listEvents(c *gin.Context, query func(context.Context, int) ([]entities.LedgerEvent, error)) {
	limit, err := parseLimit(c)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	events, err := query(c.Request.Context(), limit)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, h.eventResponse(ev))
	}
	respondSuccess(c, resp)
}

// ProcessPayment handles POST /api/process-payment
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeMissingField, "Missing required fields")
		return
	}

	customer, err := signing.NewKeypairIdentityFromBase64(req.CustomerPrivateKey)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidKey, "Invalid customer private key")
		return
	}

	receipt, err := h.service.ProcessPayment(c.Request.Context(), entities.PaymentRequest{
		MerchantAddress: req.MerchantAddress,
		MerchantID:      req.MerchantID,
		ProductID:       req.ProductID,
		FundingUnitID:   req.PaymentCoinID,
	}, customer)
	if err != nil {
		requestLogger(c, h.logger).Warn("Payment failed",
			"request_id", getRequestID(c),
			"customer", customer.Address(),
			"outcome", domainerrors.ClassifyOutcome(err).String(),
			"error", err)
		respondDomainError(c, h.logger, err)
		return
	}

	amount := entities.MistToSUI(receipt.RequiredAmount)
	respondSuccess(c, SubmissionResponse{
		TransactionDigest: receipt.TransactionDigest,
		FundingUnitID:     receipt.FundingUnit.ID,
		Amount:            decimal.NewFromUint64(receipt.RequiredAmount).String(),
		AmountSUI:         &amount,
		Message:           "Payment processed successfully",
	})
}

// WithdrawFees handles POST /api/withdraw-fees
func (h *PaymentHandler) WithdrawFees(c *gin.Context) {
	result, err := h.service.WithdrawAdminFees(c.Request.Context())
	if err != nil {
		requestLogger(c, h.logger).Warn("Fee withdrawal failed",
			"request_id", getRequestID(c),
			"outcome", domainerrors.ClassifyOutcome(err).String(),
			"error", err)
		respondDomainError(c, h.logger, err)
		return
	}

	respondSuccess(c, SubmissionResponse{
		TransactionDigest: result.TransactionDigest,
		Message:           "Admin fees withdrawn successfully",
	})
}

// GetCoins handles GET /api/coins/:address
func (h *PaymentHandler) GetCoins(c *gin.Context) {
	coins, err := h.service.Coins(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	resp := make([]CoinResponse, 0, len(coins))
	for _, coin := range coins {
		resp = append(resp, CoinResponse{
			ObjectID:   coin.ID,
			Balance:    decimal.NewFromUint64(coin.Balance).String(),
			BalanceSUI: coin.BalanceSUI(),
			Version:    coin.Version,
			Digest:     coin.Digest,
			CoinType:   coin.CoinType,
		})
	}
	respondSuccess(c, resp)
}

func statsResponse(s *entities.ContractStats) StatsResponse {
	return StatsResponse{
		AdminAddress:           s.AdminAddress,
		TotalFeesCollected:     decimal.NewFromUint64(s.TotalFeesCollected).String(),
		TotalFeesCollectedSUI:  entities.MistToSUI(s.TotalFeesCollected),
		TotalPaymentsProcessed: decimal.NewFromUint64(s.TotalPaymentsProcessed).String(),
		FetchedAt:              s.FetchedAt,
	}
}

func (h *PaymentHandler) eventResponse(ev entities.LedgerEvent) EventResponse {
	resp := EventResponse{
		ID:                ev.ID.String(),
		Kind:              string(ev.Kind),
		TransactionDigest: ev.TransactionDigest,
		Timestamp:         ev.Time(),
		TimestampMs:       ev.TimestampMs,
		Data:              ev.Data,
	}

	switch ev.Kind {
	case entities.EventPaymentCompleted:
		if data, err := ev.Payment(); err != nil {
			h.logger.Warn("Failed to decode event payload", "event_id", resp.ID, "error", err)
		} else {
			resp.Payment = &PaymentFee{
				MerchantAddress:     data.MerchantAddress,
				MerchantID:          string(data.MerchantID),
				ProductID:           string(data.ProductID),
				TotalAmount:         u64String(data.TotalAmount),
				TotalAmountSUI:      entities.MistToSUI(uint64(data.TotalAmount)),
				MerchantReceived:    u64String(data.MerchantReceived),
				MerchantReceivedSUI: entities.MistToSUI(uint64(data.MerchantReceived)),
				AdminFee:            u64String(data.AdminFee),
				AdminFeeSUI:         entities.MistToSUI(uint64(data.AdminFee)),
			}
		}
	case entities.EventAdminFeeWithdrawn:
		if data, err := ev.AdminFee(); err != nil {
			h.logger.Warn("Failed to decode event payload", "event_id", resp.ID, "error", err)
		} else {
			resp.Withdrawal = &Withdrawal{
				Admin:              data.Admin,
				AmountWithdrawn:    u64String(data.AmountWithdrawn),
				AmountWithdrawnSUI: entities.MistToSUI(uint64(data.AmountWithdrawn)),
			}
		}
	}
	return resp
}

func u64String(v entities.U64) string {
	return decimal.NewFromUint64(uint64(v)).String()
}
