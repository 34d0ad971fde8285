package entities

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StoredEvent is a processor event as persisted by the reconciliation job.
type StoredEvent struct {
	TxDigest         string    `db:"tx_digest" json:"txDigest"`
	EventSeq         string    `db:"event_seq" json:"eventSeq"`
	Kind             EventKind `db:"kind" json:"kind"`
	TimestampMs      int64     `db:"timestamp_ms" json:"timestampMs"`
	MerchantID       string    `db:"merchant_id" json:"merchantId,omitempty"`
	ProductID        string    `db:"product_id" json:"productId,omitempty"`
	TotalAmount      int64     `db:"total_amount" json:"totalAmount"`
	MerchantReceived int64     `db:"merchant_received" json:"merchantReceived"`
	AdminFee         int64     `db:"admin_fee" json:"adminFee"`
	AmountWithdrawn  int64     `db:"amount_withdrawn" json:"amountWithdrawn"`
	Payload          []byte    `db:"payload" json:"-"`
	RecordedAt       time.Time `db:"recorded_at" json:"recordedAt"`
}

// NewStoredEvent flattens a ledger event into its stored form.
func NewStoredEvent(ev LedgerEvent) (*StoredEvent, error) {
	stored := &StoredEvent{
		TxDigest:    ev.ID.TxDigest,
		EventSeq:    ev.ID.EventSeq,
		Kind:        ev.Kind,
		TimestampMs: ev.TimestampMs,
		Payload:     []byte(ev.Data),
	}
	if len(stored.Payload) == 0 {
		stored.Payload = []byte("{}")
	}

	switch ev.Kind {
	case EventPaymentCompleted:
		data, err := ev.Payment()
		if err != nil {
			return nil, err
		}
		stored.MerchantID = string(data.MerchantID)
		stored.ProductID = string(data.ProductID)
		if stored.TotalAmount, err = toInt64(data.TotalAmount); err != nil {
			return nil, err
		}
		if stored.MerchantReceived, err = toInt64(data.MerchantReceived); err != nil {
			return nil, err
		}
		if stored.AdminFee, err = toInt64(data.AdminFee); err != nil {
			return nil, err
		}
	case EventAdminFeeWithdrawn:
		data, err := ev.AdminFee()
		if err != nil {
			return nil, err
		}
		if stored.AmountWithdrawn, err = toInt64(data.AmountWithdrawn); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("event %s has unsupported kind %q", ev.ID, ev.Kind)
	}
	return stored, nil
}

func toInt64(v U64) (int64, error) {
	if uint64(v) > math.MaxInt64 {
		return 0, fmt.Errorf("amount %d exceeds storable range", uint64(v))
	}
	return int64(v), nil
}

// ReconciliationReport summarizes one reconciliation run.
type ReconciliationReport struct {
	RunID            uuid.UUID       `db:"id" json:"runId"`
	StartedAt        time.Time       `db:"started_at" json:"startedAt"`
	CompletedAt      time.Time       `db:"completed_at" json:"completedAt"`
	Stats            ContractStats   `db:"-" json:"stats"`
	NewPayments      int             `db:"new_payments" json:"newPayments"`
	NewWithdrawals   int             `db:"new_withdrawals" json:"newWithdrawals"`
	StoredPayments   int64           `db:"stored_payments" json:"storedPayments"`
	UnbalancedEvents []string        `db:"-" json:"unbalancedEvents"`
	FeesFromEvents   decimal.Decimal `db:"fees_from_events" json:"feesFromEvents"`
	Discrepancy      decimal.Decimal `db:"discrepancy" json:"discrepancy"`
	Status           string          `db:"status" json:"status"`
}

// Reconciliation run statuses.
const (
	ReconciliationStatusBalanced   = "balanced"
	ReconciliationStatusDiscrepant = "discrepant"
)
