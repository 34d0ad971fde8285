package entities

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MistPerSUI is the number of MIST in one SUI.
const MistPerSUI = 1_000_000_000

// DefaultCoinType is the native SUI coin type.
const DefaultCoinType = "0x2::sui::SUI"

// FundingUnit is a spendable coin object owned by an account.
// It is consumed entirely when passed to a payment call.
type FundingUnit struct {
	ID       string `json:"objectId"`
	Balance  uint64 `json:"balance"`
	Version  string `json:"version"`
	Digest   string `json:"digest"`
	CoinType string `json:"coinType"`
}

// BalanceSUI renders the balance in SUI.
func (u FundingUnit) BalanceSUI() decimal.Decimal {
	return MistToSUI(u.Balance)
}

// PaymentRequest describes one payment to the processor contract.
// FundingUnitID is optional; when set it is re-validated before use.
type PaymentRequest struct {
	MerchantAddress string
	MerchantID      string
	ProductID       string
	FundingUnitID   string
}

// SubmissionResult is produced once per successful submission.
type SubmissionResult struct {
	TransactionDigest string          `json:"transactionDigest"`
	RawEffects        json.RawMessage `json:"effects,omitempty"`
	Events            []LedgerEvent   `json:"events,omitempty"`
}

// PaymentReceipt is what ProcessPayment returns to its caller.
type PaymentReceipt struct {
	SubmissionResult
	FundingUnit    FundingUnit `json:"fundingUnit"`
	RequiredAmount uint64      `json:"requiredAmount"`
}

// ContractStats is a snapshot of the processor object's aggregate fields.
type ContractStats struct {
	AdminAddress           string    `json:"adminAddress"`
	TotalFeesCollected     uint64    `json:"totalFeesCollected"`
	TotalPaymentsProcessed uint64    `json:"totalPaymentsProcessed"`
	FetchedAt              time.Time `json:"fetchedAt"`
}

// Age returns how stale the snapshot is.
func (s ContractStats) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// EventKind names a processor event topic.
type EventKind string

const (
	EventPaymentCompleted  EventKind = "PaymentCompleted"
	EventAdminFeeWithdrawn EventKind = "AdminFeeWithdrawn"
)

// IsValid reports whether the kind is one the processor emits.
func (k EventKind) IsValid() bool {
	return k == EventPaymentCompleted || k == EventAdminFeeWithdrawn
}

// EventID uniquely identifies an event on the ledger.
type EventID struct {
	TxDigest string `json:"txDigest" db:"tx_digest"`
	EventSeq string `json:"eventSeq" db:"event_seq"`
}

func (id EventID) String() string {
	return id.TxDigest + ":" + id.EventSeq
}

// LedgerEvent is a normalized, append-only processor event.
type LedgerEvent struct {
	ID                EventID         `json:"id"`
	Kind              EventKind       `json:"kind"`
	TimestampMs       int64           `json:"timestamp"`
	TransactionDigest string          `json:"txDigest"`
	Data              json.RawMessage `json:"data"`
}

// Time converts the ledger timestamp.
func (e LedgerEvent) Time() time.Time {
	return time.UnixMilli(e.TimestampMs).UTC()
}

// Payment decodes the payload of a PaymentCompleted event.
func (e LedgerEvent) Payment() (PaymentEventData, error) {
	var d PaymentEventData
	if e.Kind != EventPaymentCompleted {
		return d, fmt.Errorf("event %s is %s, not %s", e.ID, e.Kind, EventPaymentCompleted)
	}
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return d, fmt.Errorf("decode payment event %s: %w", e.ID, err)
	}
	return d, nil
}

// AdminFee decodes the payload of an AdminFeeWithdrawn event.
func (e LedgerEvent) AdminFee() (AdminFeeEventData, error) {
	var d AdminFeeEventData
	if e.Kind != EventAdminFeeWithdrawn {
		return d, fmt.Errorf("event %s is %s, not %s", e.ID, e.Kind, EventAdminFeeWithdrawn)
	}
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return d, fmt.Errorf("decode admin fee event %s: %w", e.ID, err)
	}
	return d, nil
}

// PaymentEventData is the PaymentCompleted payload. Byte-vector ids arrive as
// arrays of u8 and are decoded to strings.
type PaymentEventData struct {
	MerchantAddress  string     `json:"merchant_address,omitempty"`
	MerchantID       ByteString `json:"merchant_id"`
	ProductID        ByteString `json:"product_id"`
	TotalAmount      U64        `json:"total_amount"`
	MerchantReceived U64        `json:"merchant_received"`
	AdminFee         U64        `json:"admin_fee"`
}

// Balanced reports whether the contract's accounting adds up.
func (d PaymentEventData) Balanced() bool {
	total, fee := uint64(d.TotalAmount), uint64(d.AdminFee)
	return total >= fee && total-fee == uint64(d.MerchantReceived)
}

// AdminFeeEventData is the AdminFeeWithdrawn payload.
type AdminFeeEventData struct {
	Admin           string `json:"admin,omitempty"`
	AmountWithdrawn U64    `json:"amount_withdrawn"`
}

// U64 decodes Move u64 values, which the RPC renders as decimal strings.
type U64 uint64

func (u *U64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid u64 %q: %w", s, err)
	}
	*u = U64(v)
	return nil
}

func (u U64) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(u), 10) + `"`), nil
}

// ByteString decodes a Move vector<u8> (array of numbers) or a plain string.
type ByteString string

func (s *ByteString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		var raw []int
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		buf := make([]byte, len(raw))
		for i, v := range raw {
			if v < 0 || v > 255 {
				return fmt.Errorf("byte value %d out of range", v)
			}
			buf[i] = byte(v)
		}
		*s = ByteString(buf)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s = ByteString(str)
	return nil
}

// MistToSUI converts MIST to SUI.
func MistToSUI(mist uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(mist), -9)
}
