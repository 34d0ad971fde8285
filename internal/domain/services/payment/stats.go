package payment

import (
	"context"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
	domainerrors "github.com/suiflow/suiflow_service/internal/domain/errors"
	"github.com/suiflow/suiflow_service/internal/infrastructure/adapters/sui"
)

// Processor object field names.
const (
	fieldAdminAddress           = "admin_address"
	fieldTotalFeesCollected     = "total_fees_collected"
	fieldTotalPaymentsProcessed = "total_payments_processed"
)

// StatsReader reads aggregate statistics from the processor object.
// Every call hits the ledger; caching is the caller's concern.
type StatsReader struct {
	ledger      sui.LedgerClient
	processorID string
	now         func() time.Time
}

func NewStatsReader(ledger sui.LedgerClient, processorID string) *StatsReader {
	return &StatsReader{
		ledger:      ledger,
		processorID: processorID,
		now:         time.Now,
	}
}

// Stats fetches a fresh snapshot.
func (r *StatsReader) Stats(ctx context.Context) (*entities.ContractStats, error) {
	resp, err := r.ledger.GetObject(ctx, r.processorID, sui.ObjectOptions{ShowContent: true, ShowType: true})
	if err != nil {
		if sui.CauseOf(err) == sui.CauseObjectNotFound {
			return nil, domainerrors.ObjectNotFoundError(r.processorID, err)
		}
		return nil, domainerrors.QueryFailedError("processor object", err)
	}
	if resp.Data == nil || len(resp.Data.Content) == 0 {
		return nil, domainerrors.ObjectNotFoundError(r.processorID, nil)
	}

	fields := gjson.GetBytes(resp.Data.Content, "fields")
	if !fields.IsObject() {
		return nil, domainerrors.ObjectNotFoundError(r.processorID, nil)
	}

	admin := fields.Get(fieldAdminAddress)
	if admin.Type != gjson.String || admin.Str == "" {
		return nil, domainerrors.SchemaMismatchError(r.processorID, fieldAdminAddress)
	}

	fees, ok := parseU64(fields.Get(fieldTotalFeesCollected))
	if !ok {
		return nil, domainerrors.SchemaMismatchError(r.processorID, fieldTotalFeesCollected)
	}
	payments, ok := parseU64(fields.Get(fieldTotalPaymentsProcessed))
	if !ok {
		return nil, domainerrors.SchemaMismatchError(r.processorID, fieldTotalPaymentsProcessed)
	}

	return &entities.ContractStats{
		AdminAddress:           admin.Str,
		TotalFeesCollected:     fees,
		TotalPaymentsProcessed: payments,
		FetchedAt:              r.now(),
	}, nil
}

// parseU64 accepts a u64 rendered as a decimal string or a bare JSON number.
func parseU64(r gjson.Result) (uint64, bool) {
	var raw string
	switch r.Type {
	case gjson.String:
		raw = r.Str
	case gjson.Number:
		raw = r.Raw
	default:
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
