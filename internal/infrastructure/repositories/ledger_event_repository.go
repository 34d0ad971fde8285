package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
	"github.com/suiflow/suiflow_service/internal/infrastructure/database"
)

// LedgerEventRepository persists processor events pulled from the ledger.
// Events are immutable; re-saving a known event is a no-op.
type LedgerEventRepository struct {
	db *sqlx.DB
}

// NewLedgerEventRepository creates a new ledger event repository
func NewLedgerEventRepository(db *sqlx.DB) *LedgerEventRepository {
	return &LedgerEventRepository{db: db}
}

// SaveEvents inserts events in one transaction and returns how many were new.
func (r *LedgerEventRepository) SaveEvents(ctx context.Context, events []*entities.StoredEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO ledger_events (
			tx_digest, event_seq, kind, timestamp_ms,
			merchant_id, product_id,
			total_amount, merchant_received, admin_fee, amount_withdrawn,
			payload
		) VALUES (
			:tx_digest, :event_seq, :kind, :timestamp_ms,
			:merchant_id, :product_id,
			:total_amount, :merchant_received, :admin_fee, :amount_withdrawn,
			:payload
		)
		ON CONFLICT (tx_digest, event_seq) DO NOTHING
	`

	inserted := 0
	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, ev := range events {
			res, err := tx.NamedExecContext(ctx, query, ev)
			if err != nil {
				return fmt.Errorf("failed to insert event %s:%s: %w", ev.TxDigest, ev.EventSeq, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read rows affected: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// CountByKind counts stored events of a kind.
func (r *LedgerEventRepository) CountByKind(ctx context.Context, kind entities.EventKind) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM ledger_events WHERE kind = $1`
	if err := r.db.GetContext(ctx, &count, query, kind); err != nil {
		return 0, fmt.Errorf("failed to count %s events: %w", kind, err)
	}
	return count, nil
}

// SumPaymentFees sums admin_fee over stored payment events, in MIST.
func (r *LedgerEventRepository) SumPaymentFees(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(admin_fee), 0) FROM ledger_events WHERE kind = $1`
	if err := r.db.GetContext(ctx, &total, query, entities.EventPaymentCompleted); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payment fees: %w", err)
	}
	return total, nil
}

// ListRecent returns the newest stored events of a kind.
func (r *LedgerEventRepository) ListRecent(ctx context.Context, kind entities.EventKind, limit int) ([]*entities.StoredEvent, error) {
	query := `
		SELECT tx_digest, event_seq, kind, timestamp_ms, merchant_id, product_id,
			total_amount, merchant_received, admin_fee, amount_withdrawn, payload, recorded_at
		FROM ledger_events
		WHERE kind = $1
		ORDER BY timestamp_ms DESC, tx_digest, event_seq
		LIMIT $2
	`
	var events []*entities.StoredEvent
	if err := r.db.SelectContext(ctx, &events, query, kind, limit); err != nil {
		return nil, fmt.Errorf("failed to list %s events: %w", kind, err)
	}
	return events, nil
}
