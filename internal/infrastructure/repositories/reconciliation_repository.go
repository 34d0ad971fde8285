package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
)

// ErrNoReconciliationRuns is returned when no run has been recorded yet.
var ErrNoReconciliationRuns = errors.New("no reconciliation runs recorded")

// ReconciliationRepository stores reconciliation run reports
type ReconciliationRepository struct {
	db *sqlx.DB
}

// NewReconciliationRepository creates a new reconciliation repository
func NewReconciliationRepository(db *sqlx.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

type reconciliationRow struct {
	entities.ReconciliationReport
	AdminAddress           string          `db:"admin_address"`
	TotalFeesCollected     decimal.Decimal `db:"total_fees_collected"`
	TotalPaymentsProcessed decimal.Decimal `db:"total_payments_processed"`
	Unbalanced             pq.StringArray  `db:"unbalanced_events"`
}

// SaveReport records a completed run.
func (r *ReconciliationRepository) SaveReport(ctx context.Context, report *entities.ReconciliationReport) error {
	query := `
		INSERT INTO reconciliation_runs (
			id, started_at, completed_at,
			admin_address, total_fees_collected, total_payments_processed,
			new_payments, new_withdrawals, stored_payments,
			unbalanced_events, fees_from_events, discrepancy, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		report.RunID,
		report.StartedAt,
		report.CompletedAt,
		report.Stats.AdminAddress,
		decimal.NewFromUint64(report.Stats.TotalFeesCollected),
		decimal.NewFromUint64(report.Stats.TotalPaymentsProcessed),
		report.NewPayments,
		report.NewWithdrawals,
		report.StoredPayments,
		pq.StringArray(report.UnbalancedEvents),
		report.FeesFromEvents,
		report.Discrepancy,
		report.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to save reconciliation report: %w", err)
	}
	return nil
}

// LatestReport returns the most recently completed run.
func (r *ReconciliationRepository) LatestReport(ctx context.Context) (*entities.ReconciliationReport, error) {
	query := `
		SELECT id, started_at, completed_at,
			admin_address, total_fees_collected, total_payments_processed,
			new_payments, new_withdrawals, stored_payments,
			unbalanced_events, fees_from_events, discrepancy, status
		FROM reconciliation_runs
		ORDER BY completed_at DESC
		LIMIT 1
	`

	var row reconciliationRow
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoReconciliationRuns
		}
		return nil, fmt.Errorf("failed to get latest reconciliation report: %w", err)
	}

	report := row.ReconciliationReport
	report.Stats = entities.ContractStats{
		AdminAddress:           row.AdminAddress,
		TotalFeesCollected:     row.TotalFeesCollected.BigInt().Uint64(),
		TotalPaymentsProcessed: row.TotalPaymentsProcessed.BigInt().Uint64(),
		FetchedAt:              report.CompletedAt,
	}
	report.UnbalancedEvents = []string(row.Unbalanced)
	if report.UnbalancedEvents == nil {
		report.UnbalancedEvents = []string{}
	}
	return &report, nil
}
