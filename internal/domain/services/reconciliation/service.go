// Package reconciliation compares the processor's aggregate counters with
// the events it emitted and keeps a local copy of those events.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
	"github.com/suiflow/suiflow_service/pkg/logger"
	"github.com/suiflow/suiflow_service/pkg/metrics"
	"github.com/suiflow/suiflow_service/pkg/retry"
)

// ErrNoReport is returned before the first run has completed.
var ErrNoReport = errors.New("no reconciliation report available")

// DefaultEventWindow is how many of the newest events of each kind a run reads.
const DefaultEventWindow = 100

// LedgerReader is the read side of the payment orchestrator
type LedgerReader interface {
	Stats(ctx context.Context) (*entities.ContractStats, error)
	PaymentEvents(ctx context.Context, limit int) ([]entities.LedgerEvent, error)
	AdminFeeEvents(ctx context.Context, limit int) ([]entities.LedgerEvent, error)
}

// EventStore persists ledger events
type EventStore interface {
	SaveEvents(ctx context.Context, events []*entities.StoredEvent) (int, error)
	CountByKind(ctx context.Context, kind entities.EventKind) (int64, error)
	SumPaymentFees(ctx context.Context) (decimal.Decimal, error)
}

// ReportStore persists run reports
type ReportStore interface {
	SaveReport(ctx context.Context, report *entities.ReconciliationReport) error
	LatestReport(ctx context.Context) (*entities.ReconciliationReport, error)
}

// SnapshotCache holds the last known stats and report
type SnapshotCache interface {
	SetStats(ctx context.Context, processorID string, stats *entities.ContractStats) error
	SetReport(ctx context.Context, report *entities.ReconciliationReport) error
	GetReport(ctx context.Context) (*entities.ReconciliationReport, error)
}

// Config holds reconciliation service configuration
type Config struct {
	ProcessorObjectID string
	EventWindow       int
	RetryPolicy       retry.Policy
}

// Dependencies wires the optional collaborators. Events, Reports and Cache
// may be nil.
type Dependencies struct {
	Ledger  LedgerReader
	Events  EventStore
	Reports ReportStore
	Cache   SnapshotCache
}

// Service runs reconciliation passes. Runs are serialized.
type Service struct {
	ledger  LedgerReader
	events  EventStore
	reports ReportStore
	cache   SnapshotCache
	retrier *retry.Retrier
	config  Config
	logger  *logger.Logger
	now     func() time.Time

	runMu  sync.Mutex
	mu     sync.RWMutex
	latest *entities.ReconciliationReport
}

// NewService creates a new reconciliation service
func NewService(deps Dependencies, config Config, log *logger.Logger) *Service {
	if config.EventWindow <= 0 {
		config.EventWindow = DefaultEventWindow
	}
	return &Service{
		ledger:  deps.Ledger,
		events:  deps.Events,
		reports: deps.Reports,
		cache:   deps.Cache,
		retrier: retry.NewRetrier(config.RetryPolicy, log.Zap()),
		config:  config,
		logger:  log,
		now:     time.Now,
	}
}

// Run executes one reconciliation pass and records its report as the latest.
func (s *Service) Run(ctx context.Context) (*entities.ReconciliationReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx, span := otel.Tracer("reconciliation.service").Start(ctx, "Run")
	defer span.End()

	report := &entities.ReconciliationReport{
		RunID:            uuid.New(),
		StartedAt:        s.now().UTC(),
		UnbalancedEvents: []string{},
	}
	span.SetAttributes(attribute.String("run_id", report.RunID.String()))

	s.logger.Info("Starting reconciliation run", "run_id", report.RunID)

	if err := s.run(ctx, report); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordReconciliation("error", s.now())
		s.logger.Error("Reconciliation run failed", "run_id", report.RunID, "error", err)
		return nil, err
	}

	report.CompletedAt = s.now().UTC()
	span.SetAttributes(attribute.String("status", report.Status))
	metrics.RecordReconciliation(report.Status, report.CompletedAt)

	s.persist(ctx, report)

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()

	s.logger.Info("Reconciliation run completed",
		"run_id", report.RunID,
		"status", report.Status,
		"new_payments", report.NewPayments,
		"new_withdrawals", report.NewWithdrawals,
		"stored_payments", report.StoredPayments,
		"unbalanced", len(report.UnbalancedEvents),
		"discrepancy_sui", report.Discrepancy.String(),
	)

	return report, nil
}

func (s *Service) run(ctx context.Context, report *entities.ReconciliationReport) error {
	var (
		stats       *entities.ContractStats
		payments    []entities.LedgerEvent
		withdrawals []entities.LedgerEvent
	)

	err := s.retrier.Do(ctx, "stats", func(ctx context.Context) error {
		var err error
		stats, err = s.ledger.Stats(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to read processor stats: %w", err)
	}
	report.Stats = *stats

	if s.cache != nil {
		if err := s.cache.SetStats(ctx, s.config.ProcessorObjectID, stats); err != nil {
			s.logger.Warn("Failed to cache stats", "error", err)
		}
	}

	err = s.retrier.Do(ctx, "payment_events", func(ctx context.Context) error {
		var err error
		payments, err = s.ledger.PaymentEvents(ctx, s.config.EventWindow)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to read payment events: %w", err)
	}

	err = s.retrier.Do(ctx, "admin_fee_events", func(ctx context.Context) error {
		var err error
		withdrawals, err = s.ledger.AdminFeeEvents(ctx, s.config.EventWindow)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to read admin fee events: %w", err)
	}

	stored := make([]*entities.StoredEvent, 0, len(payments)+len(withdrawals))
	var windowFees uint64
	for _, ev := range payments {
		data, err := ev.Payment()
		if err != nil || !data.Balanced() {
			report.UnbalancedEvents = append(report.UnbalancedEvents, ev.ID.String())
			continue
		}
		windowFees += uint64(data.AdminFee)
		if se, err := entities.NewStoredEvent(ev); err == nil {
			stored = append(stored, se)
		} else {
			s.logger.Warn("Skipping unstorable payment event", "event", ev.ID.String(), "error", err)
		}
	}
	for _, ev := range withdrawals {
		se, err := entities.NewStoredEvent(ev)
		if err != nil {
			s.logger.Warn("Skipping unstorable withdrawal event", "event", ev.ID.String(), "error", err)
			continue
		}
		stored = append(stored, se)
	}

	if s.events == nil {
		report.NewPayments = len(payments) - len(report.UnbalancedEvents)
		report.NewWithdrawals = len(withdrawals)
		report.StoredPayments = int64(report.NewPayments)
		report.FeesFromEvents = entities.MistToSUI(windowFees)
	} else if err := s.reconcileStore(ctx, report, stored); err != nil {
		return err
	}

	report.Discrepancy = entities.MistToSUI(stats.TotalFeesCollected).Sub(report.FeesFromEvents)
	report.Status = evaluate(report)
	return nil
}

func (s *Service) reconcileStore(ctx context.Context, report *entities.ReconciliationReport, stored []*entities.StoredEvent) error {
	var payments, withdrawals []*entities.StoredEvent
	for _, se := range stored {
		if se.Kind == entities.EventPaymentCompleted {
			payments = append(payments, se)
		} else {
			withdrawals = append(withdrawals, se)
		}
	}

	n, err := s.events.SaveEvents(ctx, payments)
	if err != nil {
		return fmt.Errorf("failed to store payment events: %w", err)
	}
	report.NewPayments = n

	if n, err = s.events.SaveEvents(ctx, withdrawals); err != nil {
		return fmt.Errorf("failed to store withdrawal events: %w", err)
	}
	report.NewWithdrawals = n

	if report.StoredPayments, err = s.events.CountByKind(ctx, entities.EventPaymentCompleted); err != nil {
		return err
	}
	fees, err := s.events.SumPaymentFees(ctx)
	if err != nil {
		return err
	}
	report.FeesFromEvents = fees.Shift(-9)
	return nil
}

// evaluate decides whether the stats and events agree. Fee totals can only
// be compared once every processed payment has been seen.
func evaluate(report *entities.ReconciliationReport) string {
	processed := report.Stats.TotalPaymentsProcessed
	switch {
	case len(report.UnbalancedEvents) > 0:
		return entities.ReconciliationStatusDiscrepant
	case report.StoredPayments < 0 || uint64(report.StoredPayments) > processed:
		return entities.ReconciliationStatusDiscrepant
	case report.Discrepancy.IsNegative():
		return entities.ReconciliationStatusDiscrepant
	case uint64(report.StoredPayments) == processed && !report.Discrepancy.IsZero():
		return entities.ReconciliationStatusDiscrepant
	default:
		return entities.ReconciliationStatusBalanced
	}
}

func (s *Service) persist(ctx context.Context, report *entities.ReconciliationReport) {
	if s.reports != nil {
		if err := s.reports.SaveReport(ctx, report); err != nil {
			s.logger.Warn("Failed to save reconciliation report", "run_id", report.RunID, "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.SetReport(ctx, report); err != nil {
			s.logger.Warn("Failed to cache reconciliation report", "run_id", report.RunID, "error", err)
		}
	}
}

// LatestReport returns the newest report from this process, the report
// store or the cache, in that order.
func (s *Service) LatestReport(ctx context.Context) (*entities.ReconciliationReport, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		return latest, nil
	}

	if s.reports != nil {
		report, err := s.reports.LatestReport(ctx)
		if err == nil {
			return report, nil
		}
		s.logger.Debug("No stored reconciliation report", "error", err)
	}
	if s.cache != nil {
		report, err := s.cache.GetReport(ctx)
		if err == nil {
			return report, nil
		}
		s.logger.Debug("No cached reconciliation report", "error", err)
	}
	return nil, ErrNoReport
}
