package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
	"github.com/suiflow/suiflow_service/pkg/logger"
)

// DefaultRunTimeout bounds a single scheduled run
const DefaultRunTimeout = 2 * time.Minute

// Runner executes one reconciliation pass
type Runner interface {
	Run(ctx context.Context) (*entities.ReconciliationReport, error)
}

// Scheduler runs reconciliation on a cron schedule. Failed runs are logged
// and retried at the next tick.
type Scheduler struct {
	runner     Runner
	cron       *cron.Cron
	schedule   string
	runTimeout time.Duration
	logger     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new reconciliation scheduler
func NewScheduler(runner Runner, schedule string, log *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner: runner,
		// Overlapping ticks are skipped while a run is still in progress.
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		schedule:   schedule,
		runTimeout: DefaultRunTimeout,
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start registers the job and starts the cron loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.execute); err != nil {
		return fmt.Errorf("failed to schedule reconciliation %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("Reconciliation scheduler started", "schedule", s.schedule)
	return nil
}

// Stop cancels any in-flight run and waits for it to return or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.logger.Info("Reconciliation scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) execute() {
	ctx, cancel := context.WithTimeout(s.ctx, s.runTimeout)
	defer cancel()

	start := time.Now()
	report, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("Scheduled reconciliation failed",
			"error", err,
			"duration", time.Since(start))
		return
	}

	s.logger.Info("Scheduled reconciliation completed",
		"run_id", report.RunID,
		"status", report.Status,
		"duration", time.Since(start))
}
