package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Retrier runs operations under a retry policy
type Retrier struct {
	policy  Policy
	backoff *Backoff
	logger  *zap.Logger
}

// NewRetrier creates a new retrier
func NewRetrier(policy Policy, logger *zap.Logger) *Retrier {
	if err := policy.Validate(); err != nil {
		panic(fmt.Sprintf("invalid retry policy: %v", err))
	}

	return &Retrier{
		policy:  policy,
		backoff: NewBackoff(policy),
		logger:  logger,
	}
}

// Do executes operation until it succeeds, fails with a non-retryable
// error, the policy is exhausted or ctx is done.
func (r *Retrier) Do(ctx context.Context, name string, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("Operation succeeded after retries",
					zap.String("operation", name),
					zap.Int("attempt", attempt))
			}
			return nil
		}

		if !r.isRetryable(lastErr) {
			return lastErr
		}

		if attempt >= r.policy.MaxRetries {
			r.logger.Warn("Max retries exceeded",
				zap.String("operation", name),
				zap.Error(lastErr),
				zap.Int("attempts", attempt+1))
			break
		}

		wait := r.backoff.Calculate(attempt + 1)
		r.logger.Debug("Retrying operation",
			zap.String("operation", name),
			zap.Error(lastErr),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
}

func (r *Retrier) isRetryable(err error) bool {
	if r.policy.RetryableFunc != nil {
		return r.policy.RetryableFunc(err)
	}
	return ShouldRetry(err)
}

// Do is a package-level helper for one-off retries
func Do(ctx context.Context, policy Policy, logger *zap.Logger, name string, operation func(ctx context.Context) error) error {
	return NewRetrier(policy, logger).Do(ctx, name, operation)
}
