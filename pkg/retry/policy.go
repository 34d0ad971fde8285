package retry

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrMaxRetriesExceeded is returned once a policy's retries are exhausted
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Policy describes how an operation is retried
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64 // fraction of the backoff randomized, 0.0 to 1.0

	// RetryableFunc overrides the default classification when set
	RetryableFunc func(error) bool
}

// DefaultPolicy retries read-only ledger queries a few times with
// exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.2,
	}
}

// Validate checks the policy for nonsensical values
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.InitialBackoff < 0 || p.MaxBackoff < 0 {
		return fmt.Errorf("backoff durations must be >= 0")
	}
	if p.MaxBackoff > 0 && p.InitialBackoff > p.MaxBackoff {
		return fmt.Errorf("initial backoff %s exceeds max backoff %s", p.InitialBackoff, p.MaxBackoff)
	}
	if p.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be >= 1.0, got %v", p.Multiplier)
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("jitter must be between 0 and 1, got %v", p.Jitter)
	}
	return nil
}

// Backoff computes wait durations for a policy
type Backoff struct {
	policy Policy
}

// NewBackoff creates a backoff calculator
func NewBackoff(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Calculate returns the wait before the given retry attempt (1-based)
func (b *Backoff) Calculate(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.policy.InitialBackoff) * math.Pow(b.policy.Multiplier, float64(attempt-1))
	if b.policy.MaxBackoff > 0 && d > float64(b.policy.MaxBackoff) {
		d = float64(b.policy.MaxBackoff)
	}
	if b.policy.Jitter > 0 {
		d += d * b.policy.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// ShouldRetry is the default classification: errors that report themselves
// as retryable are retried, everything else is not.
func ShouldRetry(err error) bool {
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}
