package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
)

const (
	statsKeyPrefix  = "suiflow:stats:"
	reportKey       = "suiflow:reconciliation:latest"
	DefaultStatsTTL = 5 * time.Minute
)

// ErrCacheMiss is returned when no snapshot is cached.
var ErrCacheMiss = errors.New("cache miss")

// StatsCache keeps the last known processor stats and reconciliation report
// so reads can be served while the ledger is unreachable.
type StatsCache struct {
	client RedisClient
	ttl    time.Duration
}

// NewStatsCache creates a stats cache. A non-positive ttl uses DefaultStatsTTL.
func NewStatsCache(client RedisClient, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &StatsCache{client: client, ttl: ttl}
}

// SetStats caches a stats snapshot for a processor.
func (c *StatsCache) SetStats(ctx context.Context, processorID string, stats *entities.ContractStats) error {
	if err := c.client.Set(ctx, statsKeyPrefix+processorID, stats, c.ttl); err != nil {
		return fmt.Errorf("failed to cache stats: %w", err)
	}
	return nil
}

// GetStats returns the cached snapshot for a processor, or ErrCacheMiss.
func (c *StatsCache) GetStats(ctx context.Context, processorID string) (*entities.ContractStats, error) {
	var stats entities.ContractStats
	if err := c.client.Get(ctx, statsKeyPrefix+processorID, &stats); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cached stats: %w", err)
	}
	return &stats, nil
}

// SetReport caches the latest reconciliation report. Reports do not expire.
func (c *StatsCache) SetReport(ctx context.Context, report *entities.ReconciliationReport) error {
	if err := c.client.Set(ctx, reportKey, report, 0); err != nil {
		return fmt.Errorf("failed to cache reconciliation report: %w", err)
	}
	return nil
}

// GetReport returns the cached reconciliation report, or ErrCacheMiss.
func (c *StatsCache) GetReport(ctx context.Context) (*entities.ReconciliationReport, error) {
	var report entities.ReconciliationReport
	if err := c.client.Get(ctx, reportKey, &report); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cached report: %w", err)
	}
	return &report, nil
}
