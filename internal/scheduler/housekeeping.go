package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Pruner drops stale client-tier entries.
type Pruner interface {
	Prune() int
}

// Pruners prunes several stores as one.
type Pruners []Pruner

func (ps Pruners) Prune() int {
	n := 0
	for _, p := range ps {
		n += p.Prune()
	}
	return n
}

// Purger deletes persisted rows older than a cutoff.
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Housekeeping returns a job that prunes the client tier and purges shared
// data older than retention.
func Housekeeping(local Pruner, shared Purger, retention time.Duration, now func() time.Time, logger *zap.Logger) func(ctx context.Context) error {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		pruned := local.Prune()

		var purged int64
		if shared != nil && retention > 0 {
			n, err := shared.Purge(ctx, now().Add(-retention))
			if err != nil {
				return fmt.Errorf("purge shared tier: %w", err)
			}
			purged = n
		}

		logger.Info("housekeeping done", zap.Int("pruned", pruned), zap.Int64("purged", purged))
		return nil
	}
}
