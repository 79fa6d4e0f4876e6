package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Midnight runs a job once at startup, then at every UTC midnight.
type Midnight struct {
	Name   string
	Run    func(ctx context.Context) error
	Logger *zap.Logger

	// Now and After are replaced in tests.
	Now   func() time.Time
	After func(d time.Duration) <-chan time.Time
}

// NextMidnight returns the first UTC midnight strictly after t.
func NextMidnight(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// Start schedules the job until ctx is canceled. The returned channel closes
// when the loop exits.
func (m *Midnight) Start(ctx context.Context) <-chan struct{} {
	now, after := m.Now, m.After
	if now == nil {
		now = time.Now
	}
	if after == nil {
		after = time.After
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		// Run immediately once at startup
		m.runOnce(ctx)

		for {
			wait := NextMidnight(now()).Sub(now())
			select {
			case <-ctx.Done():
				return
			case <-after(wait):
				m.runOnce(ctx)
			}
		}
	}()
	return done
}

func (m *Midnight) runOnce(ctx context.Context) {
	start := time.Now()
	if err := m.Run(ctx); err != nil {
		m.Logger.Warn("scheduled job failed", zap.String("job", m.Name), zap.Error(err))
		return
	}
	m.Logger.Info("scheduled job finished", zap.String("job", m.Name), zap.Duration("took", time.Since(start)))
}
