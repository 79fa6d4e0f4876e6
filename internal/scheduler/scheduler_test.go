package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// go test -v --run TestNextMidnight
func TestNextMidnight(t *testing.T) {
	tests := []struct {
		in, want time.Time
	}{
		{time.Date(2024, 7, 15, 15, 4, 5, 0, time.UTC), time.Date(2024, 7, 16, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 7, 16, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := NextMidnight(tt.in); !got.Equal(tt.want) {
			t.Fatalf("NextMidnight(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// go test -v --run TestMidnightRunsAtStartupAndEachTick
func TestMidnightRunsAtStartupAndEachTick(t *testing.T) {
	var runs atomic.Int32
	ticks := make(chan time.Time)
	waits := make(chan time.Duration, 4)

	m := &Midnight{
		Name:   "test",
		Logger: zap.NewNop(),
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
		Now: func() time.Time { return time.Date(2024, 7, 15, 18, 0, 0, 0, time.UTC) },
		After: func(d time.Duration) <-chan time.Time {
			waits <- d
			return ticks
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := m.Start(ctx)

	if d := <-waits; d != 6*time.Hour {
		t.Fatalf("waited %v, want 6h", d)
	}
	ticks <- time.Time{}
	<-waits
	cancel()
	<-done

	if runs.Load() != 2 {
		t.Fatalf("expected 2 runs, got %d", runs.Load())
	}
}

type fakePruner struct{ n int }

func (p fakePruner) Prune() int { return p.n }

// go test -v --run TestPrunersSum
func TestPrunersSum(t *testing.T) {
	if n := (Pruners{fakePruner{2}, fakePruner{3}}).Prune(); n != 5 {
		t.Fatalf("pruned %d, want 5", n)
	}
}

type fakePurger struct {
	before time.Time
	err    error
}

func (p *fakePurger) Purge(_ context.Context, before time.Time) (int64, error) {
	p.before = before
	return 3, p.err
}

// go test -v --run TestHousekeeping
func TestHousekeeping(t *testing.T) {
	now := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	purger := &fakePurger{}
	job := Housekeeping(fakePruner{2}, purger, 30*24*time.Hour, func() time.Time { return now }, zap.NewNop())

	if err := job(context.Background()); err != nil {
		t.Fatalf("job: %v", err)
	}
	if want := now.AddDate(0, 0, -30); !purger.before.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", purger.before, want)
	}

	purger.err = errors.New("db down")
	if err := job(context.Background()); err == nil {
		t.Fatal("expected purge error")
	}
}
