package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/sqlfleet/deployctl/internal/limiter"
	"github.com/sqlfleet/deployctl/internal/target"
)

func mustTarget(t *testing.T, cs string) target.Target {
	t.Helper()
	tg, err := target.New(cs, nil)
	if err != nil {
		t.Fatalf("target.New: %v", err)
	}
	return tg
}

func TestRunnerRunsEveryTargetConcurrently(t *testing.T) {
	t1 := mustTarget(t, "server=s1;database=d1")
	t2 := mustTarget(t, "server=s2;database=d2")
	runner := &Runner{Group: target.Group{Targets: []target.Target{t1, t2}}}

	var calls int32
	results, err := runner.Run(context.Background(), limiter.New(2), nil, func(ctx context.Context, tg target.Target) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected op to run for both targets, got %d calls", calls)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestRunnerSkipsFilteredTargets(t *testing.T) {
	t1 := mustTarget(t, "server=s1;database=d1")
	t2 := mustTarget(t, "server=s2;database=d2")
	runner := &Runner{Group: target.Group{Targets: []target.Target{t1, t2}}}

	results, err := runner.Run(context.Background(), limiter.New(2), func(tg target.Target) bool {
		return tg.DisplayName() == t1.DisplayName()
	}, func(ctx context.Context, tg target.Target) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || results[0].Target != t2.DisplayName() {
		t.Fatalf("expected only t2 to run, got %v", results)
	}
}

func TestRunnerAggregatesFirstError(t *testing.T) {
	t1 := mustTarget(t, "server=s1;database=d1")
	runner := &Runner{Group: target.Group{Targets: []target.Target{t1}}}
	boom := errors.New("boom")

	results, err := runner.Run(context.Background(), limiter.New(1), nil, func(ctx context.Context, tg target.Target) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom to surface, got %v", err)
	}
	if len(results) != 1 || !errors.Is(results[0].Err, boom) {
		t.Fatalf("expected the per-target result to also carry the error, got %v", results)
	}
}

func TestRunnerBoundsConcurrencyViaScope(t *testing.T) {
	targets := make([]target.Target, 4)
	for i := range targets {
		targets[i] = mustTarget(t, "server=s;database=d"+string(rune('0'+i)))
	}
	runner := &Runner{Group: target.Group{Targets: targets}}

	var inFlight, maxInFlight int32
	_, err := runner.Run(context.Background(), limiter.New(1), nil, func(ctx context.Context, tg target.Target) error {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			max := atomic.LoadInt32(&maxInFlight)
			if n <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, n) {
				break
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// BeginScope(1) structurally forbids two ops running at once, so this
	// check is a property of Runner.Run composing scope acquisition with
	// op invocation, not a race the test happens to win.
	if maxInFlight != 1 {
		t.Fatalf("expected concurrency bounded to 1, observed max %d", maxInFlight)
	}
}
