package limiter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterBoundsConcurrency(t *testing.T) {
	l := New(2)
	ctx := context.Background()

	var inFlight, maxSeen atomic.Int64
	acquire := func() Scope {
		s, err := l.BeginScope(ctx)
		if err != nil {
			t.Fatalf("BeginScope: %v", err)
		}
		n := inFlight.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		return s
	}

	s1 := acquire()
	s2 := acquire()

	done := make(chan struct{})
	go func() {
		s3 := acquire()
		inFlight.Add(-1)
		s3.Release()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if inFlight.Load() != 2 {
		t.Fatalf("expected 2 in flight before any release, got %d", inFlight.Load())
	}

	inFlight.Add(-1)
	s1.Release()
	<-done
	inFlight.Add(-1)
	s2.Release()

	if maxSeen.Load() > 2 {
		t.Errorf("observed %d concurrent scopes, limit was 2", maxSeen.Load())
	}
}

func TestLimiterDoubleReleaseIsNoOp(t *testing.T) {
	l := New(1)
	s, err := l.BeginScope(context.Background())
	if err != nil {
		t.Fatalf("BeginScope: %v", err)
	}
	s.Release()
	s.Release() // must not panic or double-return the permit

	s2, err := l.BeginScope(context.Background())
	if err != nil {
		t.Fatalf("BeginScope after release: %v", err)
	}
	s2.Release()
}

func TestCompositeLimitIsMinimum(t *testing.T) {
	c := Composite(New(5), New(2))
	if c.Limit() != 2 {
		t.Errorf("expected composite limit 2, got %d", c.Limit())
	}

	c2 := Composite(New(2), New(5))
	if c2.Limit() != 2 {
		t.Errorf("expected composite limit 2, got %d", c2.Limit())
	}
}

func TestCompositeAcquiresAndReleasesBoth(t *testing.T) {
	outer := New(1)
	inner := New(1)
	c := Composite(outer, inner)

	s, err := c.BeginScope(context.Background())
	if err != nil {
		t.Fatalf("BeginScope: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := outer.BeginScope(ctx); err == nil {
		t.Errorf("expected outer to be held by the composite scope")
	}

	s.Release()

	if _, err := outer.BeginScope(context.Background()); err != nil {
		t.Errorf("expected outer to be free after composite release: %v", err)
	}
	if _, err := inner.BeginScope(context.Background()); err != nil {
		t.Errorf("expected inner to be free after composite release: %v", err)
	}
}

func TestBeginScopeRespectsCancellation(t *testing.T) {
	l := New(1)
	s, err := l.BeginScope(context.Background())
	if err != nil {
		t.Fatalf("BeginScope: %v", err)
	}
	defer s.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.BeginScope(ctx); err == nil {
		t.Errorf("expected BeginScope to fail on a cancelled context")
	}
}

func TestGlobalParallelismClampsPerTarget(t *testing.T) {
	g := NewGlobalParallelism(4, 10)
	if g.MaxActionsPerTarget() != 4 {
		t.Errorf("expected MaxActionsPerTarget clamped to 4, got %d", g.MaxActionsPerTarget())
	}
}

func TestGlobalParallelismZeroMeansNumCPU(t *testing.T) {
	g := NewGlobalParallelism(0, 0)
	if g.Actions().Limit() <= 0 {
		t.Errorf("expected positive resolved limit for MaxActions=0, got %d", g.Actions().Limit())
	}
}

func TestTargetGroupParallelismComposesTighterGroupLimit(t *testing.T) {
	global := NewGlobalParallelism(8, 8)
	group := NewTargetGroupParallelism(global, 2, 3)

	tp := group.Target()
	if tp.Actions.Limit() != 2 {
		t.Errorf("expected group action limit 2 (tighter than global 8), got %d", tp.Actions.Limit())
	}
	if group.TargetScope().Limit() != 3 {
		t.Errorf("expected target scope limit 3, got %d", group.TargetScope().Limit())
	}
}

func TestTargetGroupParallelismFallsBackToGlobalWhenNotTighter(t *testing.T) {
	global := NewGlobalParallelism(4, 4)
	group := NewTargetGroupParallelism(global, 10, 2)

	tp := group.Target()
	if tp.Actions.Limit() != 4 {
		t.Errorf("expected fallback to global action limit 4, got %d", tp.Actions.Limit())
	}
}
