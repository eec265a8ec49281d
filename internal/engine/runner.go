// Package engine provides the shared per-target fan-out runner both the
// migration session and the seed session delegate into: two concrete
// session types, each parameterizing the same runner with an "apply one
// target" operation.
package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sqlfleet/deployctl/internal/limiter"
	"github.com/sqlfleet/deployctl/internal/target"
)

// Result is one target's outcome from a single Runner.Run call.
type Result struct {
	Target string
	Err    error
}

// Operation applies whatever a session needs against one target. Callers
// acquire their own per-target action limiter from within op; Runner only
// bounds how many targets run concurrently.
type Operation func(ctx context.Context, t target.Target) error

// Runner fans Operation out across a TargetGroup, bounded by a target-scope
// limiter, and aggregates per-target results. It carries no state of its
// own beyond the group being driven, so migration.Session and seed.Session
// can each build one per phase/run without sharing mutable fields.
type Runner struct {
	Group target.Group
}

// Run executes op against every target in r.Group concurrently, skipping
// any target for which shouldSkip returns true (e.g. "already failed in an
// earlier phase"). shouldSkip may be nil. It returns one Result per
// non-skipped target (in Group.Targets order) and the first error
// encountered, matching errgroup's aggregation behavior.
func (r *Runner) Run(ctx context.Context, scope limiter.Limiter, shouldSkip func(t target.Target) bool, op Operation) ([]Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	slots := make([]*Result, len(r.Group.Targets))
	var mu sync.Mutex
	record := func(i int, res Result) {
		mu.Lock()
		defer mu.Unlock()
		slots[i] = &res
	}

	for i, t := range r.Group.Targets {
		i, t := i, t
		if shouldSkip != nil && shouldSkip(t) {
			continue
		}

		g.Go(func() error {
			s, err := scope.BeginScope(gctx)
			if err != nil {
				record(i, Result{Target: t.DisplayName(), Err: err})
				return err
			}
			defer s.Release()

			err = op(gctx, t)
			record(i, Result{Target: t.DisplayName(), Err: err})
			return err
		})
	}

	err := g.Wait()
	results := make([]Result, 0, len(slots))
	for _, res := range slots {
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, err
}
