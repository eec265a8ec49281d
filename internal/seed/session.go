package seed

import (
	"context"

	"github.com/sqlfleet/deployctl/internal/engine"
	"github.com/sqlfleet/deployctl/internal/limiter"
	"github.com/sqlfleet/deployctl/internal/target"
)

// ConnectionFactory builds the Connection an Applicator drives for one
// target, mirroring migration.ConnectionFactory.
type ConnectionFactory func(target.Target) Connection

// TargetResult is one target's outcome from a completed seed run.
type TargetResult struct {
	Target string
	Err    error
}

// Session drives a LoadedSeed across a TargetGroup, fanning out one
// Applicator per target via the shared engine.Runner. Unlike
// migration.Session, a seed run has no ordered phase list: each
// target's Applicator runs exactly once.
type Session struct {
	Seed           LoadedSeed
	Group          target.Group
	Connect        ConnectionFactory
	Console        Console
	MaxParallelism int // per-target worker count handed to each Applicator
}

// NewSession constructs a Session ready to run.
func NewSession(seedToApply LoadedSeed, group target.Group, connect ConnectionFactory, console Console, maxParallelism int) *Session {
	return &Session{Seed: seedToApply, Group: group, Connect: connect, Console: console, MaxParallelism: maxParallelism}
}

// Run applies the seed to every target in the group concurrently, bounded
// by the group's parallelism limiters, and returns one TargetResult per
// target.
func (s *Session) Run(ctx context.Context) (map[string]TargetResult, error) {
	global := limiter.NewGlobalParallelism(s.Group.MaxParallelism, s.Group.MaxParallelismPerTarget)
	groupLimiter := limiter.NewTargetGroupParallelism(global, s.Group.MaxParallelism, len(s.Group.Targets))

	runner := &engine.Runner{Group: s.Group}
	results := make(map[string]TargetResult, len(s.Group.Targets))

	rs, err := runner.Run(ctx, groupLimiter.TargetScope(), nil, func(gctx context.Context, t target.Target) error {
		display := t.DisplayName()
		tp := groupLimiter.Target()

		// A seed applicator runs MaxParallelism workers against the same
		// target concurrently, unlike a migration applicator which holds a
		// single action permit for its whole phase. tp.Actions alone only
		// bounds the group/global action totals; composing in a limiter
		// sized to MaxActionsPerTarget keeps any one target from running
		// more concurrent batches than the group was configured to allow.
		actions := limiter.Composite(tp.Actions, limiter.New(tp.MaxActionsPerTarget))

		applicator := &Applicator{
			Target:         display,
			Seed:           s.Seed,
			ConnectFactory: func() Connection { return s.Connect(t) },
			Console:        s.Console,
			MaxParallelism: s.MaxParallelism,
			Actions:        actions,
		}
		return applicator.ApplyAsync(gctx)
	})

	for _, r := range rs {
		results[r.Target] = TargetResult{Target: r.Target, Err: r.Err}
	}
	return results, err
}
