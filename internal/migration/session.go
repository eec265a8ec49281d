package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/sqlfleet/deployctl/internal/engine"
	"github.com/sqlfleet/deployctl/internal/limiter"
	"github.com/sqlfleet/deployctl/internal/target"
)

const sessionLockRetryInterval = 50 * time.Millisecond

// ConnectionFactory builds the Connection an Applicator drives for one
// target. Supplied by the caller (sqlconn.Sql.For, or the what-if overlay)
// so the Session itself never imports a concrete driver.
type ConnectionFactory func(target.Target) Connection

// TargetResult is one target's outcome from a completed session.
type TargetResult struct {
	Target      string
	Disposition Disposition
	Err         error
}

// ErrSessionCancelled marks a Session.Run that was cut short by context
// cancellation rather than by a target actually failing. A cancelled run
// with zero accumulated target failures still has to report that it didn't
// finish — this sentinel is what callers can errors.Is against to tell the
// two apart.
var ErrSessionCancelled = errors.New("migration: session cancelled")

// Session drives a TargetGroup through every configured phase. Discovery
// happens once, up front, and is shared by every target and phase; each
// phase re-fetches per-target applied state so that a later phase sees what
// an earlier phase just committed.
type Session struct {
	Defined          []*Migration
	Group            target.Group
	Connect          ConnectionFactory
	Console          Console
	Phases           []Phase // ordered, e.g. []Phase{Pre, Core, Post}
	AllowCoreContent bool
	EarliestDefined  string
	MinimumName      string

	// MaxErrorCount bounds how many target failures this session tolerates
	// before it cancels its own context and gives up on the rest of the
	// group. A value of 0 cancels on the first failure.
	MaxErrorCount int

	// lockPath, when non-empty, is flock'd for the session's lifetime to
	// guarantee only one session runs against a migrations root at a time.
	lockPath string

	mu       sync.Mutex
	results  map[string]TargetResult
	errCount int
}

// NewSession constructs a Session for group, ordering earliestDefined from
// defined's first non-pseudo entry.
func NewSession(defined []*Migration, group target.Group, connect ConnectionFactory, console Console, phases []Phase, allowCoreContent bool, maxErrorCount int, lockPath string) *Session {
	earliest := ""
	minimum := ""
	for _, m := range defined {
		if m.IsPseudo() {
			continue
		}
		if earliest == "" || CompareNames(m.Name, earliest) < 0 {
			earliest = m.Name
			minimum = m.Name
		}
	}
	return &Session{
		Defined:          defined,
		Group:            group,
		Connect:          connect,
		Console:          console,
		Phases:           phases,
		AllowCoreContent: allowCoreContent,
		MaxErrorCount:    maxErrorCount,
		EarliestDefined:  earliest,
		MinimumName:      minimum,
		lockPath:         lockPath,
		results:          make(map[string]TargetResult),
	}
}

// Run executes every configured phase in order, stopping before a phase
// once any target from the previous phase failed or was left incomplete by
// cancellation. It returns the final per-target results and an error if any
// target failed or the run was cancelled before every target finished.
func (s *Session) Run(ctx context.Context) (map[string]TargetResult, error) {
	if s.lockPath != "" {
		fl := flock.New(s.lockPath)
		locked, err := fl.TryLockContext(ctx, sessionLockRetryInterval)
		if err != nil {
			return nil, fmt.Errorf("migration: acquiring session lock %q: %w", s.lockPath, err)
		}
		if !locked {
			return nil, fmt.Errorf("migration: another session is already running against %q", s.lockPath)
		}
		defer fl.Unlock()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	global := limiter.NewGlobalParallelism(s.Group.MaxParallelism, s.Group.MaxParallelismPerTarget)
	groupLimiter := limiter.NewTargetGroupParallelism(global, s.Group.MaxParallelism, len(s.Group.Targets))

	for _, phase := range s.Phases {
		if s.runPhase(runCtx, phase, groupLimiter, cancel) {
			break
		}
	}

	s.mu.Lock()
	var failedResult, incompleteResult *TargetResult
	for k := range s.results {
		r := s.results[k]
		switch r.Disposition {
		case Failed:
			if failedResult == nil {
				rc := r
				failedResult = &rc
			}
		case Incomplete:
			if incompleteResult == nil {
				rc := r
				incompleteResult = &rc
			}
		}
	}
	out := make(map[string]TargetResult, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	s.mu.Unlock()

	switch {
	case failedResult != nil:
		return out, failedResult.Err
	case incompleteResult != nil:
		cause := ctx.Err()
		if cause == nil {
			cause = incompleteResult.Err
		}
		if cause == nil {
			cause = ErrSessionCancelled
		}
		return out, fmt.Errorf("%w: %v", ErrSessionCancelled, cause)
	default:
		return out, nil
	}
}

// noteFailure records one more target failure and cancels once the running
// count exceeds MaxErrorCount, so the rest of the group stops rather than
// running to completion against an already-unhealthy target set.
func (s *Session) noteFailure(cancel context.CancelFunc) {
	s.mu.Lock()
	s.errCount++
	exceeded := s.errCount > s.MaxErrorCount
	s.mu.Unlock()
	if exceeded {
		cancel()
	}
}

// runPhase fans out one Applicator per target via the shared engine.Runner,
// bounded by the group's parallelism limiters, skipping any target that
// already failed in an earlier phase. It returns true if any target in this
// phase failed or was left incomplete, meaning later phases should not run.
func (s *Session) runPhase(ctx context.Context, phase Phase, groupLimiter *limiter.TargetGroupParallelism, cancel context.CancelFunc) bool {
	runner := &engine.Runner{Group: s.Group}

	shouldSkip := func(t target.Target) bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		prior, seen := s.results[t.DisplayName()]
		return seen && prior.Disposition == Failed
	}

	var mu sync.Mutex
	stop := false

	_, _ = runner.Run(ctx, groupLimiter.TargetScope(), shouldSkip, func(gctx context.Context, t target.Target) error {
		display := t.DisplayName()
		tp := groupLimiter.Target()
		actionScope, actionErr := tp.Actions.BeginScope(gctx)
		if actionErr != nil {
			s.mu.Lock()
			s.results[display] = TargetResult{Target: display, Disposition: Incomplete, Err: actionErr}
			s.mu.Unlock()
			mu.Lock()
			stop = true
			mu.Unlock()
			return nil
		}
		defer actionScope.Release()

		applicator := &Applicator{
			Target:           display,
			Phase:            phase,
			Conn:             s.Connect(t),
			Console:          s.Console,
			Defined:          s.Defined,
			EarliestDefined:  s.EarliestDefined,
			AllowCoreContent: s.AllowCoreContent,
			MinimumName:      s.MinimumName,
			Merger:           NewMerger(),
		}

		disposition, applyErr := applicator.ApplyAsync(gctx)

		s.mu.Lock()
		s.results[display] = TargetResult{Target: display, Disposition: disposition, Err: applyErr}
		s.mu.Unlock()

		switch disposition {
		case Failed:
			s.noteFailure(cancel)
			mu.Lock()
			stop = true
			mu.Unlock()
		case Incomplete:
			mu.Lock()
			stop = true
			mu.Unlock()
		}
		return nil
	})

	mu.Lock()
	defer mu.Unlock()
	return stop
}

// GetRegisteredMigrations connects to a single target and returns its
// currently registered migrations, without planning or applying anything.
// Used by `migrate status`.
func (s *Session) GetRegisteredMigrations(ctx context.Context, t target.Target) ([]*Migration, error) {
	conn := s.Connect(t)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("migration: connecting to %s: %w", t.DisplayName(), err)
	}
	defer conn.Close()

	rows, err := conn.GetAppliedMigrations(ctx, s.MinimumName)
	if err != nil {
		return nil, fmt.Errorf("migration: reading registrations from %s: %w", t.DisplayName(), err)
	}
	return rows, nil
}
