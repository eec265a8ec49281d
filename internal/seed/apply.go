package seed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sqlfleet/deployctl/internal/limiter"
)

// Console is the seed applicator's reporting collaborator, mirroring
// migration.Console: it receives structured calls and the engine itself
// never writes to stdout.
type Console interface {
	OpenLog(targetDisplayName, seedName string) (Log, error)
	ReportStarting(targetDisplayName, seedName string)
	ReportApplying(targetDisplayName, seedName string, m *SeedModule, workerId int)
	ReportApplied(targetDisplayName, seedName string, count int, elapsed time.Duration)
	ReportProblem(targetDisplayName, seedName string, message string)
}

// Log is one (target, seed) log file.
type Log interface {
	WriteHeader(targetDisplayName, seedName string, startedAt time.Time) error
	WriteLine(string) error
	Close() error
}

// SeedError wraps an applicator failure into the session-specific error
// type, mirroring the structure of a SQL exception with target/seed
// context attached.
type SeedError struct {
	Target string
	Seed   string
	Err    error
}

func (e *SeedError) Error() string {
	return fmt.Sprintf("seed: %s/%s: %v", e.Target, e.Seed, e.Err)
}
func (e *SeedError) Unwrap() error { return e.Err }

// Applicator drives one loaded seed against one target.
type Applicator struct {
	Target         string // display name
	Seed           LoadedSeed
	ConnectFactory func() Connection
	Console        Console
	MaxParallelism int
	Actions        limiter.Limiter // per-target action limiter; a permit is acquired before each batch executes
}

// ApplyAsync populates the dependency queue, validates it, and spawns
// MaxParallelism workers to drain it.
func (a *Applicator) ApplyAsync(ctx context.Context) (err error) {
	start := time.Now()
	logf, logErr := a.Console.OpenLog(a.Target, a.Seed.Name)
	if logErr == nil {
		_ = logf.WriteHeader(a.Target, a.Seed.Name, start)
	}
	var applied int64

	defer func() {
		if logf != nil {
			_ = logf.WriteLine(fmt.Sprintf("Applied %d module(s) in %.3f second(s).", atomic.LoadInt64(&applied), time.Since(start).Seconds()))
			_ = logf.Close()
		}
		a.Console.ReportApplied(a.Target, a.Seed.Name, int(atomic.LoadInt64(&applied)), time.Since(start))
	}()

	a.Console.ReportStarting(a.Target, a.Seed.Name)

	workers := a.MaxParallelism
	if workers <= 0 {
		workers = 1
	}

	queue := NewQueue(a.Seed.Modules, workers)
	if problems := queue.Validate(); len(problems) > 0 {
		for _, p := range problems {
			a.Console.ReportProblem(a.Target, a.Seed.Name, p.Error())
		}
		return &SeedError{Target: a.Target, Seed: a.Seed.Name, Err: errors.Join(problems...)}
	}

	runId := uuid.New()
	g, gctx := errgroup.WithContext(ctx)

	for w := 1; w <= workers; w++ {
		workerId := w
		g.Go(func() error {
			return a.runWorker(gctx, queue, runId, workerId, &applied, logf)
		})
	}

	if waitErr := g.Wait(); waitErr != nil {
		var seedErr *SeedError
		if errors.As(waitErr, &seedErr) {
			return seedErr
		}
		return &SeedError{Target: a.Target, Seed: a.Seed.Name, Err: waitErr}
	}
	return nil
}

// runWorker is one worker's life cycle: prepare, then loop dequeueing and
// executing batches until the queue drains.
func (a *Applicator) runWorker(ctx context.Context, queue *Queue, runId uuid.UUID, workerId int, applied *int64, logf Log) error {
	scope, err := a.Actions.BeginScope(ctx)
	if err != nil {
		return err
	}
	conn := a.ConnectFactory()
	prepErr := conn.Prepare(ctx, runId, workerId)
	scope.Release()
	if prepErr != nil {
		queue.Abort(prepErr)
		return &SeedError{Target: a.Target, Seed: a.Seed.Name, Err: prepErr}
	}
	defer conn.Close()

	for {
		module, err := queue.Dequeue(ctx, workerId)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if module == nil {
			return nil
		}

		a.Console.ReportApplying(a.Target, a.Seed.Name, module, workerId)

		if err := a.executeModule(ctx, conn, module); err != nil {
			queue.Abort(err)
			if logf != nil {
				_ = logf.WriteLine(fmt.Sprintf("worker %d: module %q: %v", workerId, module.Name, err))
			}
			a.Console.ReportProblem(a.Target, a.Seed.Name, fmt.Sprintf("module %q: %v", module.Name, err))
			return &SeedError{Target: a.Target, Seed: a.Seed.Name, Err: err}
		}

		atomic.AddInt64(applied, 1)
		queue.Complete(module, workerId)
	}
}

// executeModule runs every batch in module under one action-limiter
// permit per batch: before executing a batch, the worker acquires one
// permit from the target's action limiter.
func (a *Applicator) executeModule(ctx context.Context, conn Connection, module *SeedModule) error {
	for _, batch := range module.Batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		scope, err := a.Actions.BeginScope(ctx)
		if err != nil {
			return err
		}
		execErr := conn.ExecuteBatch(ctx, batch)
		scope.Release()
		if execErr != nil {
			return execErr
		}
	}
	return nil
}
