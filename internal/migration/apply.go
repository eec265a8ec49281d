package migration

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Disposition is the outcome of one target's application.
type Disposition int

const (
	Successful Disposition = iota
	Incomplete
	Failed
)

func (d Disposition) String() string {
	switch d {
	case Successful:
		return "Successful"
	case Incomplete:
		return "Incomplete"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Console is the structured reporting collaborator: the engine never
// writes to stdout itself, it only calls through Console, which turns
// these calls into a per-target log file and (separately) into whatever
// terminal rendering the CLI host installs.
type Console interface {
	OpenLog(targetDisplayName string, phase Phase) (Log, error)
	ReportStarting(targetDisplayName string, phase Phase)
	ReportApplying(targetDisplayName string, m *Migration, phase Phase)
	ReportApplied(targetDisplayName string, phase Phase, count int, elapsed time.Duration)
	ReportProblem(targetDisplayName string, message string)
	RenderPlanTable(plan *Plan) string
}

// Log is one (target, phase) log file.
type Log interface {
	WriteHeader(targetDisplayName string, phase Phase, startedAt time.Time) error
	WriteLine(string) error
	Close() error
}

// MigrationError wraps a validation or execution failure into the
// session's own error type.
type MigrationError struct {
	Target string
	Err    error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration: %s: %v", e.Target, e.Err)
}
func (e *MigrationError) Unwrap() error { return e.Err }

// ErrValidationFailed marks a MigrationError produced by Validate returning
// false, distinguished from execution errors so the applicator logs just
// the message.
var ErrValidationFailed = errors.New("migration validation failed")

// Applicator drives one target through one phase of one session. One
// Applicator is constructed per (session, target, phase).
type Applicator struct {
	Target            string // display name
	Phase             Phase
	Conn              Connection
	Console           Console
	Defined           []*Migration // discovery results, shared across targets/phases by the Session
	EarliestDefined   string
	AllowCoreContent  bool
	MinimumName       string // earliest defined name, used to scope GetAppliedMigrations
	Merger            *Merger
	Resolver          Resolver
	Validator         Validator
}

// ApplyAsync runs the full per-target, per-phase flow: connect, fetch
// applied state, merge and plan against what's defined, validate, and
// execute the pending content for this phase. It always returns a
// Disposition; err is non-nil only when the disposition isn't Successful.
func (a *Applicator) ApplyAsync(ctx context.Context) (disposition Disposition, err error) {
	start := time.Now()
	logf, logErr := a.Console.OpenLog(a.Target, a.Phase)
	if logErr == nil {
		_ = logf.WriteHeader(a.Target, a.Phase, start)
	}
	applied := 0

	defer func() {
		if logf != nil {
			_ = logf.WriteLine(fmt.Sprintf("Applied %d migration(s) in %.3f second(s).", applied, time.Since(start).Seconds()))
			_ = logf.Close()
		}
		a.Console.ReportApplied(a.Target, a.Phase, applied, time.Since(start))
	}()

	a.Console.ReportStarting(a.Target, a.Phase)

	if connErr := a.Conn.Connect(ctx); connErr != nil {
		return a.fail(logf, connErr)
	}
	defer a.Conn.Close()

	appliedRows, fetchErr := a.Conn.GetAppliedMigrations(ctx, a.MinimumName)
	if fetchErr != nil {
		return a.fail(logf, fetchErr)
	}

	pending, mergeErr := a.Merger.Merge(a.Defined, appliedRows)
	if mergeErr != nil {
		return a.fail(logf, mergeErr)
	}

	if len(pending) == 0 {
		a.Console.ReportProblem(a.Target, "nothing to do")
		return Successful, nil
	}

	a.Resolver.Resolve(pending)
	plan := Planner{}.Plan(pending)

	if logf != nil {
		_ = logf.WriteLine(a.Console.RenderPlanTable(plan))
	}

	if !a.Validator.Validate(plan, a.Phase, a.Target, a.EarliestDefined) {
		for _, m := range plan.PendingMigrations {
			for _, d := range m.Diagnostics {
				if d.IsError {
					a.Console.ReportProblem(a.Target, fmt.Sprintf("%s: %s", m.Name, d.Message))
				}
			}
		}
		a.Console.ReportProblem(a.Target, "validation failed")
		return Failed, &MigrationError{Target: a.Target, Err: ErrValidationFailed}
	}

	if plan.IsCoreRequired && !a.AllowCoreContent {
		a.Console.ReportProblem(a.Target, "plan requires Core-phase content, which this session does not allow")
		return Failed, &MigrationError{Target: a.Target, Err: fmt.Errorf("core content not allowed")}
	}

	if plan.IsEmpty(a.Phase) {
		if logf != nil {
			_ = logf.WriteLine("nothing to do for the current phase")
		}
		return Successful, nil
	}

	if a.Phase == Pre {
		if initErr := a.Conn.InitializeMigrationSupport(ctx); initErr != nil {
			return a.fail(logf, initErr)
		}
	}

	for _, item := range plan.GetItems(a.Phase) {
		if err := ctx.Err(); err != nil {
			return a.cancelled(logf, err)
		}

		content := item.Migration.Phase(item.Phase)
		a.Console.ReportApplying(a.Target, item.Migration, item.Phase)

		if err := a.Conn.ExecuteMigrationContent(ctx, item.Migration.Name, item.Migration.Hash, item.Phase, content.Sql); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return a.cancelled(logf, ctx.Err())
			}
			return a.fail(logf, err)
		}
		if content.Sql != "" {
			applied++
		}
	}

	return Successful, nil
}

func (a *Applicator) fail(logf Log, cause error) (Disposition, error) {
	var migErr *MigrationError
	if errors.As(cause, &migErr) {
		if logf != nil {
			_ = logf.WriteLine(migErr.Error())
		}
		a.Console.ReportProblem(a.Target, migErr.Error())
		return Failed, migErr
	}
	wrapped := &MigrationError{Target: a.Target, Err: cause}
	if logf != nil {
		_ = logf.WriteLine(fmt.Sprintf("%+v", cause))
	}
	a.Console.ReportProblem(a.Target, cause.Error())
	return Failed, wrapped
}

func (a *Applicator) cancelled(logf Log, cause error) (Disposition, error) {
	if logf != nil {
		_ = logf.WriteLine("cancelled: " + cause.Error())
	}
	a.Console.ReportProblem(a.Target, "cancelled")
	return Incomplete, cause
}
