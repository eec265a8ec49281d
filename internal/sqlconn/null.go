package sqlconn

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sqlfleet/deployctl/internal/migration"
	"github.com/sqlfleet/deployctl/internal/seed"
)

// Null is an in-memory migration.Connection that records every
// ExecuteMigrationContent call it receives and serves Registered as the
// applied rows, for tests that exercise the Applicator/Session without a
// real database. It does not update Registered when content executes.
type Null struct {
	mu sync.Mutex

	Registered []*migration.Migration
	Executed   []NullExecution

	// InitErr and ExecErr, when set, are returned from the matching call
	// instead of succeeding — used to exercise the Applicator's failure
	// paths.
	InitErr error
	ExecErr error
}

// NullExecution records one ExecuteMigrationContent call.
type NullExecution struct {
	Name  string
	Hash  string
	Phase migration.Phase
	Sql   string
}

var _ migration.Connection = (*Null)(nil)

func (n *Null) Connect(ctx context.Context) error { return nil }
func (n *Null) Close() error                      { return nil }

func (n *Null) InitializeMigrationSupport(ctx context.Context) error {
	return n.InitErr
}

func (n *Null) GetAppliedMigrations(ctx context.Context, minimumName string) ([]*migration.Migration, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*migration.Migration, len(n.Registered))
	for i, m := range n.Registered {
		cp := *m
		out[i] = &cp
	}
	return out, nil
}

func (n *Null) ExecuteMigrationContent(ctx context.Context, name, hash string, phase migration.Phase, sql string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ExecErr != nil {
		return n.ExecErr
	}
	n.Executed = append(n.Executed, NullExecution{Name: name, Hash: hash, Phase: phase, Sql: sql})
	return nil
}

// NullSeed is an in-memory seed.Connection recording every prepared worker
// and executed batch.
type NullSeed struct {
	mu sync.Mutex

	Prepared []NullPrepare
	Executed []string

	PrepareErr error
	ExecErr    error
}

type NullPrepare struct {
	RunId    uuid.UUID
	WorkerId int
}

var _ seed.Connection = (*NullSeed)(nil)

func (n *NullSeed) Prepare(ctx context.Context, runId uuid.UUID, workerId int) error {
	if n.PrepareErr != nil {
		return n.PrepareErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Prepared = append(n.Prepared, NullPrepare{RunId: runId, WorkerId: workerId})
	return nil
}

func (n *NullSeed) ExecuteBatch(ctx context.Context, sql string) error {
	if n.ExecErr != nil {
		return n.ExecErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Executed = append(n.Executed, sql)
	return nil
}

func (n *NullSeed) Close() error { return nil }
