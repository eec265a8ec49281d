// Package sqlconn provides the concrete database/sql-backed implementation
// of migration.Connection and seed.Connection, plus a Null variant for
// tests. The SQL client driver and wire protocol are an external
// collaborator; this package is the thin shim around it.
package sqlconn

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/google/uuid"

	"github.com/sqlfleet/deployctl/internal/migration"
	"github.com/sqlfleet/deployctl/internal/seed"
	"github.com/sqlfleet/deployctl/internal/target"
)

// createRegistrationTable matches the `_deploy.Migration(Name, Hash,
// State)` registration table shape, modeled here against SQLite as the
// concrete backend this module ships with.
const createRegistrationTable = `
CREATE TABLE IF NOT EXISTS deploy_migration (
	name  TEXT PRIMARY KEY,
	hash  TEXT NOT NULL,
	state INTEGER NOT NULL
);`

const selectAppliedMigrations = `
SELECT name, hash, state FROM deploy_migration
WHERE state < ? OR name >= ?
ORDER BY name;`

const upsertMigration = `
INSERT INTO deploy_migration(name, hash, state) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET hash = excluded.hash, state = excluded.state;`

// Sql is the real migration.Connection, backed by one *sql.DB per target.
type Sql struct {
	Target target.Target
	db     *sql.DB
}

var _ migration.Connection = (*Sql)(nil)

// NewSql builds a Sql connection for t. The connection is opened lazily by
// Connect, matching the rest of this module's "I/O happens at Connect, not
// construction" convention.
func NewSql(t target.Target) *Sql {
	return &Sql{Target: t}
}

func (s *Sql) dsn() string {
	return "file:" + s.Target.ConnectionString + "?_pragma=busy_timeout(5000)"
}

func (s *Sql) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite3", s.dsn())
	if err != nil {
		return fmt.Errorf("sqlconn: opening %s: %w", s.Target.DisplayName(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("sqlconn: connecting to %s: %w", s.Target.DisplayName(), err)
	}
	s.db = db
	return nil
}

func (s *Sql) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Sql) InitializeMigrationSupport(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createRegistrationTable)
	if err != nil {
		return fmt.Errorf("sqlconn: initializing registration table on %s: %w", s.Target.DisplayName(), err)
	}
	return nil
}

func (s *Sql) GetAppliedMigrations(ctx context.Context, minimumName string) ([]*migration.Migration, error) {
	rows, err := s.db.QueryContext(ctx, selectAppliedMigrations, int(migration.AppliedPost), minimumName)
	if err != nil {
		return nil, fmt.Errorf("sqlconn: reading registrations from %s: %w", s.Target.DisplayName(), err)
	}
	defer rows.Close()

	var out []*migration.Migration
	for rows.Next() {
		var name, hash string
		var state int
		if err := rows.Scan(&name, &hash, &state); err != nil {
			return nil, fmt.Errorf("sqlconn: scanning registration row: %w", err)
		}
		out = append(out, &migration.Migration{Name: name, Hash: hash, State: migration.State(state)})
	}
	return out, rows.Err()
}

func (s *Sql) ExecuteMigrationContent(ctx context.Context, migrationName, hash string, phase migration.Phase, sqlText string) error {
	if strings.TrimSpace(sqlText) != "" {
		if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
			return fmt.Errorf("sqlconn: executing %s (%s) on %s: %w", migrationName, phase, s.Target.DisplayName(), err)
		}
	}

	newState := phaseReachedState(phase)
	if _, err := s.db.ExecContext(ctx, upsertMigration, migrationName, hash, int(newState)); err != nil {
		return fmt.Errorf("sqlconn: registering %s on %s: %w", migrationName, s.Target.DisplayName(), err)
	}
	return nil
}

func phaseReachedState(p migration.Phase) migration.State {
	switch p {
	case migration.Pre:
		return migration.AppliedPre
	case migration.Core:
		return migration.AppliedCore
	default:
		return migration.AppliedPost
	}
}

// SeedSql is the real seed.Connection. Prepare opens its own *sql.DB to the
// target; it does not share one with a Sql instance.
type SeedSql struct {
	Target target.Target
	db     *sql.DB
}

var _ seed.Connection = (*SeedSql)(nil)

func NewSeedSql(t target.Target) *SeedSql {
	return &SeedSql{Target: t}
}

func (s *SeedSql) Prepare(ctx context.Context, runId uuid.UUID, workerId int) error {
	db, err := sql.Open("sqlite3", "file:"+s.Target.ConnectionString+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("sqlconn: opening %s (worker %d, run %s): %w", s.Target.DisplayName(), workerId, runId, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("sqlconn: connecting %s (worker %d): %w", s.Target.DisplayName(), workerId, err)
	}
	s.db = db
	return nil
}

func (s *SeedSql) ExecuteBatch(ctx context.Context, sqlText string) error {
	if _, err := s.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("sqlconn: executing seed batch on %s: %w", s.Target.DisplayName(), err)
	}
	return nil
}

func (s *SeedSql) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
