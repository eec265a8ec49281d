package whatif

import (
	"context"
	"strings"

	"github.com/sqlfleet/deployctl/internal/migration"
	"github.com/sqlfleet/deployctl/internal/target"
)

// Sink receives one log line per simulated action. Wired to the session's
// per-target log (migration.Log.WriteLine) by the caller constructing a
// Connection, keeping this package free of a direct console dependency.
type Sink func(string)

// Connection wraps a real migration.Connection with the what-if overlay.
// Reads pass through to Real and are then overlaid with Store's
// simulated state; writes are captured in Store instead of reaching Real.
type Connection struct {
	Target target.Target
	Real   migration.Connection
	Store  *Store
	Log    Sink
}

var _ migration.Connection = (*Connection)(nil)

func (c *Connection) Connect(ctx context.Context) error { return c.Real.Connect(ctx) }
func (c *Connection) Close() error                      { return c.Real.Close() }

// InitializeMigrationSupport is itself a mutation (creating the
// registration table), so the overlay never forwards it to Real either —
// leaving this one live would create the registration table on a
// what-if run.
func (c *Connection) InitializeMigrationSupport(ctx context.Context) error {
	c.log("would initialize migration support")
	return nil
}

func (c *Connection) GetAppliedMigrations(ctx context.Context, minimumName string) ([]*migration.Migration, error) {
	real, err := c.Real.GetAppliedMigrations(ctx, minimumName)
	if err != nil {
		return nil, err
	}
	return overlay(real, c.Store.bucket(c.Target)), nil
}

func (c *Connection) ExecuteMigrationContent(ctx context.Context, migrationName, hash string, phase migration.Phase, sql string) error {
	if err := c.Store.recordPhase(c.Target, migrationName, hash, phase); err != nil {
		return err
	}
	c.log("would execute " + migrationName + " (" + phase.String() + ")")
	return nil
}

func (c *Connection) log(line string) {
	if c.Log != nil {
		c.Log(line)
	}
}

// firstLine trims a SQL batch down to its first non-blank line, for the
// seed overlay's "would execute batch beginning with: ..." message.
func firstLine(sql string) string {
	for _, line := range strings.Split(sql, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
