package seed

import (
	"context"

	"github.com/google/uuid"
)

// Connection is the narrow contract the Seed Applicator needs from a
// target connection. Declared in package seed, not in sqlconn, for the
// same import-cycle reason as migration.Connection: sqlconn and whatif
// depend on seed, never the reverse.
type Connection interface {
	// Prepare is called once per worker before it starts dequeuing.
	Prepare(ctx context.Context, runId uuid.UUID, workerId int) error

	// ExecuteBatch runs one module's batch of SQL.
	ExecuteBatch(ctx context.Context, sql string) error

	Close() error
}
