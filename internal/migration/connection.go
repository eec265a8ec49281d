package migration

import "context"

// Connection is the narrow contract the Applicator and Session need from a
// target connection. Concrete implementations live in package sqlconn, and
// the what-if overlay (package whatif) implements this same interface so
// the Applicator is unaware of which variant it's driving.
type Connection interface {
	// Connect establishes the underlying connection.
	Connect(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error

	// GetAppliedMigrations reads the _deploy.Migration registration table,
	// filtered to rows with state < AppliedPost or name >= minimumName.
	GetAppliedMigrations(ctx context.Context, minimumName string) ([]*Migration, error)

	// InitializeMigrationSupport creates or updates the _deploy.Migration
	// registration table. Called once, before the Pre phase.
	InitializeMigrationSupport(ctx context.Context) error

	// ExecuteMigrationContent runs one migration's content for one phase
	// and, on success, updates that migration's registration row to
	// reflect the phase completing.
	ExecuteMigrationContent(ctx context.Context, migrationName string, hash string, phase Phase, sql string) error
}
