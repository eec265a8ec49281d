package whatif

import (
	"context"
	"testing"

	"github.com/sqlfleet/deployctl/internal/migration"
	"github.com/sqlfleet/deployctl/internal/target"
)

type fakeRealConn struct {
	applied []*migration.Migration
}

func (f *fakeRealConn) Connect(ctx context.Context) error { return nil }
func (f *fakeRealConn) Close() error                      { return nil }
func (f *fakeRealConn) GetAppliedMigrations(ctx context.Context, minimumName string) ([]*migration.Migration, error) {
	return f.applied, nil
}
func (f *fakeRealConn) InitializeMigrationSupport(ctx context.Context) error {
	panic("whatif.Connection must never forward InitializeMigrationSupport to the real connection")
}
func (f *fakeRealConn) ExecuteMigrationContent(ctx context.Context, name, hash string, phase migration.Phase, sql string) error {
	panic("whatif.Connection must never forward ExecuteMigrationContent to the real connection")
}

func mustTarget(t *testing.T, cs string) target.Target {
	t.Helper()
	tg, err := target.New(cs, nil)
	if err != nil {
		t.Fatalf("target.New: %v", err)
	}
	return tg
}

func TestOverlayExecuteMigrationContentDoesNotTouchReal(t *testing.T) {
	real := &fakeRealConn{}
	store := NewStore()
	tg := mustTarget(t, "server=s1;database=d1")

	var logged []string
	conn := &Connection{Target: tg, Real: real, Store: store, Log: func(s string) { logged = append(logged, s) }}

	if err := conn.ExecuteMigrationContent(context.Background(), "002_add_table", "hash1", migration.Pre, "create table t(x int);"); err != nil {
		t.Fatalf("ExecuteMigrationContent: %v", err)
	}
	if len(logged) != 1 {
		t.Fatalf("expected one log line, got %v", logged)
	}
}

func TestOverlayOutOfRangePhaseRejected(t *testing.T) {
	real := &fakeRealConn{}
	store := NewStore()
	tg := mustTarget(t, "server=s1;database=d1")
	conn := &Connection{Target: tg, Real: real, Store: store}

	if err := conn.ExecuteMigrationContent(context.Background(), "002_add_table", "hash1", migration.Core, "sql"); err != nil {
		t.Fatalf("first apply at Core: %v", err)
	}
	if err := conn.ExecuteMigrationContent(context.Background(), "002_add_table", "hash1", migration.Pre, "sql"); err == nil {
		t.Fatal("expected an out-of-range error re-applying at an earlier phase")
	}
	if err := conn.ExecuteMigrationContent(context.Background(), "002_add_table", "hash1", migration.Core, "sql"); err == nil {
		t.Fatal("expected an out-of-range error re-applying at the same phase")
	}
}

func TestOverlayMergesFakeAndRealState(t *testing.T) {
	real := &fakeRealConn{applied: []*migration.Migration{
		{Name: "001_init", State: migration.AppliedPost},
		{Name: "002_add_table", State: migration.NotApplied},
	}}
	store := NewStore()
	tg := mustTarget(t, "server=s1;database=d1")
	conn := &Connection{Target: tg, Real: real, Store: store, Log: func(string) {}}

	if err := conn.ExecuteMigrationContent(context.Background(), "002_add_table", "h", migration.Pre, "sql"); err != nil {
		t.Fatalf("ExecuteMigrationContent: %v", err)
	}
	// simulate a migration that exists only as a fake row
	_ = store.recordPhase(tg, "003_fake_only", "h2", migration.Pre)

	rows, err := conn.GetAppliedMigrations(context.Background(), "")
	if err != nil {
		t.Fatalf("GetAppliedMigrations: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows (2 real merged + 1 fake-only), got %d", len(rows))
	}

	byName := make(map[string]*migration.Migration, len(rows))
	for _, r := range rows {
		byName[r.Name] = r
	}
	if byName["002_add_table"].State != migration.AppliedPre {
		t.Fatalf("expected overlay to promote 002_add_table to AppliedPre, got %v", byName["002_add_table"].State)
	}
	if byName["001_init"].State != migration.AppliedPost {
		t.Fatalf("expected untouched row to pass through unchanged, got %v", byName["001_init"].State)
	}
	if _, ok := byName["003_fake_only"]; !ok {
		t.Fatal("expected fake-only migration to be merged in")
	}

	for i := 1; i < len(rows); i++ {
		if migration.CompareNames(rows[i-1].Name, rows[i].Name) > 0 {
			t.Fatalf("expected rows sorted by CompareNames, got %v then %v", rows[i-1].Name, rows[i].Name)
		}
	}
}

func TestInitializeMigrationSupportNeverTouchesReal(t *testing.T) {
	real := &fakeRealConn{}
	conn := &Connection{Target: mustTarget(t, "server=s1;database=d1"), Real: real, Store: NewStore(), Log: func(string) {}}
	if err := conn.InitializeMigrationSupport(context.Background()); err != nil {
		t.Fatalf("InitializeMigrationSupport: %v", err)
	}
}

func TestSeedConnectionLogsWithoutIO(t *testing.T) {
	var logged []string
	conn := &SeedConnection{Log: func(s string) { logged = append(logged, s) }}

	if err := conn.Prepare(context.Background(), [16]byte{}, 1); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := conn.ExecuteBatch(context.Background(), "  \ninsert into t values (1);\nmore sql"); err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if len(logged) != 2 {
		t.Fatalf("expected 2 log lines, got %v", logged)
	}
	if logged[1] != "would execute batch beginning with: insert into t values (1);" {
		t.Fatalf("unexpected log line: %q", logged[1])
	}
}
