package console

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sqlfleet/deployctl/internal/migration"
)

func TestMigrationConsoleOpenLogWritesHeaderAndLines(t *testing.T) {
	dir := t.TempDir()
	c := NewMigrationConsole(NewRoot(dir, 0))

	logf, err := c.OpenLog("server/db1", migration.Pre)
	if err != nil {
		t.Fatalf("OpenLog: %v", err)
	}
	if err := logf.WriteHeader("server/db1", migration.Pre, time.Unix(0, 0).UTC()); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := logf.WriteLine("applied 001_init"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if err := logf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, "server_db1", "pre.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected a log file at %s: %v", path, err)
	}
	contents := string(data)
	if !strings.Contains(contents, "server/db1") || !strings.Contains(contents, "applied 001_init") {
		t.Errorf("unexpected log contents: %q", contents)
	}
}

func TestSeedConsoleOpenLogWritesHeaderAndLines(t *testing.T) {
	dir := t.TempDir()
	c := NewSeedConsole(NewRoot(dir, 0))

	logf, err := c.OpenLog("server/db1", "fixtures")
	if err != nil {
		t.Fatalf("OpenLog: %v", err)
	}
	if err := logf.WriteHeader("server/db1", "fixtures", time.Unix(0, 0).UTC()); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := logf.WriteLine("module lookups applied"); err != nil {
		t.Fatalf("WriteLine: %v", err)
	}
	if err := logf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, "server_db1", "seed-fixtures.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected a log file at %s: %v", path, err)
	}
	contents := string(data)
	if !strings.Contains(contents, "fixtures") || !strings.Contains(contents, "module lookups applied") {
		t.Errorf("unexpected log contents: %q", contents)
	}
}

func TestMigrationConsoleRenderPlanTableDelegatesToRenderer(t *testing.T) {
	c := NewMigrationConsole(NewRoot(t.TempDir(), 0))
	plan := &migration.Plan{PendingMigrations: []*migration.Migration{{Name: "001_a"}}}
	out := c.RenderPlanTable(plan)
	if !strings.Contains(out, "001_a") {
		t.Errorf("expected RenderPlanTable to include the migration name, got:\n%s", out)
	}
}

func TestSanitizeReplacesPathSeparators(t *testing.T) {
	if got := sanitize("server/db1"); got != "server_db1" {
		t.Errorf("sanitize = %q, want server_db1", got)
	}
}
