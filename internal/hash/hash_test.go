package hash

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashFilesIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.sql")
	b := filepath.Join(dir, "b.sql")
	if err := os.WriteFile(a, []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("SELECT 2;"), 0o644); err != nil {
		t.Fatal(err)
	}

	var h SHA1Concat
	h1, err := h.HashFiles([]string{a, b})
	if err != nil {
		t.Fatalf("HashFiles: %v", err)
	}
	h2, err := h.HashFiles([]string{a, b})
	if err != nil {
		t.Fatalf("HashFiles: %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected deterministic hash, got %q then %q", h1, h2)
	}
	if len(h1) != 40 {
		t.Errorf("expected 40 hex chars (SHA-1), got %d: %q", len(h1), h1)
	}
}

func TestHashFilesIsOrderSensitive(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.sql")
	b := filepath.Join(dir, "b.sql")
	os.WriteFile(a, []byte("SELECT 1;"), 0o644)
	os.WriteFile(b, []byte("SELECT 2;"), 0o644)

	var h SHA1Concat
	forward, _ := h.HashFiles([]string{a, b})
	backward, _ := h.HashFiles([]string{b, a})
	if forward == backward {
		t.Errorf("expected hash to depend on file order")
	}
}

func TestHashFilesContentOnly(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.sql")
	os.WriteFile(a, []byte("SELECT 1;"), 0o644)

	var h SHA1Concat
	h1, err := h.HashFiles([]string{a})
	if err != nil {
		t.Fatal(err)
	}

	os.WriteFile(a, []byte("SELECT 1;"), 0o644) // rewrite, same bytes
	h2, err := h.HashFiles([]string{a})
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("expected hash to depend only on bytes, got %q vs %q", h1, h2)
	}
}

func TestSortPathsIsOrdinalCaseSensitive(t *testing.T) {
	paths := []string{"Migrations/b/_Main.sql", "Migrations/A/_Main.sql", "Migrations/a/_Main.sql"}
	SortPaths(paths)
	want := []string{"Migrations/A/_Main.sql", "Migrations/a/_Main.sql", "Migrations/b/_Main.sql"}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, paths[i], want[i])
		}
	}
}
