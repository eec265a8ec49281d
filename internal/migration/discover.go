package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sqlfleet/deployctl/internal/hash"
)

// Discoverer walks a root directory and builds the ordered, immutable
// sequence of Migrations it finds.
type Discoverer struct {
	Hasher hash.FileHasher
}

// NewDiscoverer returns a Discoverer using the default SHA-1 concatenation
// hasher.
func NewDiscoverer() *Discoverer {
	return &Discoverer{Hasher: hash.SHA1Concat{}}
}

// Discover walks <root>/Migrations. maxName, if non-empty, is an inclusive
// upper bound (case-insensitive ordinal) on which non-pseudo migration
// directories are included. Returns an empty, non-nil slice if
// <root>/Migrations does not exist.
func (d *Discoverer) Discover(root string, maxName string) ([]*Migration, error) {
	migrationsDir := filepath.Join(root, "Migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Migration{}, nil
		}
		return nil, fmt.Errorf("migration: discover: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		isPseudo := EqualName(name, Begin) || EqualName(name, End)
		if !isPseudo && maxName != "" && strings.ToLower(name) > strings.ToLower(maxName) {
			continue
		}
		mainPath := filepath.Join(migrationsDir, name, "_Main.sql")
		if _, err := os.Stat(mainPath); err != nil {
			continue
		}
		dirs = append(dirs, name)
	}

	migrations := make([]*Migration, len(dirs))
	g := new(errgroup.Group)
	for i, name := range dirs {
		i, name := i, name
		g.Go(func() error {
			m, err := d.discoverOne(migrationsDir, name)
			if err != nil {
				return err
			}
			migrations[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return CompareNames(migrations[i].Name, migrations[j].Name) < 0
	})
	return migrations, nil
}

func (d *Discoverer) discoverOne(migrationsDir, name string) (*Migration, error) {
	dir := filepath.Join(migrationsDir, name)

	var sqlFiles []string
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), ".sql") {
			sqlFiles = append(sqlFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("migration: walking %s: %w", dir, err)
	}
	hash.SortPaths(sqlFiles)

	digest, err := d.Hasher.HashFiles(sqlFiles)
	if err != nil {
		return nil, fmt.Errorf("migration: hashing %s: %w", name, err)
	}

	return &Migration{
		Name: name,
		Path: filepath.Join(dir, "_Main.sql"),
		Hash: digest,
	}, nil
}
