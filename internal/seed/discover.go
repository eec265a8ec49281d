package seed

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Discoverer finds seeds on disk under a Seeds/ root, mirrored from
// migration.Discoverer's shape for symmetry.
type Discoverer struct {
	Loader Loader
}

// NewDiscoverer builds a Discoverer with the default Loader.
func NewDiscoverer() *Discoverer {
	return &Discoverer{Loader: Loader{}}
}

// Discover finds every <root>/<name>/_Main.sql and loads it into a
// LoadedSeed, returned in ordinal name order.
func (d *Discoverer) Discover(root string) ([]*LoadedSeed, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("seed: reading %s: %w", root, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	seeds := make([]*LoadedSeed, 0, len(names))
	for _, name := range names {
		seedDir := filepath.Join(root, name)
		mainPath := filepath.Join(seedDir, "_Main.sql")
		if _, statErr := os.Stat(mainPath); statErr != nil {
			continue
		}

		modules, loadErr := d.Loader.Load(mainPath)
		if loadErr != nil {
			return nil, loadErr
		}

		seeds = append(seeds, &LoadedSeed{
			Seed:    Seed{Name: name, Path: seedDir},
			Modules: modules,
		})
	}

	return seeds, nil
}
