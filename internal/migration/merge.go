package migration

import "fmt"

// contentLoader is the subset of Loader the Merger needs; narrowed to an
// interface so tests can substitute a fake without touching the filesystem.
type contentLoader interface {
	Load(*Migration) error
}

// Merger combines the defined-on-disk sequence with the applied-in-db
// sequence into the pending sequence an applicator plans and applies.
type Merger struct {
	Loader contentLoader
}

// NewMerger returns a Merger using the default file-based Loader.
func NewMerger() *Merger { return &Merger{Loader: Loader{}} }

// Merge performs an ordered merge-by-name of defined against applied. Both
// defined and applied must already be sorted by CompareNames (as
// Discoverer and the database reader produce them).
func (mg *Merger) Merge(defined, applied []*Migration) ([]*Migration, error) {
	var out []*Migration
	i, j := 0, 0
	for i < len(defined) || j < len(applied) {
		switch {
		case j >= len(applied) || (i < len(defined) && CompareNames(defined[i].Name, applied[j].Name) < 0):
			m, err := mg.definedOnly(defined[i])
			if err != nil {
				return nil, err
			}
			out = append(out, m)
			i++
		case i >= len(defined) || CompareNames(defined[i].Name, applied[j].Name) > 0:
			if applied[j].State != AppliedPost {
				out = append(out, clone(applied[j]))
			}
			j++
		default:
			m, err := mg.both(defined[i], applied[j])
			if err != nil {
				return nil, err
			}
			out = append(out, m)
			i++
			j++
		}
	}
	if out == nil {
		out = []*Migration{}
	}
	return out, nil
}

func (mg *Merger) definedOnly(d *Migration) (*Migration, error) {
	m := clone(d)
	if !m.IsContentLoaded {
		if err := mg.Loader.Load(m); err != nil {
			return nil, fmt.Errorf("migration: merge: %w", err)
		}
	}
	return m, nil
}

func (mg *Merger) both(d, a *Migration) (*Migration, error) {
	result := clone(a)

	loadable := clone(d)
	if !loadable.IsContentLoaded && a.State != AppliedPost {
		if err := mg.Loader.Load(loadable); err != nil {
			return nil, fmt.Errorf("migration: merge: %w", err)
		}
	}

	result.Path = loadable.Path
	result.Hash = loadable.Hash
	result.Pre = loadable.Pre
	result.Core = loadable.Core
	result.Post = loadable.Post
	result.DependsOn = loadable.DependsOn
	result.IsContentLoaded = loadable.IsContentLoaded

	result.HasChanged = a.Hash != "" && d.Hash != a.Hash
	if result.HasChanged {
		result.RegisteredHash = a.Hash
	}

	return result, nil
}

func clone(m *Migration) *Migration {
	cp := *m
	cp.DependsOn = append([]*Reference(nil), m.DependsOn...)
	cp.Diagnostics = append([]Diagnostic(nil), m.Diagnostics...)
	return &cp
}
