// Package whatif implements the what-if overlay: a connection wrapper
// that lets the engine project migration/seed application forward without
// touching the target database.
package whatif

import (
	"sort"
	"strings"
	"sync"

	"github.com/sqlfleet/deployctl/internal/migration"
	"github.com/sqlfleet/deployctl/internal/target"
)

// Store is the concurrent map from Target to a dictionary of simulated
// migrations keyed by lower-cased name (overlay sorts them by name). One Store is shared by every Connection the
// session hands out, so simulated state from an earlier phase is visible
// to a later one.
type Store struct {
	mu      sync.RWMutex
	perHost map[target.Target]map[string]*migration.Migration
}

// NewStore builds an empty overlay store.
func NewStore() *Store {
	return &Store{perHost: make(map[target.Target]map[string]*migration.Migration)}
}

func (s *Store) bucket(t target.Target) map[string]*migration.Migration {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.perHost[t]
	if !ok {
		b = make(map[string]*migration.Migration)
		s.perHost[t] = b
	}
	return b
}

// outOfRangeError is returned when a simulated migration is applied at
// a phase at or before one already recorded for it.
type outOfRangeError struct {
	name string
}

func (e *outOfRangeError) Error() string {
	return "whatif: migration " + e.name + " was already simulated at this phase or later"
}

// recordPhase simulates migration name reaching phase p, erroring if it
// has already reached phase p or later: attempting to apply in a phase
// at or before the already-simulated phase is an out-of-range error.
func (s *Store) recordPhase(t target.Target, name, hash string, p migration.Phase) error {
	newState := phaseReachedState(p)
	key := strings.ToLower(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.perHost[t]
	if !ok {
		b = make(map[string]*migration.Migration)
		s.perHost[t] = b
	}
	if existing, found := b[key]; found && existing.State >= newState {
		return &outOfRangeError{name: name}
	}
	b[key] = &migration.Migration{Name: name, Hash: hash, State: newState}
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

// overlay merges real (from the underlying connection) with any simulated
// entries in bucket, preserving migration.CompareNames order: fake-only
// migrations are merged in by the same name comparator.
func overlay(real []*migration.Migration, bucket map[string]*migration.Migration) []*migration.Migration {
	seen := make(map[string]bool, len(real))
	merged := make([]*migration.Migration, 0, len(real)+len(bucket))

	for _, m := range real {
		seen[strings.ToLower(m.Name)] = true
		if sim, ok := bucket[strings.ToLower(m.Name)]; ok {
			clone := *m
			clone.State = sim.State
			if sim.Hash != "" {
				clone.Hash = sim.Hash
			}
			merged = append(merged, &clone)
			continue
		}
		merged = append(merged, m)
	}

	for key, sim := range bucket {
		if seen[key] {
			continue
		}
		merged = append(merged, sim)
	}

	sortMigrations(merged)
	return merged
}

func sortMigrations(ms []*migration.Migration) {
	sort.Slice(ms, func(i, j int) bool {
		return migration.CompareNames(ms[i].Name, ms[j].Name) < 0
	})
}
