// Package seed implements the seed module scheduler: loading annotated SQL
// into topic-related modules, building a dependency queue over them, and
// dispatching that queue to a worker pool per target.
package seed

import "strings"

// Worker-affinity values for SeedModule.WorkerId.
const (
	AnyWorker  = 0  // any single worker may take it
	AllWorkers = -1 // every worker must take its own copy
)

// Seed is a named, filesystem-backed unit of data change.
type Seed struct {
	Name string
	Path string
}

// LoadedSeed wraps a Seed with its ordered modules, populated by Loader.
type LoadedSeed struct {
	Seed
	Modules []*SeedModule
}

// SeedModule is one `--# MODULE:` section: a name, worker-affinity hint,
// topic sets, and the SQL batches between this boundary and the next.
type SeedModule struct {
	Name     string
	WorkerId int
	Provides map[string]struct{}
	Requires map[string]struct{}
	Batches  []string
}

func newModule(name string) *SeedModule {
	return &SeedModule{
		Name:     name,
		WorkerId: AnyWorker,
		Provides: make(map[string]struct{}),
		Requires: make(map[string]struct{}),
	}
}

func (m *SeedModule) addProvides(topics []string) {
	for _, t := range topics {
		m.Provides[normalizeTopic(t)] = struct{}{}
	}
}

func (m *SeedModule) addRequires(topics []string) {
	for _, t := range topics {
		m.Requires[normalizeTopic(t)] = struct{}{}
	}
}

// normalizeTopic enforces that topic names compare case-insensitively.
func normalizeTopic(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// CanTake reports whether workerId is eligible to dequeue m, per its
// WorkerId affinity.
func CanTake(m *SeedModule, workerId int) bool {
	switch m.WorkerId {
	case AnyWorker, AllWorkers:
		return true
	default:
		return m.WorkerId == workerId
	}
}
