package migration

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// BatchPrefix is the fixed literal prefix every non-empty phase content
// slot is wrapped with. The real declare/execute batch envelope is owned
// by the SQL client driver; this prefix is the seam a host can recognize
// and replace.
const BatchPrefix = "-- deployctl: generated batch --\n"

const (
	markerPre      = "--# PRE"
	markerCore     = "--# CORE"
	markerPost     = "--# POST"
	markerRequires = "--# REQUIRES:"
)

// Loader reads a migration's _Main.sql and partitions it into Pre/Core/Post
// content.
type Loader struct{}

// Load reads m.Path and populates m.Pre/Core/Post/DependsOn, setting
// IsContentLoaded. m must be non-nil with a non-empty Path pointing at an
// existing file.
func (Loader) Load(m *Migration) error {
	if m == nil {
		return fmt.Errorf("migration: Load: nil migration")
	}
	if m.Path == "" {
		return fmt.Errorf("migration: Load: %s has no path", m.Name)
	}
	f, err := os.Open(m.Path)
	if err != nil {
		return fmt.Errorf("migration: Load: %w", err)
	}
	defer f.Close()

	defaultPhase := Core
	switch {
	case EqualName(m.Name, Begin):
		defaultPhase = Pre
	case EqualName(m.Name, End):
		defaultPhase = Post
	}

	sections := map[Phase]*strings.Builder{
		Pre:  {},
		Core: {},
		Post: {},
	}
	requireSet := map[string]string{} // lowercase -> original-case first seen

	current := defaultPhase
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == markerPre:
			current = Pre
			continue
		case trimmed == markerCore:
			current = Core
			continue
		case trimmed == markerPost:
			current = Post
			continue
		case strings.HasPrefix(trimmed, markerRequires):
			rest := strings.TrimSpace(trimmed[len(markerRequires):])
			for _, name := range strings.Fields(rest) {
				key := strings.ToLower(name)
				if _, ok := requireSet[key]; !ok {
					requireSet[key] = name
				}
			}
			continue
		}

		// Any other "--#" directive (or plain SQL) is preserved in place.
		sections[current].WriteString(line)
		sections[current].WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("migration: Load: reading %s: %w", m.Path, err)
	}

	for _, p := range []Phase{Pre, Core, Post} {
		body := sections[p].String()
		content := PhaseContent{PlannedPhase: p}
		if strings.TrimSpace(body) != "" {
			content.Sql = BatchPrefix + body
			content.IsRequired = true
		}
		m.SetPhase(p, content)
	}

	names := make([]string, 0, len(requireSet))
	for _, original := range requireSet {
		names = append(names, original)
	}
	sort.Slice(names, func(i, j int) bool { return strings.ToLower(names[i]) < strings.ToLower(names[j]) })

	m.DependsOn = make([]*Reference, len(names))
	for i, n := range names {
		m.DependsOn[i] = &Reference{Name: n}
	}

	m.IsContentLoaded = true
	return nil
}
