package migration

import "strings"

// Resolver links DependsOn names to Migration entities by a one-pass
// name lookup. Forward references and cycles are left structurally
// intact; the Validator is what rejects them.
type Resolver struct{}

// Resolve builds a case-insensitive name index over pending (last write
// wins on duplicate names) and sets each Reference.Migration to the
// looked-up entry, or leaves it nil if the name is unknown.
func (Resolver) Resolve(pending []*Migration) {
	index := make(map[string]*Migration, len(pending))
	for _, m := range pending {
		index[strings.ToLower(m.Name)] = m
	}
	for _, m := range pending {
		for _, ref := range m.DependsOn {
			ref.Migration = index[strings.ToLower(ref.Name)]
		}
	}
}
