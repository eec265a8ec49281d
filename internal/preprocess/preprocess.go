// Package preprocess defines the seam for the text preprocessor that
// substitutes variables into SQL batches before they run. The
// preprocessor is an external collaborator; this package owns only the
// interface, a no-op default, and a pluggable wazero-hosted
// implementation for callers that want to supply their own substitution
// engine as a compiled WebAssembly guest.
package preprocess

import "context"

// Preprocessor substitutes the seed-level Defines into one SQL batch,
// returning the batch ready to execute.
type Preprocessor interface {
	Process(ctx context.Context, sql string, defines map[string]string) (string, error)
}

// Passthrough returns sql unmodified. It is the default Preprocessor when
// no plugin is configured.
type Passthrough struct{}

func (Passthrough) Process(_ context.Context, sql string, _ map[string]string) (string, error) {
	return sql, nil
}
