package preprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// WazeroPlugin hosts a compiled WebAssembly guest that implements the
// substitution engine itself, leaving this module free of any particular
// templating syntax. The guest must export:
//
//   - "allocate(size i32) -> ptr i32"     a linear-memory bump allocator
//   - "process(sqlPtr, sqlLen, definesPtr, definesLen i32) -> packed i64"
//
// where the result packs the output pointer into the high 32 bits and
// its length into the low 32 bits, and definesPtr/definesLen address a
// JSON object of the defines map.
type WazeroPlugin struct {
	runtime wazero.Runtime
	module  api.Module

	mu sync.Mutex
}

// NewWazeroPlugin instantiates wasmBinary as the preprocessor guest.
func NewWazeroPlugin(ctx context.Context, wasmBinary []byte) (*WazeroPlugin, error) {
	runtime := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("preprocess: instantiating WASI: %w", err)
	}

	mod, err := runtime.Instantiate(ctx, wasmBinary)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("preprocess: instantiating wasm guest: %w", err)
	}

	return &WazeroPlugin{runtime: runtime, module: mod}, nil
}

// Close releases the wazero runtime and its guest instance.
func (p *WazeroPlugin) Close(ctx context.Context) error {
	return p.runtime.Close(ctx)
}

// Process marshals defines to JSON, writes both buffers into the guest's
// linear memory via its "allocate" export, and calls "process".
func (p *WazeroPlugin) Process(ctx context.Context, sql string, defines map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	definesJSON, err := json.Marshal(defines)
	if err != nil {
		return "", fmt.Errorf("preprocess: marshaling defines: %w", err)
	}

	sqlPtr, sqlLen, err := p.writeGuestMemory(ctx, []byte(sql))
	if err != nil {
		return "", err
	}
	definesPtr, definesLen, err := p.writeGuestMemory(ctx, definesJSON)
	if err != nil {
		return "", err
	}

	process := p.module.ExportedFunction("process")
	if process == nil {
		return "", fmt.Errorf("preprocess: wasm guest does not export %q", "process")
	}

	results, err := process.Call(ctx, uint64(sqlPtr), uint64(sqlLen), uint64(definesPtr), uint64(definesLen))
	if err != nil {
		return "", fmt.Errorf("preprocess: calling process: %w", err)
	}
	if len(results) != 1 {
		return "", fmt.Errorf("preprocess: process() returned %d values, want 1", len(results))
	}

	packed := results[0]
	outPtr := uint32(packed >> 32)
	outLen := uint32(packed)

	out, ok := p.module.Memory().Read(outPtr, outLen)
	if !ok {
		return "", fmt.Errorf("preprocess: reading %d bytes of process() output at offset %d", outLen, outPtr)
	}
	// Copy out of guest memory before the guest's next allocation can
	// reuse the same bytes.
	return string(append([]byte(nil), out...)), nil
}

func (p *WazeroPlugin) writeGuestMemory(ctx context.Context, data []byte) (uint32, uint32, error) {
	allocate := p.module.ExportedFunction("allocate")
	if allocate == nil {
		return 0, 0, fmt.Errorf("preprocess: wasm guest does not export %q", "allocate")
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, 0, fmt.Errorf("preprocess: calling allocate: %w", err)
	}
	ptr := uint32(results[0])
	if !p.module.Memory().Write(ptr, data) {
		return 0, 0, fmt.Errorf("preprocess: writing %d bytes to guest memory at offset %d", len(data), ptr)
	}
	return ptr, uint32(len(data)), nil
}
