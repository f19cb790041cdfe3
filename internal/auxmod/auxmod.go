// Package auxmod loads the auxiliary WebAssembly module (engine self-test and
// decision routine) and exposes its exported functions.
//
// The module's functions are opaque: arguments and results are passed through
// as raw wasm values. The host provides one import, a logging sink the module
// may call with an i32 during instantiation or execution.
package auxmod

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"a9d/internal/fetch"
)

// Default import table names.
const (
	DefaultImportModule = "imports"
	DefaultImportFunc   = "imported_func"
)

// Well-known export names.
const (
	FuncTest  = "test"
	FuncThink = "think"
	FuncAlloc = "alloc"
)

// ErrFunctionNotFound is returned when the module does not export a function.
var ErrFunctionNotFound = errors.New("function not exported by aux module")

// ErrModuleClosed is returned by calls on a module that was closed, either
// explicitly or because an earlier call's context ended.
var ErrModuleClosed = errors.New("aux module closed")

// LoadError reports a fetch, compile, or instantiation failure.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("aux module %s: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// HostCallbacks is the capability set handed to the module at instantiation.
type HostCallbacks interface {
	Log(arg int32)
}

// LoggerCallbacks forwards module log calls to a zerolog logger.
type LoggerCallbacks struct {
	Logger zerolog.Logger
}

func (c LoggerCallbacks) Log(arg int32) {
	c.Logger.Info().Int32("arg", arg).Msg("aux_log")
}

type noopCallbacks struct{}

func (noopCallbacks) Log(int32) {}

// Loader fetches and instantiates aux modules.
type Loader struct {
	Fetcher   fetch.Fetcher
	Callbacks HostCallbacks
	// ImportModule and ImportFunc name the host logging import.
	ImportModule string
	ImportFunc   string
}

// Load fetches the module at path and instantiates it.
func (l *Loader) Load(ctx context.Context, path string) (*Module, error) {
	f := l.Fetcher
	if f == nil {
		f = fetch.New(0)
	}
	bin, err := f.Fetch(ctx, path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return l.Instantiate(ctx, path, bin)
}

// Instantiate compiles bin and links it against the host import table.
func (l *Loader) Instantiate(ctx context.Context, path string, bin []byte) (*Module, error) {
	cb := l.Callbacks
	if cb == nil {
		cb = noopCallbacks{}
	}
	modName, fnName := l.ImportModule, l.ImportFunc
	if modName == "" {
		modName = DefaultImportModule
	}
	if fnName == "" {
		fnName = DefaultImportFunc
	}

	// Calls stop when their context ends or the module is closed.
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	fail := func(err error) (*Module, error) {
		_ = rt.Close(ctx)
		return nil, &LoadError{Path: path, Err: err}
	}
	_, err := rt.NewHostModuleBuilder(modName).
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, arg int32) { cb.Log(arg) }).
		Export(fnName).
		Instantiate(ctx)
	if err != nil {
		return fail(fmt.Errorf("host imports: %w", err))
	}
	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		return fail(fmt.Errorf("compile: %w", err))
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("aux"))
	if err != nil {
		return fail(fmt.Errorf("instantiate: %w", err))
	}
	names := make([]string, 0, len(compiled.ExportedFunctions()))
	for n := range compiled.ExportedFunctions() {
		names = append(names, n)
	}
	sort.Strings(names)
	return &Module{Path: path, rt: rt, mod: mod, funcs: names}, nil
}

// Module is an instantiated aux module. Calls are serialized.
type Module struct {
	Path string

	mu    sync.Mutex
	rt    wazero.Runtime
	mod   api.Module
	funcs []string
}

// Functions lists exported function names, sorted.
func (m *Module) Functions() []string { return append([]string(nil), m.funcs...) }

// Has reports whether name is exported.
func (m *Module) Has(name string) bool {
	i := sort.SearchStrings(m.funcs, name)
	return i < len(m.funcs) && m.funcs[i] == name
}

// Closed reports whether the module can no longer run calls.
func (m *Module) Closed() bool { return m.mod.IsClosed() }

// Call invokes an exported function with raw wasm values.
func (m *Module) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.call(ctx, name, params...)
}

func (m *Module) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if m.mod.IsClosed() {
		return nil, fmt.Errorf("aux %s: %w", name, ErrModuleClosed)
	}
	fn := m.mod.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	res, err := fn.Call(ctx, params...)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("aux %s: %w: %w", name, cerr, err)
		}
		return nil, fmt.Errorf("aux %s: %w", name, err)
	}
	return res, nil
}

// SelfTest calls the zero-argument "test" export.
func (m *Module) SelfTest(ctx context.Context) ([]uint64, error) {
	return m.Call(ctx, FuncTest)
}

// Think calls think(ptr, len, budget) after copying history into module
// memory through the "alloc" export. Results are returned undecoded.
func (m *Module) Think(ctx context.Context, history []uint32, budget float64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ptr uint32
	if len(history) > 0 {
		res, err := m.call(ctx, FuncAlloc, api.EncodeU32(uint32(len(history)*4)))
		if err != nil {
			return nil, err
		}
		if len(res) == 0 {
			return nil, fmt.Errorf("aux %s: no result", FuncAlloc)
		}
		ptr = api.DecodeU32(res[0])
		mem := m.mod.Memory()
		if mem == nil {
			return nil, fmt.Errorf("aux module exports no memory")
		}
		buf := make([]byte, len(history)*4)
		for i, v := range history {
			binary.LittleEndian.PutUint32(buf[i*4:], v)
		}
		if !mem.Write(ptr, buf) {
			return nil, fmt.Errorf("aux memory write out of range at %d", ptr)
		}
	}
	return m.call(ctx, FuncThink, api.EncodeU32(ptr), api.EncodeU32(uint32(len(history))), api.EncodeF64(budget))
}

// Close releases the wasm runtime. It does not wait for the call mutex; a
// running call is interrupted and returns an error.
func (m *Module) Close(ctx context.Context) error {
	return m.rt.Close(ctx)
}
