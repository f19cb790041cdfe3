package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"a9d/internal/fetch"
)

// DefaultPath is the bundle location used when none is configured.
const DefaultPath = "./output"

// DefaultBackendOrder returns the preference list used when none is
// configured. webgpu is not built in and is skipped unless a caller
// registers it.
func DefaultBackendOrder() []string {
	return []string{"webgpu", CPUName, FallbackName}
}

// Options configures Load.
type Options struct {
	// BackendOrder lists backend identifiers, most preferred first.
	BackendOrder []string
	// Registry defaults to DefaultRegistry().
	Registry *Registry
	// Fetcher defaults to fetch.New(0).
	Fetcher fetch.Fetcher
}

// Handle is a loaded network. It is immutable after Load returns.
type Handle struct {
	ID       string
	Path     string
	Backend  string
	LoadedAt time.Time
	program  Program
}

// NewHandle wraps an already compiled program.
func NewHandle(path, backend string, p Program) *Handle {
	return &Handle{ID: uuid.NewString(), Path: path, Backend: backend, LoadedAt: time.Now(), program: p}
}

// InputViews returns the program's input slots.
func (h *Handle) InputViews() []*Slot { return h.program.Inputs() }

// OutputViews returns the program's output slots.
func (h *Handle) OutputViews() []*Slot { return h.program.Outputs() }

// Run executes the program once.
func (h *Handle) Run(ctx context.Context) error { return h.program.Run(ctx) }

// Close releases backend resources.
func (h *Handle) Close() error { return h.program.Close() }

// Load selects a backend from opts.BackendOrder, fetches the bundle at path,
// and compiles it. Failures other than backend selection are *LoadError.
// There is no fallback to the next backend once one is selected.
func Load(ctx context.Context, path string, opts Options) (*Handle, error) {
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	f := opts.Fetcher
	if f == nil {
		f = fetch.New(0)
	}
	b, err := reg.Select(opts.BackendOrder)
	if err != nil {
		return nil, err
	}
	name := b.Name()
	wrap := func(err error) error { return &LoadError{Path: path, Backend: name, Err: err} }

	raw, err := fetchFirst(ctx, f, path, "graph_"+name+".json", "graph.json")
	if err != nil {
		return nil, wrap(err)
	}
	g, err := ParseGraph(raw)
	if err != nil {
		return nil, wrap(err)
	}
	var weights []float32
	if len(g.Layers) > 0 {
		candidates := []string{"weight_" + name + ".bin", "weight.bin"}
		if g.Weights != "" {
			candidates = []string{g.Weights}
		}
		wb, err := fetchFirst(ctx, f, path, candidates...)
		if err != nil {
			return nil, wrap(err)
		}
		if weights, err = DecodeWeights(wb); err != nil {
			return nil, wrap(err)
		}
	}
	p, err := compile(b, g, weights)
	if err != nil {
		return nil, wrap(err)
	}
	return NewHandle(path, name, p), nil
}

// compile reports a backend panic as an error.
func compile(b Backend, g *Graph, weights []float32) (p Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("compile panic: %v", r)
		}
	}()
	return b.Compile(g, weights)
}

// fetchFirst returns the first candidate that exists under base. Errors other
// than not-found stop the search.
func fetchFirst(ctx context.Context, f fetch.Fetcher, base string, names ...string) ([]byte, error) {
	var lastErr error
	for _, n := range names {
		b, err := f.Fetch(ctx, fetch.Join(base, n))
		if err == nil {
			return b, nil
		}
		if !fetch.IsNotFound(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// WriteBundle writes g and weights into dir as graph[_backend].json and
// weight[_backend].bin. An empty backend writes the shared names.
func WriteBundle(dir, backend string, g *Graph, weights []float32) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	suffix := ""
	if backend != "" {
		suffix = "_" + backend
	}
	gb, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "graph"+suffix+".json"), gb, 0o644); err != nil {
		return err
	}
	name := g.Weights
	if name == "" {
		name = "weight" + suffix + ".bin"
	}
	return os.WriteFile(filepath.Join(dir, name), EncodeWeights(weights), 0o644)
}
