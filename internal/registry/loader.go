package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"a9d/internal/common/fsutil"
	"a9d/pkg/types"
)

// ErrBundleNotFound is returned by Find when no bundle has the given id.
var ErrBundleNotFound = errors.New("bundle not found")

// Scanner discovers network bundles under a directory.
type Scanner interface {
	Scan(dir string) ([]types.Bundle, error)
}

// BundleScanner treats every immediate subdirectory holding a graph
// descriptor (graph.json or graph_<backend>.json) as a bundle.
type BundleScanner struct{}

// NewBundleScanner returns the default Scanner.
func NewBundleScanner() *BundleScanner { return &BundleScanner{} }

// Scan lists bundles in dir, sorted by id.
func (BundleScanner) Scan(dir string) ([]types.Bundle, error) {
	abs, err := fsutil.Resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var bundles []types.Bundle
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(abs, e.Name())
		graphs, err := fsutil.Glob(p, "graph*.json")
		if err != nil || len(graphs) == 0 {
			continue
		}
		b := types.Bundle{ID: e.Name(), Path: p}
		for _, g := range graphs {
			name := strings.TrimSuffix(g, ".json")
			if backend, ok := strings.CutPrefix(name, "graph_"); ok && backend != "" {
				b.Backends = append(b.Backends, backend)
			}
		}
		sort.Strings(b.Backends)
		bundles = append(bundles, b)
	}
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].ID < bundles[j].ID })
	return bundles, nil
}

// LoadDir scans dir with the default scanner.
func LoadDir(dir string) ([]types.Bundle, error) {
	return NewBundleScanner().Scan(dir)
}

// Find returns the bundle with the given id under dir.
func Find(dir, id string) (types.Bundle, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return types.Bundle{}, fmt.Errorf("%w: %q", ErrBundleNotFound, id)
	}
	bundles, err := LoadDir(dir)
	if err != nil {
		return types.Bundle{}, err
	}
	for _, b := range bundles {
		if b.ID == id {
			return b, nil
		}
	}
	return types.Bundle{}, fmt.Errorf("%w: %q", ErrBundleNotFound, id)
}
