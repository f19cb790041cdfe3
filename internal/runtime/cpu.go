package runtime

import (
	"context"
	"fmt"
	goruntime "runtime"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/errgroup"
)

// CPUName identifies the parallel CPU backend.
const CPUName = "cpu"

// parallelMinWork is the rows*cols size below which a layer runs serially.
const parallelMinWork = 1 << 14

type cpuBackend struct {
	workers int
	dot     func(a, b []float32) float32
	kernel  string
}

// NewCPUBackend returns a backend that splits dense rows across up to
// workers goroutines (0 = GOMAXPROCS). The dot-product kernel is picked from
// the host CPU features.
func NewCPUBackend(workers int) Backend {
	if workers <= 0 {
		workers = goruntime.GOMAXPROCS(0)
	}
	b := &cpuBackend{workers: workers, dot: dot4, kernel: "dot4"}
	if cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3) || cpuid.CPU.Supports(cpuid.ASIMD) {
		b.dot, b.kernel = dot8, "dot8"
	}
	return b
}

func (b *cpuBackend) Name() string     { return CPUName }
func (b *cpuBackend) Available() error { return nil }

func (b *cpuBackend) Describe() string {
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = "unknown cpu"
	}
	return fmt.Sprintf("%s, %d logical cores, %d workers, kernel %s", brand, cpuid.CPU.LogicalCores, b.workers, b.kernel)
}

func (b *cpuBackend) Compile(g *Graph, weights []float32) (Program, error) {
	return compileProgram(g, weights, b.dense)
}

func (b *cpuBackend) dense(ctx context.Context, w, bias, in, out []float32, rows, cols int) error {
	if b.workers <= 1 || rows*cols < parallelMinWork {
		b.denseRows(w, bias, in, out, 0, rows, cols)
		return nil
	}
	chunk := (rows + b.workers - 1) / b.workers
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for lo := 0; lo < rows; lo += chunk {
		lo, hi := lo, min(lo+chunk, rows)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b.denseRows(w, bias, in, out, lo, hi, cols)
			return nil
		})
	}
	return g.Wait()
}

func (b *cpuBackend) denseRows(w, bias, in, out []float32, lo, hi, cols int) {
	for r := lo; r < hi; r++ {
		s := b.dot(w[r*cols:(r+1)*cols], in)
		if bias != nil {
			s += bias[r]
		}
		out[r] = s
	}
}
