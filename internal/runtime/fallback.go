package runtime

import "context"

// FallbackName identifies the serial reference backend.
const FallbackName = "fallback"

type fallbackBackend struct{}

// NewFallbackBackend returns the single-threaded reference backend. It is
// always available.
func NewFallbackBackend() Backend { return fallbackBackend{} }

func (fallbackBackend) Name() string     { return FallbackName }
func (fallbackBackend) Available() error { return nil }
func (fallbackBackend) Describe() string { return "serial float32 reference kernels" }

func (fallbackBackend) Compile(g *Graph, weights []float32) (Program, error) {
	return compileProgram(g, weights, serialDense)
}

func serialDense(_ context.Context, w, bias, in, out []float32, rows, cols int) error {
	for r := 0; r < rows; r++ {
		row := w[r*cols : (r+1)*cols]
		var s float32
		for c, x := range row {
			s += x * in[c]
		}
		if bias != nil {
			s += bias[r]
		}
		out[r] = s
	}
	return nil
}
