package runtime

import (
	"context"
	"fmt"
	"math"
)

// denseKernel computes out[r] = dot(w[r*cols:(r+1)*cols], in) (+ bias[r]).
type denseKernel func(ctx context.Context, w, bias, in, out []float32, rows, cols int) error

// program is the layer interpreter shared by the built-in backends.
type program struct {
	layers  []Layer
	weights []float32
	tensors map[string][]float32
	inputs  []*Slot
	outputs []*Slot
	kernel  denseKernel
}

func compileProgram(g *Graph, weights []float32, kernel denseKernel) (*program, error) {
	if err := g.Validate(len(weights)); err != nil {
		return nil, err
	}
	p := &program{
		layers:  append([]Layer(nil), g.Layers...),
		weights: weights,
		tensors: make(map[string][]float32),
		kernel:  kernel,
	}
	for _, in := range g.Inputs {
		s := NewSlot(in.Name, in.Shape)
		p.inputs = append(p.inputs, s)
		p.tensors[in.Name] = s.data
	}
	for _, l := range g.Layers {
		p.tensors[l.Output] = make([]float32, l.Out)
	}
	for _, out := range g.Outputs {
		// Output slots alias the producing layer's buffer.
		p.outputs = append(p.outputs, &Slot{Name: out.Name, Shape: append([]int(nil), out.Shape...), data: p.tensors[out.Name]})
	}
	return p, nil
}

func (p *program) Inputs() []*Slot  { return p.inputs }
func (p *program) Outputs() []*Slot { return p.outputs }
func (p *program) Close() error     { return nil }

func (p *program) Run(ctx context.Context) error {
	for i, l := range p.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := p.weights[l.WeightOffset : l.WeightOffset+l.In*l.Out]
		var bias []float32
		if l.BiasOffset != nil {
			bias = p.weights[*l.BiasOffset : *l.BiasOffset+l.Out]
		}
		out := p.tensors[l.Output]
		if err := p.kernel(ctx, w, bias, p.tensors[l.Input], out, l.Out, l.In); err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, l.Output, err)
		}
		activate(l.Activation, out)
	}
	return nil
}

func activate(act string, v []float32) {
	switch act {
	case ActReLU:
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	case ActTanh:
		for i, x := range v {
			v[i] = float32(math.Tanh(float64(x)))
		}
	case ActSigmoid:
		for i, x := range v {
			v[i] = float32(1 / (1 + math.Exp(-float64(x))))
		}
	case ActSoftmax:
		softmax(v)
	}
}

func softmax(v []float32) {
	if len(v) == 0 {
		return
	}
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	var sum float64
	for i, x := range v {
		e := math.Exp(float64(x - max))
		v[i] = float32(e)
		sum += e
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / sum)
	}
}

func dot4(a, b []float32) float32 {
	var s0, s1, s2, s3 float32
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return s0 + s1 + s2 + s3
}

func dot8(a, b []float32) float32 {
	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	n := len(a)
	i := 0
	for ; i+8 <= n; i += 8 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
		s4 += a[i+4] * b[i+4]
		s5 += a[i+5] * b[i+5]
		s6 += a[i+6] * b[i+6]
		s7 += a[i+7] * b[i+7]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return (s0 + s1) + (s2 + s3) + (s4 + s5) + (s6 + s7)
}
