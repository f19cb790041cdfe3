package runtime

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Activation names accepted by dense layers.
const (
	ActLinear  = "linear"
	ActReLU    = "relu"
	ActTanh    = "tanh"
	ActSigmoid = "sigmoid"
	ActSoftmax = "softmax"
)

// OpDense is the only layer op understood by the built-in backends.
const OpDense = "dense"

// MaxTensorElems caps the element count of any declared tensor or layer side.
const MaxTensorElems = 1 << 26

// TensorSpec declares a named input or output tensor.
type TensorSpec struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

// Layer is one step of the graph. Dense computes
// output = act(W·input + b) with W stored row-major as Out x In.
type Layer struct {
	Op           string `json:"op"`
	Input        string `json:"input"`
	Output       string `json:"output"`
	In           int    `json:"in"`
	Out          int    `json:"out"`
	Activation   string `json:"activation,omitempty"`
	WeightOffset int    `json:"weight_offset"`
	// BiasOffset is nil for layers without a bias.
	BiasOffset *int `json:"bias_offset,omitempty"`
}

// Graph is a network descriptor.
type Graph struct {
	Inputs  []TensorSpec `json:"inputs"`
	Outputs []TensorSpec `json:"outputs"`
	// Weights optionally names the weight file relative to the bundle.
	Weights string  `json:"weights,omitempty"`
	Layers  []Layer `json:"layers"`
}

// ParseGraph decodes a JSON descriptor. It does not validate against weights.
func ParseGraph(b []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	return &g, nil
}

// Validate checks the descriptor against a weight vector of length nWeights.
func (g *Graph) Validate(nWeights int) error {
	if len(g.Inputs) == 0 {
		return fmt.Errorf("graph declares no inputs")
	}
	if len(g.Outputs) == 0 {
		return fmt.Errorf("graph declares no outputs")
	}
	sizes := make(map[string]int)
	for _, in := range g.Inputs {
		if err := checkSpec(in); err != nil {
			return fmt.Errorf("input: %w", err)
		}
		if _, dup := sizes[in.Name]; dup {
			return fmt.Errorf("duplicate tensor %q", in.Name)
		}
		sizes[in.Name] = shapeSize(in.Shape)
	}
	for i, l := range g.Layers {
		if l.Op != OpDense {
			return fmt.Errorf("layer %d: unsupported op %q", i, l.Op)
		}
		n, ok := sizes[l.Input]
		if !ok {
			return fmt.Errorf("layer %d: input %q is not defined by an earlier layer", i, l.Input)
		}
		if l.In <= 0 || l.Out <= 0 {
			return fmt.Errorf("layer %d: in/out must be positive", i)
		}
		if l.In > MaxTensorElems || l.Out > MaxTensorElems {
			return fmt.Errorf("layer %d: in/out exceed %d elements", i, MaxTensorElems)
		}
		if n != l.In {
			return fmt.Errorf("layer %d: input %q has %d values, layer expects %d", i, l.Input, n, l.In)
		}
		if l.Output == "" {
			return fmt.Errorf("layer %d: empty output name", i)
		}
		if _, dup := sizes[l.Output]; dup {
			return fmt.Errorf("layer %d: tensor %q already defined", i, l.Output)
		}
		if !knownActivation(l.Activation) {
			return fmt.Errorf("layer %d: unknown activation %q", i, l.Activation)
		}
		// division keeps In*Out from overflowing
		if l.WeightOffset < 0 || l.WeightOffset > nWeights || l.In > (nWeights-l.WeightOffset)/l.Out {
			return fmt.Errorf("layer %d: %dx%d weights at %d out of range (%d)", i, l.Out, l.In, l.WeightOffset, nWeights)
		}
		if l.BiasOffset != nil && (*l.BiasOffset < 0 || *l.BiasOffset > nWeights-l.Out) {
			return fmt.Errorf("layer %d: %d bias values at %d out of range (%d)", i, l.Out, *l.BiasOffset, nWeights)
		}
		sizes[l.Output] = l.Out
	}
	seen := make(map[string]bool)
	for _, out := range g.Outputs {
		if err := checkSpec(out); err != nil {
			return fmt.Errorf("output: %w", err)
		}
		if seen[out.Name] {
			return fmt.Errorf("duplicate output %q", out.Name)
		}
		seen[out.Name] = true
		n, ok := sizes[out.Name]
		if !ok {
			return fmt.Errorf("output %q is never produced", out.Name)
		}
		if n != shapeSize(out.Shape) {
			return fmt.Errorf("output %q: shape %v holds %d values, producer yields %d", out.Name, out.Shape, shapeSize(out.Shape), n)
		}
	}
	return nil
}

func checkSpec(s TensorSpec) error {
	if s.Name == "" {
		return fmt.Errorf("empty tensor name")
	}
	if len(s.Shape) == 0 {
		return fmt.Errorf("tensor %q: empty shape", s.Name)
	}
	n := 1
	for _, d := range s.Shape {
		if d <= 0 {
			return fmt.Errorf("tensor %q: non-positive dimension in %v", s.Name, s.Shape)
		}
		if d > MaxTensorElems/n {
			return fmt.Errorf("tensor %q: shape %v exceeds %d elements", s.Name, s.Shape, MaxTensorElems)
		}
		n *= d
	}
	return nil
}

func knownActivation(a string) bool {
	switch a {
	case "", ActLinear, ActReLU, ActTanh, ActSigmoid, ActSoftmax:
		return true
	}
	return false
}

// DecodeWeights reads little-endian float32 values.
func DecodeWeights(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("weights: length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// EncodeWeights is the inverse of DecodeWeights.
func EncodeWeights(w []float32) []byte {
	b := make([]byte, len(w)*4)
	for i, v := range w {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}
