package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"a9d/internal/runtime"
)

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

func intp(v int) *int { return &v }

// tinyGraph: policy = W·x + b with W=[[1,2],[3,4]] and b=[0.5,-0.5] scaled by
// scale; value = tanh(0·x).
func tinyGraph(scale float32) (*runtime.Graph, []float32) {
	g := &runtime.Graph{
		Inputs:  []runtime.TensorSpec{{Name: "x", Shape: []int{1, 2}}},
		Outputs: []runtime.TensorSpec{{Name: "policy", Shape: []int{1, 2}}, {Name: "value", Shape: []int{1, 1}}},
		Layers: []runtime.Layer{
			{Op: runtime.OpDense, Input: "x", Output: "policy", In: 2, Out: 2, Activation: runtime.ActLinear, WeightOffset: 0, BiasOffset: intp(4)},
			{Op: runtime.OpDense, Input: "x", Output: "value", In: 2, Out: 1, Activation: runtime.ActTanh, WeightOffset: 6},
		},
	}
	w := []float32{1, 2, 3, 4, 0.5, -0.5, 0, 0}
	for i := range w[:6] {
		w[i] *= scale
	}
	return g, w
}

// writeBundle writes a tiny bundle into a fresh temp dir.
func writeBundle(t *testing.T, scale float32) string {
	t.Helper()
	dir := t.TempDir()
	g, w := tinyGraph(scale)
	if err := runtime.WriteBundle(dir, "", g, w); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return dir
}

// downBackend is registered but never available.
type downBackend struct{ name string }

func (d downBackend) Name() string     { return d.name }
func (d downBackend) Available() error { return errors.New("adapter not found") }
func (d downBackend) Compile(*runtime.Graph, []float32) (runtime.Program, error) {
	return nil, errors.New("unreachable")
}

// gateProgram doubles its input. Each Run blocks until a token is sent on
// gate (or gate is nil) and records whether two runs ever overlapped.
type gateProgram struct {
	in, out  *runtime.Slot
	gate     chan struct{}
	started  chan struct{}
	fail     error
	panicMsg string

	inflight atomic.Int32
	overlap  atomic.Bool
	runs     atomic.Int32
	closed   atomic.Bool
}

func newGateProgram(gate chan struct{}) *gateProgram {
	return &gateProgram{
		in:      runtime.NewSlot("x", []int{2}),
		out:     runtime.NewSlot("y", []int{2}),
		gate:    gate,
		started: make(chan struct{}, 64),
	}
}

func (p *gateProgram) Inputs() []*runtime.Slot  { return []*runtime.Slot{p.in} }
func (p *gateProgram) Outputs() []*runtime.Slot { return []*runtime.Slot{p.out} }
func (p *gateProgram) Close() error             { p.closed.Store(true); return nil }

func (p *gateProgram) Run(ctx context.Context) error {
	if p.inflight.Add(1) > 1 {
		p.overlap.Store(true)
	}
	defer p.inflight.Add(-1)
	p.runs.Add(1)
	select {
	case p.started <- struct{}{}:
	default:
	}
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	if p.fail != nil {
		return p.fail
	}
	for i, v := range p.in.Buffer() {
		p.out.Buffer()[i] = 2 * v
	}
	return nil
}

// gateBackend compiles every graph to the same gateProgram.
type gateBackend struct {
	mu   sync.Mutex
	prog *gateProgram
}

func (b *gateBackend) Name() string     { return "gate" }
func (b *gateBackend) Available() error { return nil }
func (b *gateBackend) Compile(*runtime.Graph, []float32) (runtime.Program, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prog, nil
}

// newReadyManager returns a manager past the readiness barrier serving prog.
func newReadyManager(t *testing.T, cfg ManagerConfig, prog *gateProgram) *Manager {
	t.Helper()
	m := NewWithConfig(cfg)
	m.mu.Lock()
	m.settled = true
	m.mu.Unlock()
	m.install(runtime.NewHandle("mem", "gate", prog))
	return m
}

func waitStarted(t *testing.T, p *gateProgram) {
	t.Helper()
	select {
	case <-p.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not start")
	}
}

func hasEvent(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

// waitEvent polls pub until an event named want appears.
func waitEvent(t *testing.T, pub *MemoryPublisher, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hasEvent(pub.Names(), want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event %q not published; got %v", want, pub.Names())
}

func approxEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		d := a[i] - b[i]
		if d > 1e-5 || d < -1e-5 {
			return false
		}
	}
	return true
}

type recordingCallbacks struct {
	mu   sync.Mutex
	args []int32
}

func (r *recordingCallbacks) Log(arg int32) {
	r.mu.Lock()
	r.args = append(r.args, arg)
	r.mu.Unlock()
}

func (r *recordingCallbacks) Args() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int32(nil), r.args...)
}
