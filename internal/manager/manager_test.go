package manager

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"a9d/internal/runtime"
)

func TestNewWithConfigDefaults(t *testing.T) {
	m := NewWithConfig(ManagerConfig{})
	if m.maxQueueDepth != defaultMaxQueueDepth {
		t.Fatalf("expected default maxQueueDepth=%d got %d", defaultMaxQueueDepth, m.maxQueueDepth)
	}
	if m.maxWait != defaultMaxWait {
		t.Fatalf("expected default maxWait=%v got %v", defaultMaxWait, m.maxWait)
	}
	if m.drainTimeout != defaultDrainTimeout {
		t.Fatalf("expected default drainTimeout=%v got %v", defaultDrainTimeout, m.drainTimeout)
	}
	if m.modelPath != runtime.DefaultPath {
		t.Fatalf("expected default model path %q got %q", runtime.DefaultPath, m.modelPath)
	}
	if len(m.backendOrder) != len(runtime.DefaultBackendOrder()) || m.backendOrder[0] != "webgpu" {
		t.Fatalf("unexpected backend order %v", m.backendOrder)
	}
	if m.Strict() {
		t.Fatalf("expected lenient by default")
	}
	if s := m.Snapshot(); s.State != StateLoading {
		t.Fatalf("expected loading state, got %+v", s)
	}
}

func TestStart_ReadyAndEvaluate(t *testing.T) {
	pub := NewMemoryPublisher()
	m := NewWithConfig(ManagerConfig{ModelPath: writeBundle(t, 1), Strict: true, Publisher: pub})
	if m.Ready() {
		t.Fatalf("expected not ready before Start")
	}
	m.Start(testCtx(t))
	if !m.Ready() {
		t.Fatalf("expected ready after Start; status=%+v", m.Status())
	}
	snap := m.Snapshot()
	if snap.State != StateReady || snap.Backend != runtime.CPUName || snap.HandleID == "" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	out, err := m.Evaluate(testCtx(t), []float32{1, 1})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !approxEqual(out, []float32{3.5, 6.5}) {
		t.Fatalf("unexpected output %v", out)
	}
	res, err := m.EvaluateAll(testCtx(t), []float32{1, 1})
	if err != nil {
		t.Fatalf("evaluate all: %v", err)
	}
	if len(res.Outputs) != 2 || !approxEqual(res.Outputs[1], []float32{0}) {
		t.Fatalf("unexpected outputs %v", res.Outputs)
	}
	if res.HandleID != snap.HandleID {
		t.Fatalf("handle id mismatch: %s vs %s", res.HandleID, snap.HandleID)
	}

	names := pub.Names()
	for _, want := range []string{"network_load_start", "network_load_ready", "aux_disabled", "ready_barrier", "aux_selftest_skipped"} {
		if !hasEvent(names, want) {
			t.Fatalf("expected event %q; got %v", want, names)
		}
	}
}

func TestEvaluate_OutputIsSnapshot(t *testing.T) {
	m := NewWithConfig(ManagerConfig{ModelPath: writeBundle(t, 1)})
	m.Start(testCtx(t))
	a, err := m.Evaluate(testCtx(t), []float32{1, 1})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err := m.Evaluate(testCtx(t), []float32{0, 0}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !approxEqual(a, []float32{3.5, 6.5}) {
		t.Fatalf("earlier output changed by a later run: %v", a)
	}
}

func TestEvaluate_BeforeReady(t *testing.T) {
	strict := NewWithConfig(ManagerConfig{Strict: true})
	if _, err := strict.Evaluate(testCtx(t), []float32{1, 1}); !IsNotReady(err) {
		t.Fatalf("expected not ready error, got %v", err)
	}
	lenient := NewWithConfig(ManagerConfig{})
	out, err := lenient.Evaluate(testCtx(t), []float32{1, 1})
	if err != nil || out != nil {
		t.Fatalf("expected nil, nil in lenient mode; got %v, %v", out, err)
	}
}

func TestStart_BackendUnavailable(t *testing.T) {
	reg := runtime.NewRegistry()
	reg.MustRegister(downBackend{name: "webgpu"})
	pub := NewMemoryPublisher()
	m := NewWithConfig(ManagerConfig{
		ModelPath:    writeBundle(t, 1),
		BackendOrder: []string{"webgpu"},
		Registry:     reg,
		Strict:       true,
		Publisher:    pub,
	})
	m.Start(testCtx(t))
	if m.Ready() {
		t.Fatalf("expected not ready without an available backend")
	}
	if s := m.Snapshot(); s.State != StateDegraded {
		t.Fatalf("expected degraded, got %+v", s)
	}
	if !hasEvent(pub.Names(), "network_backend_unavailable") {
		t.Fatalf("expected network_backend_unavailable event; got %v", pub.Names())
	}
	_, err := m.Evaluate(testCtx(t), []float32{1, 1})
	if !IsNotReady(err) {
		t.Fatalf("expected not ready error, got %v", err)
	}
}

func TestStart_MissingBundleIsDegraded(t *testing.T) {
	m := NewWithConfig(ManagerConfig{ModelPath: filepath.Join(t.TempDir(), "missing")})
	m.Start(testCtx(t))
	if m.Ready() {
		t.Fatalf("expected not ready")
	}
	st := m.Status()
	if st.NetworkError == "" || st.LastError == "" || st.Network != nil {
		t.Fatalf("expected a recorded network error: %+v", st)
	}
	if err := m.LoadNetwork(testCtx(t)); !runtime.IsLoadError(err) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestEvaluate_ShapeMismatch(t *testing.T) {
	for _, strict := range []bool{true, false} {
		m := NewWithConfig(ManagerConfig{ModelPath: writeBundle(t, 1), Strict: strict})
		m.Start(testCtx(t))
		out, err := m.Evaluate(testCtx(t), []float32{1, 2, 3})
		if strict {
			if !IsRunError(err) || !runtime.IsShapeError(err) {
				t.Fatalf("expected run error wrapping a shape error, got %v", err)
			}
		} else if err != nil || out != nil {
			t.Fatalf("expected nil, nil in lenient mode; got %v, %v", out, err)
		}
		if !m.Ready() {
			t.Fatalf("a failed run must not change readiness")
		}
	}
}

func TestEvaluate_SerializedPerHandle(t *testing.T) {
	gate := make(chan struct{})
	prog := newGateProgram(gate)
	m := newReadyManager(t, ManagerConfig{Strict: true, MaxWait: time.Second}, prog)

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	outs := make([][]float32, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := float32(i + 1)
			outs[i], errs[i] = m.Evaluate(testCtx(t), []float32{v, -v})
		}(i)
	}
	for i := 0; i < callers; i++ {
		waitStarted(t, prog)
		gate <- struct{}{}
	}
	wg.Wait()

	if prog.overlap.Load() {
		t.Fatalf("two runs were in flight at once")
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		v := float32(i + 1)
		if !approxEqual(outs[i], []float32{2 * v, -2 * v}) {
			t.Fatalf("caller %d got %v; input was overwritten by another caller", i, outs[i])
		}
	}
}

func TestEvaluate_RunFailureKeepsHandle(t *testing.T) {
	prog := newGateProgram(nil)
	prog.fail = errors.New("device lost")
	m := newReadyManager(t, ManagerConfig{Strict: true}, prog)
	_, err := m.Evaluate(testCtx(t), []float32{1, 1})
	var re *RunError
	if !errors.As(err, &re) || re.HandleID == "" {
		t.Fatalf("expected *RunError, got %v", err)
	}
	if !m.Ready() {
		t.Fatalf("a failed run must not change readiness")
	}

	prog.fail = nil
	if out, err := m.Evaluate(testCtx(t), []float32{1, 1}); err != nil || !approxEqual(out, []float32{2, 2}) {
		t.Fatalf("expected recovery on next run: %v, %v", out, err)
	}
}

func TestEvaluate_BackendPanicIsRunError(t *testing.T) {
	prog := newGateProgram(nil)
	prog.panicMsg = "kernel fault"
	m := newReadyManager(t, ManagerConfig{Strict: true}, prog)
	if _, err := m.Evaluate(testCtx(t), []float32{1, 1}); !IsRunError(err) {
		t.Fatalf("expected run error from panic, got %v", err)
	}
	// the in-flight slot was released
	prog.panicMsg = ""
	if _, err := m.Evaluate(testCtx(t), []float32{1, 1}); err != nil {
		t.Fatalf("expected slot released after panic: %v", err)
	}
}

func TestEvaluate_LenientRunFailure(t *testing.T) {
	prog := newGateProgram(nil)
	prog.fail = errors.New("device lost")
	m := newReadyManager(t, ManagerConfig{}, prog)
	out, err := m.Evaluate(testCtx(t), []float32{1, 1})
	if err != nil || out != nil {
		t.Fatalf("expected nil, nil in lenient mode; got %v, %v", out, err)
	}
	if m.Status().LastError == "" {
		t.Fatalf("expected last error recorded")
	}
}

func TestEvaluate_ContextCanceledAlwaysReturned(t *testing.T) {
	prog := newGateProgram(make(chan struct{}))
	m := newReadyManager(t, ManagerConfig{}, prog)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Evaluate(ctx, []float32{1, 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in lenient mode, got %v", err)
	}
}

func TestStatusAndSnapshot(t *testing.T) {
	m := NewWithConfig(ManagerConfig{ModelPath: writeBundle(t, 1), MaxQueueDepth: 4})
	m.Start(testCtx(t))
	if _, err := m.Evaluate(testCtx(t), []float32{1, 1}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	st := m.Status()
	if !st.Ready || st.State != string(StateReady) || st.Network == nil {
		t.Fatalf("unexpected status: %+v", st)
	}
	if st.Network.Runs != 1 || st.Network.MaxQueueDepth != 4 || st.Network.Backend != runtime.CPUName {
		t.Fatalf("unexpected network status: %+v", st.Network)
	}
	if len(st.Network.Inputs) != 1 || st.Network.Inputs[0].Name != "x" || len(st.Network.Outputs) != 2 {
		t.Fatalf("unexpected slots: %+v", st.Network)
	}
	if st.LoadsTotal != 1 || st.EvaluationsTotal != 1 {
		t.Fatalf("unexpected counters: loads=%d evals=%d", st.LoadsTotal, st.EvaluationsTotal)
	}
	if st.Aux.Loaded {
		t.Fatalf("aux should be disabled")
	}
}

func TestBackends(t *testing.T) {
	reg := runtime.DefaultRegistry()
	reg.MustRegister(downBackend{name: "webgpu"})
	m := NewWithConfig(ManagerConfig{Registry: reg})
	bs := m.Backends()
	if len(bs) != 3 {
		t.Fatalf("expected 3 backends, got %+v", bs)
	}
	if bs[0].Name != runtime.CPUName || !bs[0].Available || bs[0].Info == "" {
		t.Fatalf("unexpected cpu entry %+v", bs[0])
	}
	if bs[2].Name != "webgpu" || bs[2].Available || bs[2].Reason == "" {
		t.Fatalf("unexpected webgpu entry %+v", bs[2])
	}
}

func TestClose(t *testing.T) {
	prog := newGateProgram(nil)
	pub := NewMemoryPublisher()
	m := newReadyManager(t, ManagerConfig{Publisher: pub}, prog)
	if err := m.Close(testCtx(t)); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !prog.closed.Load() {
		t.Fatalf("expected program closed")
	}
	if m.Ready() {
		t.Fatalf("expected not ready after close")
	}
	if !hasEvent(pub.Names(), "closed") {
		t.Fatalf("expected closed event; got %v", pub.Names())
	}
}
