package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"a9d/internal/runtime"
)

// Evaluate copies feature into the first input slot, runs the network, and
// returns a snapshot of the first output slot. At most one run is in flight
// per handle.
//
// In lenient mode (strict=false) not-ready, too-busy, and run failures are
// logged and reported as a nil result with a nil error. Context errors are
// always returned.
func (m *Manager) Evaluate(ctx context.Context, feature []float32) ([]float32, error) {
	res, err := m.evaluate(ctx, feature)
	if err != nil || res == nil {
		return nil, err
	}
	return res.Outputs[0], nil
}

// Result is the full outcome of one evaluation.
type Result struct {
	HandleID string
	Backend  string
	Outputs  [][]float32
}

// EvaluateAll is Evaluate returning every output slot.
func (m *Manager) EvaluateAll(ctx context.Context, feature []float32) (*Result, error) {
	return m.evaluate(ctx, feature)
}

func (m *Manager) evaluate(ctx context.Context, feature []float32) (*Result, error) {
	// One retry covers a caller that raced a reload onto a draining handle.
	for attempt := 0; ; attempt++ {
		n, err := m.current()
		if err != nil {
			return nil, m.soften(err)
		}
		res, err := m.runOn(ctx, n, feature)
		if errors.Is(err, errDraining) && attempt == 0 {
			continue
		}
		if errors.Is(err, errDraining) {
			err = notReadyError{reason: "network reloading"}
		}
		if err != nil {
			return nil, m.soften(err)
		}
		return res, nil
	}
}

// current returns the installed network once the readiness barrier has passed.
func (m *Manager) current() (*network, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.settled {
		return nil, notReadyError{reason: "loading"}
	}
	if m.net == nil {
		reason := "no network loaded"
		if m.netErr != "" {
			reason = m.netErr
		}
		return nil, notReadyError{reason: reason}
	}
	return m.net, nil
}

func (m *Manager) runOn(ctx context.Context, n *network, feature []float32) (*Result, error) {
	release, err := m.admit(ctx, n)
	if err != nil {
		if IsTooBusy(err) {
			backpressureTotal.Inc()
		}
		return nil, err
	}
	defer release()

	startTs := time.Now()
	outs, err := m.run(ctx, n.handle, feature)
	evaluationDuration.Observe(time.Since(startTs).Seconds())
	evaluationsTotal.WithLabelValues(resultLabel(err == nil)).Inc()
	m.evalsTotal.Add(1)
	m.mu.Lock()
	n.runs++
	m.mu.Unlock()
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		return nil, &RunError{HandleID: n.handle.ID, Err: err}
	}
	return &Result{HandleID: n.handle.ID, Backend: n.handle.Backend, Outputs: outs}, nil
}

// run performs set, run, and snapshot while the caller holds the in-flight
// slot. Backend panics are reported as errors.
func (m *Manager) run(ctx context.Context, h *runtime.Handle, feature []float32) (outs [][]float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	ins := h.InputViews()
	if len(ins) == 0 {
		return nil, errors.New("network has no inputs")
	}
	if err := ins[0].Set(feature); err != nil {
		return nil, err
	}
	if err := h.Run(ctx); err != nil {
		return nil, err
	}
	views := h.OutputViews()
	outs = make([][]float32, len(views))
	for i, v := range views {
		outs[i] = v.Actual()
	}
	if len(outs) == 0 {
		return nil, errors.New("network has no outputs")
	}
	return outs, nil
}

// soften applies the lenient failure mode. Context errors pass through.
func (m *Manager) soften(err error) error {
	if m.strict || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch {
	case IsNotReady(err):
		m.log.Warn().Err(err).Msg("evaluate skipped")
	case IsTooBusy(err):
		m.log.Warn().Err(err).Msg("evaluate rejected")
	default:
		m.log.Error().Err(err).Msg("evaluate failed")
	}
	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()
	return nil
}
