package manager

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"a9d/internal/auxmod"
	"a9d/internal/runtime"
)

// Start loads the network and the aux module concurrently, waits for both to
// settle, and opens the readiness barrier. Load failures are logged and
// recorded; they never abort the other branch.
func (m *Manager) Start(ctx context.Context) {
	startTs := time.Now()
	var g errgroup.Group
	g.Go(func() error {
		_ = m.LoadNetwork(ctx)
		return nil
	})
	g.Go(func() error {
		_ = m.LoadAux(ctx)
		return nil
	})
	_ = g.Wait()

	m.mu.Lock()
	m.settled = true
	if m.net != nil {
		m.state = StateReady
	} else {
		m.state = StateDegraded
	}
	state, aux := m.state, m.aux
	m.mu.Unlock()

	m.emit("ready_barrier", string(state), map[string]any{"dur_ms": int(time.Since(startTs) / time.Millisecond)})
	if state == StateDegraded {
		m.log.Warn().Str("path", m.modelPath).Msg("network unavailable; evaluate will not succeed until a reload")
	}
	m.selfTest(ctx, aux)
}

// selfTest exercises the aux module once on readiness. Skipped when the module
// is unset or does not export "test".
func (m *Manager) selfTest(ctx context.Context, aux *auxmod.Module) {
	if aux == nil {
		m.emit("aux_selftest_skipped", "aux", map[string]any{"reason": "module not loaded"})
		return
	}
	if !aux.Has(auxmod.FuncTest) {
		m.emit("aux_selftest_skipped", "aux", map[string]any{"reason": "no test export"})
		return
	}
	res, err := aux.SelfTest(ctx)
	if err != nil {
		m.emitErr("aux_selftest_error", "aux", err, nil)
		return
	}
	m.emit("aux_selftest", "aux", map[string]any{"result": res})
}

// LoadNetwork loads the configured bundle. On success the handle is
// installed; on failure the current handle (if any) is left untouched.
func (m *Manager) LoadNetwork(ctx context.Context) error {
	h, err := m.loadHandle(ctx, m.modelPath)
	if err != nil {
		return err
	}
	old, err := m.install(h)
	if err != nil {
		return err
	}
	if old != nil {
		m.retire(old)
	}
	return nil
}

// loadHandle runs the runtime loader and records the outcome.
func (m *Manager) loadHandle(ctx context.Context, path string) (*runtime.Handle, error) {
	startTs := time.Now()
	m.emit("network_load_start", path, map[string]any{"backend_order": m.backendOrder})
	h, err := runtime.Load(ctx, path, runtime.Options{
		BackendOrder: m.backendOrder,
		Registry:     m.registry,
		Fetcher:      m.fetcher,
	})
	m.loadsTotal.Add(1)
	loadsTotal.WithLabelValues("network", resultLabel(err == nil)).Inc()
	if err != nil {
		name := "network_load_error"
		if runtime.IsBackendUnavailable(err) {
			name = "network_backend_unavailable"
		}
		m.mu.Lock()
		m.netErr = err.Error()
		m.lastErr = err.Error()
		m.mu.Unlock()
		m.emitErr(name, path, err, nil)
		return nil, err
	}
	m.emit("network_load_ready", h.ID, map[string]any{
		"path":    path,
		"backend": h.Backend,
		"dur_ms":  int(time.Since(startTs) / time.Millisecond),
	})
	return h, nil
}

// install makes h the current handle and returns the one it replaced. Once
// the manager is closed h is released instead and errClosed is returned.
func (m *Manager) install(h *runtime.Handle) (*network, error) {
	n := newNetwork(h, m.maxQueueDepth)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if err := h.Close(); err != nil {
			m.emitErr("handle_close_error", h.ID, err, nil)
		}
		m.emit("handle_discarded", h.ID, map[string]any{"reason": "manager closed"})
		return nil, errClosed
	}
	old := m.net
	m.net = n
	m.netErr = ""
	if old != nil {
		old.state = StateDraining
	}
	if m.settled {
		m.state = StateReady
	}
	m.mu.Unlock()
	return old, nil
}

// LoadAux loads the aux module when a path is configured. An empty path is
// not an error.
func (m *Manager) LoadAux(ctx context.Context) error {
	if m.auxPath == "" {
		m.emit("aux_disabled", "aux", nil)
		return nil
	}
	m.emit("aux_load_start", m.auxPath, nil)
	mod, err := m.auxLoader.Load(ctx, m.auxPath)
	loadsTotal.WithLabelValues("aux", resultLabel(err == nil)).Inc()
	m.loadsTotal.Add(1)
	if err != nil {
		m.mu.Lock()
		m.auxErr = err.Error()
		m.lastErr = err.Error()
		m.mu.Unlock()
		m.emitErr("aux_load_error", m.auxPath, err, nil)
		return err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = mod.Close(ctx)
		return errClosed
	}
	m.aux = mod
	m.auxErr = ""
	m.mu.Unlock()
	m.emit("aux_load_ready", m.auxPath, map[string]any{"functions": mod.Functions()})
	return nil
}
