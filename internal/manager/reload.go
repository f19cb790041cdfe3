package manager

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reload loads a bundle from path (the configured path when empty) and swaps
// it in. The previous handle is drained and closed. On failure the previous
// handle stays in place.
func (m *Manager) Reload(ctx context.Context, path string) error {
	if path == "" {
		path = m.modelPath
	}
	m.emit("reload_start", path, nil)
	h, err := m.loadHandle(ctx, path)
	if err != nil {
		return err
	}
	old, err := m.install(h)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.modelPath = path
	m.mu.Unlock()
	if old != nil {
		m.retire(old)
	}
	m.emit("reload_done", h.ID, map[string]any{"backend": h.Backend})
	return nil
}

// retire drains and closes a replaced handle.
func (m *Manager) retire(old *network) {
	m.drain(old)
	if err := old.handle.Close(); err != nil {
		m.emitErr("handle_close_error", old.handle.ID, err, nil)
	}
}

// ReloadAsync starts Reload in the background and returns an operation id
// that tags the reload_op_* events.
func (m *Manager) ReloadAsync(path string) string {
	opID := uuid.NewString()
	go func() {
		m.emit("reload_op_start", opID, map[string]any{"path": path})
		if err := m.Reload(context.Background(), path); err != nil {
			m.emitErr("reload_op_error", opID, err, nil)
			return
		}
		m.emit("reload_op_done", opID, nil)
	}()
	return opID
}

// drain waits up to drainTimeout for queued and in-flight callers of n to
// finish. n must already be marked draining.
func (m *Manager) drain(n *network) {
	m.emit("drain_start", n.handle.ID, nil)
	done := make(chan struct{})
	go func() {
		n.active.Wait()
		close(done)
	}()
	timer := time.NewTimer(m.drainTimeout)
	defer timer.Stop()
	select {
	case <-done:
		m.emit("drain_done", n.handle.ID, nil)
	case <-timer.C:
		m.emit("drain_timeout", n.handle.ID, map[string]any{
			"inflight": len(n.genCh),
			"queue":    len(n.queueCh),
		})
	}
}
