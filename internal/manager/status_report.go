package manager

import (
	"time"

	"a9d/internal/runtime"
	"a9d/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{State: m.state, Err: m.lastErr}
	if m.net != nil {
		s.HandleID = m.net.handle.ID
		s.Backend = m.net.handle.Backend
	}
	return s
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	resp := types.StatusResponse{
		State:            string(m.state),
		Ready:            m.settled && m.net != nil && m.net.state == StateReady,
		Strict:           m.strict,
		BackendOrder:     append([]string(nil), m.backendOrder...),
		NetworkError:     m.netErr,
		LastError:        m.lastErr,
		UptimeSeconds:    int64(now.Sub(m.startTime) / time.Second),
		ServerTimeUnix:   now.Unix(),
		LoadsTotal:       m.loadsTotal.Load(),
		EvaluationsTotal: m.evalsTotal.Load(),
		Aux: types.AuxStatus{
			Path:   m.auxPath,
			Loaded: m.aux != nil,
			Error:  m.auxErr,
		},
	}
	if m.aux != nil {
		resp.Aux.Functions = m.aux.Functions()
		if m.aux.Closed() {
			resp.Aux.Loaded = false
			resp.Aux.Error = "module closed"
		}
	}
	if n := m.net; n != nil {
		resp.Network = &types.NetworkStatus{
			HandleID:      n.handle.ID,
			Path:          n.handle.Path,
			Backend:       n.handle.Backend,
			State:         string(n.state),
			LoadedAt:      n.handle.LoadedAt.Unix(),
			LastUsed:      n.lastUsed.Unix(),
			Runs:          n.runs,
			QueueLen:      len(n.queueCh),
			Inflight:      len(n.genCh),
			MaxQueueDepth: cap(n.queueCh),
			Inputs:        slotInfos(n.handle.InputViews()),
			Outputs:       slotInfos(n.handle.OutputViews()),
		}
	}
	return resp
}

func slotInfos(slots []*runtime.Slot) []types.SlotInfo {
	out := make([]types.SlotInfo, 0, len(slots))
	for _, s := range slots {
		out = append(out, types.SlotInfo{Name: s.Name, Shape: append([]int(nil), s.Shape...)})
	}
	return out
}

// Backends reports every registered backend and whether it can run here.
func (m *Manager) Backends() []types.Backend {
	return DescribeBackends(m.registry)
}

// DescribeBackends reports the backends of reg in registration order.
func DescribeBackends(reg *runtime.Registry) []types.Backend {
	names := reg.Names()
	out := make([]types.Backend, 0, len(names))
	for _, name := range names {
		b, _ := reg.Lookup(name)
		info := types.Backend{Name: name, Available: true}
		if err := b.Available(); err != nil {
			info.Available = false
			info.Reason = err.Error()
		}
		if d, ok := b.(runtime.Describer); ok {
			info.Info = d.Describe()
		}
		out = append(out, info)
	}
	return out
}
