package manager

import (
	"context"

	"a9d/internal/auxmod"
)

func (m *Manager) auxModule() (*auxmod.Module, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.aux != nil {
		if m.aux.Closed() {
			return nil, auxUnavailableError{reason: "module closed"}
		}
		return m.aux, nil
	}
	switch {
	case m.auxPath == "":
		return nil, auxUnavailableError{reason: "disabled"}
	case m.auxErr != "":
		return nil, auxUnavailableError{reason: m.auxErr}
	default:
		return nil, auxUnavailableError{reason: "loading"}
	}
}

// AuxFunctions lists the exports of the aux module.
func (m *Manager) AuxFunctions() ([]string, error) {
	mod, err := m.auxModule()
	if err != nil {
		return nil, err
	}
	return mod.Functions(), nil
}

// AuxSelfTest invokes the module's "test" export.
func (m *Manager) AuxSelfTest(ctx context.Context) ([]uint64, error) {
	mod, err := m.auxModule()
	if err != nil {
		return nil, err
	}
	return mod.SelfTest(ctx)
}

// AuxThink invokes the module's "think" export with the move history.
func (m *Manager) AuxThink(ctx context.Context, history []uint32, budget float64) ([]uint64, error) {
	mod, err := m.auxModule()
	if err != nil {
		return nil, err
	}
	return mod.Think(ctx, history, budget)
}

// AuxCall invokes an arbitrary export.
func (m *Manager) AuxCall(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	mod, err := m.auxModule()
	if err != nil {
		return nil, err
	}
	return mod.Call(ctx, name, params...)
}
