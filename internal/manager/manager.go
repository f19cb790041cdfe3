package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"a9d/internal/auxmod"
	"a9d/internal/fetch"
	"a9d/internal/runtime"
)

// Manager is the process-wide context object: it owns the network handle and
// the aux module once their loads complete. Handles are replaced only by Reload.
type Manager struct {
	mu      sync.RWMutex
	state   State
	net     *network
	aux     *auxmod.Module
	settled bool // readiness barrier passed
	closed  bool
	netErr  string
	auxErr  string
	lastErr string

	modelPath    string
	backendOrder []string
	strict       bool
	auxPath      string
	registry     *runtime.Registry
	fetcher      fetch.Fetcher
	auxLoader    *auxmod.Loader
	log          zerolog.Logger
	publisher    EventPublisher

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	startTime  time.Time
	loadsTotal atomic.Uint64
	evalsTotal atomic.Uint64
}

// New builds a Manager with package defaults for everything but the bundle
// path, backend order, and failure mode.
func New(modelPath string, backendOrder []string, strict bool) *Manager {
	return NewWithConfig(ManagerConfig{
		ModelPath:    modelPath,
		BackendOrder: backendOrder,
		Strict:       strict,
	})
}

// Ready reports whether the readiness barrier has passed and a network is
// loaded. Evaluate is only meaningful when Ready is true.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settled && m.net != nil && m.net.state == StateReady
}

// Strict reports the configured failure mode.
func (m *Manager) Strict() bool { return m.strict }

// SetEventPublisher replaces the event sink.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

// Close drains and releases the network and the aux module.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	n, aux := m.net, m.aux
	m.net, m.aux = nil, nil
	m.state = StateDegraded
	if n != nil {
		n.state = StateDraining
	}
	m.mu.Unlock()

	var errs []error
	if n != nil {
		m.drain(n)
		if err := n.handle.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if aux != nil {
		if err := aux.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	m.emit("closed", "", nil)
	return errors.Join(errs...)
}
