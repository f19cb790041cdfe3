package manager

import (
	"sync"
	"time"

	"a9d/internal/runtime"
)

// State represents lifecycle state of the manager and its network.
type State string

const (
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateDegraded State = "degraded"
	StateDraining State = "draining"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State    State
	HandleID string
	Backend  string
	Err      string
}

// network is a loaded handle plus its admission primitives.
type network struct {
	handle   *runtime.Handle
	state    State
	lastUsed time.Time
	runs     uint64
	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight run
	queueCh chan struct{} // buffered: queue slots
	// active counts admitted-or-waiting callers; drain waits on it.
	active sync.WaitGroup
}

func newNetwork(h *runtime.Handle, queueDepth int) *network {
	return &network{
		handle:   h,
		state:    StateReady,
		lastUsed: time.Now(),
		genCh:    make(chan struct{}, 1),
		queueCh:  make(chan struct{}, queueDepth),
	}
}
