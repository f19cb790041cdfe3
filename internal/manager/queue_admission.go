package manager

import (
	"context"
	"time"
)

// admit reserves a queue slot and then the single in-flight slot of n.
// Returns a release func to be deferred.
func (m *Manager) admit(ctx context.Context, n *network) (func(), error) {
	// If draining, reject so the caller retries on the replacement handle.
	m.mu.RLock()
	if n.state == StateDraining {
		m.mu.RUnlock()
		return func() {}, errDraining
	}
	n.active.Add(1)
	m.mu.RUnlock()

	acquired := false
	defer func() {
		if !acquired {
			n.active.Done()
		}
	}()

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	// Try to reserve a queue slot with timeout
	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case n.queueCh <- struct{}{}:
		setQueued(n)
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{handleID: n.handle.ID}
	}

	// Wait to acquire the single in-flight slot
	defer func() {
		if !acquired {
			<-n.queueCh
			setQueued(n)
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(m.maxWait)
	defer timer2.Stop()
	select {
	case n.genCh <- struct{}{}:
		acquired = true
		m.mu.Lock()
		n.lastUsed = time.Now()
		m.mu.Unlock()
		return func() {
			<-n.genCh
			<-n.queueCh
			setQueued(n)
			n.active.Done()
		}, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		return func() {}, tooBusyError{handleID: n.handle.ID}
	}
}

// setQueued publishes the number of callers holding a queue slot on n.
func setQueued(n *network) {
	queueDepth.Set(float64(len(n.queueCh)))
}
