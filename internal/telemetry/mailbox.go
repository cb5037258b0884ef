package telemetry

import (
	"sync"
	"sync/atomic"

	"github.com/sweeney/iib-interlock/internal/profile"
)

// Mailbox is the single-slot hand-off from the receive goroutine to the
// mainline. A post before the previous one is taken overwrites it.
type Mailbox struct {
	mu        sync.Mutex
	ready     atomic.Bool
	slot      profile.Param
	overwrite atomic.Uint64
}

// Post stores p and marks the slot ready.
func (m *Mailbox) Post(p profile.Param) {
	m.mu.Lock()
	if m.ready.Load() {
		m.overwrite.Add(1)
	}
	m.slot = p
	m.ready.Store(true)
	m.mu.Unlock()
}

// Take returns the pending update, if any, and empties the slot.
func (m *Mailbox) Take() (profile.Param, bool) {
	if !m.ready.Load() {
		return profile.Param{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready.Load() {
		return profile.Param{}, false
	}
	p := m.slot
	m.ready.Store(false)
	return p, true
}

// Pending reports whether a post is waiting.
func (m *Mailbox) Pending() bool {
	return m.ready.Load()
}

// Overwrites counts posts that replaced an untaken one.
func (m *Mailbox) Overwrites() uint64 {
	return m.overwrite.Load()
}
