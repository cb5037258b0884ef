// Package status provides a thread-safe status tracker for the iibd daemon.
// It is read by the HTTP handlers, the WebSocket feed and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/iib-interlock/internal/interlock"
)

// Config contains daemon configuration for display.
type Config struct {
	Board       int
	Variant     string
	AppTickMs   int64
	TelemetryMs int64
	LEDPolarity string
	CANBackend  string
	Broker      string
	HTTPPort    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Board         interlock.Snapshot
	Counts        interlock.EventCounts
	Ticks         uint64
	LastEvent     *interlock.Event
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time

	subs map[chan struct{}]struct{}
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now:  time.Now,
		subs: make(map[chan struct{}]struct{}),
	}
}

// Update records the aggregate state and event counts after a tick.
// Called from runLoop on every application tick.
func (t *Tracker) Update(board interlock.Snapshot, counts interlock.EventCounts) {
	t.mu.Lock()
	t.snap.Board = board
	t.snap.Counts = counts
	t.snap.Ticks++
	t.mu.Unlock()
}

// RecordEvent keeps the most recent event and wakes subscribers.
func (t *Tracker) RecordEvent(e interlock.Event) {
	t.mu.Lock()
	t.snap.LastEvent = &e
	for ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	t.mu.Unlock()
}

// Subscribe returns a channel that receives a signal on every recorded
// event. The returned func unsubscribes.
func (t *Tracker) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()
	return ch, func() {
		t.mu.Lock()
		delete(t.subs, ch)
		t.mu.Unlock()
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
