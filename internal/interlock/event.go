package interlock

import (
	"time"

	"github.com/sweeney/iib-interlock/internal/profile"
)

// EventType names a board-level transition.
type EventType string

const (
	EventInterlock EventType = "INTERLOCK"
	EventAlarm     EventType = "ALARM"
	EventClear     EventType = "CLEAR"
)

// Event is one board-level transition with the causes behind it.
type Event struct {
	Timestamp     time.Time
	Type          EventType
	Variant       string
	InterlockBits uint32
	AlarmBits     uint32
	Causes        []string
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Interlock int
	Alarm     int
	Clear     int
}

// Detector turns tick results into events.
type Detector struct {
	alarmed bool
	counts  EventCounts
}

// Process returns the events produced by res. causes is the profile cause
// state after the tick.
func (d *Detector) Process(res Result, causes []profile.CauseState, variant string, now time.Time) []Event {
	var events []Event
	mk := func(t EventType, pick func(profile.CauseState) bool) Event {
		e := Event{
			Timestamp:     now,
			Type:          t,
			Variant:       variant,
			InterlockBits: res.InterlockBits,
			AlarmBits:     res.AlarmBits,
		}
		for _, c := range causes {
			if pick != nil && pick(c) {
				e.Causes = append(e.Causes, c.Name)
			}
		}
		return e
	}

	if res.Edge {
		events = append(events, mk(EventInterlock, func(c profile.CauseState) bool { return c.Tripped }))
	}
	if res.Alarmed && !d.alarmed {
		events = append(events, mk(EventAlarm, func(c profile.CauseState) bool { return c.Alarmed }))
	}
	d.alarmed = res.Alarmed

	if res.Cleared {
		events = append(events, mk(EventClear, nil))
		d.alarmed = false
	}

	for _, e := range events {
		switch e.Type {
		case EventInterlock:
			d.counts.Interlock++
		case EventAlarm:
			d.counts.Alarm++
		case EventClear:
			d.counts.Clear++
		}
	}
	return events
}

// ClearAlarm forgets the alarm latch so the next alarm reports again.
func (d *Detector) ClearAlarm() {
	d.alarmed = false
}

// Counts returns the event counts since startup.
func (d *Detector) Counts() EventCounts {
	return d.counts
}
