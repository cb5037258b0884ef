package interlock

import (
	"github.com/sweeney/iib-interlock/internal/logic"
	"github.com/sweeney/iib-interlock/internal/profile"
)

// Channel is a read-only view of one enabled channel.
type Channel struct {
	Name       string
	Family     string // "adc", "rtd" or "board"
	Value      float32
	Alarm      bool
	Trip       bool
	OutOfRange bool
	CommFault  bool
}

// Snapshot is a copy of the aggregate state, safe to hand to other goroutines.
type Snapshot struct {
	Variant       string
	State         State
	ClearPending  bool
	InterlockBits uint32
	AlarmBits     uint32
	Causes        []profile.CauseState
	LEDs          []profile.LEDAssignment
	Channels      []Channel
	Signals       []profile.Signal
}

// Snapshot copies the current state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		Variant:       a.prof.Variant().String(),
		State:         a.state,
		ClearPending:  a.pendingClear,
		InterlockBits: a.prof.InterlockBits(),
		AlarmBits:     a.prof.AlarmBits(),
		Causes:        a.prof.Causes(),
		LEDs:          a.prof.LEDs(),
		Signals:       append([]profile.Signal(nil), a.signals...),
	}

	a.hw.ADC.Each(func(_ logic.ID, c *logic.Channel) {
		if c.Enabled {
			s.Channels = append(s.Channels, view("adc", c))
		}
	})
	for i := range a.hw.RTD.Channels {
		c := &a.hw.RTD.Channels[i]
		if !c.Enabled {
			continue
		}
		v := view("rtd", &c.Channel)
		v.Value = c.Temperature
		v.OutOfRange = c.OutOfRange
		v.CommFault = c.CommFault
		s.Channels = append(s.Channels, v)
	}
	s.Channels = append(s.Channels,
		view("board", &a.hw.Board.Humidity),
		view("board", &a.hw.Board.Temperature),
	)
	return s
}

func view(family string, c *logic.Channel) Channel {
	return Channel{
		Name:   c.Name,
		Family: family,
		Value:  c.Value,
		Alarm:  c.Alarm(),
		Trip:   c.Trip(),
	}
}
