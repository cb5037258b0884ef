package logic

import "github.com/sweeney/iib-interlock/internal/mathx"

// Configure applies calibration constants and limits and enables the channel.
// Latches and counters are left untouched.
func (c *Channel) Configure(cfg Config) {
	c.Gain = cfg.Gain
	c.Offset = cfg.Offset
	c.Invert = cfg.Invert
	c.Policy = cfg.Policy
	c.Max = cfg.Max
	c.AlarmLimit = cfg.AlarmLimit
	c.TripLimit = cfg.TripLimit
	c.AlarmDelay = cfg.AlarmDelay
	c.TripDelay = cfg.TripDelay
	c.Enabled = true
}

// Calibrate converts a raw converter code: (raw - Offset) * Gain.
func (c *Channel) Calibrate(raw uint16) float32 {
	return float32(int32(raw)-c.Offset) * c.Gain
}

// Sample calibrates a raw code and evaluates it.
func (c *Channel) Sample(raw uint16) Status {
	return c.Evaluate(c.Calibrate(raw))
}

// Evaluate stores v and advances the alarm and trip debounce state.
// A latch is set on the tick where the violation has held for delay+1
// consecutive ticks; the counter is 0 right after. Latches never clear here.
func (c *Channel) Evaluate(v float32) Status {
	if c.Invert {
		v = -v
	}
	if c.Policy == OneSided && c.Max > 0 {
		v = mathx.Clamp(v, 0, c.Max)
	}
	c.Value = v

	c.AlarmLatched, c.AlarmCounter = debounce(c.violates(v, c.AlarmLimit), c.AlarmLatched, c.AlarmCounter, c.AlarmDelay)
	c.TripLatched, c.TripCounter = debounce(c.violates(v, c.TripLimit), c.TripLatched, c.TripCounter, c.TripDelay)

	return Status{Value: v, Alarm: c.Alarm(), Trip: c.Trip()}
}

func (c *Channel) violates(v, limit float32) bool {
	if c.Policy == OneSided {
		return v > limit
	}
	return v > limit || v < -limit
}

func debounce(violated, latched bool, counter, delay uint8) (bool, uint8) {
	if !violated {
		return latched, 0
	}
	if counter < delay {
		return latched, counter + 1
	}
	return true, 0
}

// Clear resets both latches and both counters.
func (c *Channel) Clear() {
	c.AlarmLatched = false
	c.TripLatched = false
	c.AlarmCounter = 0
	c.TripCounter = 0
}

// ClearAlarm resets only the alarm latch and counter.
func (c *Channel) ClearAlarm() {
	c.AlarmLatched = false
	c.AlarmCounter = 0
}

// ClearTrip resets only the trip latch and counter.
func (c *Channel) ClearTrip() {
	c.TripLatched = false
	c.TripCounter = 0
}

// Alarm reports the alarm latch. Disabled channels always read false.
func (c *Channel) Alarm() bool {
	return c.Enabled && c.AlarmLatched
}

// Trip reports the trip latch. Disabled channels always read false.
func (c *Channel) Trip() bool {
	return c.Enabled && c.TripLatched
}
