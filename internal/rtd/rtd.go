// Package rtd converts PT100 readings from a MAX31865-style RTD-to-digital
// front end into debounced temperature channels.
package rtd

import (
	"math"

	"github.com/sweeney/iib-interlock/internal/logic"
	"github.com/sweeney/iib-interlock/internal/mathx"
)

// Callendar-Van Dusen coefficients and bridge constants for a PT100.
const (
	cvdA = 3.9083e-3
	cvdB = -5.775e-7
	R0   = 100.0 // nominal resistance at 0 °C
	RRef = 400.0 // reference resistor

	codeScale = 32768

	minTemperature = 0.0
	maxTemperature = 255.0
)

// Default limits applied to every RTD channel before a profile configures it.
const (
	DefaultAlarmLimit = 100.0
	DefaultTripLimit  = 110.0
)

// Code assembles the 15-bit resistance code from the RTD MSB/LSB registers.
// The lowest LSB bit is the converter's fault flag.
func Code(msb, lsb byte) (code uint16, fault bool) {
	code = uint16(msb)<<7 + uint16(lsb&0xFE)>>1
	return code, lsb&0x01 != 0
}

// Resistance converts a resistance code to ohms.
func Resistance(code uint16) float64 {
	return float64(code) * RRef / codeScale
}

// Temperature solves the Callendar-Van Dusen quadratic for r ohms and clamps
// the result into [0, 255] °C.
func Temperature(r float64) float32 {
	t := (-R0*cvdA + math.Sqrt(R0*R0*cvdA*cvdA-4*R0*cvdB*(R0-r))) / (2 * R0 * cvdB)
	if math.IsNaN(t) {
		return minTemperature
	}
	return float32(mathx.Clamp(t, minTemperature, maxTemperature))
}

// Raw is one reading of a channel's registers.
type Raw struct {
	MSB         byte
	LSB         byte
	FaultStatus byte // fault status register; non-zero skips conversion
	Valid       bool // false when the channel could not be read this tick
}

// Channel is a PT100 temperature channel.
type Channel struct {
	logic.Channel

	Temperature float32
	OutOfRange  bool
	CommFault   bool
	FaultCode   uint8
}

// Init resets the channel to its power-on state with default limits.
func (c *Channel) Init(name string) {
	*c = Channel{}
	c.Name = name
	c.Policy = logic.OneSided
	c.Gain = 1
	c.AlarmLimit = DefaultAlarmLimit
	c.TripLimit = DefaultTripLimit
}

// Configure sets limits and delay (shared by alarm and trip) and enables the channel.
func (c *Channel) Configure(alarm, trip float32, delay uint8) {
	c.Channel.Configure(logic.Config{
		Gain:       1,
		Policy:     logic.OneSided,
		AlarmLimit: alarm,
		TripLimit:  trip,
		AlarmDelay: delay,
		TripDelay:  delay,
	})
}

// Read converts raw registers and feeds the temperature into the threshold logic.
// Faults degrade the reading to 0 °C without evaluation.
func (c *Channel) Read(raw Raw) logic.Status {
	if !raw.Valid || c.CommFault {
		c.Temperature = 0
		return logic.Status{Alarm: c.Alarm(), Trip: c.Trip()}
	}

	c.FaultCode = raw.FaultStatus
	if raw.FaultStatus != 0 {
		c.Temperature = 0
		return logic.Status{Alarm: c.Alarm(), Trip: c.Trip()}
	}

	code, fault := Code(raw.MSB, raw.LSB)
	if fault {
		c.OutOfRange = true
		c.Temperature = 0
		return logic.Status{Alarm: c.Alarm(), Trip: c.Trip()}
	}
	c.OutOfRange = false

	c.Temperature = Temperature(Resistance(code))
	return c.Evaluate(c.Temperature)
}

// RawFor encodes a temperature back into register values. Used by fakes and
// simulations; the inverse of Read for in-range temperatures.
func RawFor(temp float64) Raw {
	r := R0 * (1 + cvdA*temp + cvdB*temp*temp)
	code := uint16(math.Round(r * codeScale / RRef))
	return Raw{
		MSB:   byte(code >> 7),
		LSB:   byte(code<<1) & 0xFE,
		Valid: true,
	}
}
