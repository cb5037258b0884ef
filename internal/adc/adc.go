// Package adc maps the board's raw converter codes onto calibrated channels.
// It owns the physical channel layout, the gain helpers used by the variant
// profiles and the sampler that pulls one frame of raw codes per tick.
package adc

import "github.com/sweeney/iib-interlock/internal/logic"

// Physical ADC channels, in frame order.
const (
	Voltage1 logic.ID = iota
	Voltage2
	Voltage3
	Voltage4
	Current1
	Current2
	Current3
	Current4
	LvCurrent1
	LvCurrent2
	LvCurrent3
	DriverVoltage
	Driver1Current
	Driver2Current

	NumChannels
)

var names = [NumChannels]string{
	"voltage1", "voltage2", "voltage3", "voltage4",
	"current1", "current2", "current3", "current4",
	"lv_current1", "lv_current2", "lv_current3",
	"driver_voltage", "driver1_current", "driver2_current",
}

// Name returns the configuration name of a physical channel.
func Name(id logic.ID) string {
	if id < 0 || id >= NumChannels {
		return ""
	}
	return names[id]
}

// Lookup resolves a configuration name to a physical channel.
func Lookup(name string) (logic.ID, bool) {
	for i, n := range names {
		if n == name {
			return logic.ID(i), true
		}
	}
	return 0, false
}

// Frame holds one raw 12-bit code per physical channel.
type Frame [NumChannels]uint16

// Calibration constants of the 12-bit bipolar front end.
const (
	DefaultOffset = 0x800
	halfScale     = 2048

	currentVMax   = 7.5 // burden voltage span of the current inputs
	lvCurrentVMax = 3.0 // span of the LV transducer inputs
)

// VoltageGain returns the gain of a voltage input whose full scale is full volts.
func VoltageGain(full float32) float32 {
	return full / halfScale
}

// CurrentRange returns the primary-side span of a current transducer:
// primary * vmax / (secondary * burden).
func CurrentRange(primary, secondary, burden, vmax float32) float32 {
	return primary * vmax / (secondary * burden)
}

// CurrentGain returns the gain of a current input.
func CurrentGain(primary, secondary, burden float32) float32 {
	return CurrentRange(primary, secondary, burden, currentVMax) / halfScale
}

// LvCurrentGain returns the gain of an LV transducer input.
func LvCurrentGain(primary, secondary, burden float32) float32 {
	return CurrentRange(primary, secondary, burden, lvCurrentVMax) / halfScale
}

// NewTable allocates every physical channel, disabled. Profiles enable the
// channels they bind.
func NewTable() *logic.Table {
	return logic.NewTable(int(NumChannels), names[:]...)
}

// Evaluate samples every enabled channel of tbl from frame.
func Evaluate(tbl *logic.Table, frame Frame) {
	tbl.Each(func(id logic.ID, c *logic.Channel) {
		if c.Enabled && int(id) < len(frame) {
			c.Sample(frame[id])
		}
	})
}
