// Package logic contains the debounced threshold channel model shared by every
// measured quantity on the board (ADC voltages and currents, RTD temperatures,
// board humidity and temperature).
// This package has NO external dependencies (no GPIO, bus, OS, or time.Sleep).
// One call to Evaluate is one tick; delays are counted in ticks.
package logic

// ID addresses a channel inside a Table. IDs are stable for the life of the table.
type ID int

// Policy selects how a calibrated value is compared against its limits.
type Policy uint8

const (
	// Bipolar channels violate when value > limit or value < -limit.
	Bipolar Policy = iota
	// OneSided channels are clamped into [0, Max] and violate when value > limit.
	OneSided
)

func (p Policy) String() string {
	switch p {
	case Bipolar:
		return "bipolar"
	case OneSided:
		return "one-sided"
	}
	return "unknown"
}

// Status is the result of one evaluation.
type Status struct {
	Value float32
	Alarm bool
	Trip  bool
}

// Config holds the calibration constants and limits applied by Configure.
type Config struct {
	Gain       float32
	Offset     int32
	Invert     bool
	Policy     Policy
	Max        float32 // clamp ceiling for OneSided channels; 0 = no clamp
	AlarmLimit float32
	TripLimit  float32
	AlarmDelay uint8
	TripDelay  uint8
}

// Channel is one debounced threshold evaluator.
type Channel struct {
	Name    string
	Enabled bool

	Gain   float32
	Offset int32
	Invert bool
	Policy Policy
	Max    float32

	AlarmLimit float32
	TripLimit  float32

	AlarmDelay   uint8
	AlarmCounter uint8
	TripDelay    uint8
	TripCounter  uint8

	// Last calibrated reading
	Value float32

	AlarmLatched bool
	TripLatched  bool
}
