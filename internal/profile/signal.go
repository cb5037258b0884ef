package profile

import (
	"encoding/binary"

	"github.com/chewxy/math32"
)

// Signal is one 32-bit slot of the telemetry signal table. Slots 0 and 1
// carry cause bitmasks; the others carry float32 measurements.
type Signal uint32

// Float returns the slot reinterpreted as a float32.
func (s Signal) Float() float32 {
	return math32.Float32frombits(uint32(s))
}

// Bytes returns the little-endian wire form.
func (s Signal) Bytes() [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(s))
	return b
}

// FloatSignal stores a measurement.
func FloatSignal(f float32) Signal {
	return Signal(math32.Float32bits(f))
}

// Signal table slots with a fixed meaning on every variant.
const (
	SignalInterlocks uint16 = 0
	SignalAlarms     uint16 = 1
	firstMeasurement uint16 = 2
)

// Sender transmits one signal-table slot.
type Sender interface {
	SendSignal(index uint16, s Signal) error
}
