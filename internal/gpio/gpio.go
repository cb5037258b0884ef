// Package gpio drives the IIB's relays, status LEDs and RTD mux lines and
// reads its digital inputs, with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"strings"
)

// Output is a logical output line.
type Output uint8

const (
	AuxRelay Output = iota
	InterlockRelay
	GPDO1
	GPDO2
	GPDO3
	GPDO4
	LED1
	LED2
	LED3
	LED4
	LED5
	LED6
	LED7
	LED8
	LED9
	LED10
	MuxA0
	MuxA1

	NumOutputs
)

var outputNames = [NumOutputs]string{
	"aux_relay", "interlock_relay",
	"gpdo1", "gpdo2", "gpdo3", "gpdo4",
	"led1", "led2", "led3", "led4", "led5", "led6", "led7", "led8", "led9", "led10",
	"mux_a0", "mux_a1",
}

func (o Output) String() string {
	if o < NumOutputs {
		return outputNames[o]
	}
	return fmt.Sprintf("output(%d)", uint8(o))
}

// LED returns the output of front-panel LED n (1..10). Out of range
// numbers return NumOutputs.
func LED(n int) Output {
	if n < 1 || n > 10 {
		return NumOutputs
	}
	return LED1 + Output(n-1)
}

// Input is a logical input line. Driver error lines read true on fault.
type Input uint8

const (
	GPDI1 Input = iota
	GPDI2
	GPDI3
	GPDI4
	GPDI5
	GPDI6
	GPDI7
	GPDI8
	GPDI9
	GPDI10
	GPDI11
	GPDI12
	Driver1Error
	Driver2Error

	NumInputs
)

var inputNames = [NumInputs]string{
	"gpdi1", "gpdi2", "gpdi3", "gpdi4", "gpdi5", "gpdi6",
	"gpdi7", "gpdi8", "gpdi9", "gpdi10", "gpdi11", "gpdi12",
	"driver1_error", "driver2_error",
}

func (i Input) String() string {
	if i < NumInputs {
		return inputNames[i]
	}
	return fmt.Sprintf("input(%d)", uint8(i))
}

// ParseOutput resolves a configuration name such as "led3" or "aux_relay".
func ParseOutput(name string) (Output, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range outputNames {
		if n == name {
			return Output(i), nil
		}
	}
	return 0, fmt.Errorf("unknown output %q", name)
}

// ParseInput resolves a configuration name such as "gpdi5".
func ParseInput(name string) (Input, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range inputNames {
		if n == name {
			return Input(i), nil
		}
	}
	return 0, fmt.Errorf("unknown input %q", name)
}

// InputSet is a snapshot of every input line, one bit per Input.
type InputSet uint32

// Has reports whether in is active.
func (s InputSet) Has(in Input) bool {
	return s&(1<<in) != 0
}

// With returns s with in active.
func (s InputSet) With(in Input) InputSet {
	return s | 1<<in
}

// IO drives outputs and samples inputs. Values are logical: true means
// relay energised, LED lit, input active.
type IO interface {
	Set(o Output, on bool) error
	Toggle(o Output) error
	Inputs() (InputSet, error)
	// Close releases GPIO resources.
	Close() error
}

// Mux adapts an IO to the two RTD multiplexer select lines.
type Mux struct {
	IO IO
}

// SetMux drives A0 and A1.
func (m Mux) SetMux(a0, a1 bool) error {
	if err := m.IO.Set(MuxA0, a0); err != nil {
		return err
	}
	return m.IO.Set(MuxA1, a1)
}
