package profile

import (
	"fmt"
	"strings"

	"github.com/sweeney/iib-interlock/internal/board"
	"github.com/sweeney/iib-interlock/internal/gpio"
	"github.com/sweeney/iib-interlock/internal/logic"
)

// Variant identifies the power module the board is fitted to.
type Variant uint8

const (
	FAP Variant = iota
	FACOS
	Rectifier
	FACIS
	FACCMD
	FAP300A

	NumVariants
)

var variantNames = [NumVariants]string{
	"FAP", "FAC_OS", "RECTIFIER", "FAC_IS", "FAC_CMD", "FAP_300A",
}

func (v Variant) String() string {
	if v < NumVariants {
		return variantNames[v]
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(v))
}

// ParseVariant accepts the variant name in any case, with '-' or '_'.
// An unknown name returns NumVariants and an error; New maps it to Nop.
func ParseVariant(s string) (Variant, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for i, n := range variantNames {
		if n == norm {
			return Variant(i), nil
		}
	}
	return NumVariants, fmt.Errorf("unknown variant %q", s)
}

// SourceKind says where a cause or signal reads from.
type SourceKind uint8

const (
	SourceNone SourceKind = iota
	SourceADC
	SourceRTD
	SourceInput
	SourceDriverError
)

// Source is one readable quantity on the board.
type Source struct {
	Kind  SourceKind
	Index int
}

// ADC reads a physical ADC channel.
func ADC(id logic.ID) Source {
	return Source{Kind: SourceADC, Index: int(id)}
}

// RTD reads an RTD channel (rtd.Ch1..rtd.Ch4).
func RTD(ch int) Source {
	return Source{Kind: SourceRTD, Index: ch}
}

// InputLine reads a digital input line.
func InputLine(in gpio.Input) Source {
	return Source{Kind: SourceInput, Index: int(in)}
}

// DriverError reads gate-driver error line n (1 or 2).
func DriverError(n int) Source {
	return Source{Kind: SourceDriverError, Index: n}
}

func (s Source) String() string {
	if s.Kind == SourceNone {
		return "none"
	}
	return fmt.Sprintf("%s%d", s.Kind, s.Index)
}

func (k SourceKind) String() string {
	switch k {
	case SourceADC:
		return "adc"
	case SourceRTD:
		return "rtd"
	case SourceInput:
		return "input"
	case SourceDriverError:
		return "driver"
	}
	return "none"
}

// ADCBinding configures one ADC channel as a bipolar protection channel.
type ADCBinding struct {
	Channel logic.ID
	Gain    float32
	Offset  int32
	Invert  bool
	Alarm   float32
	Trip    float32
	Delay   uint8
}

// RTDBinding enables one RTD channel.
type RTDBinding struct {
	Channel int
	Alarm   float32
	Trip    float32
	Delay   uint8
}

// Cause is one named interlock/alarm reason.
type Cause struct {
	Name     string
	Source   Source
	ItlkBit  uint32
	AlarmBit uint32 // 0 = this cause never alarms
	LED      int    // front-panel LED 1..10, 0 = none
	// AlarmDark shows an alarm-only state as healthy instead of blinking.
	AlarmDark bool
}

// SignalDef is one measurement slot of the telemetry table, from slot 2 on.
type SignalDef struct {
	Name   string
	Source Source
}

// RelayPolicy is the variant part of the relay sequences.
type RelayPolicy struct {
	// InterlockRelayAtInit is the interlock relay state driven by the init sequence.
	InterlockRelayAtInit bool
	// Outputs are driven on at init and off on interlock, with the relays.
	Outputs []gpio.Output
}

// Descriptor is the static, per-variant protection table.
type Descriptor struct {
	Variant Variant
	ADC     []ADCBinding
	RTD     []RTDBinding
	Board   board.Limits
	// DriverErrors enables the gate-driver error lines as interlock causes.
	DriverErrors bool
	Causes       []Cause
	Signals      []SignalDef
	// Fast lists the signal slots sent on telemetry phases 0..6.
	Fast  [7][]uint16
	Relay RelayPolicy
	// Polarity is the LED convention of the firmware this table came from.
	Polarity LEDPolarity
}

// NumSignals is the length of the telemetry table.
func (d *Descriptor) NumSignals() int {
	return int(firstMeasurement) + len(d.Signals)
}

// Lookup returns the descriptor of v, or nil for an unknown variant.
func Lookup(v Variant) *Descriptor {
	if v >= NumVariants {
		return nil
	}
	return &descriptors[v]
}

// Variants returns every known descriptor in variant order.
func Variants() []*Descriptor {
	out := make([]*Descriptor, 0, NumVariants)
	for i := range descriptors {
		out = append(out, &descriptors[i])
	}
	return out
}
