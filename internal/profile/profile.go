// Package profile binds the generic channels to one power-module variant:
// which physical channels are monitored, with what limits, which bit each
// cause sets, which LED shows it and what the board reports over telemetry.
//
// Every variant is data in a Descriptor table; a single Profile type
// interprets it.
package profile

import (
	"errors"

	"github.com/sweeney/iib-interlock/internal/adc"
	"github.com/sweeney/iib-interlock/internal/board"
	"github.com/sweeney/iib-interlock/internal/gpio"
	"github.com/sweeney/iib-interlock/internal/logic"
	"github.com/sweeney/iib-interlock/internal/rtd"
)

// Hardware is the set of channels a profile configures and reads.
type Hardware struct {
	ADC   *logic.Table
	RTD   *rtd.Bank
	Board *board.Sensors
}

// NewHardware allocates the ADC table, the RTD bank over tr and the board
// sensors with default limits.
func NewHardware(tr rtd.Transport) Hardware {
	tbl := adc.NewTable()
	return Hardware{
		ADC:   tbl,
		RTD:   rtd.NewBank(tr),
		Board: board.New(tbl, board.DefaultLimits()),
	}
}

// Input is everything sampled for one application tick.
type Input struct {
	ADC    adc.Frame
	RTD    [rtd.NumChannels]rtd.Raw
	Env    board.Env
	Inputs gpio.InputSet
}

// CauseState is the current state of one cause.
type CauseState struct {
	Name    string
	Tripped bool
	Alarmed bool
}

// Capabilities is the per-variant behaviour the aggregator drives.
type Capabilities interface {
	Variant() Variant
	Descriptor() *Descriptor

	Configure()
	Readings(in Input)
	CheckInterlocks() bool
	CheckAlarms() bool
	ClearInterlocks()
	ClearAlarms()
	IndicationLEDs(out LEDDriver, pol LEDPolarity) error
	MapVars() []Signal
	SendData(tx Sender) error
	SendItlkMsg(tx Sender) error

	InterlockBits() uint32
	AlarmBits() uint32
	Causes() []CauseState
	LEDs() []LEDAssignment
}

// New returns the profile of v over hw. An unknown variant yields Nop.
func New(v Variant, hw Hardware) Capabilities {
	d := Lookup(v)
	if d == nil {
		return Nop{V: v}
	}
	return &Profile{
		desc:    d,
		hw:      hw,
		tripped: make([]bool, len(d.Causes)),
		alarmed: make([]bool, len(d.Causes)),
		signals: make([]Signal, d.NumSignals()),
	}
}

// Profile interprets a Descriptor.
type Profile struct {
	desc *Descriptor
	hw   Hardware

	// Cause latches. Trips stay set until ClearInterlocks; alarms follow
	// the (already latched) channel alarm.
	tripped []bool
	alarmed []bool

	itlkBits  uint32
	alarmBits uint32
	signals   []Signal
}

func (p *Profile) Variant() Variant        { return p.desc.Variant }
func (p *Profile) Descriptor() *Descriptor { return p.desc }
func (p *Profile) InterlockBits() uint32   { return p.itlkBits }
func (p *Profile) AlarmBits() uint32       { return p.alarmBits }

// Configure disables every variant channel, then enables and configures the
// bound ones. Board driver channels are left to the board sensors.
func (p *Profile) Configure() {
	for id := logic.ID(0); id < adc.DriverVoltage; id++ {
		p.hw.ADC.Get(id).Enabled = false
	}
	for _, b := range p.desc.ADC {
		p.hw.ADC.Get(b.Channel).Configure(logic.Config{
			Gain:       b.Gain,
			Offset:     b.Offset,
			Invert:     b.Invert,
			Policy:     logic.Bipolar,
			AlarmLimit: b.Alarm,
			TripLimit:  b.Trip,
			AlarmDelay: b.Delay,
			TripDelay:  b.Delay,
		})
	}

	for ch := range p.hw.RTD.Channels {
		p.hw.RTD.Channels[ch].Enabled = false
	}
	for _, b := range p.desc.RTD {
		p.hw.RTD.Channel(b.Channel).Configure(b.Alarm, b.Trip, b.Delay)
	}

	p.hw.Board.SetLimits(p.desc.Board)

	for i := range p.tripped {
		p.tripped[i] = false
		p.alarmed[i] = false
	}
	p.itlkBits, p.alarmBits = 0, 0
}

// Readings evaluates the bound channels and updates cause latches, bits and
// the signal table.
func (p *Profile) Readings(in Input) {
	for _, b := range p.desc.ADC {
		p.hw.ADC.Get(b.Channel).Sample(in.ADC[b.Channel])
	}
	p.hw.RTD.Read(in.RTD)

	for i, c := range p.desc.Causes {
		trip, alarm := p.status(c.Source, in.Inputs)
		if !p.tripped[i] {
			p.tripped[i] = trip
		}
		p.alarmed[i] = alarm
	}
	p.updateBits()
	p.MapVars()
}

// status reads the trip and alarm state of a cause source.
func (p *Profile) status(src Source, inputs gpio.InputSet) (trip, alarm bool) {
	switch src.Kind {
	case SourceADC:
		if c := p.hw.ADC.Get(logic.ID(src.Index)); c != nil {
			return c.Trip(), c.Alarm()
		}
	case SourceRTD:
		if c := p.hw.RTD.Channel(src.Index); c != nil {
			return c.Trip(), c.Alarm()
		}
	case SourceInput:
		return inputs.Has(gpio.Input(src.Index)), false
	case SourceDriverError:
		if !p.desc.DriverErrors {
			return false, false
		}
		switch src.Index {
		case 1:
			return inputs.Has(gpio.Driver1Error), false
		case 2:
			return inputs.Has(gpio.Driver2Error), false
		}
	}
	return false, false
}

func (p *Profile) updateBits() {
	p.itlkBits, p.alarmBits = 0, 0
	for i, c := range p.desc.Causes {
		if p.tripped[i] {
			p.itlkBits |= c.ItlkBit
		}
		if p.alarmed[i] {
			p.alarmBits |= c.AlarmBit
		}
	}
}

// CheckInterlocks reports whether any cause is tripped.
func (p *Profile) CheckInterlocks() bool {
	for _, t := range p.tripped {
		if t {
			return true
		}
	}
	return false
}

// CheckAlarms reports whether any cause is alarmed.
func (p *Profile) CheckAlarms() bool {
	for _, a := range p.alarmed {
		if a {
			return true
		}
	}
	return false
}

// ClearInterlocks clears every cause trip latch and the trip latches of the
// bound channels.
func (p *Profile) ClearInterlocks() {
	for i, c := range p.desc.Causes {
		p.tripped[i] = false
		switch c.Source.Kind {
		case SourceADC:
			p.hw.ADC.Get(logic.ID(c.Source.Index)).ClearTrip()
		case SourceRTD:
			p.hw.RTD.Channel(c.Source.Index).ClearTrip()
		}
	}
	p.itlkBits = 0
}

// ClearAlarms clears every cause alarm and the alarm latches of the bound
// channels.
func (p *Profile) ClearAlarms() {
	for i, c := range p.desc.Causes {
		p.alarmed[i] = false
		switch c.Source.Kind {
		case SourceADC:
			p.hw.ADC.Get(logic.ID(c.Source.Index)).ClearAlarm()
		case SourceRTD:
			p.hw.RTD.Channel(c.Source.Index).ClearAlarm()
		}
	}
	p.alarmBits = 0
}

// LEDs returns the indication of every LED the variant uses, by LED number.
func (p *Profile) LEDs() []LEDAssignment {
	return ledStates(p.desc.Causes, p.tripped, p.alarmed)
}

// IndicationLEDs drives the cause LEDs: fault steady, alarm blinking.
func (p *Profile) IndicationLEDs(out LEDDriver, pol LEDPolarity) error {
	var errs []error
	for _, a := range p.LEDs() {
		if err := drive(out, a, pol); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Causes returns the state of every cause in table order.
func (p *Profile) Causes() []CauseState {
	out := make([]CauseState, len(p.desc.Causes))
	for i, c := range p.desc.Causes {
		out[i] = CauseState{Name: c.Name, Tripped: p.tripped[i], Alarmed: p.alarmed[i]}
	}
	return out
}

// MapVars refreshes the signal table and returns it. The slice is owned by
// the profile and overwritten on the next call.
func (p *Profile) MapVars() []Signal {
	p.signals[SignalInterlocks] = Signal(p.itlkBits)
	p.signals[SignalAlarms] = Signal(p.alarmBits)
	for i, s := range p.desc.Signals {
		p.signals[int(firstMeasurement)+i] = FloatSignal(p.value(s.Source))
	}
	return p.signals
}

func (p *Profile) value(src Source) float32 {
	switch src.Kind {
	case SourceADC:
		if c := p.hw.ADC.Get(logic.ID(src.Index)); c != nil {
			return c.Value
		}
	case SourceRTD:
		if c := p.hw.RTD.Channel(src.Index); c != nil {
			return c.Temperature
		}
	}
	return 0
}

// SendData sends every measurement slot.
func (p *Profile) SendData(tx Sender) error {
	var errs []error
	for i := int(firstMeasurement); i < len(p.signals); i++ {
		if err := tx.SendSignal(uint16(i), p.signals[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendItlkMsg sends the interlock cause bits.
func (p *Profile) SendItlkMsg(tx Sender) error {
	return tx.SendSignal(SignalInterlocks, p.signals[SignalInterlocks])
}

// Nop is the profile of an unknown variant: nothing is monitored, nothing
// trips and nothing is sent.
type Nop struct {
	V Variant
}

func (n Nop) Variant() Variant                          { return n.V }
func (Nop) Descriptor() *Descriptor                     { return nil }
func (Nop) Configure()                                  {}
func (Nop) Readings(Input)                              {}
func (Nop) CheckInterlocks() bool                       { return false }
func (Nop) CheckAlarms() bool                           { return false }
func (Nop) ClearInterlocks()                            {}
func (Nop) ClearAlarms()                                {}
func (Nop) IndicationLEDs(LEDDriver, LEDPolarity) error { return nil }
func (Nop) MapVars() []Signal                           { return nil }
func (Nop) SendData(Sender) error                       { return nil }
func (Nop) SendItlkMsg(Sender) error                    { return nil }
func (Nop) InterlockBits() uint32                       { return 0 }
func (Nop) AlarmBits() uint32                           { return 0 }
func (Nop) Causes() []CauseState                        { return nil }
func (Nop) LEDs() []LEDAssignment                       { return nil }
