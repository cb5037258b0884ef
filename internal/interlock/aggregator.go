// Package interlock folds the variant profile and the board sensors into one
// board-wide interlock and alarm state and sequences the relays from it.
//
// One Tick is one application cycle. Clear requests may arrive from other
// goroutines (the bus receiver, the HTTP server); the aggregator mutex is the
// critical section that keeps them from interleaving with a tick.
package interlock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sweeney/iib-interlock/internal/gpio"
	"github.com/sweeney/iib-interlock/internal/profile"
)

// State is the board-wide latch set.
type State struct {
	InterlockLatched bool
	InterlockEdgeOld bool
	InitDone         bool
	AlarmLatched     bool
}

// Result reports what one tick did.
type Result struct {
	Interlocked bool
	Alarmed     bool
	// Edge is set on the tick the relay-open sequence ran.
	Edge bool
	// Init is set on the tick the init sequence ran.
	Init bool
	// Cleared is set when a pending clear was applied at the end of the tick.
	Cleared bool

	InterlockBits uint32
	AlarmBits     uint32

	// Err joins relay and transmit errors. The tick itself always completes.
	Err error
}

// Aggregator owns the profile, the channels and the relay outputs.
type Aggregator struct {
	mu sync.Mutex

	prof profile.Capabilities
	hw   profile.Hardware
	io   gpio.IO
	tx   profile.Sender
	pol  profile.LEDPolarity

	state        State
	pendingClear bool
	signals      []profile.Signal
}

// New configures prof and returns an aggregator driving io and sending
// through tx.
func New(prof profile.Capabilities, hw profile.Hardware, io gpio.IO, tx profile.Sender, pol profile.LEDPolarity) *Aggregator {
	prof.Configure()
	a := &Aggregator{
		prof: prof,
		hw:   hw,
		io:   io,
		tx:   tx,
		pol:  pol,
	}
	a.signals = append(a.signals, prof.MapVars()...)
	return a
}

// Start shows the power-up LED pattern: LED1 off, LED2..LED10 on.
func (a *Aggregator) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if err := a.io.Set(gpio.LED1, false); err != nil {
		errs = append(errs, err)
	}
	for n := 2; n <= 10; n++ {
		if err := a.io.Set(gpio.LED(n), true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tick runs one application cycle:
//  1. evaluate the profile and board sensors
//  2. latch the board interlock on any trip
//  3. on the rising edge, open the relays and send the cause bits once
//  4. run the init sequence while not interlocked and not yet initialised
//  5. latch and report alarms
//  6. apply a pending clear
func (a *Aggregator) Tick(in profile.Input) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	var res Result
	var errs []error

	a.prof.Readings(in)
	a.hw.Board.Update(in.ADC, in.Env)
	a.signals = append(a.signals[:0], a.prof.MapVars()...)

	if a.prof.CheckInterlocks() || a.hw.Board.Trip() {
		a.state.InterlockLatched = true
	}

	if a.state.InterlockLatched && !a.state.InterlockEdgeOld {
		a.state.InterlockEdgeOld = true
		res.Edge = true
		errs = append(errs, a.openRelays()...)
		if err := a.prof.SendItlkMsg(a.tx); err != nil {
			errs = append(errs, fmt.Errorf("send interlock: %w", err))
		}
	}

	if !a.state.InterlockLatched && !a.state.InitDone {
		a.state.InitDone = true
		res.Init = true
		errs = append(errs, a.initRelays()...)
	}

	if a.prof.CheckAlarms() || a.hw.Board.Alarm() {
		a.state.AlarmLatched = true
		if int(profile.SignalAlarms) < len(a.signals) {
			if err := a.tx.SendSignal(profile.SignalAlarms, a.signals[profile.SignalAlarms]); err != nil {
				errs = append(errs, fmt.Errorf("send alarms: %w", err))
			}
		}
	}

	res.Interlocked = a.state.InterlockLatched
	res.Alarmed = a.state.AlarmLatched
	res.InterlockBits = a.prof.InterlockBits()
	res.AlarmBits = a.prof.AlarmBits()

	if a.pendingClear {
		a.clear()
		res.Cleared = true
	}

	res.Err = errors.Join(errs...)
	return res
}

// clear resets every latch. It does not re-evaluate; the next tick does.
func (a *Aggregator) clear() {
	a.prof.ClearInterlocks()
	a.prof.ClearAlarms()
	a.hw.Board.Clear()
	a.hw.ADC.ClearAll()
	a.hw.RTD.ClearAll()
	a.state = State{}
	a.pendingClear = false
	a.signals = append(a.signals[:0], a.prof.MapVars()...)
}

// relays reports whether the variant drives relays at all; an unknown
// variant leaves them alone.
func (a *Aggregator) relays() (profile.RelayPolicy, bool) {
	d := a.prof.Descriptor()
	if d == nil {
		return profile.RelayPolicy{}, false
	}
	return d.Relay, true
}

func (a *Aggregator) openRelays() []error {
	policy, ok := a.relays()
	if !ok {
		return nil
	}
	var errs []error
	outs := append([]gpio.Output{gpio.AuxRelay, gpio.InterlockRelay}, policy.Outputs...)
	for _, o := range outs {
		if err := a.io.Set(o, false); err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", o, err))
		}
	}
	return errs
}

func (a *Aggregator) initRelays() []error {
	policy, ok := a.relays()
	if !ok {
		return nil
	}
	var errs []error
	if err := a.io.Set(gpio.AuxRelay, true); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", gpio.AuxRelay, err))
	}
	if err := a.io.Set(gpio.InterlockRelay, policy.InterlockRelayAtInit); err != nil {
		errs = append(errs, fmt.Errorf("set %s: %w", gpio.InterlockRelay, err))
	}
	for _, o := range policy.Outputs {
		if err := a.io.Set(o, true); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", o, err))
		}
	}
	return errs
}

// RequestClear arms a full clear, applied at the end of the next tick.
func (a *Aggregator) RequestClear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingClear = true
}

// ClearPending reports whether a clear is armed.
func (a *Aggregator) ClearPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingClear
}

// ClearAlarm clears the alarm latch and the profile alarms immediately.
func (a *Aggregator) ClearAlarm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.AlarmLatched = false
	a.prof.ClearAlarms()
	a.signals = append(a.signals[:0], a.prof.MapVars()...)
}

// IndicationLEDs drives the cause LEDs with the configured polarity.
func (a *Aggregator) IndicationLEDs() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prof.IndicationLEDs(a.io, a.pol)
}

// Interlocked reports the board interlock latch.
func (a *Aggregator) Interlocked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.InterlockLatched
}

// Signal returns slot index of the signal table as of the last tick.
func (a *Aggregator) Signal(index uint16) (profile.Signal, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(index) >= len(a.signals) {
		return 0, false
	}
	return a.signals[index], true
}

// SendData sends every measurement slot through tx.
func (a *Aggregator) SendData(tx profile.Sender) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prof.SendData(tx)
}

// ApplyParam writes a remote parameter update into the channels.
func (a *Aggregator) ApplyParam(p profile.Param) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hw.Apply(p)
}

// Profile returns the variant profile.
func (a *Aggregator) Profile() profile.Capabilities {
	return a.prof
}
