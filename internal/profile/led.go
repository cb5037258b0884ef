package profile

import (
	"fmt"
	"sort"

	"github.com/sweeney/iib-interlock/internal/gpio"
)

// LEDPolarity is how a fault is shown on a front-panel LED. Both
// conventions exist in deployed firmware, so it is a deployment setting.
type LEDPolarity uint8

const (
	PolarityUnset LEDPolarity = iota
	// FaultOn lights the LED on fault and keeps it dark when healthy.
	FaultOn
	// FaultOff keeps the LED lit when healthy and darkens it on fault.
	FaultOff
)

func (p LEDPolarity) String() string {
	switch p {
	case FaultOn:
		return "fault-on"
	case FaultOff:
		return "fault-off"
	}
	return "unset"
}

// ParseLEDPolarity parses "fault-on" or "fault-off".
func ParseLEDPolarity(s string) (LEDPolarity, error) {
	switch s {
	case "fault-on":
		return FaultOn, nil
	case "fault-off":
		return FaultOff, nil
	}
	return PolarityUnset, fmt.Errorf("unknown led polarity %q (want fault-on or fault-off)", s)
}

// LEDState is the indication computed for one LED.
type LEDState uint8

const (
	LEDOk LEDState = iota
	LEDAlarm
	LEDFault
)

func (s LEDState) String() string {
	switch s {
	case LEDAlarm:
		return "alarm"
	case LEDFault:
		return "fault"
	}
	return "ok"
}

// LEDDriver is the subset of gpio.IO the indication rules need.
type LEDDriver interface {
	Set(o gpio.Output, on bool) error
	Toggle(o gpio.Output) error
}

// LEDAssignment is the indication of one LED.
type LEDAssignment struct {
	LED   int
	State LEDState
}

// ledStates folds cause states onto their LEDs. A shared LED shows the worst
// state of its causes.
func ledStates(causes []Cause, tripped, alarmed []bool) []LEDAssignment {
	states := make(map[int]LEDState)
	for i, c := range causes {
		if c.LED == 0 {
			continue
		}
		st := LEDOk
		switch {
		case tripped[i]:
			st = LEDFault
		case alarmed[i] && !c.AlarmDark:
			st = LEDAlarm
		}
		if cur, ok := states[c.LED]; !ok || st > cur {
			states[c.LED] = st
		}
	}

	out := make([]LEDAssignment, 0, len(states))
	for led, st := range states {
		out = append(out, LEDAssignment{LED: led, State: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LED < out[j].LED })
	return out
}

// drive applies one assignment. Alarms blink by toggling once per call.
func drive(out LEDDriver, a LEDAssignment, pol LEDPolarity) error {
	o := gpio.LED(a.LED)
	switch a.State {
	case LEDFault:
		return out.Set(o, pol == FaultOn)
	case LEDAlarm:
		return out.Toggle(o)
	}
	return out.Set(o, pol == FaultOff)
}
