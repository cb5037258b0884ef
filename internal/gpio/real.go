//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Pins maps logical lines to chip offsets. Lines with no entry are not
// requested; writes to them are dropped and reads return inactive.
type Pins struct {
	Chip      string
	Outputs   map[Output]int
	Inputs    map[Input]int
	ActiveLow map[Input]bool
}

// RealIO drives lines through the Linux GPIO character device.
type RealIO struct {
	chip      *gpiocdev.Chip
	outputs   [NumOutputs]*gpiocdev.Line
	inputs    [NumInputs]*gpiocdev.Line
	activeLow [NumInputs]bool
	state     [NumOutputs]bool
}

// NewRealIO requests every mapped line. Outputs start low (relays open,
// LEDs off).
func NewRealIO(p Pins) (*RealIO, error) {
	name := p.Chip
	if name == "" {
		name = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r := &RealIO{chip: chip}

	for o, offset := range p.Outputs {
		if o >= NumOutputs {
			r.Close()
			return nil, fmt.Errorf("output %d out of range", o)
		}
		l, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", o, offset, err)
		}
		r.outputs[o] = l
	}

	for in, offset := range p.Inputs {
		if in >= NumInputs {
			r.Close()
			return nil, fmt.Errorf("input %d out of range", in)
		}
		l, err := chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", in, offset, err)
		}
		r.inputs[in] = l
		r.activeLow[in] = p.ActiveLow[in]
	}

	return r, nil
}

// Set drives output o.
func (r *RealIO) Set(o Output, on bool) error {
	if o >= NumOutputs {
		return fmt.Errorf("output %d out of range", o)
	}
	r.state[o] = on
	l := r.outputs[o]
	if l == nil {
		return nil
	}
	v := 0
	if on {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		return fmt.Errorf("set %s: %w", o, err)
	}
	return nil
}

// Toggle inverts the last value written to o.
func (r *RealIO) Toggle(o Output) error {
	if o >= NumOutputs {
		return fmt.Errorf("output %d out of range", o)
	}
	return r.Set(o, !r.state[o])
}

// Inputs samples every requested input line.
func (r *RealIO) Inputs() (InputSet, error) {
	var s InputSet
	for i, l := range r.inputs {
		if l == nil {
			continue
		}
		raw, err := l.Value()
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", Input(i), err)
		}
		active := raw == 1
		if r.activeLow[i] {
			active = !active
		}
		if active {
			s = s.With(Input(i))
		}
	}
	return s, nil
}

// Close releases GPIO resources.
// Outputs are reconfigured as inputs with pull-down before closing so the
// relays drop out and the pins match the boot defaults.
func (r *RealIO) Close() error {
	var errs []error

	for i, l := range r.outputs {
		if l == nil {
			continue
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", Output(i), err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", Output(i), err))
		}
		r.outputs[i] = nil
	}
	for i, l := range r.inputs {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", Input(i), err))
		}
		r.inputs[i] = nil
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
