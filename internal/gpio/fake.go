package gpio

import (
	"errors"
	"fmt"
	"sync"
)

// Write records one output change made through FakeIO.
type Write struct {
	Output Output
	On     bool
}

// FakeIO is a test double that records output writes and returns scripted
// input samples.
type FakeIO struct {
	mu sync.Mutex

	// Samples contains scripted input sets to return.
	// Each call to Inputs() consumes the next sample; the last one repeats.
	Samples []InputSet
	index   int

	state  [NumOutputs]bool
	writes []Write

	// Closed tracks if Close was called
	Closed bool

	// InputError, if set, will be returned by Inputs()
	InputError error
	// SetError, if set, will be returned by Set() and Toggle()
	SetError error
}

// NewFakeIO creates a FakeIO with the given input samples.
func NewFakeIO(samples ...InputSet) *FakeIO {
	return &FakeIO{Samples: samples}
}

func (f *FakeIO) Set(o Output, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	if o >= NumOutputs {
		return fmt.Errorf("output %d out of range", o)
	}
	f.state[o] = on
	f.writes = append(f.writes, Write{Output: o, On: on})
	return nil
}

func (f *FakeIO) Toggle(o Output) error {
	f.mu.Lock()
	on := o < NumOutputs && !f.state[o]
	f.mu.Unlock()
	return f.Set(o, on)
}

// Inputs returns the next scripted sample. With no samples every input
// reads inactive.
func (f *FakeIO) Inputs() (InputSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InputError != nil {
		return 0, f.InputError
	}
	if len(f.Samples) == 0 {
		return 0, nil
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s, nil
}

// SetInputs replaces the scripted samples with a single repeating set.
func (f *FakeIO) SetInputs(s InputSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Samples = []InputSet{s}
	f.index = 0
}

// State returns the last value written to o.
func (f *FakeIO) State(o Output) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o >= NumOutputs {
		return false
	}
	return f.state[o]
}

// Writes returns a copy of every recorded write.
func (f *FakeIO) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Write, len(f.writes))
	copy(out, f.writes)
	return out
}

// WritesTo returns the recorded writes to o, in order.
func (f *FakeIO) WritesTo(o Output) []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bool
	for _, w := range f.writes {
		if w.Output == o {
			out = append(out, w.On)
		}
	}
	return out
}

// ResetWrites forgets recorded writes, keeping output state.
func (f *FakeIO) ResetWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
}

// Close marks the IO as closed.
func (f *FakeIO) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed {
		return errors.New("already closed")
	}
	f.Closed = true
	return nil
}
