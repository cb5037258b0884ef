package adc

import "errors"

// FakeConverter is a test double that returns scripted frames.
type FakeConverter struct {
	// Frames are returned in order; the last one repeats.
	Frames []Frame

	// ReadyAfter is the number of polls that report not ready before completion.
	// A negative value never completes.
	ReadyAfter int

	// StartError, if set, is returned by Start.
	StartError error

	Starts int
	Polls  int

	index   int
	pending int
}

// NewFakeConverter creates a FakeConverter with the given frames.
func NewFakeConverter(frames ...Frame) *FakeConverter {
	return &FakeConverter{Frames: frames}
}

func (f *FakeConverter) Start() error {
	if f.StartError != nil {
		return f.StartError
	}
	f.Starts++
	f.pending = f.ReadyAfter
	return nil
}

func (f *FakeConverter) Ready() (bool, error) {
	f.Polls++
	if f.ReadyAfter < 0 {
		return false, nil
	}
	if f.pending > 0 {
		f.pending--
		return false, nil
	}
	return true, nil
}

func (f *FakeConverter) Fetch() (Frame, error) {
	if len(f.Frames) == 0 {
		return Frame{}, errors.New("no frames configured")
	}
	fr := f.Frames[f.index]
	if f.index < len(f.Frames)-1 {
		f.index++
	}
	return fr, nil
}

// Uniform returns a frame with every channel set to raw.
func Uniform(raw uint16) Frame {
	var f Frame
	for i := range f {
		f[i] = raw
	}
	return f
}
