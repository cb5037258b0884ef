//go:build !linux

package gpio

import "errors"

// Pins maps logical lines to chip offsets.
type Pins struct {
	Chip      string
	Outputs   map[Output]int
	Inputs    map[Input]int
	ActiveLow map[Input]bool
}

// RealIO is not available on non-Linux platforms.
type RealIO struct{}

// NewRealIO returns an error on non-Linux platforms.
func NewRealIO(p Pins) (*RealIO, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

func (r *RealIO) Set(o Output, on bool) error {
	return errors.New("gpio: not supported")
}

func (r *RealIO) Toggle(o Output) error {
	return errors.New("gpio: not supported")
}

func (r *RealIO) Inputs() (InputSet, error) {
	return 0, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealIO) Close() error {
	return nil
}
