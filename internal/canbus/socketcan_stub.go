//go:build !linux

package canbus

import (
	"context"
	"errors"
)

// SocketCAN is not available on non-Linux platforms.
type SocketCAN struct{}

// OpenSocketCAN returns an error on non-Linux platforms.
func OpenSocketCAN(name string, filters ...Filter) (*SocketCAN, error) {
	return nil, errors.New("canbus: socketcan not supported on this platform (requires Linux)")
}

func (s *SocketCAN) Send(f Frame) error {
	return errors.New("canbus: not supported")
}

func (s *SocketCAN) Receive(ctx context.Context) (Frame, error) {
	return Frame{}, errors.New("canbus: not supported")
}

func (s *SocketCAN) Close() error {
	return nil
}
