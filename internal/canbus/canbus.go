// Package canbus moves classic CAN frames between the board and the
// controller. SocketCAN is used when the host has a CAN interface; an SLCAN
// USB adapter on a serial port is the fallback.
package canbus

import (
	"context"
	"errors"
	"fmt"
)

// Identifier masks.
const (
	StandardMask = 0x7FF
	ExtendedMask = 0x1FFFFFFF
)

// Frame is one classic CAN data frame.
type Frame struct {
	ID       uint32
	Extended bool
	Len      uint8
	Data     [8]byte
}

// Payload returns the valid data bytes.
func (f Frame) Payload() []byte {
	n := int(f.Len)
	if n > len(f.Data) {
		n = len(f.Data)
	}
	return f.Data[:n]
}

func (f Frame) String() string {
	if f.Extended {
		return fmt.Sprintf("%08X#% X", f.ID, f.Payload())
	}
	return fmt.Sprintf("%03X#% X", f.ID, f.Payload())
}

// NewFrame builds a frame from up to eight data bytes.
func NewFrame(id uint32, data []byte) (Frame, error) {
	if len(data) > 8 {
		return Frame{}, fmt.Errorf("frame %X: %d data bytes: %w", id, len(data), ErrFrameTooLong)
	}
	f := Frame{ID: id, Len: uint8(len(data))}
	if id > StandardMask {
		f.Extended = true
		if id > ExtendedMask {
			return Frame{}, fmt.Errorf("frame %X: %w", id, ErrBadID)
		}
	}
	copy(f.Data[:], data)
	return f, nil
}

var (
	ErrFrameTooLong = errors.New("canbus: more than 8 data bytes")
	ErrBadID        = errors.New("canbus: identifier out of range")
	ErrClosed       = errors.New("canbus: closed")
)

// Filter accepts frames whose identifier matches ID under Mask.
type Filter struct {
	ID   uint32
	Mask uint32
}

// Match reports whether id passes the filter.
func (f Filter) Match(id uint32) bool {
	return id&f.Mask == f.ID&f.Mask
}

// Bus is the bus transport: fire-and-forget send and blocking receive.
type Bus interface {
	Send(f Frame) error
	// Receive blocks until a frame arrives or ctx is done.
	Receive(ctx context.Context) (Frame, error)
	Close() error
}

// matchAny reports whether id passes at least one filter. No filters
// accept everything.
func matchAny(filters []Filter, id uint32) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Match(id) {
			return true
		}
	}
	return false
}
