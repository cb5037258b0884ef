//go:build linux

package canbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	canFrameSize = 16
	canEFFFlag   = 0x80000000
	canRTRFlag   = 0x40000000
	canERRFlag   = 0x20000000
)

// SocketCAN is a raw CAN socket bound to one interface.
type SocketCAN struct {
	fd     int
	name   string
	mu     sync.Mutex
	closed bool
}

// OpenSocketCAN binds a raw socket to the named interface (e.g. "can0").
// Filters are installed in the kernel; none accepts every frame.
func OpenSocketCAN(name string, filters ...Filter) (*SocketCAN, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("can interface %s: %w", name, err)
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("can socket: %w", err)
	}

	if len(filters) > 0 {
		kf := make([]unix.CanFilter, len(filters))
		for i, f := range filters {
			kf[i] = unix.CanFilter{Id: f.ID, Mask: f.Mask}
		}
		if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, kf); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("can filter: %w", err)
		}
	}

	// Receive wakes up periodically to observe context cancellation.
	tv := unix.Timeval{Usec: 100000}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("can timeout: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", name, err)
	}
	return &SocketCAN{fd: fd, name: name}, nil
}

// Send writes one frame.
func (s *SocketCAN) Send(f Frame) error {
	var buf [canFrameSize]byte
	id := f.ID
	if f.Extended {
		id |= canEFFFlag
	}
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = f.Len
	copy(buf[8:], f.Payload())

	n, err := unix.Write(s.fd, buf[:])
	if err != nil {
		return fmt.Errorf("%s write: %w", s.name, err)
	}
	if n != canFrameSize {
		return fmt.Errorf("%s write: short write %d", s.name, n)
	}
	return nil
}

// Receive reads the next data frame. Remote and error frames are skipped.
func (s *SocketCAN) Receive(ctx context.Context) (Frame, error) {
	var buf [canFrameSize]byte
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		n, err := unix.Read(s.fd, buf[:])
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			if s.isClosed() {
				return Frame{}, ErrClosed
			}
			return Frame{}, fmt.Errorf("%s read: %w", s.name, err)
		}
		if n != canFrameSize {
			continue
		}

		id := binary.LittleEndian.Uint32(buf[0:4])
		if id&(canRTRFlag|canERRFlag) != 0 {
			continue
		}
		f := Frame{Len: buf[4]}
		if f.Len > 8 {
			f.Len = 8
		}
		if id&canEFFFlag != 0 {
			f.Extended = true
			f.ID = id & ExtendedMask
		} else {
			f.ID = id & StandardMask
		}
		copy(f.Data[:], buf[8:8+int(f.Len)])
		return f, nil
	}
}

func (s *SocketCAN) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the socket.
func (s *SocketCAN) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}
