package canbus

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ErrBadSLCAN is returned for lines that are not SLCAN data frames.
var ErrBadSLCAN = errors.New("canbus: malformed slcan frame")

// Port is the serial port an SLCAN adapter sits behind.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// SLCAN speaks the Lawicel ASCII protocol to a USB-CAN adapter.
type SLCAN struct {
	port    Port
	filters []Filter

	wmu sync.Mutex
	buf []byte
}

var slcanBitrates = map[int]byte{
	10000: '0', 20000: '1', 50000: '2', 100000: '3', 125000: '4',
	250000: '5', 500000: '6', 800000: '7', 1000000: '8',
}

// OpenSLCAN opens the serial device and brings the channel up at bitrate.
func OpenSLCAN(device string, baud, bitrate int, filters ...Filter) (*SLCAN, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	s, err := NewSLCAN(port, bitrate, filters...)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

// NewSLCAN initialises an adapter on an already open port.
func NewSLCAN(port Port, bitrate int, filters ...Filter) (*SLCAN, error) {
	code, ok := slcanBitrates[bitrate]
	if !ok {
		return nil, fmt.Errorf("slcan: unsupported bitrate %d", bitrate)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		return nil, fmt.Errorf("slcan: read timeout: %w", err)
	}
	s := &SLCAN{port: port, filters: filters}
	// Close first in case the adapter was left open.
	for _, cmd := range []string{"C\r", "S" + string(code) + "\r", "O\r"} {
		if _, err := io.WriteString(port, cmd); err != nil {
			return nil, fmt.Errorf("slcan init %q: %w", cmd[:1], err)
		}
	}
	return s, nil
}

// EncodeSLCAN renders f as an SLCAN transmit command including the trailing CR.
func EncodeSLCAN(f Frame) []byte {
	var b bytes.Buffer
	if f.Extended {
		fmt.Fprintf(&b, "T%08X", f.ID&ExtendedMask)
	} else {
		fmt.Fprintf(&b, "t%03X", f.ID&StandardMask)
	}
	payload := f.Payload()
	b.WriteByte('0' + byte(len(payload)))
	fmt.Fprintf(&b, "%X", payload)
	b.WriteByte('\r')
	return b.Bytes()
}

// DecodeSLCAN parses one received line without its CR.
func DecodeSLCAN(line []byte) (Frame, error) {
	if len(line) == 0 {
		return Frame{}, ErrBadSLCAN
	}
	var f Frame
	idLen := 3
	switch line[0] {
	case 't':
	case 'T':
		f.Extended = true
		idLen = 8
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrBadSLCAN, line)
	}
	if len(line) < 1+idLen+1 {
		return Frame{}, fmt.Errorf("%w: %q", ErrBadSLCAN, line)
	}

	id, err := strconv.ParseUint(string(line[1:1+idLen]), 16, 32)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: id: %v", ErrBadSLCAN, err)
	}
	f.ID = uint32(id)

	dlc := line[1+idLen]
	if dlc < '0' || dlc > '8' {
		return Frame{}, fmt.Errorf("%w: dlc %q", ErrBadSLCAN, dlc)
	}
	f.Len = dlc - '0'

	data := line[2+idLen:]
	// Some adapters append a 4-digit timestamp.
	if len(data) != 2*int(f.Len) && len(data) != 2*int(f.Len)+4 {
		return Frame{}, fmt.Errorf("%w: %d data digits for dlc %d", ErrBadSLCAN, len(data), f.Len)
	}
	if _, err := hex.Decode(f.Data[:f.Len], data[:2*int(f.Len)]); err != nil {
		return Frame{}, fmt.Errorf("%w: data: %v", ErrBadSLCAN, err)
	}
	return f, nil
}

// Send writes one frame.
func (s *SLCAN) Send(f Frame) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.port.Write(EncodeSLCAN(f)); err != nil {
		return fmt.Errorf("slcan write: %w", err)
	}
	return nil
}

// Receive returns the next data frame that passes the filters. Adapter
// acknowledgements and malformed lines are skipped. Receive must not be
// called from more than one goroutine.
func (s *SLCAN) Receive(ctx context.Context) (Frame, error) {
	chunk := make([]byte, 64)
	for {
		for {
			i := bytes.IndexAny(s.buf, "\r\a")
			if i < 0 {
				break
			}
			line := s.buf[:i]
			s.buf = s.buf[i+1:]
			f, err := DecodeSLCAN(line)
			if err != nil || !matchAny(s.filters, f.ID) {
				continue
			}
			return f, nil
		}

		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		n, err := s.port.Read(chunk)
		if err != nil {
			return Frame{}, fmt.Errorf("slcan read: %w", err)
		}
		s.buf = append(s.buf, chunk[:n]...)
	}
}

// Close takes the channel off the bus and closes the port.
func (s *SLCAN) Close() error {
	s.wmu.Lock()
	_, werr := io.WriteString(s.port, "C\r")
	s.wmu.Unlock()
	if err := s.port.Close(); err != nil {
		return err
	}
	if werr != nil {
		return fmt.Errorf("slcan close: %w", werr)
	}
	return nil
}
