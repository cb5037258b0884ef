package canbus

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestNewFrame(t *testing.T) {
	f, err := NewFrame(0x010, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if f.Extended {
		t.Error("0x010 should be a standard frame")
	}
	if f.Len != 3 || !bytes.Equal(f.Payload(), []byte{1, 2, 3}) {
		t.Errorf("payload: len %d data % X", f.Len, f.Payload())
	}

	f, err = NewFrame(0x1ABCDE, nil)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if !f.Extended {
		t.Error("0x1ABCDE should be an extended frame")
	}

	if _, err := NewFrame(0x10, make([]byte, 9)); !errors.Is(err, ErrFrameTooLong) {
		t.Errorf("9 bytes: got %v, want ErrFrameTooLong", err)
	}
	if _, err := NewFrame(0x20000000, nil); !errors.Is(err, ErrBadID) {
		t.Errorf("30-bit id: got %v, want ErrBadID", err)
	}
}

func TestFilterMatch(t *testing.T) {
	f := Filter{ID: 0x020, Mask: 0xFFFFF}
	tests := []struct {
		id   uint32
		want bool
	}{
		{0x020, true},
		{0x021, false},
		{0x1020, false},
		// Bits above the 20-bit mask are ignored.
		{0x100020, true},
	}
	for _, tt := range tests {
		if got := f.Match(tt.id); got != tt.want {
			t.Errorf("Match(0x%X): got %v, want %v", tt.id, got, tt.want)
		}
	}
	if !matchAny(nil, 0x7FF) {
		t.Error("no filters should accept everything")
	}
	if !matchAny([]Filter{{ID: 1, Mask: 0x7FF}, f}, 0x020) {
		t.Error("second filter should match 0x020")
	}
}

func TestSLCANEncode(t *testing.T) {
	tests := []struct {
		name string
		f    Frame
		want string
	}{
		{"standard", Frame{ID: 0x010, Len: 2, Data: [8]byte{0xAB, 0x01}}, "t0102AB01\r"},
		{"empty", Frame{ID: 0x7FF}, "t7FF0\r"},
		{"extended", Frame{ID: 0x12345, Extended: true, Len: 1, Data: [8]byte{0xFF}}, "T000123451FF\r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(EncodeSLCAN(tt.f)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSLCANDecode(t *testing.T) {
	f, err := DecodeSLCAN([]byte("t0408030000000000A0C8"))
	if err != nil {
		t.Fatalf("DecodeSLCAN: %v", err)
	}
	if f.ID != 0x040 || f.Len != 8 {
		t.Errorf("header: id 0x%X len %d", f.ID, f.Len)
	}
	if want := [8]byte{0x03, 0, 0, 0, 0, 0, 0xA0, 0xC8}; f.Data != want {
		t.Errorf("data: got % X, want % X", f.Data, want)
	}

	// Trailing timestamp
	f, err = DecodeSLCAN([]byte("t030103ABCD"))
	if err != nil {
		t.Fatalf("DecodeSLCAN: %v", err)
	}
	if !bytes.Equal(f.Payload(), []byte{0x03}) {
		t.Errorf("payload: got % X", f.Payload())
	}

	for _, bad := range []string{"", "z", "t01", "t0109", "t010201", "t01020G00", "tXYZ0"} {
		if _, err := DecodeSLCAN([]byte(bad)); !errors.Is(err, ErrBadSLCAN) {
			t.Errorf("line %q: got %v, want ErrBadSLCAN", bad, err)
		}
	}
}

func TestSLCANRoundTrip(t *testing.T) {
	f := Frame{ID: 0x1F, Len: 8, Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	line := EncodeSLCAN(f)
	got, err := DecodeSLCAN(line[:len(line)-1])
	if err != nil {
		t.Fatalf("DecodeSLCAN: %v", err)
	}
	if got != f {
		t.Errorf("got %v, want %v", got, f)
	}
}

// scriptPort is an in-memory serial port.
type scriptPort struct {
	rx      *bytes.Buffer
	tx      bytes.Buffer
	closed  bool
	timeout time.Duration
}

func (p *scriptPort) Read(b []byte) (int, error) {
	if p.rx.Len() == 0 {
		if p.closed {
			return 0, io.EOF
		}
		return 0, nil // read timeout
	}
	return p.rx.Read(b)
}

func (p *scriptPort) Write(b []byte) (int, error) {
	return p.tx.Write(b)
}

func (p *scriptPort) Close() error {
	p.closed = true
	return nil
}

func (p *scriptPort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func TestSLCANSession(t *testing.T) {
	port := &scriptPort{rx: bytes.NewBufferString("\rz\rt0301AA\r\at0201BB\r")}
	s, err := NewSLCAN(port, 500000, Filter{ID: 0x020, Mask: 0x7FF})
	if err != nil {
		t.Fatalf("NewSLCAN: %v", err)
	}
	if got := port.tx.String(); got != "C\rS6\rO\r" {
		t.Errorf("open sequence: got %q", got)
	}
	if port.timeout != 100*time.Millisecond {
		t.Errorf("read timeout: got %v", port.timeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// 0x030 is filtered out; 0x020 passes
	f, err := s.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if f.ID != 0x020 || !bytes.Equal(f.Payload(), []byte{0xBB}) {
		t.Errorf("received %v", f)
	}

	port.tx.Reset()
	if err := s.Send(Frame{ID: 0x001, Len: 1, Data: [8]byte{3}}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := port.tx.String(); got != "t001103\r" {
		t.Errorf("sent: got %q", got)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !port.closed {
		t.Error("port should be closed")
	}
}

func TestSLCANReceiveCancelled(t *testing.T) {
	port := &scriptPort{rx: &bytes.Buffer{}}
	s, err := NewSLCAN(port, 125000)
	if err != nil {
		t.Fatalf("NewSLCAN: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Receive(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestSLCANBadBitrate(t *testing.T) {
	if _, err := NewSLCAN(&scriptPort{rx: &bytes.Buffer{}}, 42); err == nil {
		t.Error("expected error for 42 bit/s")
	}
}

func TestFakeBus(t *testing.T) {
	b := NewFakeBus()
	for _, id := range []uint32{1, 2} {
		if err := b.Send(Frame{ID: id}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if len(b.Sent()) != 2 || len(b.SentTo(2)) != 1 {
		t.Errorf("sent: %v", b.Sent())
	}

	b.Inject(Frame{ID: 7})
	f, err := b.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if f.ID != 7 {
		t.Errorf("received id %d, want 7", f.ID)
	}

	b.SendError = errors.New("bus off")
	if err := b.Send(Frame{}); err == nil {
		t.Error("expected send error")
	}

	b.Close()
	if _, err := b.Receive(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}
