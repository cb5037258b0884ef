package telemetry

import (
	"fmt"

	"github.com/sweeney/iib-interlock/internal/canbus"
	"github.com/sweeney/iib-interlock/internal/profile"
)

// Transmitter frames signal slots, interlock broadcasts and heartbeats for
// one board.
type Transmitter struct {
	bus   canbus.Bus
	board uint8
}

// NewTransmitter returns a transmitter for board on bus.
func NewTransmitter(bus canbus.Bus, board uint8) *Transmitter {
	return &Transmitter{bus: bus, board: board}
}

// Board returns the board id.
func (t *Transmitter) Board() uint8 {
	return t.board
}

// SendSignal sends one signal-table slot as a data frame.
func (t *Transmitter) SendSignal(index uint16, s profile.Signal) error {
	payload, err := Encode(&Layer{Board: t.board, Index: index, Value: uint32(s)})
	if err != nil {
		return fmt.Errorf("encode signal %d: %w", index, err)
	}
	return t.send(DataSendID, payload)
}

// SendInterlock broadcasts the board interlock state as a full 8-byte frame
// with the flag in byte 0.
func (t *Transmitter) SendInterlock(active bool) error {
	var payload [8]byte
	if active {
		payload[0] = 1
	}
	return t.send(ItlkBaseID+uint32(t.board), payload[:])
}

// SendHeartbeat announces the board.
func (t *Transmitter) SendHeartbeat() error {
	return t.send(HeartbeatID, []byte{t.board})
}

func (t *Transmitter) send(id uint32, payload []byte) error {
	f, err := canbus.NewFrame(id, payload)
	if err != nil {
		return err
	}
	if err := t.bus.Send(f); err != nil {
		return fmt.Errorf("send 0x%03X: %w", id, err)
	}
	return nil
}
