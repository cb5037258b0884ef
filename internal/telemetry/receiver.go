package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/sweeney/iib-interlock/internal/canbus"
	"github.com/sweeney/iib-interlock/internal/log"
	"github.com/sweeney/iib-interlock/internal/profile"
)

// Controller is the aggregator surface the receive path acts on.
type Controller interface {
	ClearAlarm()
	RequestClear()
	Signal(index uint16) (profile.Signal, bool)
	ApplyParam(p profile.Param) error
}

// Filters returns the acceptance filters for the frames Receiver handles.
func Filters() []canbus.Filter {
	return []canbus.Filter{
		{ID: ResetID, Mask: canbus.StandardMask},
		{ID: DataRequestID, Mask: canbus.StandardMask},
		{ID: ParamsSetID, Mask: ParamsMask},
	}
}

// Receiver handles frames from the controller. Reset and data-request frames
// are answered inline; parameter updates go through the mailbox and are
// applied by Poll on the mainline.
type Receiver struct {
	bus  canbus.Bus
	tx   *Transmitter
	ctl  Controller
	mbox Mailbox
}

// NewReceiver returns a receiver replying through tx.
func NewReceiver(bus canbus.Bus, tx *Transmitter, ctl Controller) *Receiver {
	return &Receiver{bus: bus, tx: tx, ctl: ctl}
}

// Mailbox exposes the parameter hand-off slot.
func (r *Receiver) Mailbox() *Mailbox {
	return &r.mbox
}

// Run receives until ctx is cancelled or the bus is closed.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		f, err := r.bus.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, canbus.ErrClosed) {
				return nil
			}
			log.Warning("can receive: %v", err)
			continue
		}
		if err := r.Handle(f); err != nil {
			log.Warning("can frame %s: %v", f, err)
		}
	}
}

// Handle processes one received frame.
func (r *Receiver) Handle(f canbus.Frame) error {
	switch {
	case f.ID == ResetID:
		if !r.forUs(f) {
			return nil
		}
		log.Info("reset requested over CAN")
		r.ctl.ClearAlarm()
		r.ctl.RequestClear()
		return nil

	case f.ID == DataRequestID:
		l, err := Decode(f.Payload())
		if err != nil || l.Board != r.tx.Board() {
			return err
		}
		sig, ok := r.ctl.Signal(l.Index)
		if !ok {
			return fmt.Errorf("request for unknown signal %d", l.Index)
		}
		return r.tx.SendSignal(l.Index, sig)

	case f.ID&ParamsMask == ParamsSetID:
		l, err := Decode(f.Payload())
		if err != nil || l.Board != r.tx.Board() {
			return err
		}
		p := profile.Param{
			Target:  profile.Target(l.Aux),
			Channel: uint8(l.Index),
			Field:   profile.Field(l.Index >> 8),
			Value:   math32.Float32frombits(l.Value),
		}
		r.mbox.Post(p)
		log.Debug("param queued: %s", p)
		return nil
	}
	return nil
}

func (r *Receiver) forUs(f canbus.Frame) bool {
	return f.Len > 0 && f.Data[0] == r.tx.Board()
}

// Poll applies a pending parameter update. It returns the update when one
// was applied so the caller can persist it.
func (r *Receiver) Poll() (profile.Param, bool, error) {
	p, ok := r.mbox.Take()
	if !ok {
		return profile.Param{}, false, nil
	}
	if err := r.ctl.ApplyParam(p); err != nil {
		return p, false, err
	}
	log.Info("param applied: %s", p)
	return p, true, nil
}

// EncodeParam builds the payload of a parameter-set frame for board.
func EncodeParam(board uint8, p profile.Param) ([]byte, error) {
	return Encode(&Layer{
		Board: board,
		Aux:   uint8(p.Target),
		Index: uint16(p.Channel) | uint16(p.Field)<<8,
		Value: math32.Float32bits(p.Value),
	})
}
