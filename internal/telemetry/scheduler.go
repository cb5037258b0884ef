package telemetry

import (
	"errors"
	"fmt"

	"github.com/sweeney/iib-interlock/internal/profile"
)

// Phases in one schedule cycle.
const Phases = 10

// Source is what the scheduler reports on. *interlock.Aggregator satisfies it.
type Source interface {
	Signal(index uint16) (profile.Signal, bool)
	SendData(tx profile.Sender) error
	Interlocked() bool
}

// Scheduler is the round-robin telemetry cycle. Phases 0..6 send the
// variant's fast signals; phases 7 and 8 send the data table and the cause
// signals once per ten cycles; phase 9 broadcasts the interlock and, once per
// ten cycles, the heartbeat.
type Scheduler struct {
	tx   *Transmitter
	src  Source
	fast [7][]uint16

	phase int
	sec   int
}

// NewScheduler builds a scheduler for the fast lists of a variant.
func NewScheduler(tx *Transmitter, src Source, fast [7][]uint16) *Scheduler {
	return &Scheduler{tx: tx, src: src, fast: fast}
}

// Phase returns the phase the next Tick will run.
func (s *Scheduler) Phase() int {
	return s.phase
}

// Second returns the sub-cycle counter.
func (s *Scheduler) Second() int {
	return s.sec
}

// Tick runs one phase and advances. Send errors are returned joined; the
// schedule advances regardless.
func (s *Scheduler) Tick() error {
	if s.sec >= 10 {
		s.sec = 0
	}

	var errs []error
	switch p := s.phase; {
	case p < len(s.fast):
		for _, idx := range s.fast[p] {
			errs = append(errs, s.sendSlot(idx))
		}
		s.phase++

	case p == 7:
		if s.sec == 7 {
			errs = append(errs, s.src.SendData(s.tx))
		}
		s.phase++

	case p == 8:
		if s.sec == 8 {
			errs = append(errs, s.sendSlot(profile.SignalInterlocks))
			errs = append(errs, s.sendSlot(profile.SignalAlarms))
		}
		s.phase++

	default:
		if s.src.Interlocked() {
			errs = append(errs, s.tx.SendInterlock(true))
		}
		if s.sec == 9 {
			errs = append(errs, s.tx.SendHeartbeat())
		}
		s.sec++
		s.phase = 0
	}
	return errors.Join(errs...)
}

func (s *Scheduler) sendSlot(idx uint16) error {
	sig, ok := s.src.Signal(idx)
	if !ok {
		return nil
	}
	if err := s.tx.SendSignal(idx, sig); err != nil {
		return fmt.Errorf("signal %d: %w", idx, err)
	}
	return nil
}
