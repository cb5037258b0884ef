package rtd

import (
	"errors"
	"fmt"

	"github.com/sweeney/iib-interlock/internal/log"
)

// Channel indexes of the four multiplexed inputs.
const (
	Ch1 = iota
	Ch2
	Ch3
	Ch4

	NumChannels
)

// Register addresses. Writes use the address with bit 7 set.
const (
	regConfig       byte = 0x00
	regRTDMSB       byte = 0x01
	regRTDLSB       byte = 0x02
	regFaultStatus  byte = 0x07
	regWriteConfig  byte = 0x80
	regWriteHighMSB byte = 0x83
	regWriteHighLSB byte = 0x84
	regWriteLowMSB  byte = 0x85
	regWriteLowLSB  byte = 0x86

	configFaultClear byte = 0x82 // bias on, fault status clear
	configRun        byte = 0xD0 // bias on, auto conversion, 3-wire
)

// ErrCommFault is returned when the converter does not echo its configuration.
var ErrCommFault = errors.New("rtd: converter not responding")

// Transport gives register access to the converter selected by the mux.
type Transport interface {
	ReadRegister(addr byte) (byte, error)
	WriteRegister(addr, value byte) error
	// Select routes the bus to channel ch (Ch1..Ch4).
	Select(ch int) error
}

// MuxLevels returns the A0/A1 select line levels for channel ch.
func MuxLevels(ch int) (a0, a1 bool) {
	switch ch {
	case Ch1:
		return true, true
	case Ch2:
		return true, false
	case Ch3:
		return false, false
	case Ch4:
		return false, true
	}
	return false, false
}

// Bank is the four-channel RTD front end.
type Bank struct {
	tr       Transport
	Channels [NumChannels]Channel
}

// NewBank creates a bank with default limits on every channel. Channels
// stay disabled until a profile configures them.
func NewBank(tr Transport) *Bank {
	b := &Bank{tr: tr}
	for i := range b.Channels {
		b.Channels[i].Init(fmt.Sprintf("rtd%d", i+1))
	}
	return b
}

// Channel returns channel ch, or nil when out of range.
func (b *Bank) Channel(ch int) *Channel {
	if ch < 0 || ch >= NumChannels {
		return nil
	}
	return &b.Channels[ch]
}

// Probe checks that the converter on ch answers and programs its fault
// thresholds. A converter that does not echo its configuration is flagged
// with a sticky CommFault.
func (b *Bank) Probe(ch int) error {
	c := b.Channel(ch)
	if c == nil {
		return fmt.Errorf("rtd: no channel %d", ch)
	}

	err := b.probe(ch, c)
	if err != nil {
		c.CommFault = true
		return fmt.Errorf("probe rtd%d: %w", ch+1, err)
	}
	c.CommFault = false
	return nil
}

func (b *Bank) probe(ch int, c *Channel) error {
	if err := b.tr.Select(ch); err != nil {
		return err
	}
	if err := b.tr.WriteRegister(regWriteConfig, configFaultClear); err != nil {
		return err
	}
	if err := b.tr.WriteRegister(regWriteConfig, configRun); err != nil {
		return err
	}
	v, err := b.tr.ReadRegister(regConfig)
	if err != nil {
		return err
	}
	if v != configRun {
		return ErrCommFault
	}

	thresholds := []struct{ addr, value byte }{
		{regWriteHighMSB, 0xFF},
		{regWriteHighLSB, 0xFF},
		{regWriteLowMSB, 0x00},
		{regWriteLowLSB, 0x00},
	}
	for _, th := range thresholds {
		if err := b.tr.WriteRegister(th.addr, th.value); err != nil {
			return err
		}
	}

	status, err := b.tr.ReadRegister(regFaultStatus)
	if err != nil {
		return err
	}
	c.FaultCode = status
	return nil
}

// ProbeEnabled probes every enabled channel and returns the joined errors.
func (b *Bank) ProbeEnabled() error {
	var errs []error
	for ch := range b.Channels {
		if !b.Channels[ch].Enabled {
			continue
		}
		if err := b.Probe(ch); err != nil {
			log.Warning("rtd: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sample reads the registers of ch. Channels that are disabled or in
// CommFault return an invalid Raw without touching the bus.
func (b *Bank) Sample(ch int) (Raw, error) {
	c := b.Channel(ch)
	if c == nil || !c.Enabled || c.CommFault {
		return Raw{}, nil
	}
	if err := b.tr.Select(ch); err != nil {
		return Raw{}, fmt.Errorf("select rtd%d: %w", ch+1, err)
	}

	status, err := b.tr.ReadRegister(regFaultStatus)
	if err != nil {
		return Raw{}, fmt.Errorf("read rtd%d fault status: %w", ch+1, err)
	}
	raw := Raw{FaultStatus: status, Valid: true}
	if status != 0 {
		return raw, nil
	}

	if raw.MSB, err = b.tr.ReadRegister(regRTDMSB); err != nil {
		return Raw{}, fmt.Errorf("read rtd%d msb: %w", ch+1, err)
	}
	if raw.LSB, err = b.tr.ReadRegister(regRTDLSB); err != nil {
		return Raw{}, fmt.Errorf("read rtd%d lsb: %w", ch+1, err)
	}
	return raw, nil
}

// SampleAll reads every channel. Errors are logged and the failing channel
// reads invalid for this tick.
func (b *Bank) SampleAll() [NumChannels]Raw {
	var out [NumChannels]Raw
	for ch := range out {
		raw, err := b.Sample(ch)
		if err != nil {
			log.Warning("rtd: %v", err)
			continue
		}
		out[ch] = raw
	}
	return out
}

// ClearFault writes the fault-status clear bit of ch.
func (b *Bank) ClearFault(ch int) error {
	if err := b.tr.Select(ch); err != nil {
		return fmt.Errorf("select rtd%d: %w", ch+1, err)
	}
	if err := b.tr.WriteRegister(regWriteConfig, configFaultClear); err != nil {
		return fmt.Errorf("clear rtd%d: %w", ch+1, err)
	}
	return nil
}

// Reset clears the converter fault status of every enabled channel and
// re-probes channels in CommFault.
func (b *Bank) Reset() error {
	var errs []error
	for ch := range b.Channels {
		c := &b.Channels[ch]
		if !c.Enabled {
			continue
		}
		if c.CommFault {
			if err := b.Probe(ch); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := b.ClearFault(ch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Read feeds one raw reading per channel into the threshold logic.
func (b *Bank) Read(raws [NumChannels]Raw) {
	for ch := range b.Channels {
		if b.Channels[ch].Enabled {
			b.Channels[ch].Read(raws[ch])
		}
	}
}

// ClearAll clears latches and counters of every channel.
func (b *Bank) ClearAll() {
	for ch := range b.Channels {
		b.Channels[ch].Clear()
	}
}
