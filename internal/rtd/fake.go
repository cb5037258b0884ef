package rtd

import "errors"

// FakeTransport emulates four converters behind the mux.
type FakeTransport struct {
	// Regs holds the register file of each channel, indexed by read address.
	Regs [NumChannels][8]byte

	// Dead marks channels whose converter never echoes its configuration.
	Dead [NumChannels]bool

	// ReadError, if set, is returned by every ReadRegister.
	ReadError error

	// Writes records (channel, addr, value) triples in order.
	Writes []FakeWrite

	// Selected is the channel last routed by Select.
	Selected int
}

// FakeWrite is one recorded register write.
type FakeWrite struct {
	Ch    int
	Addr  byte
	Value byte
}

// NewFakeTransport creates a transport where all channels answer.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{Selected: -1}
}

// SetTemperature loads the RTD registers of ch with temp.
func (f *FakeTransport) SetTemperature(ch int, temp float64) {
	raw := RawFor(temp)
	f.Regs[ch][regRTDMSB] = raw.MSB
	f.Regs[ch][regRTDLSB] = raw.LSB
}

func (f *FakeTransport) ReadRegister(addr byte) (byte, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if f.Selected < 0 {
		return 0, errors.New("no channel selected")
	}
	if addr == regConfig && f.Dead[f.Selected] {
		return 0x00, nil
	}
	return f.Regs[f.Selected][addr&0x07], nil
}

func (f *FakeTransport) WriteRegister(addr, value byte) error {
	if f.Selected < 0 {
		return errors.New("no channel selected")
	}
	f.Writes = append(f.Writes, FakeWrite{Ch: f.Selected, Addr: addr, Value: value})
	if addr == regWriteConfig {
		f.Regs[f.Selected][regConfig] = value
	}
	return nil
}

func (f *FakeTransport) Select(ch int) error {
	if ch < 0 || ch >= NumChannels {
		return errors.New("bad channel")
	}
	f.Selected = ch
	return nil
}
