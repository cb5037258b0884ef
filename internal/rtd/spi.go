package rtd

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Mux drives the two channel-select lines in front of the converter chip select.
type Mux interface {
	SetMux(a0, a1 bool) error
}

// SPITransport talks to the converter over a Linux spidev port.
type SPITransport struct {
	port spi.PortCloser
	conn spi.Conn
	mux  Mux
}

var _ Transport = (*SPITransport)(nil)

// OpenSPI opens the spidev port dev ("" selects the first one) at 1 MHz, mode 1.
func OpenSPI(dev string, mux Mux) (*SPITransport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	port, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", dev, err)
	}
	conn, err := port.Connect(physic.MegaHertz, spi.Mode1, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect spi %q: %w", dev, err)
	}
	return &SPITransport{port: port, conn: conn, mux: mux}, nil
}

// ReadRegister clocks out addr and returns the byte shifted in after it.
func (t *SPITransport) ReadRegister(addr byte) (byte, error) {
	w := []byte{addr, 0x00}
	r := make([]byte, len(w))
	if err := t.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("spi read 0x%02x: %w", addr, err)
	}
	return r[1], nil
}

// WriteRegister clocks out addr followed by value.
func (t *SPITransport) WriteRegister(addr, value byte) error {
	w := []byte{addr, value}
	r := make([]byte, len(w))
	if err := t.conn.Tx(w, r); err != nil {
		return fmt.Errorf("spi write 0x%02x: %w", addr, err)
	}
	return nil
}

// Select drives the mux lines for ch.
func (t *SPITransport) Select(ch int) error {
	if ch < 0 || ch >= NumChannels {
		return fmt.Errorf("rtd: no channel %d", ch)
	}
	return t.mux.SetMux(MuxLevels(ch))
}

// Close releases the spidev port.
func (t *SPITransport) Close() error {
	return t.port.Close()
}
