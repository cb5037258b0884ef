package board

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// HTU21D/Si7021 command set, hold-master mode.
const (
	htuAddress     = 0x40
	htuMeasureTemp = 0xE3
	htuMeasureRH   = 0xE5
)

// HTU21D reads an HTU21D-compatible temperature/humidity sensor over I2C.
type HTU21D struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

var _ EnvSensor = (*HTU21D)(nil)

// OpenHTU21D opens the I2C bus by name ("" selects the first bus).
func OpenHTU21D(busName string) (*HTU21D, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c %q: %w", busName, err)
	}
	return &HTU21D{bus: bus, dev: &i2c.Dev{Bus: bus, Addr: htuAddress}}, nil
}

// Read performs one temperature and one humidity measurement.
func (h *HTU21D) Read() (Env, error) {
	rawT, err := h.measure(htuMeasureTemp)
	if err != nil {
		return Env{}, fmt.Errorf("measure temperature: %w", err)
	}
	rawH, err := h.measure(htuMeasureRH)
	if err != nil {
		return Env{}, fmt.Errorf("measure humidity: %w", err)
	}
	return Env{
		Temperature: ConvertTemperature(rawT),
		Humidity:    ConvertHumidity(rawH),
		Valid:       true,
	}, nil
}

func (h *HTU21D) measure(cmd byte) (uint16, error) {
	r := make([]byte, 3) // msb, lsb, crc
	if err := h.dev.Tx([]byte{cmd}, r); err != nil {
		return 0, err
	}
	if crc8(r[:2]) != r[2] {
		return 0, fmt.Errorf("crc mismatch")
	}
	return uint16(r[0])<<8 | uint16(r[1]), nil
}

// Close releases the I2C bus.
func (h *HTU21D) Close() error {
	return h.bus.Close()
}

// ConvertTemperature converts a raw temperature word to °C.
func ConvertTemperature(raw uint16) float32 {
	return -46.85 + 175.72*float32(raw&0xFFFC)/65536
}

// ConvertHumidity converts a raw humidity word to %RH.
func ConvertHumidity(raw uint16) float32 {
	return -6 + 125*float32(raw&0xFFFC)/65536
}

// crc8 is the sensor's CRC, polynomial x^8 + x^5 + x^4 + 1.
func crc8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
