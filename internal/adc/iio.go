package adc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IIOConverter reads raw codes from a Linux industrial-I/O device through sysfs.
// Every read of in_voltageN_raw is a completed conversion, so Ready is always true.
type IIOConverter struct {
	dir     string
	mapping [NumChannels]int // iio channel index per physical channel, -1 = unmapped
}

// NewIIOConverter creates a converter for the device directory dir
// (e.g. /sys/bus/iio/devices/iio:device0). mapping maps physical channel
// names to iio channel indexes; unmapped channels read as DefaultOffset.
func NewIIOConverter(dir string, mapping map[string]int) (*IIOConverter, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("iio device: %w", err)
	}
	c := &IIOConverter{dir: dir}
	for i := range c.mapping {
		c.mapping[i] = -1
	}
	for name, idx := range mapping {
		id, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("iio mapping: unknown channel %q", name)
		}
		c.mapping[id] = idx
	}
	return c, nil
}

// Start is a no-op; sysfs reads trigger their own conversion.
func (c *IIOConverter) Start() error { return nil }

// Ready always reports true.
func (c *IIOConverter) Ready() (bool, error) { return true, nil }

// Fetch reads every mapped channel.
func (c *IIOConverter) Fetch() (Frame, error) {
	var f Frame
	for id, idx := range c.mapping {
		if idx < 0 {
			f[id] = DefaultOffset
			continue
		}
		path := filepath.Join(c.dir, fmt.Sprintf("in_voltage%d_raw", idx))
		data, err := os.ReadFile(path)
		if err != nil {
			return Frame{}, fmt.Errorf("read %s: %w", names[id], err)
		}
		v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 16)
		if err != nil {
			return Frame{}, fmt.Errorf("parse %s: %w", names[id], err)
		}
		f[id] = uint16(v)
	}
	return f, nil
}
