package main

import (
	"fmt"
	"io"

	"github.com/sweeney/iib-interlock/internal/adc"
	"github.com/sweeney/iib-interlock/internal/board"
	"github.com/sweeney/iib-interlock/internal/canbus"
	"github.com/sweeney/iib-interlock/internal/config"
	"github.com/sweeney/iib-interlock/internal/gpio"
	"github.com/sweeney/iib-interlock/internal/rtd"
	"github.com/sweeney/iib-interlock/internal/telemetry"
)

// devices is the hardware a board runs on, real or fake per config backend.
type devices struct {
	conv  adc.Converter
	rtd   rtd.Transport
	env   board.EnvSensor
	lines gpio.IO
	bus   canbus.Bus

	closers []io.Closer
}

func openDevices(cfg *config.Config) (_ *devices, err error) {
	d := &devices{}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	switch cfg.GPIO.Backend {
	case "fake":
		d.lines = gpio.NewFakeIO()
	default:
		pins, err := cfg.Pins()
		if err != nil {
			return nil, err
		}
		rio, err := gpio.NewRealIO(pins)
		if err != nil {
			return nil, fmt.Errorf("init gpio: %w", err)
		}
		d.lines = rio
	}
	d.closers = append(d.closers, d.lines)

	switch cfg.ADC.Backend {
	case "fake":
		d.conv = adc.NewFakeConverter(adc.Uniform(cfg.ADC.FakeRaw))
	default:
		conv, err := adc.NewIIOConverter(cfg.ADC.Device, cfg.ADC.Channels)
		if err != nil {
			return nil, fmt.Errorf("init adc: %w", err)
		}
		d.conv = conv
	}

	switch cfg.RTD.Backend {
	case "fake":
		tr := rtd.NewFakeTransport()
		for ch := 0; ch < rtd.NumChannels; ch++ {
			tr.SetTemperature(ch, cfg.RTD.FakeTemperature)
		}
		d.rtd = tr
	default:
		tr, err := rtd.OpenSPI(cfg.RTD.Device, gpio.Mux{IO: d.lines})
		if err != nil {
			return nil, fmt.Errorf("init rtd: %w", err)
		}
		d.rtd = tr
		d.closers = append(d.closers, tr)
	}

	switch cfg.Env.Backend {
	case "fixed":
		d.env = &board.FixedEnv{Env: board.Env{
			Temperature: cfg.Env.Temperature,
			Humidity:    cfg.Env.Humidity,
			Valid:       true,
		}}
	default:
		h, err := board.OpenHTU21D(cfg.Env.Bus)
		if err != nil {
			return nil, fmt.Errorf("init env sensor: %w", err)
		}
		d.env = h
		d.closers = append(d.closers, h)
	}

	filters := telemetry.Filters()
	switch cfg.CAN.Backend {
	case "fake":
		d.bus = canbus.NewFakeBus()
	case "slcan":
		bus, err := canbus.OpenSLCAN(cfg.CAN.Device, cfg.CAN.Baud, cfg.CAN.Bitrate, filters...)
		if err != nil {
			return nil, fmt.Errorf("init can: %w", err)
		}
		d.bus = bus
	default:
		bus, err := canbus.OpenSocketCAN(cfg.CAN.Interface, filters...)
		if err != nil {
			return nil, fmt.Errorf("init can: %w", err)
		}
		d.bus = bus
	}
	d.closers = append(d.closers, d.bus)

	return d, nil
}

// Close releases every opened device, newest first.
func (d *devices) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
