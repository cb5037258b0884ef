// Package board evaluates the sensors every IIB carries regardless of the
// power-module variant: relative humidity, board temperature, gate-driver
// supply voltage and the two gate-driver supply currents.
package board

import (
	"github.com/sweeney/iib-interlock/internal/adc"
	"github.com/sweeney/iib-interlock/internal/logic"
)

// Env is one reading of the on-board environment sensor.
type Env struct {
	Temperature float32 // °C
	Humidity    float32 // %RH
	Valid       bool
}

// EnvSensor reads the on-board temperature/humidity sensor.
type EnvSensor interface {
	Read() (Env, error)
}

// Limits configures the humidity and board temperature channels.
type Limits struct {
	HumidityAlarm    float32
	HumidityTrip     float32
	TemperatureAlarm float32
	TemperatureTrip  float32
	Delay            uint8
}

// DefaultLimits returns the limits used when a variant does not override them.
func DefaultLimits() Limits {
	return Limits{
		HumidityAlarm:    80,
		HumidityTrip:     90,
		TemperatureAlarm: 80,
		TemperatureTrip:  90,
	}
}

// Gate-driver supply monitoring constants.
const (
	driverVoltageGain  = 18.0 / 4096
	driverVoltageMax   = 18.0
	driverVoltageAlarm = 16.0
	driverVoltageTrip  = 17.0

	driverCurrentGain  = 7.5 / 2048
	driverCurrentMax   = 2.55
	driverCurrentAlarm = 2.0
	driverCurrentTrip  = 2.0

	envMax = 255.0
)

// Sensors holds the board-level channels. The driver channels live in the
// ADC table; humidity and temperature are owned here.
type Sensors struct {
	Humidity    logic.Channel
	Temperature logic.Channel

	adc *logic.Table
}

// New configures the driver channels of tbl and the environment channels.
func New(tbl *logic.Table, lim Limits) *Sensors {
	s := &Sensors{adc: tbl}
	s.Humidity.Name = "humidity"
	s.Temperature.Name = "board_temperature"
	s.SetLimits(lim)

	tbl.Get(adc.DriverVoltage).Configure(logic.Config{
		Gain:       driverVoltageGain,
		Policy:     logic.OneSided,
		Max:        driverVoltageMax,
		AlarmLimit: driverVoltageAlarm,
		TripLimit:  driverVoltageTrip,
	})
	for _, id := range []logic.ID{adc.Driver1Current, adc.Driver2Current} {
		tbl.Get(id).Configure(logic.Config{
			Gain:       driverCurrentGain,
			Offset:     adc.DefaultOffset,
			Policy:     logic.OneSided,
			Max:        driverCurrentMax,
			AlarmLimit: driverCurrentAlarm,
			TripLimit:  driverCurrentTrip,
		})
	}
	return s
}

// SetLimits reconfigures the humidity and temperature channels.
func (s *Sensors) SetLimits(lim Limits) {
	s.Humidity.Configure(logic.Config{
		Gain:       1,
		Policy:     logic.OneSided,
		Max:        envMax,
		AlarmLimit: lim.HumidityAlarm,
		TripLimit:  lim.HumidityTrip,
		AlarmDelay: lim.Delay,
		TripDelay:  lim.Delay,
	})
	s.Temperature.Configure(logic.Config{
		Gain:       1,
		Policy:     logic.OneSided,
		Max:        envMax,
		AlarmLimit: lim.TemperatureAlarm,
		TripLimit:  lim.TemperatureTrip,
		AlarmDelay: lim.Delay,
		TripDelay:  lim.Delay,
	})
}

// Update evaluates the driver channels from frame and, when valid, the
// environment channels from env.
func (s *Sensors) Update(frame adc.Frame, env Env) {
	for _, id := range s.driverIDs() {
		s.adc.Get(id).Sample(frame[id])
	}
	if env.Valid {
		s.Humidity.Evaluate(env.Humidity)
		s.Temperature.Evaluate(env.Temperature)
	}
}

func (s *Sensors) driverIDs() []logic.ID {
	return []logic.ID{adc.DriverVoltage, adc.Driver1Current, adc.Driver2Current}
}

// Trip reports humidity, board temperature and driver supply trips.
func (s *Sensors) Trip() bool {
	trip := s.Humidity.Trip() || s.Temperature.Trip()
	for _, id := range s.driverIDs() {
		trip = trip || s.adc.Get(id).Trip()
	}
	return trip
}

// Alarm reports humidity, board temperature and driver supply alarms.
func (s *Sensors) Alarm() bool {
	alarm := s.Humidity.Alarm() || s.Temperature.Alarm()
	for _, id := range s.driverIDs() {
		alarm = alarm || s.adc.Get(id).Alarm()
	}
	return alarm
}

// Clear clears every board channel.
func (s *Sensors) Clear() {
	s.Humidity.Clear()
	s.Temperature.Clear()
	for _, id := range s.driverIDs() {
		s.adc.Get(id).Clear()
	}
}

// FixedEnv is an EnvSensor returning a constant reading. Used on boards
// without the sensor fitted and in tests.
type FixedEnv struct {
	Env Env
	Err error
}

func (f *FixedEnv) Read() (Env, error) {
	return f.Env, f.Err
}
