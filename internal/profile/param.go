package profile

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/sweeney/iib-interlock/internal/logic"
)

// Target selects the channel family a parameter update addresses.
type Target uint8

const (
	TargetADC Target = iota
	TargetRTD
	TargetBoard
)

func (t Target) String() string {
	switch t {
	case TargetADC:
		return "adc"
	case TargetRTD:
		return "rtd"
	case TargetBoard:
		return "board"
	}
	return fmt.Sprintf("target(%d)", uint8(t))
}

// Field selects the channel setting a parameter update changes.
type Field uint8

const (
	FieldAlarmLimit Field = iota
	FieldTripLimit
	FieldAlarmDelay
	FieldTripDelay
	FieldGain
)

func (f Field) String() string {
	switch f {
	case FieldAlarmLimit:
		return "alarm_limit"
	case FieldTripLimit:
		return "trip_limit"
	case FieldAlarmDelay:
		return "alarm_delay"
	case FieldTripDelay:
		return "trip_delay"
	case FieldGain:
		return "gain"
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// Board channel numbers for TargetBoard.
const (
	BoardHumidity    = 0
	BoardTemperature = 1
)

// Param is one remote parameter update.
type Param struct {
	Target  Target
	Channel uint8
	Field   Field
	Value   float32
}

func (p Param) String() string {
	return fmt.Sprintf("%s%d.%s=%g", p.Target, p.Channel, p.Field, p.Value)
}

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrBadValue       = errors.New("bad parameter value")
)

// Apply writes p into the addressed channel. Latches and counters are not
// touched.
func (hw Hardware) Apply(p Param) error {
	if math32.IsNaN(p.Value) || math32.IsInf(p.Value, 0) {
		return fmt.Errorf("%s: %w", p, ErrBadValue)
	}
	c, err := hw.channel(p.Target, p.Channel)
	if err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}

	switch p.Field {
	case FieldAlarmLimit:
		c.AlarmLimit = p.Value
	case FieldTripLimit:
		c.TripLimit = p.Value
	case FieldAlarmDelay, FieldTripDelay:
		if p.Value < 0 || p.Value > 255 {
			return fmt.Errorf("%s: %w", p, ErrBadValue)
		}
		if p.Field == FieldAlarmDelay {
			c.AlarmDelay = uint8(p.Value)
		} else {
			c.TripDelay = uint8(p.Value)
		}
	case FieldGain:
		if p.Target != TargetADC {
			return fmt.Errorf("%s: gain is fixed on %s channels: %w", p, p.Target, ErrBadValue)
		}
		c.Gain = p.Value
	default:
		return fmt.Errorf("%s: unknown field: %w", p, ErrBadValue)
	}
	return nil
}

func (hw Hardware) channel(t Target, ch uint8) (*logic.Channel, error) {
	switch t {
	case TargetADC:
		if c := hw.ADC.Get(logic.ID(ch)); c != nil {
			return c, nil
		}
	case TargetRTD:
		if c := hw.RTD.Channel(int(ch)); c != nil {
			return &c.Channel, nil
		}
	case TargetBoard:
		switch ch {
		case BoardHumidity:
			return &hw.Board.Humidity, nil
		case BoardTemperature:
			return &hw.Board.Temperature, nil
		}
	}
	return nil, ErrUnknownChannel
}
