package profile

import (
	"github.com/sweeney/iib-interlock/internal/adc"
	"github.com/sweeney/iib-interlock/internal/board"
	"github.com/sweeney/iib-interlock/internal/gpio"
	"github.com/sweeney/iib-interlock/internal/rtd"
)

// Fast schedule shorthand: one signal per phase starting at slot 2.
func oneEach(n int) [7][]uint16 {
	var f [7][]uint16
	for i := 0; i < n && i < len(f); i++ {
		f[i] = []uint16{firstMeasurement + uint16(i)}
	}
	return f
}

var descriptors = [NumVariants]Descriptor{
	FAP:       fap(FAP, 200, 210, adc.CurrentGain(300, 0.150, 50)),
	FACOS:     facOS(),
	Rectifier: rectifier(),
	FACIS:     facIS(),
	FACCMD:    facCMD(),
	FAP300A:   fap(FAP300A, 300, 310, adc.CurrentGain(500, 0.100, 50)),
}

// fap covers FAP and FAP_300A, which differ in IGBT current range and limits.
func fap(v Variant, currentAlarm, currentTrip, currentGain float32) Descriptor {
	return Descriptor{
		Variant: v,
		ADC: []ADCBinding{
			{Channel: adc.Voltage1, Gain: adc.VoltageGain(450), Offset: adc.DefaultOffset, Alarm: 360, Trip: 400, Delay: 3},
			{Channel: adc.Voltage2, Gain: adc.VoltageGain(450), Offset: adc.DefaultOffset, Alarm: 360, Trip: 400, Delay: 3},
			{Channel: adc.Current1, Gain: currentGain, Offset: adc.DefaultOffset, Alarm: currentAlarm, Trip: currentTrip},
			{Channel: adc.Current2, Gain: currentGain, Offset: adc.DefaultOffset, Alarm: currentAlarm, Trip: currentTrip},
			{Channel: adc.LvCurrent1, Gain: adc.LvCurrentGain(50, 0.025, 120), Offset: adc.DefaultOffset, Alarm: 40, Trip: 45, Delay: 3},
		},
		RTD: []RTDBinding{
			{Channel: rtd.Ch1, Alarm: 50, Trip: 60, Delay: 4},
			{Channel: rtd.Ch2, Alarm: 50, Trip: 60, Delay: 4},
		},
		Board:        board.DefaultLimits(),
		DriverErrors: true,
		Causes: []Cause{
			{Name: "input_overvoltage", Source: ADC(adc.Voltage1), ItlkBit: 0x001, AlarmBit: 0x001, LED: 2},
			{Name: "output_overvoltage", Source: ADC(adc.Voltage2), ItlkBit: 0x002, AlarmBit: 0x002, LED: 3},
			{Name: "igbt1_overcurrent", Source: ADC(adc.Current1), ItlkBit: 0x004, AlarmBit: 0x004, LED: 4},
			{Name: "igbt2_overcurrent", Source: ADC(adc.Current2), ItlkBit: 0x008, AlarmBit: 0x008, LED: 4},
			{Name: "ground_leakage", Source: ADC(adc.LvCurrent1), ItlkBit: 0x010, AlarmBit: 0x010, LED: 5},
			{Name: "heatsink_overtemp", Source: RTD(rtd.Ch1), ItlkBit: 0x020, AlarmBit: 0x020, LED: 6},
			{Name: "inductor_overtemp", Source: RTD(rtd.Ch2), ItlkBit: 0x040, AlarmBit: 0x040, LED: 7},
			{Name: "driver1_error", Source: DriverError(1), ItlkBit: 0x080, LED: 8},
			{Name: "driver2_error", Source: DriverError(2), ItlkBit: 0x100, LED: 8},
		},
		Signals: []SignalDef{
			{Name: "v_in", Source: ADC(adc.Voltage1)},
			{Name: "v_out", Source: ADC(adc.Voltage2)},
			{Name: "i_igbt1", Source: ADC(adc.Current1)},
			{Name: "i_igbt2", Source: ADC(adc.Current2)},
			{Name: "i_leakage", Source: ADC(adc.LvCurrent1)},
			{Name: "temp_heatsink", Source: RTD(rtd.Ch1)},
			{Name: "temp_inductor", Source: RTD(rtd.Ch2)},
		},
		Fast: [7][]uint16{{2, 3}, {4, 5}, {6}, {7, 8}},
		Relay: RelayPolicy{
			InterlockRelayAtInit: false,
		},
		Polarity: FaultOn,
	}
}

func facOS() Descriptor {
	return Descriptor{
		Variant: FACOS,
		ADC: []ADCBinding{
			{Channel: adc.Current1, Gain: adc.CurrentGain(300, 0.150, 50), Offset: adc.DefaultOffset, Alarm: 430, Trip: 440},
			{Channel: adc.Current2, Gain: adc.CurrentGain(500, 0.100, 50), Offset: adc.DefaultOffset, Alarm: 555, Trip: 560},
			{Channel: adc.LvCurrent1, Gain: adc.LvCurrentGain(330, 0.025, 120), Offset: adc.DefaultOffset, Alarm: 280, Trip: 285, Delay: 3},
		},
		RTD: []RTDBinding{
			{Channel: rtd.Ch1, Alarm: 35, Trip: 40},
			{Channel: rtd.Ch2, Alarm: 55, Trip: 60},
		},
		Board:        board.DefaultLimits(),
		DriverErrors: true,
		Causes: []Cause{
			{Name: "input_overcurrent", Source: ADC(adc.Current1), ItlkBit: 0x001, AlarmBit: 0x001, LED: 3},
			{Name: "output_overcurrent", Source: ADC(adc.Current2), ItlkBit: 0x002, AlarmBit: 0x002, LED: 4},
			{Name: "input_overvoltage", Source: ADC(adc.LvCurrent1), ItlkBit: 0x004, AlarmBit: 0x004, LED: 2},
			// IGBT temperatures have no measurement channel on this board revision.
			{Name: "igbt1_overtemp", ItlkBit: 0x008, AlarmBit: 0x008},
			{Name: "igbt1_hwr_overtemp", ItlkBit: 0x010, AlarmBit: 0x010},
			{Name: "igbt2_overtemp", ItlkBit: 0x020, AlarmBit: 0x020},
			{Name: "igbt2_hwr_overtemp", ItlkBit: 0x040, AlarmBit: 0x040},
			{Name: "inductor_overtemp", Source: RTD(rtd.Ch2), ItlkBit: 0x080, AlarmBit: 0x080, LED: 7},
			{Name: "heatsink_overtemp", Source: RTD(rtd.Ch1), ItlkBit: 0x100, AlarmBit: 0x100, LED: 6},
			{Name: "driver1_error", Source: DriverError(1), ItlkBit: 0x200, LED: 5},
			{Name: "driver2_error", Source: DriverError(2), ItlkBit: 0x400, LED: 5},
		},
		Signals: []SignalDef{
			{Name: "i_in", Source: ADC(adc.Current1)},
			{Name: "i_out", Source: ADC(adc.Current2)},
			{Name: "v_dclink", Source: ADC(adc.LvCurrent1)},
			{Name: "temp_igbt1"},
			{Name: "temp_igbt2"},
			{Name: "temp_inductor", Source: RTD(rtd.Ch2)},
			{Name: "temp_heatsink", Source: RTD(rtd.Ch1)},
		},
		Fast: oneEach(7),
		Relay: RelayPolicy{
			InterlockRelayAtInit: true,
			Outputs:              []gpio.Output{gpio.GPDO1, gpio.GPDO2},
		},
		Polarity: FaultOff,
	}
}

func rectifier() Descriptor {
	return Descriptor{
		Variant: Rectifier,
		ADC: []ADCBinding{
			{Channel: adc.Voltage1, Gain: adc.VoltageGain(70), Offset: adc.DefaultOffset, Alarm: 55, Trip: 58, Delay: 3},
			{Channel: adc.Voltage2, Gain: adc.VoltageGain(70), Offset: adc.DefaultOffset, Alarm: 55, Trip: 58, Delay: 3},
			{Channel: adc.Current1, Gain: adc.CurrentGain(700, 0.100, 50), Offset: adc.DefaultOffset, Alarm: 600, Trip: 620},
			{Channel: adc.Current2, Gain: adc.CurrentGain(700, 0.100, 50), Offset: adc.DefaultOffset, Alarm: 600, Trip: 620},
			{Channel: adc.LvCurrent1, Gain: adc.LvCurrentGain(50, 0.025, 120), Offset: adc.DefaultOffset, Alarm: 40, Trip: 45, Delay: 3},
		},
		RTD: []RTDBinding{
			{Channel: rtd.Ch1, Alarm: 50, Trip: 60, Delay: 4},
			{Channel: rtd.Ch2, Alarm: 50, Trip: 60, Delay: 4},
			{Channel: rtd.Ch3, Alarm: 50, Trip: 60, Delay: 4},
		},
		Board:        board.DefaultLimits(),
		DriverErrors: false,
		Causes: []Cause{
			{Name: "rectifier1_overvoltage", Source: ADC(adc.Voltage1), ItlkBit: 0x001, AlarmBit: 0x001, LED: 2},
			{Name: "rectifier2_overvoltage", Source: ADC(adc.Voltage2), ItlkBit: 0x002, AlarmBit: 0x002, LED: 2},
			{Name: "rectifier1_overcurrent", Source: ADC(adc.Current1), ItlkBit: 0x004, AlarmBit: 0x004, LED: 3},
			{Name: "rectifier2_overcurrent", Source: ADC(adc.Current2), ItlkBit: 0x008, AlarmBit: 0x008, LED: 3},
			{Name: "ground_leakage", Source: ADC(adc.LvCurrent1), ItlkBit: 0x010, AlarmBit: 0x010, LED: 4},
			{Name: "heatsink1_overtemp", Source: RTD(rtd.Ch1), ItlkBit: 0x020, AlarmBit: 0x020, LED: 5},
			{Name: "heatsink2_overtemp", Source: RTD(rtd.Ch2), ItlkBit: 0x040, AlarmBit: 0x040, LED: 5},
			{Name: "inductor_overtemp", Source: RTD(rtd.Ch3), ItlkBit: 0x080, AlarmBit: 0x080, LED: 6},
			{Name: "external", Source: InputLine(gpio.GPDI5), ItlkBit: 0x100, LED: 7},
		},
		Signals: []SignalDef{
			{Name: "v_rect1", Source: ADC(adc.Voltage1)},
			{Name: "v_rect2", Source: ADC(adc.Voltage2)},
			{Name: "i_rect1", Source: ADC(adc.Current1)},
			{Name: "i_rect2", Source: ADC(adc.Current2)},
			{Name: "i_leakage", Source: ADC(adc.LvCurrent1)},
			{Name: "temp_heatsink1", Source: RTD(rtd.Ch1)},
			{Name: "temp_heatsink2", Source: RTD(rtd.Ch2)},
			{Name: "temp_inductor", Source: RTD(rtd.Ch3)},
		},
		Fast: [7][]uint16{{2, 3}, {4, 5}, {6}, {7, 8}, {9}},
		Relay: RelayPolicy{
			InterlockRelayAtInit: true,
		},
		Polarity: FaultOn,
	}
}

func facIS() Descriptor {
	return Descriptor{
		Variant: FACIS,
		ADC: []ADCBinding{
			{Channel: adc.Current1, Gain: adc.CurrentGain(300, 0.150, 50), Offset: adc.DefaultOffset, Alarm: 160, Trip: 170, Delay: 10},
			{Channel: adc.LvCurrent1, Gain: adc.LvCurrentGain(555, 0.025, 120), Offset: adc.DefaultOffset, Alarm: 550, Trip: 555, Delay: 10},
		},
		RTD: []RTDBinding{
			{Channel: rtd.Ch1, Alarm: 45, Trip: 50, Delay: 4},
			{Channel: rtd.Ch2, Alarm: 55, Trip: 60, Delay: 4},
		},
		Board: board.Limits{
			HumidityAlarm:    80,
			HumidityTrip:     90,
			TemperatureAlarm: 80,
			TemperatureTrip:  90,
		},
		DriverErrors: false,
		Causes: []Cause{
			{Name: "input_overcurrent", Source: ADC(adc.Current1), ItlkBit: 0x01, AlarmBit: 0x01, LED: 2},
			{Name: "dclink_overvoltage", Source: ADC(adc.LvCurrent1), ItlkBit: 0x02, AlarmBit: 0x02, LED: 3},
			{Name: "heatsink_overtemp", Source: RTD(rtd.Ch1), ItlkBit: 0x04, AlarmBit: 0x04, LED: 4},
			{Name: "inductor_overtemp", Source: RTD(rtd.Ch2), ItlkBit: 0x08, AlarmBit: 0x08, LED: 5},
			{Name: "driver1_error", Source: DriverError(1), ItlkBit: 0x10, LED: 6},
			{Name: "driver2_error", Source: DriverError(2), ItlkBit: 0x20, LED: 6},
		},
		Signals: []SignalDef{
			{Name: "i_in", Source: ADC(adc.Current1)},
			{Name: "v_dclink", Source: ADC(adc.LvCurrent1)},
			{Name: "temp_inductor", Source: RTD(rtd.Ch2)},
			{Name: "temp_heatsink", Source: RTD(rtd.Ch1)},
		},
		Fast: oneEach(4),
		Relay: RelayPolicy{
			InterlockRelayAtInit: true,
		},
		Polarity: FaultOff,
	}
}

func facCMD() Descriptor {
	return Descriptor{
		Variant: FACCMD,
		ADC: []ADCBinding{
			{Channel: adc.Voltage1, Gain: adc.VoltageGain(330), Offset: adc.DefaultOffset, Alarm: 250, Trip: 300, Delay: 3},
			{Channel: adc.Voltage2, Gain: adc.VoltageGain(250), Offset: adc.DefaultOffset, Alarm: 180, Trip: 210, Delay: 3},
		},
		RTD: []RTDBinding{
			{Channel: rtd.Ch1, Alarm: 55, Trip: 60, Delay: 4},
			{Channel: rtd.Ch2, Alarm: 55, Trip: 60, Delay: 4},
		},
		Board:        board.DefaultLimits(),
		DriverErrors: false,
		Causes: []Cause{
			{Name: "capbank_overvoltage", Source: ADC(adc.Voltage1), ItlkBit: 0x01, AlarmBit: 0x01, LED: 2},
			{Name: "output_overvoltage", Source: ADC(adc.Voltage2), ItlkBit: 0x02, AlarmBit: 0x02, LED: 3},
			{Name: "heatsink_overtemp", Source: RTD(rtd.Ch1), ItlkBit: 0x04, AlarmBit: 0x04, LED: 4},
			{Name: "inductor_overtemp", Source: RTD(rtd.Ch2), ItlkBit: 0x08, AlarmBit: 0x08, LED: 5, AlarmDark: true},
			{Name: "external1", Source: InputLine(gpio.GPDI5), ItlkBit: 0x10, LED: 6},
			{Name: "external2", Source: InputLine(gpio.GPDI9), ItlkBit: 0x20, LED: 7},
		},
		Signals: []SignalDef{
			{Name: "v_capbank", Source: ADC(adc.Voltage1)},
			{Name: "v_out", Source: ADC(adc.Voltage2)},
			{Name: "temp_inductor", Source: RTD(rtd.Ch2)},
			{Name: "temp_heatsink", Source: RTD(rtd.Ch1)},
		},
		Fast: oneEach(4),
		Relay: RelayPolicy{
			InterlockRelayAtInit: true,
		},
		Polarity: FaultOn,
	}
}
