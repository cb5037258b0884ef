package interlock

import (
	"errors"
	"testing"

	"github.com/sweeney/iib-interlock/internal/adc"
	"github.com/sweeney/iib-interlock/internal/board"
	"github.com/sweeney/iib-interlock/internal/gpio"
	"github.com/sweeney/iib-interlock/internal/profile"
	"github.com/sweeney/iib-interlock/internal/rtd"
)

type sent struct {
	index uint16
	value profile.Signal
}

type recorder struct {
	sent []sent
}

func (r *recorder) SendSignal(index uint16, s profile.Signal) error {
	r.sent = append(r.sent, sent{index, s})
	return nil
}

func (r *recorder) count(index uint16) int {
	n := 0
	for _, s := range r.sent {
		if s.index == index {
			n++
		}
	}
	return n
}

type fixture struct {
	agg *Aggregator
	io  *gpio.FakeIO
	tx  *recorder
	hw  profile.Hardware
}

func newFixture(t *testing.T, v profile.Variant) *fixture {
	t.Helper()
	hw := profile.NewHardware(rtd.NewFakeTransport())
	io := gpio.NewFakeIO()
	tx := &recorder{}
	agg := New(profile.New(v, hw), hw, io, tx, profile.FaultOn)
	return &fixture{agg: agg, io: io, tx: tx, hw: hw}
}

func idle() profile.Input {
	var in profile.Input
	for i := range in.ADC {
		in.ADC[i] = adc.DefaultOffset
	}
	in.Env = board.Env{Temperature: 30, Humidity: 40, Valid: true}
	return in
}

func external(in profile.Input) profile.Input {
	in.Inputs = in.Inputs.With(gpio.GPDI5)
	return in
}

func TestInitSequence(t *testing.T) {
	tests := []struct {
		variant   profile.Variant
		itlkRelay bool
		gpdo      bool
	}{
		{profile.FACCMD, true, false},
		{profile.FACOS, true, true},
		{profile.FAP, false, false},
		{profile.FAP300A, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.variant.String(), func(t *testing.T) {
			f := newFixture(t, tt.variant)

			res := f.agg.Tick(idle())
			if !res.Init {
				t.Fatal("expected init on first clean tick")
			}
			if res.Err != nil {
				t.Fatalf("unexpected error: %v", res.Err)
			}
			if !f.io.State(gpio.AuxRelay) {
				t.Error("aux relay should be closed")
			}
			if f.io.State(gpio.InterlockRelay) != tt.itlkRelay {
				t.Errorf("interlock relay = %v, want %v", f.io.State(gpio.InterlockRelay), tt.itlkRelay)
			}
			if f.io.State(gpio.GPDO1) != tt.gpdo || f.io.State(gpio.GPDO2) != tt.gpdo {
				t.Errorf("gpdo1/2 = %v/%v, want %v", f.io.State(gpio.GPDO1), f.io.State(gpio.GPDO2), tt.gpdo)
			}

			// Only once
			f.io.ResetWrites()
			if res := f.agg.Tick(idle()); res.Init {
				t.Error("init ran twice")
			}
			if len(f.io.Writes()) != 0 {
				t.Errorf("unexpected writes on steady tick: %v", f.io.Writes())
			}
		})
	}
}

func TestInterlockEdgeOnce(t *testing.T) {
	f := newFixture(t, profile.FACOS)
	f.agg.Tick(idle())
	f.io.ResetWrites()

	in := idle()
	in.ADC[adc.Current2] = uint16(adc.DefaultOffset + 1600) // ~586 A, trip 560

	res := f.agg.Tick(in)
	if !res.Edge || !res.Interlocked {
		t.Fatalf("expected interlock edge, got %+v", res)
	}
	if res.InterlockBits != 0x02 {
		t.Errorf("InterlockBits = %#x, want 0x02", res.InterlockBits)
	}
	for _, o := range []gpio.Output{gpio.AuxRelay, gpio.InterlockRelay, gpio.GPDO1, gpio.GPDO2} {
		if f.io.State(o) {
			t.Errorf("%s should be open", o)
		}
	}

	for i := 0; i < 5; i++ {
		if res := f.agg.Tick(in); res.Edge {
			t.Fatalf("edge repeated on tick %d", i)
		}
	}
	if n := f.tx.count(profile.SignalInterlocks); n != 1 {
		t.Errorf("interlock message sent %d times, want 1", n)
	}
	if n := len(f.io.WritesTo(gpio.AuxRelay)); n != 1 {
		t.Errorf("aux relay written %d times, want 1", n)
	}

	// Latched after the cause disappears; no init while interlocked
	if res := f.agg.Tick(idle()); !res.Interlocked || res.Init {
		t.Errorf("got %+v, want latched without init", res)
	}
}

func TestNoInitWhileInterlockedFromStart(t *testing.T) {
	f := newFixture(t, profile.FACCMD)

	res := f.agg.Tick(external(idle()))
	if !res.Edge {
		t.Fatal("expected edge")
	}
	if res.Init {
		t.Error("init must not run while interlocked")
	}
	if f.io.State(gpio.AuxRelay) {
		t.Error("aux relay should be open")
	}
}

func TestClearIsDeferredToEndOfTick(t *testing.T) {
	f := newFixture(t, profile.FACCMD)
	f.agg.Tick(external(idle()))

	f.agg.RequestClear()
	if !f.agg.Interlocked() {
		t.Fatal("clear must wait for the next tick")
	}
	if !f.agg.ClearPending() {
		t.Error("clear should be pending")
	}

	// Cause still present on this tick: the clear runs after evaluation
	res := f.agg.Tick(idle())
	if !res.Cleared {
		t.Fatal("expected clear")
	}
	if f.agg.Interlocked() {
		t.Error("interlock should be clear")
	}
	snap := f.agg.Snapshot()
	if snap.State != (State{}) {
		t.Errorf("state = %+v, want zero", snap.State)
	}
	if snap.InterlockBits != 0 {
		t.Errorf("bits = %#x, want 0", snap.InterlockBits)
	}

	// Next clean tick re-runs init
	res = f.agg.Tick(idle())
	if !res.Init || res.Interlocked {
		t.Errorf("got %+v, want init after clear", res)
	}
	if !f.io.State(gpio.AuxRelay) || !f.io.State(gpio.InterlockRelay) {
		t.Error("relays should close again")
	}
}

func TestRelatchAfterClear(t *testing.T) {
	f := newFixture(t, profile.FACCMD)
	f.agg.Tick(external(idle()))

	f.agg.RequestClear()
	f.agg.Tick(external(idle()))

	res := f.agg.Tick(external(idle()))
	if !res.Edge || !res.Interlocked {
		t.Fatalf("expected re-latch, got %+v", res)
	}
	if n := f.tx.count(profile.SignalInterlocks); n != 2 {
		t.Errorf("interlock message sent %d times, want 2", n)
	}
}

func TestBoardTripInterlocks(t *testing.T) {
	f := newFixture(t, profile.FACCMD)

	in := idle()
	in.Env.Humidity = 95
	res := f.agg.Tick(in)
	if !res.Interlocked || !res.Edge {
		t.Fatalf("humidity trip should interlock, got %+v", res)
	}
	if res.InterlockBits != 0 {
		t.Errorf("board trips have no profile bit, got %#x", res.InterlockBits)
	}
	if !res.Alarmed {
		t.Error("humidity above the alarm limit should alarm")
	}
}

func TestAlarmSentEveryTick(t *testing.T) {
	f := newFixture(t, profile.FACCMD)

	in := idle()
	in.RTD[rtd.Ch1] = rtd.RawFor(57) // alarm 55, trip 60, delay 4
	for i := 0; i < 7; i++ {
		f.agg.Tick(in)
	}
	if n := f.tx.count(profile.SignalAlarms); n != 3 {
		t.Errorf("alarm signal sent %d times, want 3", n)
	}
	if !f.agg.Snapshot().State.AlarmLatched {
		t.Fatal("alarm should be latched")
	}

	f.agg.ClearAlarm()
	snap := f.agg.Snapshot()
	if snap.State.AlarmLatched || snap.AlarmBits != 0 {
		t.Errorf("alarm should clear immediately, got %+v", snap.State)
	}
}

func TestUnknownVariantLeavesRelays(t *testing.T) {
	f := newFixture(t, profile.NumVariants)

	res := f.agg.Tick(external(idle()))
	if res.Interlocked {
		t.Error("unknown variant has no causes")
	}
	if !res.Init {
		t.Error("init flag still advances")
	}
	if len(f.io.Writes()) != 0 {
		t.Errorf("unknown variant must not touch relays, got %v", f.io.Writes())
	}
}

func TestStartPattern(t *testing.T) {
	f := newFixture(t, profile.FACIS)
	if err := f.agg.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if f.io.State(gpio.LED1) {
		t.Error("LED1 should be off")
	}
	for n := 2; n <= 10; n++ {
		if !f.io.State(gpio.LED(n)) {
			t.Errorf("LED%d should be on", n)
		}
	}
}

func TestRelayErrorsReported(t *testing.T) {
	f := newFixture(t, profile.FACCMD)
	f.io.SetError = errors.New("line busy")

	res := f.agg.Tick(idle())
	if res.Err == nil {
		t.Fatal("expected relay error")
	}
	if !res.Init {
		t.Error("state should advance despite relay errors")
	}
}

func TestSignalAndSnapshot(t *testing.T) {
	f := newFixture(t, profile.FACIS)

	in := idle()
	in.RTD[rtd.Ch1] = rtd.RawFor(30)
	f.agg.Tick(in)

	s, ok := f.agg.Signal(5)
	if !ok {
		t.Fatal("signal 5 should exist on FAC_IS")
	}
	if got := s.Float(); got < 29.9 || got > 30.1 {
		t.Errorf("signal 5 = %v, want ~30", got)
	}
	if _, ok := f.agg.Signal(6); ok {
		t.Error("signal 6 should not exist")
	}

	snap := f.agg.Snapshot()
	if snap.Variant != "FAC_IS" {
		t.Errorf("Variant = %q", snap.Variant)
	}
	families := map[string]int{}
	for _, c := range snap.Channels {
		families[c.Family]++
	}
	// current1, lv_current1 + 3 driver channels; rtd1, rtd2; humidity, temperature
	if families["adc"] != 5 || families["rtd"] != 2 || families["board"] != 2 {
		t.Errorf("channel families = %v", families)
	}
	if len(snap.Causes) != 6 {
		t.Errorf("causes = %d, want 6", len(snap.Causes))
	}
}

func TestApplyParam(t *testing.T) {
	f := newFixture(t, profile.FACCMD)

	err := f.agg.ApplyParam(profile.Param{Target: profile.TargetRTD, Channel: rtd.Ch1, Field: profile.FieldTripLimit, Value: 45})
	if err != nil {
		t.Fatalf("ApplyParam: %v", err)
	}

	in := idle()
	in.RTD[rtd.Ch1] = rtd.RawFor(50)
	for i := 0; i < 5; i++ {
		f.agg.Tick(in)
	}
	if !f.agg.Interlocked() {
		t.Error("lowered trip limit should interlock at 50 °C")
	}
}
