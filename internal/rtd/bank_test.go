package rtd

import (
	"errors"
	"testing"
)

func TestProbeProgramsThresholds(t *testing.T) {
	tr := NewFakeTransport()
	tr.Regs[Ch1][regFaultStatus] = 0x04
	b := NewBank(tr)

	if err := b.Probe(Ch1); err != nil {
		t.Fatalf("probe: %v", err)
	}
	c := b.Channel(Ch1)
	if c.CommFault {
		t.Error("unexpected CommFault")
	}
	if c.FaultCode != 0x04 {
		t.Errorf("FaultCode: got 0x%02x, want 0x04", c.FaultCode)
	}

	want := []FakeWrite{
		{Ch1, 0x80, 0x82},
		{Ch1, 0x80, 0xD0},
		{Ch1, 0x83, 0xFF},
		{Ch1, 0x84, 0xFF},
		{Ch1, 0x85, 0x00},
		{Ch1, 0x86, 0x00},
	}
	if len(tr.Writes) != len(want) {
		t.Fatalf("expected %d writes, got %d: %+v", len(want), len(tr.Writes), tr.Writes)
	}
	for i := range want {
		if tr.Writes[i] != want[i] {
			t.Errorf("write %d: got %+v, want %+v", i, tr.Writes[i], want[i])
		}
	}
}

func TestProbeCommFaultIsSticky(t *testing.T) {
	tr := NewFakeTransport()
	tr.Dead[Ch2] = true
	b := NewBank(tr)
	b.Channel(Ch2).Configure(55, 60, 0)
	tr.SetTemperature(Ch2, 90)

	err := b.Probe(Ch2)
	if !errors.Is(err, ErrCommFault) {
		t.Fatalf("expected ErrCommFault, got %v", err)
	}
	if !b.Channel(Ch2).CommFault {
		t.Fatal("expected CommFault")
	}

	// Reading a comm-faulted channel neither touches the bus nor latches.
	raw, err := b.Sample(Ch2)
	if err != nil || raw.Valid {
		t.Errorf("expected invalid raw without error, got %+v %v", raw, err)
	}
	b.Read([NumChannels]Raw{Ch2: RawFor(90)})
	if b.Channel(Ch2).TripLatched {
		t.Error("comm-faulted channel must not be evaluated")
	}
	if got := b.Channel(Ch2).Temperature; got != 0 {
		t.Errorf("comm-faulted channel temperature: got %v, want 0", got)
	}

	// Still sticky on the next sample; only Reset re-probes.
	tr.Dead[Ch2] = false
	if !b.Channel(Ch2).CommFault {
		t.Fatal("CommFault cleared without reset")
	}
	if err := b.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if b.Channel(Ch2).CommFault {
		t.Error("expected CommFault cleared after successful re-probe")
	}
}

func TestSampleReadsRegisters(t *testing.T) {
	tr := NewFakeTransport()
	b := NewBank(tr)
	b.Channel(Ch3).Configure(55, 60, 0)
	tr.SetTemperature(Ch3, 65)

	raws := b.SampleAll()
	if !raws[Ch3].Valid {
		t.Fatal("expected valid reading on ch3")
	}
	if raws[Ch1].Valid {
		t.Error("disabled channel must not be sampled")
	}
	if tr.Selected != Ch3 {
		t.Errorf("expected mux on ch3, got %d", tr.Selected)
	}

	b.Read(raws)
	if !b.Channel(Ch3).TripLatched {
		t.Error("expected ch3 trip at 65 °C")
	}

	b.ClearAll()
	if b.Channel(Ch3).TripLatched {
		t.Error("expected trip cleared")
	}
}

func TestSampleFaultStatusShortCircuits(t *testing.T) {
	tr := NewFakeTransport()
	b := NewBank(tr)
	b.Channel(Ch1).Configure(55, 60, 0)
	tr.SetTemperature(Ch1, 90)
	tr.Regs[Ch1][regFaultStatus] = 0x20

	raw, err := b.Sample(Ch1)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if raw.FaultStatus != 0x20 || raw.MSB != 0 {
		t.Errorf("expected fault status only, got %+v", raw)
	}
}

func TestSampleTransportError(t *testing.T) {
	tr := NewFakeTransport()
	tr.ReadError = errors.New("spi down")
	b := NewBank(tr)
	b.Channel(Ch1).Configure(55, 60, 0)

	if _, err := b.Sample(Ch1); err == nil {
		t.Fatal("expected error")
	}
	raws := b.SampleAll()
	if raws[Ch1].Valid {
		t.Error("failed channel must read invalid")
	}
}

func TestResetClearsFaultStatus(t *testing.T) {
	tr := NewFakeTransport()
	b := NewBank(tr)
	b.Channel(Ch4).Configure(55, 60, 0)

	if err := b.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(tr.Writes) != 1 || tr.Writes[0] != (FakeWrite{Ch4, 0x80, 0x82}) {
		t.Errorf("expected one fault clear write on ch4, got %+v", tr.Writes)
	}
}
