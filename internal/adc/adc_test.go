package adc

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sweeney/iib-interlock/internal/logic"
)

func TestGains(t *testing.T) {
	tests := []struct {
		name string
		got  float32
		want float64
	}{
		{"voltage 330", VoltageGain(330), 330.0 / 2048},
		{"fac_is input current", CurrentGain(300, 0.150, 50), 300.0 / 2048},
		{"fac_os output current", CurrentGain(500, 0.100, 50), 750.0 / 2048},
		{"fac_is dc link", LvCurrentGain(555, 0.025, 120), 555.0 / 2048},
		{"fac_os input voltage", LvCurrentGain(330, 0.025, 120), 330.0 / 2048},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(float64(tt.got)-tt.want) > 1e-6 {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestCalibrationRoundTrip(t *testing.T) {
	tbl := NewTable()
	c := tbl.Get(Voltage1)
	c.Configure(logic.Config{Gain: 0.0048828125, Offset: 2048, AlarmLimit: 100, TripLimit: 100})

	var frame Frame
	frame[Voltage1] = 2560
	Evaluate(tbl, frame)

	if c.Value != 2.5 {
		t.Errorf("expected 2.5, got %v", c.Value)
	}
	if tbl.Get(Voltage2).Value != 0 {
		t.Error("disabled channel must not be evaluated")
	}
}

func TestLookup(t *testing.T) {
	id, ok := Lookup("lv_current1")
	if !ok || id != LvCurrent1 {
		t.Errorf("Lookup(lv_current1): got %v %v", id, ok)
	}
	if _, ok := Lookup("bogus"); ok {
		t.Error("expected unknown name to fail")
	}
	if Name(Driver2Current) != "driver2_current" {
		t.Errorf("unexpected name %q", Name(Driver2Current))
	}
	if Name(NumChannels) != "" {
		t.Error("expected empty name out of range")
	}
}

func TestSamplerWaitsForReady(t *testing.T) {
	conv := NewFakeConverter(Uniform(100))
	conv.ReadyAfter = 3
	s := NewSampler(conv, 0)

	f, err := s.Sample(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f[Current1] != 100 {
		t.Errorf("expected raw 100, got %d", f[Current1])
	}
	if conv.Polls != 4 {
		t.Errorf("expected 4 polls, got %d", conv.Polls)
	}
}

func TestSamplerBoundedTimeout(t *testing.T) {
	conv := NewFakeConverter(Uniform(1))
	conv.ReadyAfter = -1
	s := NewSampler(conv, 5)

	_, err := s.Sample(context.Background())
	if !errors.Is(err, ErrConversionTimeout) {
		t.Fatalf("expected ErrConversionTimeout, got %v", err)
	}
	if conv.Polls != 5 {
		t.Errorf("expected 5 polls, got %d", conv.Polls)
	}
	if !s.Bounded() {
		t.Error("expected bounded sampler")
	}
}

func TestSamplerUnboundedStopsOnCancel(t *testing.T) {
	conv := NewFakeConverter(Uniform(1))
	conv.ReadyAfter = -1
	s := NewSampler(conv, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Sample(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSamplerStartError(t *testing.T) {
	conv := NewFakeConverter(Uniform(1))
	conv.StartError = errors.New("bus stuck")
	s := NewSampler(conv, 1)
	if _, err := s.Sample(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestIIOConverter(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "in_voltage3_raw"), []byte("2560\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := NewIIOConverter(dir, map[string]int{"voltage1": 3})
	if err != nil {
		t.Fatalf("NewIIOConverter: %v", err)
	}
	f, err := c.Fetch()
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if f[Voltage1] != 2560 {
		t.Errorf("voltage1: got %d, want 2560", f[Voltage1])
	}
	if f[Voltage2] != DefaultOffset {
		t.Errorf("unmapped channel: got %d, want %d", f[Voltage2], DefaultOffset)
	}

	if _, err := NewIIOConverter(dir, map[string]int{"nope": 0}); err == nil {
		t.Error("expected error for unknown channel name")
	}
}
