package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/iib-interlock/internal/config"
	"github.com/sweeney/iib-interlock/internal/interlock"
	"github.com/sweeney/iib-interlock/internal/profile"
	"github.com/sweeney/iib-interlock/internal/web"
)

func TestNewAPIClient(t *testing.T) {
	tests := []struct {
		name    string
		cfgAddr string
		addr    string
		want    string
		wantErr bool
	}{
		{name: "config port only", cfgAddr: ":8080", want: "http://localhost:8080"},
		{name: "flag wins", cfgAddr: ":8080", addr: "10.0.0.2:9000", want: "http://10.0.0.2:9000"},
		{name: "url kept", addr: "http://iib-3.local:8080/", want: "http://iib-3.local:8080"},
		{name: "https kept", addr: "https://iib-3.local", want: "https://iib-3.local"},
		{name: "no address", wantErr: true},
		{name: "no port", addr: "iib-3.local", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.HTTP.Addr = tt.cfgAddr
			c, err := newAPIClient(cfg, tt.addr)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got base %q", c.base)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.base != tt.want {
				t.Errorf("base: got %q, want %q", c.base, tt.want)
			}
		})
	}
}

// apiTestServer serves the status API of a fake board.
func apiTestServer(t *testing.T) (*testBoard, *httptest.Server) {
	t.Helper()
	b := newTestBoard(t, "FAC_OS")
	srv := httptest.NewServer(web.New("", b.tracker, b.e.agg, b.st).Handler())
	t.Cleanup(srv.Close)
	return b, srv
}

// runCLI executes the root command with a config path that does not exist,
// so every setting is a default.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	err := cmd.Execute()
	return out.String(), err
}

func TestStatusCommand(t *testing.T) {
	b, srv := apiTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	b.io.SetInputs(driverFault())
	for i := 0; i < 2; i++ {
		snap, events, err := b.e.step(ctx, time.Now())
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		for _, ev := range events {
			b.tracker.RecordEvent(ev)
		}
		b.tracker.Update(snap, b.e.detector.Counts())
	}

	out, err := runCLI(t, "status", "--addr", srv.URL)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"IIB 3 (FAC_OS)", "TRIPPED", "0x00000200", "driver1_error", "interlock=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryCommand(t *testing.T) {
	b, srv := apiTestServer(t)

	out, err := runCLI(t, "history", "--addr", srv.URL)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "no events") {
		t.Errorf("expected empty history, got:\n%s", out)
	}

	b.st.Append(interlock.Event{
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Type:          interlock.EventInterlock,
		Variant:       "FAC_OS",
		InterlockBits: 0x100,
		Causes:        []string{"heatsink_overtemp"},
	})
	out, err = runCLI(t, "history", "--addr", srv.URL, "-n", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{"2026-03-01T12:00:00Z", "INTERLOCK", "0x00000100", "heatsink_overtemp"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}
}

func TestClearCommand(t *testing.T) {
	b, srv := apiTestServer(t)

	out, err := runCLI(t, "clear", "--addr", srv.URL)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !strings.Contains(out, "clear requested") {
		t.Errorf("output: %q", out)
	}
	if !b.e.agg.ClearPending() {
		t.Error("clear should be pending on the board")
	}
}

func TestClientCommandsUnreachable(t *testing.T) {
	for _, sub := range []string{"status", "history", "clear"} {
		if _, err := runCLI(t, sub, "--addr", "127.0.0.1:1"); err == nil {
			t.Errorf("%s: expected a connection error", sub)
		}
	}
}

func TestVariantsCommand(t *testing.T) {
	out, err := runCLI(t, "variants")
	if err != nil {
		t.Fatalf("variants: %v", err)
	}
	for _, v := range profile.Variants() {
		if !strings.Contains(out, v.Variant.String()) {
			t.Errorf("variants output missing %s", v.Variant)
		}
	}

	out, err = runCLI(t, "variants", "fac-os")
	if err != nil {
		t.Fatalf("variants fac-os: %v", err)
	}
	for _, want := range []string{"FAC_OS", "driver1_error", "0x00000200", "temp_heatsink", "Fast phases:"} {
		if !strings.Contains(out, want) {
			t.Errorf("variant output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCLI(t, "variants", "FAC_DCDC"); err == nil {
		t.Error("expected an error for an unknown variant")
	}
}

func TestRenderHistoryEmpty(t *testing.T) {
	if got := renderHistory(nil); got != "no events" {
		t.Errorf("got %q", got)
	}
}

func TestRunCommandRejectsInvalidConfig(t *testing.T) {
	// The default config has no LED polarity.
	if _, err := runCLI(t, "run"); err == nil {
		t.Fatal("expected run to refuse a config without led_polarity")
	} else if !strings.Contains(err.Error(), "led_polarity") {
		t.Errorf("error: %v", err)
	}
}
