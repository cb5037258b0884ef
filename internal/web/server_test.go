package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/iib-interlock/internal/interlock"
	"github.com/sweeney/iib-interlock/internal/profile"
	"github.com/sweeney/iib-interlock/internal/status"
)

type fakeClearer struct {
	mu           sync.Mutex
	alarmClears  int
	clearRequest int
}

func (c *fakeClearer) ClearAlarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alarmClears++
}

func (c *fakeClearer) RequestClear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearRequest++
}

type fakeHistory struct {
	events []interlock.Event
	err    error
	lastN  int
}

func (h *fakeHistory) Recent(n int) ([]interlock.Event, error) {
	h.lastN = n
	if h.err != nil {
		return nil, h.err
	}
	if n < len(h.events) {
		return h.events[:n], nil
	}
	return h.events, nil
}

func boardSnapshot() interlock.Snapshot {
	return interlock.Snapshot{
		Variant:       "FAC_OS",
		State:         interlock.State{InterlockLatched: true, InterlockEdgeOld: true},
		InterlockBits: 0x40,
		Causes:        []profile.CauseState{{Name: "driver1_error", Tripped: true}},
		Channels: []interlock.Channel{
			{Name: "voltage1", Family: "adc", Value: 12.5},
			{Name: "humidity", Family: "board", Value: 41},
		},
	}
}

func newTestServer(t *testing.T, c Clearer, h History) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Board:       2,
		Variant:     "FAC_OS",
		AppTickMs:   1,
		TelemetryMs: 2,
		LEDPolarity: "fault-off",
		CANBackend:  "socketcan",
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":8080",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, c, h)
	srv.pushEvery = 20 * time.Millisecond
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode JSON: %v", err)
		}
	}
	return resp
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil, nil)
	tr.Update(boardSnapshot(), interlock.EventCounts{Interlock: 1})
	tr.SetMQTTConnected(true)

	var sj status.StatusJSON
	resp := getJSON(t, ts.URL+"/index.json", &sj)

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	if !sj.Status.Interlocked {
		t.Error("expected Interlocked=true")
	}
	if sj.Status.InterlockBits != "0x00000040" {
		t.Errorf("InterlockBits: got %q", sj.Status.InterlockBits)
	}
	if sj.Status.Board != 2 || sj.Status.Variant != "FAC_OS" {
		t.Errorf("board/variant: got %d %q", sj.Status.Board, sj.Status.Variant)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.Interlock != 1 {
		t.Errorf("Counts.Interlock: got %d, want 1", sj.Status.Counts.Interlock)
	}
}

func TestChannelsEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil, nil)
	tr.Update(boardSnapshot(), interlock.EventCounts{})

	var body struct {
		Channels []status.ChannelJSON `json:"channels"`
	}
	getJSON(t, ts.URL+"/api/channels", &body)
	if len(body.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(body.Channels))
	}
	if body.Channels[0].Name != "voltage1" || body.Channels[0].Value != 12.5 {
		t.Errorf("channel 0: got %+v", body.Channels[0])
	}
}

func TestClearEndpoint(t *testing.T) {
	c := &fakeClearer{}
	ts, _ := newTestServer(t, c, nil)

	resp, err := http.Post(ts.URL+"/api/clear", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/clear: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status: got %d, want 202", resp.StatusCode)
	}
	var cr ClearResponse
	json.NewDecoder(resp.Body).Decode(&cr)
	if !cr.Accepted {
		t.Error("expected accepted=true")
	}
	if c.alarmClears != 1 || c.clearRequest != 1 {
		t.Errorf("clearer calls: alarm=%d request=%d", c.alarmClears, c.clearRequest)
	}
}

func TestClearRequiresPost(t *testing.T) {
	c := &fakeClearer{}
	ts, _ := newTestServer(t, c, nil)

	resp := getJSON(t, ts.URL+"/api/clear", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
	if c.clearRequest != 0 {
		t.Error("GET must not clear")
	}
}

func TestClearUnavailable(t *testing.T) {
	ts, _ := newTestServer(t, nil, nil)

	resp, err := http.Post(ts.URL+"/api/clear", "", nil)
	if err != nil {
		t.Fatalf("POST /api/clear: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	h := &fakeHistory{events: []interlock.Event{
		{Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Type: interlock.EventInterlock, Variant: "FAC_OS", InterlockBits: 0x40, Causes: []string{"driver1_error"}},
		{Timestamp: time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC), Type: interlock.EventClear, Variant: "FAC_OS"},
	}}
	ts, _ := newTestServer(t, nil, h)

	var entries []HistoryEntry
	getJSON(t, ts.URL+"/api/history?n=1", &entries)
	if h.lastN != 1 {
		t.Errorf("Recent called with %d, want 1", h.lastN)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Type != "INTERLOCK" || entries[0].Timestamp != "2026-01-02T03:04:05Z" || entries[0].InterlockBits != 0x40 {
		t.Errorf("entry: got %+v", entries[0])
	}

	getJSON(t, ts.URL+"/api/history", &entries)
	if h.lastN != 50 || len(entries) != 2 {
		t.Errorf("default history: n=%d entries=%d", h.lastN, len(entries))
	}

	if resp := getJSON(t, ts.URL+"/api/history?n=abc", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad n: got %d, want 400", resp.StatusCode)
	}

	h.err = errors.New("db closed")
	if resp := getJSON(t, ts.URL+"/api/history", nil); resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("store error: got %d, want 500", resp.StatusCode)
	}
}

func TestHTMLEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil, nil)
	tr.Update(boardSnapshot(), interlock.EventCounts{})
	tr.RecordEvent(interlock.Event{Type: interlock.EventInterlock, Timestamp: time.Now()})

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		var sb strings.Builder
		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			sb.Write(buf[:n])
			if err != nil {
				break
			}
		}
		resp.Body.Close()

		if resp.StatusCode != 200 {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s Content-Type: got %q", path, ct)
		}
		body := sb.String()
		for _, want := range []string{"IIB 2 (FAC_OS)", "TRIPPED", "driver1_error", "0x00000040", "adc/voltage1", "INTERLOCK at"} {
			if !strings.Contains(body, want) {
				t.Errorf("%s: body missing %q", path, want)
			}
		}
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil, nil)

	resp := getJSON(t, ts.URL+"/nonexistent", nil)
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestWebSocketPushesStatus(t *testing.T) {
	ts, tr := newTestServer(t, nil, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() status.StatusJSON {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var sj status.StatusJSON
		if err := json.Unmarshal(data, &sj); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return sj
	}

	if first := read(); first.Status.Interlocked {
		t.Error("first push should show a healthy board")
	}

	tr.Update(boardSnapshot(), interlock.EventCounts{Interlock: 1})
	tr.RecordEvent(interlock.Event{Type: interlock.EventInterlock, Timestamp: time.Now()})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if read().Status.Interlocked {
			return
		}
	}
	t.Error("interlock never pushed over the WebSocket")
}

type panicHistory struct{}

func (panicHistory) Recent(int) ([]interlock.Event, error) {
	panic("store corrupted")
}

func TestHandlerPanicRecovered(t *testing.T) {
	ts, _ := newTestServer(t, nil, panicHistory{})

	resp := getJSON(t, ts.URL+"/api/history", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", resp.StatusCode)
	}
	// The server keeps serving.
	if resp := getJSON(t, ts.URL+"/index.json", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("status after panic: got %d", resp.StatusCode)
	}
}
