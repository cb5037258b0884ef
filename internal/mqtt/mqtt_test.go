package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/iib-interlock/internal/interlock"
)

func TestTopics(t *testing.T) {
	if got := EventsTopic(3); got != "iib/3/events" {
		t.Errorf("EventsTopic(3) = %s", got)
	}
	if got := SystemTopic(12); got != "iib/12/system" {
		t.Errorf("SystemTopic(12) = %s", got)
	}
}

func TestFormatPayload(t *testing.T) {
	event := interlock.Event{
		Timestamp:     time.Date(2026, 3, 4, 9, 15, 0, 0, time.UTC),
		Type:          interlock.EventInterlock,
		Variant:       "FAC_OS",
		InterlockBits: 0x41,
		Causes:        []string{"input_overcurrent", "driver1_error"},
	}

	payload, err := FormatPayload(2, event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"iib":{"timestamp":"2026-03-04T09:15:00Z","board":2,"event":"INTERLOCK","variant":"FAC_OS",` +
		`"interlock_bits":"0x00000041","alarm_bits":"0x00000000","causes":["input_overcurrent","driver1_error"]}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatPayloadAllEventTypes(t *testing.T) {
	tests := []struct {
		eventType interlock.EventType
		want      string
	}{
		{interlock.EventInterlock, "INTERLOCK"},
		{interlock.EventAlarm, "ALARM"},
		{interlock.EventClear, "CLEAR"},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			payload, err := FormatPayload(1, interlock.Event{Timestamp: time.Now(), Type: tt.eventType})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var parsed Payload
			if err := json.Unmarshal(payload, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if parsed.IIB.Event != tt.want {
				t.Errorf("event = %s, want %s", parsed.IIB.Event, tt.want)
			}
		})
	}
}

func TestFormatPayloadOmitsEmptyCauses(t *testing.T) {
	payload, err := FormatPayload(1, interlock.Event{Timestamp: time.Now(), Type: interlock.EventClear})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed map[string]map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, exists := parsed["iib"]["causes"]; exists {
		t.Error("CLEAR should not have causes field")
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	event := interlock.Event{
		Timestamp: time.Date(2026, 3, 4, 11, 0, 0, 0, loc),
		Type:      interlock.EventAlarm,
	}
	payload, err := FormatPayload(1, event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.IIB.Timestamp != "2026-03-04T09:00:00Z" {
		t.Errorf("timestamp not converted to UTC: %s", parsed.IIB.Timestamp)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"system":{"event":"STARTUP","status":{}}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher(4)
	f.Publish(interlock.Event{Timestamp: time.Now(), Type: interlock.EventInterlock})
	f.Publish(interlock.Event{Timestamp: time.Now(), Type: interlock.EventClear})
	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true})

	types := f.EventTypes()
	if len(types) != 2 || types[0] != interlock.EventInterlock || types[1] != interlock.EventClear {
		t.Errorf("unexpected event order: %v", types)
	}
	if len(f.Payloads) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(f.Payloads))
	}
	var parsed Payload
	if err := json.Unmarshal(f.Payloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.IIB.Board != 4 {
		t.Errorf("board = %d, want 4", parsed.IIB.Board)
	}
	if names := f.SystemEventNames(); len(names) != 1 || names[0] != "STARTUP" {
		t.Errorf("unexpected system events: %v", names)
	}
	if !f.SystemEvents[0].Retained {
		t.Error("STARTUP should be retained")
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher(1)
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	if err := f.Publish(interlock.Event{}); err == nil {
		t.Error("expected publish error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected publish system error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}

	f.Reset()
	if err := f.Publish(interlock.Event{}); err != nil {
		t.Errorf("unexpected error after reset: %v", err)
	}
}

func TestFakePublisherClose(t *testing.T) {
	f := NewFakePublisher(1)
	if err := f.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("expected Closed to be true")
	}
}
