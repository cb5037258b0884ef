// Package mqtt mirrors interlock events and daemon lifecycle to an MQTT
// broker, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/iib-interlock/internal/interlock"
)

// EventsTopic is the topic for interlock, alarm and clear events of a board.
func EventsTopic(board int) string {
	return fmt.Sprintf("iib/%d/events", board)
}

// SystemTopic is the topic for lifecycle events of a board.
func SystemTopic(board int) string {
	return fmt.Sprintf("iib/%d/system", board)
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an interlock event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event interlock.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	IIB EventPayload `json:"iib"`
}

// EventPayload contains the interlock event details.
type EventPayload struct {
	Timestamp     string   `json:"timestamp"`
	Board         int      `json:"board"`
	Event         string   `json:"event"`
	Variant       string   `json:"variant"`
	InterlockBits string   `json:"interlock_bits"`
	AlarmBits     string   `json:"alarm_bits"`
	Causes        []string `json:"causes,omitempty"`
}

// FormatPayload creates the JSON payload for an interlock event.
func FormatPayload(board int, event interlock.Event) ([]byte, error) {
	payload := Payload{
		IIB: EventPayload{
			Timestamp:     event.Timestamp.UTC().Format(time.RFC3339),
			Board:         board,
			Event:         string(event.Type),
			Variant:       event.Variant,
			InterlockBits: fmt.Sprintf("0x%08X", event.InterlockBits),
			AlarmBits:     fmt.Sprintf("0x%08X", event.AlarmBits),
			Causes:        event.Causes,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
