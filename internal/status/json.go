package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Board         int            `json:"board"`
	Variant       string         `json:"variant"`
	Interlocked   bool           `json:"interlocked"`
	Alarmed       bool           `json:"alarmed"`
	Ready         bool           `json:"ready"`
	ClearPending  bool           `json:"clear_pending"`
	InterlockBits string         `json:"interlock_bits"`
	AlarmBits     string         `json:"alarm_bits"`
	Causes        []CauseJSON    `json:"causes"`
	Ticks         uint64         `json:"ticks"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"event_counts"`
	LastEvent     *LastEventJSON `json:"last_event,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// CauseJSON is one protection cause.
type CauseJSON struct {
	Name    string `json:"name"`
	Tripped bool   `json:"tripped"`
	Alarmed bool   `json:"alarmed"`
}

// ChannelJSON is one measured channel.
type ChannelJSON struct {
	Name       string  `json:"name"`
	Family     string  `json:"family"`
	Value      float32 `json:"value"`
	Alarm      bool    `json:"alarm"`
	Trip       bool    `json:"trip"`
	OutOfRange bool    `json:"out_of_range,omitempty"`
	CommFault  bool    `json:"comm_fault,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Interlock int `json:"interlock"`
	Alarm     int `json:"alarm"`
	Clear     int `json:"clear"`
}

// LastEventJSON is the most recent interlock event.
type LastEventJSON struct {
	Type      string   `json:"type"`
	Timestamp string   `json:"timestamp"`
	Causes    []string `json:"causes,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	AppTickMs   int64  `json:"app_tick_ms"`
	TelemetryMs int64  `json:"telemetry_tick_ms"`
	LEDPolarity string `json:"led_polarity"`
	CANBackend  string `json:"can_backend"`
	Broker      string `json:"broker,omitempty"`
	HTTPPort    string `json:"http_port"`
}

func bits(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}

func buildInner(snap Snapshot) StatusInner {
	b := snap.Board
	variant := b.Variant
	if variant == "" {
		variant = snap.Config.Variant
	}

	inner := StatusInner{
		Board:         snap.Config.Board,
		Variant:       variant,
		Interlocked:   b.State.InterlockLatched,
		Alarmed:       b.State.AlarmLatched,
		Ready:         b.State.InitDone,
		ClearPending:  b.ClearPending,
		InterlockBits: bits(b.InterlockBits),
		AlarmBits:     bits(b.AlarmBits),
		Causes:        []CauseJSON{},
		Ticks:         snap.Ticks,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Interlock: snap.Counts.Interlock,
			Alarm:     snap.Counts.Alarm,
			Clear:     snap.Counts.Clear,
		},
		Config: ConfigJSON{
			AppTickMs:   snap.Config.AppTickMs,
			TelemetryMs: snap.Config.TelemetryMs,
			LEDPolarity: snap.Config.LEDPolarity,
			CANBackend:  snap.Config.CANBackend,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
		},
	}
	for _, c := range b.Causes {
		inner.Causes = append(inner.Causes, CauseJSON{Name: c.Name, Tripped: c.Tripped, Alarmed: c.Alarmed})
	}
	if e := snap.LastEvent; e != nil {
		inner.LastEvent = &LastEventJSON{
			Type:      string(e.Type),
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Causes:    e.Causes,
		}
	}
	return inner
}

// Channels returns the channel table of snap.
func Channels(snap Snapshot) []ChannelJSON {
	out := make([]ChannelJSON, 0, len(snap.Board.Channels))
	for _, c := range snap.Board.Channels {
		out = append(out, ChannelJSON{
			Name:       c.Name,
			Family:     c.Family,
			Value:      c.Value,
			Alarm:      c.Alarm,
			Trip:       c.Trip,
			OutOfRange: c.OutOfRange,
			CommFault:  c.CommFault,
		})
	}
	return out
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatChannelsJSON returns the channel table as JSON.
func FormatChannelsJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(struct {
		Channels []ChannelJSON `json:"channels"`
	}{Channels(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
