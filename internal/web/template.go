package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/iib-interlock/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"hex": func(v uint32) string {
		return fmt.Sprintf("0x%08X", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>IIB {{.Config.Board}} {{.Variant}}</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.trip { color: red; font-weight: bold; }
.alarm { color: orange; font-weight: bold; }
.ok { color: green; }
.fault { color: #888; font-style: italic; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>IIB {{.Config.Board}} ({{.Variant}})<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>Interlock</th><td id="itlk" class="{{if .Board.State.InterlockLatched}}trip{{else}}ok{{end}}">{{if .Board.State.InterlockLatched}}TRIPPED{{else}}OK{{end}}</td></tr>
<tr><th>Alarm</th><td id="alarm" class="{{if .Board.State.AlarmLatched}}alarm{{else}}ok{{end}}">{{if .Board.State.AlarmLatched}}ALARM{{else}}OK{{end}}</td></tr>
<tr><th>Interlock bits</th><td id="itlk-bits">{{hex .Board.InterlockBits}}</td></tr>
<tr><th>Alarm bits</th><td id="alarm-bits">{{hex .Board.AlarmBits}}</td></tr>
<tr><th>Relays closed</th><td>{{if .Board.State.InitDone}}yes{{else}}no{{end}}</td></tr>
<tr><th>Clear pending</th><td>{{if .Board.ClearPending}}yes{{else}}no{{end}}</td></tr>
</table>
<form method="post" action="/api/clear" onsubmit="fetch('/api/clear',{method:'POST'});return false;"><button type="submit">Clear</button></form>

<h2>Causes</h2>
<table>
{{range .Board.Causes}}<tr><th>{{.Name}}</th><td class="{{if .Tripped}}trip{{else if .Alarmed}}alarm{{else}}ok{{end}}">{{if .Tripped}}TRIP{{else if .Alarmed}}ALARM{{else}}ok{{end}}</td></tr>
{{else}}<tr><td>no causes</td></tr>
{{end}}</table>

<h2>Channels</h2>
<table>
<tr><th>Channel</th><th>Value</th><th>State</th></tr>
{{range .Board.Channels}}<tr><td>{{.Family}}/{{.Name}}</td><td>{{printf "%.2f" .Value}}</td><td class="{{if .Trip}}trip{{else if .Alarm}}alarm{{else if or .OutOfRange .CommFault}}fault{{else}}ok{{end}}">{{if .Trip}}TRIP{{else if .Alarm}}ALARM{{else if .OutOfRange}}out of range{{else if .CommFault}}comm fault{{else}}ok{{end}}</td></tr>
{{end}}</table>

<h2>Event Counts</h2>
<table>
<tr><th>Interlock</th><td>{{.Counts.Interlock}}</td></tr>
<tr><th>Alarm</th><td>{{.Counts.Alarm}}</td></tr>
<tr><th>Clear</th><td>{{.Counts.Clear}}</td></tr>
{{if .LastEvent}}<tr><th>Last</th><td>{{.LastEvent.Type}} at {{.LastEvent.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Ticks</th><td>{{.Ticks}}</td></tr>
<tr><th>Application tick</th><td>{{.Config.AppTickMs}}ms</td></tr>
<tr><th>Telemetry tick</th><td>{{.Config.TelemetryMs}}ms</td></tr>
<tr><th>LED polarity</th><td>{{.Config.LEDPolarity}}</td></tr>
<tr><th>CAN</th><td>{{.Config.CANBackend}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}{{if .Config.Broker}} ({{.Config.Broker}}){{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/api/channels">Channels</a> | <a href="/api/history">History</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }
  function set(id, text, cls) {
    var el = document.getElementById(id);
    el.textContent = text;
    if (cls) { el.className = cls; }
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        set("itlk", s.interlocked ? "TRIPPED" : "OK", s.interlocked ? "trip" : "ok");
        set("alarm", s.alarmed ? "ALARM" : "OK", s.alarmed ? "alarm" : "ok");
        set("itlk-bits", s.interlock_bits);
        set("alarm-bits", s.alarm_bits);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	variant := snap.Board.Variant
	if variant == "" {
		variant = snap.Config.Variant
	}
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Variant string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Variant:  variant,
	}
	return indexTmpl.Execute(w, data)
}
