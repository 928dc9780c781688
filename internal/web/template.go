package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/points-servo/internal/status"
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
	"stateClass": func(s fmt.Stringer) string {
		switch s.String() {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		}
		return "unknown"
	},
	"us": func(ns int64) string {
		if ns == 0 {
			return "-"
		}
		return fmt.Sprintf("%dµs", ns/1000)
	},
	"lower": strings.ToLower,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Points Servo</title>
<style>
body { font-family: monospace; max-width: 700px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Points Servo</h1>

<h2>Servos</h2>
<table>
<tr><th>ID</th><th>Name</th><th>State</th><th>Pulse</th><th>Profile</th><th>Moves</th></tr>
{{range .Actuators}}<tr id="servo-{{.ID}}"><td>{{.ID}}</td><td>{{.Name}}</td><td class="{{stateClass .State}}">{{.State}}</td><td>{{us .Position}}</td><td>{{.Profile}}</td><td>{{.Moves}}</td></tr>
{{else}}<tr><td colspan="6">no servos</td></tr>
{{end}}</table>

<h2>Switches</h2>
<table>
<tr><th>Pin</th><th>State</th><th>ON</th><th>OFF</th></tr>
{{range .Switches}}<tr id="switch-{{.Pin}}"><td>{{.Pin}}</td><td class="{{lower .State}}">{{.State}}</td><td>{{.On}}</td><td>{{.Off}}</td></tr>
{{else}}<tr><td colspan="4">no readings yet</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
<tr><th>Queue</th><td>{{.QueueLen}}/{{.QueueCap}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Layout</th><td>{{.Config.Layout}} ({{.Config.Summary}})</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

type switchRow struct {
	Pin   int
	State string
	On    int
	Off   int
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	rows := make([]switchRow, 0, len(snap.Switches))
	for _, pin := range snap.SwitchPins() {
		c := snap.Counts[pin]
		rows = append(rows, switchRow{Pin: pin, State: snap.Switches[pin].String(), On: c.On, Off: c.Off})
	}

	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Switches []switchRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Switches: rows,
	}
	return indexTmpl.Execute(w, data)
}
