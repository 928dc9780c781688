package status

import (
	"encoding/json"
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
	Ready         bool           `json:"ready"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Actuators     []ActuatorJSON `json:"actuators"`
	Switches      []SwitchJSON   `json:"switches"`
	Queue         QueueJSON      `json:"queue"`
	Config        ConfigJSON     `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ActuatorJSON is the JSON representation of one servo.
type ActuatorJSON struct {
	ID         int    `json:"id"`
	Name       string `json:"name,omitempty"`
	Profile    string `json:"profile,omitempty"`
	State      string `json:"state"`
	PositionNs int64  `json:"position_ns"`
	Moves      int    `json:"moves"`
	LastMove   string `json:"last_move,omitempty"`
}

// SwitchJSON is the JSON representation of one switch and its event counts.
type SwitchJSON struct {
	Pin   int    `json:"pin"`
	State string `json:"state"`
	On    int    `json:"on_count"`
	Off   int    `json:"off_count"`
}

// QueueJSON reports the demand queue fill level.
type QueueJSON struct {
	Length   int `json:"length"`
	Capacity int `json:"capacity"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	Layout      string `json:"layout,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Actuators:     make([]ActuatorJSON, 0, len(snap.Actuators)),
		Switches:      make([]SwitchJSON, 0, len(snap.Switches)),
		Queue:         QueueJSON{Length: snap.QueueLen, Capacity: snap.QueueCap},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			Layout:      snap.Config.Layout,
			Summary:     snap.Config.Summary,
		},
	}

	for _, a := range snap.Actuators {
		aj := ActuatorJSON{
			ID:         a.ID,
			Name:       a.Name,
			Profile:    a.Profile,
			State:      a.State.String(),
			PositionNs: a.Position,
			Moves:      a.Moves,
		}
		if !a.LastMove.IsZero() {
			aj.LastMove = a.LastMove.UTC().Format(time.RFC3339)
		}
		inner.Actuators = append(inner.Actuators, aj)
	}
	for _, pin := range snap.SwitchPins() {
		c := snap.Counts[pin]
		inner.Switches = append(inner.Switches, SwitchJSON{
			Pin:   pin,
			State: snap.Switches[pin].String(),
			On:    c.On,
			Off:   c.Off,
		})
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
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
