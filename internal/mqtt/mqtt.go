// Package mqtt publishes servo transitions and daemon lifecycle events.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/points-servo/internal/demand"
)

// Topic carries one message per completed servo transition.
const Topic = "railway/points/events"

// TopicSystem carries lifecycle events and status snapshots.
const TopicSystem = "railway/points/system"

// EventTransition is the event name of a servo move.
const EventTransition = "TRANSITION"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a transition event to the broker.
	// Errors are reported, never fatal to the caller.
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Event is one completed servo transition.
type Event struct {
	Timestamp time.Time
	Actuator  int
	From      demand.State
	To        demand.State
	Elapsed   time.Duration
	Source    string // producer of the demand, e.g. "switches", "console"
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
	Points PointsPayload `json:"points"`
}

// PointsPayload contains the transition details.
type PointsPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Actuator  int    `json:"actuator"`
	From      string `json:"from"`
	To        string `json:"to"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Source    string `json:"source,omitempty"`
}

// FormatPayload creates the JSON payload for a transition event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Points: PointsPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     EventTransition,
			Actuator:  event.Actuator,
			From:      event.From.String(),
			To:        event.To.String(),
			ElapsedMs: event.Elapsed.Milliseconds(),
			Source:    event.Source,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events
// that don't carry a full status snapshot.
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
// If event.RawPayload is set, it is returned directly.
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
