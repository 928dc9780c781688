// Package demand turns observed switch states into actuator demand.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package demand

import (
	"fmt"
	"strings"
	"time"
)

// State is the logical state of a switch or actuator.
type State int8

const (
	Unset State = -1
	Off   State = 0
	On    State = 1
)

// StateOf converts a 0/1 reading into a State.
func StateOf(v int) State {
	if v != 0 {
		return On
	}
	return Off
}

// String returns "ON", "OFF" or "UNKNOWN".
func (s State) String() string {
	switch s {
	case On:
		return "ON"
	case Off:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseState accepts on/off, 1/0 and true/false in any case.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "1", "true":
		return On, nil
	case "off", "0", "false":
		return Off, nil
	}
	return Unset, fmt.Errorf("invalid state %q", s)
}

// SwitchStates maps switch id (input pin) to its observed state.
type SwitchStates map[int]State

// SwitchMap binds each switch id to the actuator ids it drives.
type SwitchMap map[int][]int

// Batch maps actuator id to demanded state. It is built once per
// observation and consumed once.
type Batch map[int]State

// Observation is a snapshot of switch states queued for the consumer loop.
type Observation struct {
	Time     time.Time
	Source   string // "switches", "console"
	Switches SwitchStates
	// Stop tells the consumer to return after draining everything queued
	// before it.
	Stop bool
}

// SwitchCounts tracks the number of ON and OFF transitions of one switch.
type SwitchCounts struct {
	On  int
	Off int
}

// EventCounts tracks switch transitions since startup, keyed by switch id.
type EventCounts map[int]SwitchCounts

// Clone returns an independent copy.
func (c EventCounts) Clone() EventCounts {
	out := make(EventCounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
