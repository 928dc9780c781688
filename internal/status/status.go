// Package status provides a thread-safe status tracker for the points-servo
// daemon. It is read by the HTTP handlers, the console and heartbeat events.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/points-servo/internal/demand"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Layout      string // path of the layout file
	Summary     string
}

// Actuator is one servo as seen by the status page.
type Actuator struct {
	ID       int
	Name     string
	Profile  string
	State    demand.State
	Position int64 // ns
	Moves    int
	LastMove time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Actuators     []Actuator // ascending id
	Switches      demand.SwitchStates
	Baselined     bool
	Counts        demand.EventCounts
	QueueLen      int
	QueueCap      int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// SwitchPins returns the observed switch pins in ascending order.
func (s Snapshot) SwitchPins() []int {
	pins := make([]int, 0, len(s.Switches))
	for p := range s.Switches {
		pins = append(pins, p)
	}
	sort.Ints(pins)
	return pins
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu        sync.RWMutex
	snap      Snapshot
	actuators map[int]*Actuator
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		actuators: make(map[int]*Actuator),
	}
}

// AddActuator registers a servo for display.
func (t *Tracker) AddActuator(id int, name, profile string) {
	t.mu.Lock()
	t.actuators[id] = &Actuator{ID: id, Name: name, Profile: profile, State: demand.Unset}
	t.mu.Unlock()
}

// UpdateSwitches sets switch states, baseline status and event counts.
func (t *Tracker) UpdateSwitches(states demand.SwitchStates, baselined bool, counts demand.EventCounts) {
	t.mu.Lock()
	t.snap.Switches = states
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// UpdateActuators sets servo states and positions. Unregistered ids are
// added.
func (t *Tracker) UpdateActuators(states map[int]demand.State, positions map[int]int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, s := range states {
		a := t.actuator(id)
		a.State = s
	}
	for id, p := range positions {
		a := t.actuator(id)
		a.Position = p
	}
}

// RecordMove counts a completed transition.
func (t *Tracker) RecordMove(id int, to demand.State, at time.Time) {
	t.mu.Lock()
	a := t.actuator(id)
	a.State = to
	a.Moves++
	a.LastMove = at
	t.mu.Unlock()
}

// must hold t.mu
func (t *Tracker) actuator(id int) *Actuator {
	a, ok := t.actuators[id]
	if !ok {
		a = &Actuator{ID: id, State: demand.Unset}
		t.actuators[id] = a
	}
	return a
}

// SetQueue records the demand queue fill level.
func (t *Tracker) SetQueue(length, capacity int) {
	t.mu.Lock()
	t.snap.QueueLen = length
	t.snap.QueueCap = capacity
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Switches != nil {
		sw := make(demand.SwitchStates, len(s.Switches))
		for k, v := range s.Switches {
			sw[k] = v
		}
		s.Switches = sw
	}
	s.Counts = s.Counts.Clone()
	s.Actuators = make([]Actuator, 0, len(t.actuators))
	for _, a := range t.actuators {
		s.Actuators = append(s.Actuators, *a)
	}
	t.mu.RUnlock()

	sort.Slice(s.Actuators, func(i, j int) bool { return s.Actuators[i].ID < s.Actuators[j].ID })
	s.Now = time.Now()
	return s
}
