package controller

import (
	"sync"

	"github.com/golang/glog"

	"github.com/sweeney/points-servo/internal/buffer"
	"github.com/sweeney/points-servo/internal/demand"
	"github.com/sweeney/points-servo/internal/mqtt"
	"github.com/sweeney/points-servo/internal/servo"
	"github.com/sweeney/points-servo/internal/status"
)

// Mover moves servos to a demand batch. *servo.Group implements it.
type Mover interface {
	MatchDemand(batch demand.Batch) map[int]demand.State
	Positions() map[int]int64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithTracker reports servo states and moves to t.
func WithTracker(t *status.Tracker) LoopOption {
	return func(l *Loop) { l.tracker = t }
}

// WithPublisher publishes one event per completed transition.
func WithPublisher(pub mqtt.Publisher) LoopOption {
	return func(l *Loop) { l.pub = pub }
}

// Loop is the single consumer of the demand queue. It routes each
// observation to a batch and waits for the group to finish moving before
// taking the next one.
type Loop struct {
	in       *buffer.Channel[demand.Observation]
	bindings demand.SwitchMap
	tracker  *status.Tracker
	pub      mqtt.Publisher

	mu     sync.Mutex
	source string // source of the observation being handled
}

// NewLoop creates a Loop reading from in and routing with bindings.
func NewLoop(in *buffer.Channel[demand.Observation], bindings demand.SwitchMap, opts ...LoopOption) *Loop {
	l := &Loop{
		in:       in,
		bindings: bindings,
		pub:      mqtt.NopPublisher{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run handles observations until a Stop observation arrives and returns
// the number handled, not counting the Stop.
func (l *Loop) Run(m Mover) int {
	handled := 0
	for {
		obs := l.in.Get()
		if obs.Stop {
			glog.Infof("demand loop stopping after %d observations", handled)
			return handled
		}
		l.Handle(m, obs)
		handled++
	}
}

// Handle routes one observation and blocks until every servo it moves has
// arrived.
func (l *Loop) Handle(m Mover, obs demand.Observation) map[int]demand.State {
	batch := demand.Route(obs.Switches, l.bindings)
	if len(batch) == 0 {
		glog.V(1).Infof("observation from %s drives no servos", obs.Source)
		return nil
	}
	glog.V(1).Infof("demand from %s: %v", obs.Source, batch)

	l.mu.Lock()
	l.source = obs.Source
	l.mu.Unlock()

	result := m.MatchDemand(batch)

	if l.tracker != nil {
		l.tracker.UpdateActuators(result, m.Positions())
		l.tracker.SetQueue(l.in.Len(), l.in.Cap())
	}
	return result
}

// Transitioned implements servo.Observer. Pass the Loop to servo.WithObserver.
func (l *Loop) Transitioned(t servo.Transition) {
	l.mu.Lock()
	source := l.source
	l.mu.Unlock()

	glog.Infof("servo %d: %s -> %s in %v", t.ID, t.From, t.To, t.Elapsed)
	if l.tracker != nil {
		l.tracker.RecordMove(t.ID, t.To, t.Started.Add(t.Elapsed))
	}
	err := l.pub.Publish(mqtt.Event{
		Timestamp: t.Started.Add(t.Elapsed),
		Actuator:  t.ID,
		From:      t.From,
		To:        t.To,
		Elapsed:   t.Elapsed,
		Source:    source,
	})
	if err != nil {
		glog.Warningf("mqtt publish error: %v", err)
	}
}

var _ servo.Observer = (*Loop)(nil)
