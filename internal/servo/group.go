package servo

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/sweeney/points-servo/internal/demand"
	"github.com/sweeney/points-servo/internal/gpio"
)

// Binding pairs a servo's settings with its outputs. Relay may be nil.
type Binding struct {
	Settings Settings
	PWM      gpio.PWM
	Relay    *Relay
}

// Transition describes one completed move.
type Transition struct {
	ID      int
	From    demand.State
	To      demand.State
	Started time.Time
	Elapsed time.Duration
}

// Observer is notified after each completed transition.
// Calls may arrive concurrently from different servos.
type Observer interface {
	Transitioned(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

// Transitioned implements Observer.
func (f ObserverFunc) Transitioned(t Transition) { f(t) }

// Option configures a Group.
type Option func(*Group)

// WithObserver registers an observer for completed transitions.
func WithObserver(o Observer) Option {
	return func(g *Group) { g.observer = o }
}

// WithSleep replaces time.Sleep in stepping, relay delays and settling.
func WithSleep(sleep func(time.Duration)) Option {
	return func(g *Group) { g.sleep = sleep }
}

// Group owns every servo, keyed by id.
type Group struct {
	actuators map[int]*Actuator
	ids       []int
	observer  Observer
	sleep     func(time.Duration)

	// mu serializes MatchDemand and Initialise. A batch that arrives while
	// another is moving waits for it to finish.
	mu sync.Mutex
}

// NewGroup builds the servos described by bindings. Ids come from the
// bindings and must be unique.
func NewGroup(bindings []Binding, opts ...Option) (*Group, error) {
	g := &Group{
		actuators: make(map[int]*Actuator, len(bindings)),
		sleep:     time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, b := range bindings {
		id := b.Settings.ID
		if _, dup := g.actuators[id]; dup {
			return nil, fmt.Errorf("servo %d: duplicate id", id)
		}
		if b.PWM == nil {
			return nil, fmt.Errorf("servo %d: no pwm output", id)
		}
		hz := b.Settings.Hz
		if hz <= 0 {
			hz = gpio.ServoHz
		}
		if err := b.PWM.SetFrequency(hz); err != nil {
			return nil, fmt.Errorf("servo %d: set frequency: %w", id, err)
		}
		g.actuators[id] = newActuator(b.Settings, b.PWM, b.Relay, g.sleep)
		g.ids = append(g.ids, id)
	}
	sort.Ints(g.ids)
	return g, nil
}

// IDs returns the servo ids in ascending order.
func (g *Group) IDs() []int {
	return append([]int(nil), g.ids...)
}

// Actuator returns the servo with the given id, or nil.
func (g *Group) Actuator(id int) *Actuator {
	return g.actuators[id]
}

// States returns every servo's logical state.
func (g *Group) States() map[int]demand.State {
	out := make(map[int]demand.State, len(g.ids))
	for _, id := range g.ids {
		out[id] = g.actuators[id].State()
	}
	return out
}

// Positions returns every servo's last written pulse width.
func (g *Group) Positions() map[int]int64 {
	out := make(map[int]int64, len(g.ids))
	for _, id := range g.ids {
		out[id] = g.actuators[id].Position()
	}
	return out
}

// MatchDemand moves every servo in batch to its demanded state.
//
// Servos already in the demanded state are not moved. The remaining moves
// run concurrently and MatchDemand returns once all have finished, so it
// takes as long as the slowest move rather than their sum. The result holds
// the resulting state of every known servo in batch; unknown ids are skipped.
func (g *Group) MatchDemand(batch demand.Batch) map[int]demand.State {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]int, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	result := make(map[int]demand.State, len(batch))
	var (
		wg    sync.WaitGroup
		resMu sync.Mutex
	)
	for _, id := range ids {
		a, ok := g.actuators[id]
		if !ok {
			glog.Warningf("demand for unknown servo %d ignored", id)
			continue
		}
		want := batch[id]
		from := a.State()
		if want == from || (want != demand.On && want != demand.Off) {
			result[id] = from
			continue
		}

		wg.Add(1)
		go func(a *Actuator, from, want demand.State) {
			defer wg.Done()
			started := time.Now()
			got := a.Transition(want)

			resMu.Lock()
			result[a.ID()] = got
			resMu.Unlock()

			if g.observer != nil {
				g.observer.Transitioned(Transition{
					ID:      a.ID(),
					From:    from,
					To:      got,
					Started: started,
					Elapsed: time.Since(started),
				})
			}
		}(a, from, want)
	}
	wg.Wait()
	return result
}

// Initialise sets each listed servo straight to its state, one at a time
// with settle between moves, then stops every pulse. Moving servos one by
// one keeps the start-up current draw to a single servo.
func (g *Group) Initialise(initial map[int]demand.State, settle time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range g.ids {
		s, ok := initial[id]
		if !ok {
			continue
		}
		g.actuators[id].Set(s)
		glog.V(1).Infof("servo %d: initialised %s", id, s)
		g.sleep(settle)
	}
	for _, id := range g.ids {
		g.actuators[id].Disable()
	}
}

// Disable stops every pulse. It waits for any in-flight MatchDemand.
func (g *Group) Disable() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range g.ids {
		g.actuators[id].Disable()
	}
}
