// Package switches reads toggle switches wired active-low with pull-ups.
package switches

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sweeney/points-servo/internal/demand"
	"github.com/sweeney/points-servo/internal/gpio"
)

// Debounce defaults: three samples spread over about 20ms.
const (
	DefaultSamples = 3
	DefaultWindow  = 20 * time.Millisecond
)

// Switch is one debounced switch input.
type Switch struct {
	Pin int // for diagnostics

	in      gpio.DigitalInput
	samples int
	pause   time.Duration
	sleep   func(time.Duration)
}

// Option configures a Switch.
type Option func(*Switch)

// WithSamples sets the number of samples taken by ReadDebounced and the
// window they are spread over. samples below 1 are treated as 1.
func WithSamples(samples int, window time.Duration) Option {
	return func(s *Switch) {
		if samples < 1 {
			samples = 1
		}
		s.samples = samples
		s.pause = 0
		if samples > 1 {
			s.pause = window / time.Duration(samples-1)
		}
	}
}

// WithSleep replaces time.Sleep between samples.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Switch) { s.sleep = sleep }
}

// New creates a Switch reading from in.
func New(pin int, in gpio.DigitalInput, opts ...Option) *Switch {
	s := &Switch{
		Pin:   pin,
		in:    in,
		sleep: time.Sleep,
	}
	WithSamples(DefaultSamples, DefaultWindow)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadOnce takes a single sample: 1 when closed (line pulled low), 0 when open.
func (s *Switch) ReadOnce() (int, error) {
	raw, err := s.in.ReadDigital()
	if err != nil {
		return 0, fmt.Errorf("switch %d: %w", s.Pin, err)
	}
	if raw == 0 {
		return 1, nil
	}
	return 0, nil
}

// ReadDebounced samples the switch repeatedly and reports On only if every
// sample reads closed. Any open sample, or a read error, yields Off.
func (s *Switch) ReadDebounced() (demand.State, error) {
	closed := true
	for i := 0; i < s.samples; i++ {
		if i > 0 {
			s.sleep(s.pause)
		}
		v, err := s.ReadOnce()
		if err != nil {
			return demand.Off, err
		}
		if v == 0 {
			closed = false
		}
	}
	if closed {
		return demand.On, nil
	}
	return demand.Off, nil
}

// Group reads a set of switches together.
type Group struct {
	switches map[int]*Switch
	pins     []int
}

// NewGroup creates a Group keyed by switch pin.
func NewGroup(switches ...*Switch) *Group {
	g := &Group{switches: make(map[int]*Switch, len(switches))}
	for _, s := range switches {
		g.switches[s.Pin] = s
		g.pins = append(g.pins, s.Pin)
	}
	sort.Ints(g.pins)
	return g
}

// Pins returns the switch pins in ascending order.
func (g *Group) Pins() []int {
	return append([]int(nil), g.pins...)
}

// ReadOnce takes a single undebounced sample of every switch.
func (g *Group) ReadOnce() (demand.SwitchStates, error) {
	states := make(demand.SwitchStates, len(g.pins))
	var firstErr error
	for _, pin := range g.pins {
		v, err := g.switches[pin].ReadOnce()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		states[pin] = demand.StateOf(v)
	}
	return states, firstErr
}

// ReadDebounced debounces every switch concurrently, so the whole group
// costs one debounce window. Switches that fail to read are left out of the
// result and the first error is returned.
func (g *Group) ReadDebounced() (demand.SwitchStates, error) {
	type result struct {
		state demand.State
		err   error
	}
	results := make([]result, len(g.pins))

	var wg sync.WaitGroup
	for i, pin := range g.pins {
		wg.Add(1)
		go func(i int, s *Switch) {
			defer wg.Done()
			st, err := s.ReadDebounced()
			results[i] = result{state: st, err: err}
		}(i, g.switches[pin])
	}
	wg.Wait()

	states := make(demand.SwitchStates, len(g.pins))
	var firstErr error
	for i, pin := range g.pins {
		if results[i].err != nil {
			if firstErr == nil {
				firstErr = results[i].err
			}
			continue
		}
		states[pin] = results[i].state
	}
	return states, firstErr
}
