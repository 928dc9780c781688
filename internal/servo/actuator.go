package servo

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/sweeney/points-servo/internal/demand"
	"github.com/sweeney/points-servo/internal/gpio"
	"github.com/sweeney/points-servo/internal/motion"
)

// DefaultSteps is the number of intermediate positions in a transition.
const DefaultSteps = 100

// Settings describes one servo. Pulse widths are in nanoseconds.
type Settings struct {
	ID         int
	OffPulse   int64
	OnPulse    int64
	Transition time.Duration
	Steps      int
	Profile    motion.Profile
	Hz         int
}

// Actuator is a servo with two end positions.
//
// Only the owning Group calls Transition, and never concurrently for the
// same actuator. State and Position may be polled from any goroutine.
type Actuator struct {
	id         int
	pwm        gpio.PWM
	relay      *Relay
	offPulse   int64
	onPulse    int64
	transition time.Duration
	steps      int
	profile    motion.Profile
	toOn       motion.Curve
	toOff      motion.Curve
	sleep      func(time.Duration)

	mu       sync.Mutex
	position int64 // last pulse written; 0 until known
	state    demand.State
}

func newActuator(s Settings, pwm gpio.PWM, relay *Relay, sleep func(time.Duration)) *Actuator {
	steps := s.Steps
	if steps <= 0 {
		steps = DefaultSteps
	}
	toOn, toOff := s.Profile.Curves()
	return &Actuator{
		id:         s.ID,
		pwm:        pwm,
		relay:      relay,
		offPulse:   s.OffPulse,
		onPulse:    s.OnPulse,
		transition: s.Transition,
		steps:      steps,
		profile:    s.Profile,
		toOn:       toOn,
		toOff:      toOff,
		sleep:      sleep,
		state:      demand.Unset,
	}
}

// ID returns the actuator id.
func (a *Actuator) ID() int { return a.id }

// Profile returns the bound motion profile.
func (a *Actuator) Profile() motion.Profile { return a.profile }

// Duration returns the configured transition time.
func (a *Actuator) Duration() time.Duration { return a.transition }

// Endpoints returns the off and on pulse widths.
func (a *Actuator) Endpoints() (off, on int64) { return a.offPulse, a.onPulse }

// State returns the logical state, Unset before the first move.
func (a *Actuator) State() demand.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Position returns the last pulse width written, 0 if none.
func (a *Actuator) Position() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position
}

func (a *Actuator) target(s demand.State) int64 {
	if s == demand.On {
		return a.onPulse
	}
	return a.offPulse
}

func opposite(s demand.State) demand.State {
	if s == demand.On {
		return demand.Off
	}
	return demand.On
}

// Transition moves the servo to target along its profile and returns the
// resulting state. It is a no-op if the servo is already there or target
// is not On or Off.
//
// Each of the steps writes start + y%*(target-start)/100 for progress
// x = 100*k/steps and then sleeps transition/steps. The exact target is
// written last, after which the pulse is stopped.
func (a *Actuator) Transition(target demand.State) demand.State {
	a.mu.Lock()
	current, start := a.state, a.position
	a.mu.Unlock()

	if target == current || (target != demand.On && target != demand.Off) {
		return current
	}

	final, curve := a.offPulse, a.toOff
	if target == demand.On {
		final, curve = a.onPulse, a.toOn
	}
	if start == 0 {
		// Position unknown: assume the servo sits at the opposite end.
		start = a.target(opposite(target))
	}

	var relayDone <-chan struct{}
	if a.relay != nil {
		relayDone = a.relay.setAfter(target, a.transition/2, a.sleep)
	}

	glog.V(1).Infof("servo %d: %s -> %s (%s, %v)", a.id, current, target, curve.Name(), a.transition)

	pause := a.transition / time.Duration(a.steps)
	delta := final - start
	for k := 1; k <= a.steps; k++ {
		a.write(start + curve.Offset(k, a.steps, delta))
		a.sleep(pause)
	}
	a.write(final)
	if err := a.pwm.SetPulseWidth(0); err != nil {
		glog.Warningf("servo %d: stop pulse: %v", a.id, err)
	}

	if relayDone != nil {
		<-relayDone
	}

	a.mu.Lock()
	a.position = final
	a.state = target
	a.mu.Unlock()
	return target
}

// Set moves the servo straight to target without a profile and leaves the
// pulse running. Used during start-up before positions are known.
func (a *Actuator) Set(target demand.State) {
	if target != demand.On && target != demand.Off {
		return
	}
	final := a.target(target)
	a.write(final)
	if a.relay != nil {
		if err := a.relay.Set(target); err != nil {
			glog.Warningf("servo %d: %v", a.id, err)
		}
	}
	a.mu.Lock()
	a.position = final
	a.state = target
	a.mu.Unlock()
}

// Disable stops the pulse train.
func (a *Actuator) Disable() {
	if err := a.pwm.SetPulseWidth(0); err != nil {
		glog.Warningf("servo %d: stop pulse: %v", a.id, err)
	}
}

// write sends ns to the servo. Widths outside the servo's range are
// dropped; write errors are logged and the move carries on.
func (a *Actuator) write(ns int64) {
	if !InRange(ns) {
		glog.V(2).Infof("servo %d: dropped out-of-range pulse %dns", a.id, ns)
		return
	}
	if err := a.pwm.SetPulseWidth(ns); err != nil {
		glog.Warningf("servo %d: set pulse %dns: %v", a.id, ns, err)
		return
	}
	glog.V(2).Infof("servo %d: pulse %dns", a.id, ns)
	a.mu.Lock()
	a.position = ns
	a.mu.Unlock()
}
