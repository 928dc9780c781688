package controller

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/points-servo/internal/buffer"
	"github.com/sweeney/points-servo/internal/demand"
	"github.com/sweeney/points-servo/internal/gpio"
	"github.com/sweeney/points-servo/internal/mqtt"
	"github.com/sweeney/points-servo/internal/servo"
	"github.com/sweeney/points-servo/internal/status"
	"github.com/sweeney/points-servo/internal/switches"
)

func noSleep(time.Duration) {}

type rig struct {
	inputs   map[int]*gpio.FakeInput
	pwms     map[int]*gpio.FakePWM
	queue    *buffer.Channel[demand.Observation]
	poller   *Poller
	loop     *Loop
	group    *servo.Group
	pub      *mqtt.FakePublisher
	tracker  *status.Tracker
	bindings demand.SwitchMap
}

// newRig wires switches 16 and 17 to servos 0, 1 (switch 16) and 2 (switch 17).
func newRig(t *testing.T, capacity int) *rig {
	t.Helper()
	r := &rig{
		inputs:   map[int]*gpio.FakeInput{16: gpio.NewFakeInput(1), 17: gpio.NewFakeInput(1)},
		pwms:     map[int]*gpio.FakePWM{},
		queue:    buffer.New[demand.Observation](capacity),
		pub:      mqtt.NewFakePublisher(),
		tracker:  status.NewTracker(time.Now(), status.Config{}),
		bindings: demand.SwitchMap{16: {0, 1}, 17: {2}},
	}

	var sws []*switches.Switch
	for _, pin := range []int{16, 17} {
		sws = append(sws, switches.New(pin, r.inputs[pin], switches.WithSleep(noSleep)))
	}
	r.poller = NewPoller(switches.NewGroup(sws...), r.queue, 10*time.Millisecond, WithPollerTracker(r.tracker))
	r.loop = NewLoop(r.queue, r.bindings, WithTracker(r.tracker), WithPublisher(r.pub))

	var bindings []servo.Binding
	for id := 0; id < 3; id++ {
		r.pwms[id] = gpio.NewFakePWM()
		bindings = append(bindings, servo.Binding{
			Settings: servo.Settings{ID: id, OffPulse: 1_000_000, OnPulse: 2_000_000, Transition: 10 * time.Millisecond, Steps: 5},
			PWM:      r.pwms[id],
		})
	}
	g, err := servo.NewGroup(bindings, servo.WithObserver(r.loop), servo.WithSleep(noSleep))
	require.NoError(t, err)
	r.group = g
	return r
}

// closed and open are raw active-low levels.
const (
	closed = 0
	open   = 1
)

func TestSwitchesDriveServos(t *testing.T) {
	r := newRig(t, 4)
	r.inputs[16].Set(closed)
	r.inputs[17].Set(open)

	require.True(t, r.poller.Poll(time.Now()))
	r.queue.Put(demand.Observation{Stop: true})

	assert.Equal(t, 1, r.loop.Run(r.group))
	assert.Equal(t, map[int]demand.State{0: demand.On, 1: demand.On, 2: demand.Off}, r.group.States())

	events := r.pub.Recorded()
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, SourceSwitches, ev.Source)
		assert.Equal(t, demand.Unset, ev.From)
	}

	snap := r.tracker.Snapshot()
	require.Len(t, snap.Actuators, 3)
	assert.Equal(t, int64(2_000_000), snap.Actuators[0].Position)
	assert.Equal(t, 1, snap.Actuators[2].Moves)
	assert.True(t, snap.Baselined)
}

func TestPollQueuesOnlyChanges(t *testing.T) {
	r := newRig(t, 4)

	assert.True(t, r.poller.Poll(time.Now()), "baseline")
	assert.False(t, r.poller.Poll(time.Now()))
	assert.Equal(t, 1, r.queue.Len())

	r.inputs[17].Set(closed)
	assert.True(t, r.poller.Poll(time.Now()))
	assert.Equal(t, 2, r.queue.Len())

	items := r.queue.Items()
	assert.Equal(t, demand.SwitchStates{16: demand.Off, 17: demand.Off}, items[0].Switches)
	assert.Equal(t, demand.SwitchStates{16: demand.Off, 17: demand.On}, items[1].Switches)
	assert.Equal(t, demand.EventCounts{17: {On: 1}}, r.tracker.Snapshot().Counts)
}

func TestPollBouncingSwitchReadsOff(t *testing.T) {
	r := newRig(t, 4)
	r.inputs[16].Samples = []int{closed, open, closed}

	require.True(t, r.poller.Poll(time.Now()))
	obs := r.queue.Get()
	assert.Equal(t, demand.Off, obs.Switches[16])
}

func TestPollReadErrorSkipsSwitch(t *testing.T) {
	r := newRig(t, 4)
	r.inputs[16].ReadError = errors.New("line busy")
	r.inputs[17].Set(closed)

	require.True(t, r.poller.Poll(time.Now()))
	obs := r.queue.Get()
	assert.Equal(t, demand.SwitchStates{17: demand.On}, obs.Switches)
}

func TestPollAllErrorsQueuesNothing(t *testing.T) {
	r := newRig(t, 4)
	r.inputs[16].ReadError = errors.New("gone")
	r.inputs[17].ReadError = errors.New("gone")

	assert.False(t, r.poller.Poll(time.Now()))
	assert.Equal(t, 0, r.queue.Len())
}

func TestPollBlocksWhenQueueFull(t *testing.T) {
	r := newRig(t, 1)
	require.True(t, r.poller.Poll(time.Now()))
	assert.False(t, r.queue.HasSpace())

	r.inputs[16].Set(closed)
	done := make(chan bool)
	go func() { done <- r.poller.Poll(time.Now()) }()

	select {
	case <-done:
		t.Fatal("Poll returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	r.queue.Get()
	select {
	case queued := <-done:
		assert.True(t, queued)
	case <-time.After(time.Second):
		t.Fatal("Poll did not resume after space was freed")
	}
}

func TestHeartbeat(t *testing.T) {
	queue := buffer.New[demand.Observation](4)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{})
	sw := switches.New(16, gpio.NewFakeInput(open), switches.WithSleep(noSleep))
	p := NewPoller(switches.NewGroup(sw), queue, time.Millisecond,
		WithPollerTracker(tracker), WithHeartbeat(time.Minute, pub))

	now := time.Now()
	p.Poll(now)
	assert.Empty(t, pub.RecordedSystem())

	p.Poll(now.Add(2 * time.Minute))
	sys := pub.RecordedSystem()
	require.Len(t, sys, 1)
	assert.Equal(t, "HEARTBEAT", sys[0].Event)
	assert.True(t, sys[0].Retained)
	assert.True(t, strings.Contains(string(sys[0].RawPayload), `"event":"HEARTBEAT"`))
}

func TestPollerReportsMQTTConnection(t *testing.T) {
	queue := buffer.New[demand.Observation](4)
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := status.NewTracker(time.Now(), status.Config{})
	sw := switches.New(16, gpio.NewFakeInput(open), switches.WithSleep(noSleep))
	p := NewPoller(switches.NewGroup(sw), queue, time.Millisecond,
		WithPollerTracker(tracker), WithHeartbeat(0, pub))

	p.Poll(time.Now())
	assert.True(t, tracker.Snapshot().MQTTConnected)
}

func TestLoopDrainsInOrderBeforeStop(t *testing.T) {
	r := newRig(t, 4)
	r.queue.Put(demand.Observation{Source: "console", Switches: demand.SwitchStates{17: demand.On}})
	r.queue.Put(demand.Observation{Source: "console", Switches: demand.SwitchStates{17: demand.Off}})
	r.queue.Put(demand.Observation{Stop: true})

	assert.Equal(t, 2, r.loop.Run(r.group))
	assert.Equal(t, demand.Off, r.group.Actuator(2).State())
	assert.Equal(t, demand.Unset, r.group.Actuator(0).State(), "servo 0 is not bound to switch 17")

	events := r.pub.Recorded()
	require.Len(t, events, 2)
	assert.Equal(t, demand.On, events[0].To)
	assert.Equal(t, demand.Off, events[1].To)
	assert.Equal(t, "console", events[1].Source)
}

func TestLoopSkipsServosAlreadyInPlace(t *testing.T) {
	r := newRig(t, 4)
	obs := demand.Observation{Source: SourceSwitches, Switches: demand.SwitchStates{16: demand.On}}

	r.loop.Handle(r.group, obs)
	r.pwms[0].Reset()
	r.loop.Handle(r.group, obs)

	assert.Empty(t, r.pwms[0].Pulses())
	assert.Len(t, r.pub.Recorded(), 2)
}

func TestLoopUnboundSwitch(t *testing.T) {
	r := newRig(t, 4)
	got := r.loop.Handle(r.group, demand.Observation{Switches: demand.SwitchStates{99: demand.On}})
	assert.Nil(t, got)
	assert.Empty(t, r.pub.Recorded())
}

func TestLoopPublishErrorsAreNotFatal(t *testing.T) {
	r := newRig(t, 4)
	r.pub.PublishError = errors.New("broker down")
	r.queue.Put(demand.Observation{Switches: demand.SwitchStates{16: demand.On, 17: demand.On}})
	r.queue.Put(demand.Observation{Stop: true})

	assert.Equal(t, 1, r.loop.Run(r.group))
	assert.Equal(t, map[int]demand.State{0: demand.On, 1: demand.On, 2: demand.On}, r.group.States())
	assert.Equal(t, 3, r.pub.Calls)
}

func TestPollerRunStops(t *testing.T) {
	r := newRig(t, 4)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		r.poller.Run(stop)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop")
	}
	assert.Equal(t, 1, r.queue.Len(), "only the baseline is queued while switches are steady")
}
