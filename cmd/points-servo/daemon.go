package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/sweeney/points-servo/internal/buffer"
	"github.com/sweeney/points-servo/internal/config"
	"github.com/sweeney/points-servo/internal/controller"
	"github.com/sweeney/points-servo/internal/demand"
	"github.com/sweeney/points-servo/internal/mqtt"
	"github.com/sweeney/points-servo/internal/servo"
	"github.com/sweeney/points-servo/internal/status"
	"github.com/sweeney/points-servo/internal/switches"
)

// options holds the command-line settings.
type options struct {
	layout    string
	poll      time.Duration
	debounce  time.Duration
	samples   int
	broker    string
	heartbeat time.Duration
	httpAddr  string
	queue     int
	chip      string
	mdns      bool
	console   bool
	dryRun    bool

	sleep func(time.Duration) // nil uses time.Sleep
}

// daemon is the wired pipeline: switches feed the poller, the poller feeds
// the demand queue, and the loop drains it into the servo group.
type daemon struct {
	cfg     *config.Config
	queue   *buffer.Channel[demand.Observation]
	servos  *servo.Group
	poller  *controller.Poller
	loop    *controller.Loop
	tracker *status.Tracker
	pub     mqtt.Publisher
	now     func() time.Time
}

func newDaemon(cfg *config.Config, hw hardware, pub mqtt.Publisher, tracker *status.Tracker, o options) (*daemon, error) {
	queue := buffer.New[demand.Observation](o.queue)
	loop := controller.NewLoop(queue, cfg.Switches,
		controller.WithTracker(tracker), controller.WithPublisher(pub))

	swOpts := []switches.Option{switches.WithSamples(o.samples, o.debounce)}
	servoOpts := []servo.Option{servo.WithObserver(loop)}
	if o.sleep != nil {
		swOpts = append(swOpts, switches.WithSleep(o.sleep))
		servoOpts = append(servoOpts, servo.WithSleep(o.sleep))
	}

	var sws []*switches.Switch
	for _, pin := range cfg.SwitchPins() {
		in, err := hw.Input(pin)
		if err != nil {
			return nil, fmt.Errorf("switch %d: %w", pin, err)
		}
		sws = append(sws, switches.New(pin, in, swOpts...))
	}

	bindings := make([]servo.Binding, 0, len(cfg.Actuators))
	for _, a := range cfg.Actuators {
		pwm, err := hw.PWM(a.Pin, cfg.Hz)
		if err != nil {
			return nil, fmt.Errorf("servo %d pwm: %w", a.Settings.ID, err)
		}
		b := servo.Binding{Settings: a.Settings, PWM: pwm}
		if a.RelayPin >= 0 {
			out, err := hw.Output(a.RelayPin)
			if err != nil {
				return nil, fmt.Errorf("servo %d relay: %w", a.Settings.ID, err)
			}
			b.Relay = servo.NewRelay(a.RelayPin, out)
		}
		bindings = append(bindings, b)
		tracker.AddActuator(a.Settings.ID, a.Name, a.Settings.Profile.String())
	}
	group, err := servo.NewGroup(bindings, servoOpts...)
	if err != nil {
		return nil, err
	}

	poller := controller.NewPoller(switches.NewGroup(sws...), queue, o.poll,
		controller.WithPollerTracker(tracker), controller.WithHeartbeat(o.heartbeat, pub))

	return &daemon{
		cfg:     cfg,
		queue:   queue,
		servos:  group,
		poller:  poller,
		loop:    loop,
		tracker: tracker,
		pub:     pub,
		now:     time.Now,
	}, nil
}

// start moves every servo to its configured initial state and announces
// the daemon.
func (d *daemon) start() {
	d.servos.Initialise(d.cfg.InitialStates(), d.cfg.Settle)
	d.tracker.UpdateActuators(d.servos.States(), d.servos.Positions())
	d.tracker.SetQueue(d.queue.Len(), d.queue.Cap())
	d.publishSystem("STARTUP", "")
}

// serve runs the poller and the demand loop until a signal arrives, then
// drains the queue and stops the servos.
func (d *daemon) serve(sig <-chan os.Signal) error {
	stop := make(chan struct{})
	pollerDone := make(chan struct{})
	go func() {
		d.poller.Run(stop)
		close(pollerDone)
	}()

	loopDone := make(chan int, 1)
	go func() {
		loopDone <- d.loop.Run(d.servos)
	}()

	s := <-sig
	glog.Infof("received %v, shutting down", s)

	close(stop)
	<-pollerDone
	d.queue.Put(demand.Observation{Time: d.now(), Stop: true})
	handled := <-loopDone
	glog.Infof("handled %d observations", handled)

	d.servos.Disable()
	d.tracker.UpdateActuators(d.servos.States(), d.servos.Positions())
	d.publishSystem("SHUTDOWN", signalName(s))
	return nil
}

func (d *daemon) publishSystem(event, reason string) {
	if cs, ok := d.pub.(mqtt.ConnectionStatus); ok {
		d.tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.pub.PublishSystem(ev); err != nil {
		glog.Warningf("failed to publish %s event: %v", event, err)
		return
	}
	glog.Infof("published %s event", event)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
