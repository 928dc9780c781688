// Package controller connects switch polling to the servo group through the
// bounded demand queue.
package controller

import (
	"time"

	"github.com/golang/glog"

	"github.com/sweeney/points-servo/internal/buffer"
	"github.com/sweeney/points-servo/internal/demand"
	"github.com/sweeney/points-servo/internal/mqtt"
	"github.com/sweeney/points-servo/internal/status"
)

// SourceSwitches marks observations read from the switch inputs.
const SourceSwitches = "switches"

// Reader reads every switch once, debounced.
type Reader interface {
	ReadDebounced() (demand.SwitchStates, error)
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollerTracker reports switch states to t.
func WithPollerTracker(t *status.Tracker) PollerOption {
	return func(p *Poller) { p.tracker = t }
}

// WithHeartbeat publishes a status snapshot to pub every interval.
// A zero interval disables heartbeats.
func WithHeartbeat(interval time.Duration, pub mqtt.Publisher) PollerOption {
	return func(p *Poller) {
		p.heartbeat = interval
		p.pub = pub
	}
}

// Poller samples the switches and queues an Observation whenever their
// debounced states change. It is the demand queue's main producer.
type Poller struct {
	reader    Reader
	detector  *demand.Detector
	out       *buffer.Channel[demand.Observation]
	interval  time.Duration
	tracker   *status.Tracker
	pub       mqtt.Publisher
	heartbeat time.Duration
}

// NewPoller creates a Poller reading r every interval into out.
func NewPoller(r Reader, out *buffer.Channel[demand.Observation], interval time.Duration, opts ...PollerOption) *Poller {
	p := &Poller{
		reader:   r,
		detector: demand.NewDetector(time.Now()),
		out:      out,
		interval: interval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll runs one cycle at now and reports whether an observation was queued.
// Put blocks while the queue is full.
func (p *Poller) Poll(now time.Time) bool {
	states, err := p.reader.ReadDebounced()
	if err != nil {
		glog.Warningf("switch read error: %v", err)
	}

	queued := false
	if p.detector.Process(states, now) {
		current := p.detector.CurrentState()
		glog.V(1).Infof("switches changed: %v", current)
		p.out.Put(demand.Observation{
			Time:     now,
			Source:   SourceSwitches,
			Switches: current,
		})
		queued = true
	}

	if p.tracker != nil {
		p.tracker.UpdateSwitches(p.detector.CurrentState(), p.detector.IsBaselined(), p.detector.EventCountsSnapshot())
		p.tracker.SetQueue(p.out.Len(), p.out.Cap())
		if cs, ok := p.pub.(mqtt.ConnectionStatus); ok {
			p.tracker.SetMQTTConnected(cs.IsConnected())
		}
	}

	if p.heartbeat > 0 && p.pub != nil {
		if hb := p.detector.CheckHeartbeat(now, p.heartbeat); hb != nil {
			p.publishHeartbeat(hb)
		}
	}
	return queued
}

func (p *Poller) publishHeartbeat(hb *demand.HeartbeatData) {
	ev := mqtt.SystemEvent{Timestamp: hb.Timestamp, Event: "HEARTBEAT", Retained: true}
	if p.tracker != nil {
		ev.RawPayload = status.FormatStatusEvent(p.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := p.pub.PublishSystem(ev); err != nil {
		glog.Warningf("mqtt heartbeat publish error: %v", err)
	}
}

// Run polls every interval until stop is closed.
func (p *Poller) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(time.Now())
	for {
		select {
		case <-stop:
			return
		case t := <-ticker.C:
			p.Poll(t)
		}
	}
}
