package mqtt

import (
	"fmt"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// AppID prefixes the client id and keys the protected machine id.
const AppID = "points-servo"

// DefaultBacklog is the number of messages held while disconnected.
const DefaultBacklog = 64

// ClientID returns a client id unique to this machine, derived from the
// machine id hashed with AppID.
func ClientID() string {
	id, err := machineid.ProtectedID(AppID)
	if err != nil || len(id) < 8 {
		glog.Warningf("mqtt: machine id unavailable (%v), using %q", err, AppID)
		return AppID
	}
	return AppID + "-" + id[:8]
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are held and sent on reconnect.
type RealPublisher struct {
	client paho.Client
	topic  string

	mu        sync.Mutex
	held      *outbox
	connected bool // seen at least one connection
}

// NewRealPublisher creates a publisher connected to the given broker.
// backlog bounds the messages held while disconnected.
func NewRealPublisher(broker string, backlog int) (*RealPublisher, error) {
	p := &RealPublisher{
		topic: Topic,
		held:  newOutbox(backlog),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(ClientID()).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			glog.Warningf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	msgs := p.held.drain()
	p.mu.Unlock()

	if reconnect {
		glog.Infof("mqtt: reconnected, sending %d held messages", len(msgs))
		if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
			glog.Warningf("mqtt: %v", err)
		}
	}
	for _, m := range msgs {
		if err := p.send(m); err != nil {
			glog.Warningf("mqtt: replay to %s: %v", m.topic, err)
		}
	}
}

// Publish sends a transition event to the MQTT broker.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.deliver(pending{topic: p.topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once)
	return p.deliver(pending{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) deliver(m pending) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.held.push(m)
		p.mu.Unlock()
		return nil
	}
	return p.send(m)
}

func (p *RealPublisher) send(m pending) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
