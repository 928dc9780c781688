package mqtt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/sony/gobreaker/v2"
)

// Default breaker settings.
const (
	defaultMaxFailures uint32        = 3
	defaultOpenTimeout time.Duration = 30 * time.Second
	defaultInterval    time.Duration = time.Minute
)

// BreakerConfig configures a BreakerPublisher. Zero fields take defaults.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout time.Duration
	// Interval clears failure counts while closed.
	Interval time.Duration
}

// BreakerPublisher wraps a Publisher with a circuit breaker. While the
// circuit is open publishes fail immediately with ErrCircuitOpen.
type BreakerPublisher struct {
	inner   Publisher
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// ErrCircuitOpen is returned while the breaker rejects publishes.
var ErrCircuitOpen = errors.New("mqtt: circuit open")

// NewBreakerPublisher wraps inner.
func NewBreakerPublisher(inner Publisher, cfg BreakerConfig) *BreakerPublisher {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultOpenTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultInterval
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "mqtt",
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			glog.Warningf("%s: breaker %s -> %s", name, from, to)
		},
	})
	return &BreakerPublisher{inner: inner, breaker: cb}
}

func (b *BreakerPublisher) run(fn func() error) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

// Publish implements Publisher.
func (b *BreakerPublisher) Publish(event Event) error {
	return b.run(func() error { return b.inner.Publish(event) })
}

// PublishSystem implements Publisher.
func (b *BreakerPublisher) PublishSystem(event SystemEvent) error {
	return b.run(func() error { return b.inner.PublishSystem(event) })
}

// Close closes the wrapped publisher. It bypasses the breaker.
func (b *BreakerPublisher) Close() error {
	return b.inner.Close()
}

// IsConnected reports the wrapped publisher's connection status, or false
// if it does not report one.
func (b *BreakerPublisher) IsConnected() bool {
	if cs, ok := b.inner.(ConnectionStatus); ok {
		return cs.IsConnected()
	}
	return false
}

// State returns the breaker state.
func (b *BreakerPublisher) State() gobreaker.State {
	return b.breaker.State()
}

var (
	_ Publisher        = (*BreakerPublisher)(nil)
	_ ConnectionStatus = (*BreakerPublisher)(nil)
	_ Publisher        = (*RealPublisher)(nil)
	_ ConnectionStatus = (*RealPublisher)(nil)
)
