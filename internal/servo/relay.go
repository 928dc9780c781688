package servo

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/sweeney/points-servo/internal/demand"
	"github.com/sweeney/points-servo/internal/gpio"
)

// Relay is a digital output that follows a servo, typically switching
// point-frog polarity once the blades are half way across.
type Relay struct {
	Pin int // for diagnostics
	out gpio.DigitalOutput
}

// NewRelay creates a Relay driving out.
func NewRelay(pin int, out gpio.DigitalOutput) *Relay {
	return &Relay{Pin: pin, out: out}
}

// Set drives the relay to state.
func (r *Relay) Set(state demand.State) error {
	v := 0
	if state == demand.On {
		v = 1
	}
	if err := r.out.WriteDigital(v); err != nil {
		return fmt.Errorf("relay %d: %w", r.Pin, err)
	}
	return nil
}

// setAfter sets the relay once delay has passed. The returned channel is
// closed after the write.
func (r *Relay) setAfter(state demand.State, delay time.Duration, sleep func(time.Duration)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(delay)
		if err := r.Set(state); err != nil {
			glog.Warningf("%v", err)
		}
	}()
	return done
}
