//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Chip hands out digital lines from a Linux GPIO character device.
type Chip struct {
	chip *gpiocdev.Chip

	mu    sync.Mutex
	lines []*Line
}

// OpenChip opens the named GPIO chip, e.g. "gpiochip0".
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{chip: chip}, nil
}

// Line is one requested GPIO line.
type Line struct {
	pin  int
	line *gpiocdev.Line
}

// Input requests pin as an input with pull-up. Switches pull the line low
// when closed.
func (c *Chip) Input(pin int) (*Line, error) {
	l, err := c.chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", pin, err)
	}
	return c.track(pin, l), nil
}

// Output requests pin as an output driven low.
func (c *Chip) Output(pin int) (*Line, error) {
	l, err := c.chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return c.track(pin, l), nil
}

func (c *Chip) track(pin int, l *gpiocdev.Line) *Line {
	line := &Line{pin: pin, line: l}
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
	return line
}

// ReadDigital returns the raw line level.
func (l *Line) ReadDigital() (int, error) {
	v, err := l.line.Value()
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", l.pin, err)
	}
	return v, nil
}

// WriteDigital sets the line level.
func (l *Line) WriteDigital(v int) error {
	if v != 0 {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("write pin %d: %w", l.pin, err)
	}
	return nil
}

// Close releases every line and the chip.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing so relays are not left driven.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, l := range c.lines {
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", l.pin, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", l.pin, err))
		}
	}
	c.lines = nil
	if err := c.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// PeriphPWM drives a hardware PWM pin through periph.io.
type PeriphPWM struct {
	pin pgpio.PinIO

	mu sync.Mutex
	hz int
}

// OpenPWM initializes periph.io and returns a PWM output on the BCM pin.
func OpenPWM(pin, hz int) (*PeriphPWM, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	name := fmt.Sprintf("GPIO%d", pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pin %d (%s) not found in hardware", pin, name)
	}
	return &PeriphPWM{pin: p, hz: hz}, nil
}

// SetFrequency sets the frequency used by subsequent pulse-width writes.
func (p *PeriphPWM) SetFrequency(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("pwm %s: invalid frequency %d", p.pin.Name(), hz)
	}
	p.mu.Lock()
	p.hz = hz
	p.mu.Unlock()
	return nil
}

// SetPulseWidth sets the pulse high time in nanoseconds.
func (p *PeriphPWM) SetPulseWidth(ns int64) error {
	p.mu.Lock()
	hz := p.hz
	p.mu.Unlock()

	duty := pgpio.Duty(DutyFraction(ns, hz, int64(pgpio.DutyMax)))
	if err := p.pin.PWM(duty, physic.Frequency(hz)*physic.Hertz); err != nil {
		return fmt.Errorf("pwm %s: %w", p.pin.Name(), err)
	}
	return nil
}

// Close stops the pulse train.
func (p *PeriphPWM) Close() error {
	return p.pin.Halt()
}
