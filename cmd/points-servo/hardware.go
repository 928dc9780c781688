package main

import (
	"errors"
	"fmt"

	"github.com/sweeney/points-servo/internal/gpio"
)

// hardware hands out the lines the daemon drives.
type hardware interface {
	Input(pin int) (gpio.DigitalInput, error)
	Output(pin int) (gpio.DigitalOutput, error)
	PWM(pin, hz int) (gpio.PWM, error)
	Close() error
}

// realHardware uses the GPIO character device for digital lines and periph
// for PWM.
type realHardware struct {
	chip *gpio.Chip
	pwms []*gpio.PeriphPWM
}

func openRealHardware(chip string) (*realHardware, error) {
	c, err := gpio.OpenChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", chip, err)
	}
	return &realHardware{chip: c}, nil
}

func (h *realHardware) Input(pin int) (gpio.DigitalInput, error) {
	return h.chip.Input(pin)
}

func (h *realHardware) Output(pin int) (gpio.DigitalOutput, error) {
	return h.chip.Output(pin)
}

func (h *realHardware) PWM(pin, hz int) (gpio.PWM, error) {
	p, err := gpio.OpenPWM(pin, hz)
	if err != nil {
		return nil, err
	}
	h.pwms = append(h.pwms, p)
	return p, nil
}

func (h *realHardware) Close() error {
	var errs []error
	for _, p := range h.pwms {
		errs = append(errs, p.Close())
	}
	errs = append(errs, h.chip.Close())
	return errors.Join(errs...)
}

// simHardware backs every line with an in-memory fake. Switches read open.
type simHardware struct {
	inputs  map[int]*gpio.FakeInput
	outputs map[int]*gpio.FakeOutput
	pwms    map[int]*gpio.FakePWM
}

func newSimHardware() *simHardware {
	return &simHardware{
		inputs:  make(map[int]*gpio.FakeInput),
		outputs: make(map[int]*gpio.FakeOutput),
		pwms:    make(map[int]*gpio.FakePWM),
	}
}

func (h *simHardware) Input(pin int) (gpio.DigitalInput, error) {
	in := gpio.NewFakeInput(1)
	h.inputs[pin] = in
	return in, nil
}

func (h *simHardware) Output(pin int) (gpio.DigitalOutput, error) {
	out := gpio.NewFakeOutput()
	h.outputs[pin] = out
	return out, nil
}

func (h *simHardware) PWM(pin, hz int) (gpio.PWM, error) {
	p := gpio.NewFakePWM()
	if err := p.SetFrequency(hz); err != nil {
		return nil, err
	}
	h.pwms[pin] = p
	return p, nil
}

func (h *simHardware) Close() error { return nil }
