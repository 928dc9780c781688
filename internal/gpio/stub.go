//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

// Line is not available on non-Linux platforms.
type Line struct{}

// Input is not implemented on non-Linux platforms.
func (c *Chip) Input(pin int) (*Line, error) { return nil, errUnsupported }

// Output is not implemented on non-Linux platforms.
func (c *Chip) Output(pin int) (*Line, error) { return nil, errUnsupported }

// ReadDigital is not implemented on non-Linux platforms.
func (l *Line) ReadDigital() (int, error) { return 0, errUnsupported }

// WriteDigital is not implemented on non-Linux platforms.
func (l *Line) WriteDigital(v int) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error { return nil }

// PeriphPWM is not available on non-Linux platforms.
type PeriphPWM struct{}

// OpenPWM returns an error on non-Linux platforms.
func OpenPWM(pin, hz int) (*PeriphPWM, error) { return nil, errUnsupported }

// SetFrequency is not implemented on non-Linux platforms.
func (p *PeriphPWM) SetFrequency(hz int) error { return errUnsupported }

// SetPulseWidth is not implemented on non-Linux platforms.
func (p *PeriphPWM) SetPulseWidth(ns int64) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (p *PeriphPWM) Close() error { return nil }
