// Package gpio provides digital and PWM pin access with hardware abstraction.
// The real implementation uses the Linux GPIO character device for digital
// lines and periph.io for PWM.
// The fake implementation allows testing without hardware.
package gpio

// DigitalInput reads a raw pin level.
type DigitalInput interface {
	// ReadDigital returns the raw level, 0 or 1.
	ReadDigital() (int, error)
}

// DigitalOutput drives a pin level.
type DigitalOutput interface {
	// WriteDigital sets the pin to 0 or 1.
	WriteDigital(v int) error
}

// PWM drives a fixed-frequency pulse train.
type PWM interface {
	// SetFrequency sets the pulse repetition rate.
	SetFrequency(hz int) error

	// SetPulseWidth sets the high time of each pulse in nanoseconds.
	// Zero stops the output.
	SetPulseWidth(ns int64) error
}

// Defaults for Raspberry Pi wiring.
const (
	DefaultChip = "gpiochip0"
	ServoHz     = 50
)

// DutyFraction converts a pulse width at a given frequency into a duty value
// on a 0..max scale, clamped to the scale.
func DutyFraction(ns int64, hz int, max int64) int64 {
	if ns <= 0 || hz <= 0 {
		return 0
	}
	// period = 1e9/hz ns; duty = ns/period.
	d := ns * int64(hz) * max / 1_000_000_000
	if d > max {
		return max
	}
	return d
}
