// Package servo moves hobby servos between two end positions along a motion
// profile, individually or as a concurrently driven group.
package servo

import "math"

// SG90-class servo limits. Internal units are pulse widths in nanoseconds;
// configuration uses degrees.
const (
	PulseMin    int64 = 500_000
	PulseCenter int64 = 1_500_000
	PulseMax    int64 = 2_500_000

	DegreesMin    = 0.0
	DegreesCenter = 90.0
	DegreesMax    = 180.0

	nsPerDegree = float64(PulseMax-PulseMin) / (DegreesMax - DegreesMin)
)

// PulseWidth converts an angle to a pulse width. Angles outside
// [DegreesMin, DegreesMax] map to PulseCenter with ok=false.
func PulseWidth(degrees float64) (ns int64, ok bool) {
	if degrees < DegreesMin || degrees > DegreesMax || math.IsNaN(degrees) {
		return PulseCenter, false
	}
	return PulseMin + int64(math.Round((degrees-DegreesMin)*nsPerDegree)), true
}

// DegreesToPulseWidth converts an angle to a pulse width, falling back to
// PulseCenter for out-of-range angles.
func DegreesToPulseWidth(degrees float64) int64 {
	ns, _ := PulseWidth(degrees)
	return ns
}

// InRange reports whether ns is a pulse width the servo accepts.
func InRange(ns int64) bool {
	return ns >= PulseMin && ns <= PulseMax
}
