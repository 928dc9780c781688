// Package motion defines the named motion profiles a servo follows between
// its end positions.
//
// A profile is a piecewise-linear curve from (0, 0) to (100, 100) mapping
// transition progress (x%) to position progress (y%). Overshoot, bounce and
// easing are approximated with straight segments, so stepping needs only
// integer arithmetic.
package motion

import (
	"fmt"
	"strings"
)

// Profile is one of a closed set of named motion profiles.
type Profile int

const (
	Linear Profile = iota
	Overshoot
	Bounce
	SCurve
	Slowing
	// Semaphore overshoots when moving on and bounces when moving off,
	// mimicking a weighted signal arm.
	Semaphore
)

var names = [...]string{
	Linear:    "linear",
	Overshoot: "overshoot",
	Bounce:    "bounce",
	SCurve:    "s_curve",
	Slowing:   "slowing",
	Semaphore: "semaphore",
}

// Profiles lists every profile in declaration order.
func Profiles() []Profile {
	return []Profile{Linear, Overshoot, Bounce, SCurve, Slowing, Semaphore}
}

// Parse resolves a profile name. Unknown names resolve to Linear with
// ok=false so the caller can report the fallback.
func Parse(name string) (p Profile, ok bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range names {
		if n == name {
			return Profile(i), true
		}
	}
	return Linear, false
}

// String returns the configuration name of the profile.
func (p Profile) String() string {
	if p < 0 || int(p) >= len(names) {
		return fmt.Sprintf("Profile(%d)", int(p))
	}
	return names[p]
}

// Curves returns the curve used when moving toward on and toward off.
// Only Semaphore differs between directions.
func (p Profile) Curves() (toOn, toOff Curve) {
	switch p {
	case Overshoot:
		return overshoot, overshoot
	case Bounce:
		return bounce, bounce
	case SCurve:
		return sCurve, sCurve
	case Slowing:
		return slowing, slowing
	case Semaphore:
		return overshoot, bounce
	default:
		return linear, linear
	}
}

var (
	linear    = mustCurve("linear", Point{100, 100})
	overshoot = mustCurve("overshoot", Point{60, 110}, Point{70, 95}, Point{80, 105}, Point{90, 95}, Point{100, 100})
	bounce    = mustCurve("bounce", Point{60, 100}, Point{70, 90}, Point{80, 100}, Point{90, 95}, Point{100, 100})
	sCurve    = mustCurve("s_curve", Point{35, 20}, Point{65, 80}, Point{100, 100})
	slowing   = mustCurve("slowing", Point{10, 30}, Point{20, 55}, Point{40, 79}, Point{60, 91}, Point{80, 97}, Point{100, 100})
)

func mustCurve(name string, points ...Point) Curve {
	c, err := NewCurve(name, points...)
	if err != nil {
		panic(err)
	}
	return c
}
