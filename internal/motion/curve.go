package motion

import "fmt"

// Point is a checkpoint on a curve, both coordinates in percent.
type Point struct {
	X int
	Y int
}

// Curve is an immutable piecewise-linear curve. The start point (0, 0) is
// implicit; the last point is always (100, 100).
type Curve struct {
	name   string
	points []Point
}

// NewCurve validates checkpoints: X strictly increasing within (0, 100] and
// the final point exactly (100, 100).
func NewCurve(name string, points ...Point) (Curve, error) {
	if len(points) == 0 {
		return Curve{}, fmt.Errorf("curve %s: no checkpoints", name)
	}
	prev := 0
	for i, p := range points {
		if p.X <= prev {
			return Curve{}, fmt.Errorf("curve %s: checkpoint %d x=%d not after x=%d", name, i, p.X, prev)
		}
		prev = p.X
	}
	if last := points[len(points)-1]; last != (Point{100, 100}) {
		return Curve{}, fmt.Errorf("curve %s: must end at (100, 100), ends at (%d, %d)", name, last.X, last.Y)
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	return Curve{name: name, points: cp}, nil
}

// Name returns the curve name.
func (c Curve) Name() string { return c.name }

// Points returns a copy of the checkpoints, excluding the implicit origin.
func (c Curve) Points() []Point {
	out := make([]Point, len(c.points))
	copy(out, c.points)
	return out
}

// Offset returns how far along delta the curve is at step k of steps, that
// is at progress x = 100*k/steps. The result is y%*delta/100 truncated
// toward zero. k <= 0 yields 0 and k >= steps yields delta exactly.
func (c Curve) Offset(k, steps int, delta int64) int64 {
	if k <= 0 || steps <= 0 {
		return 0
	}
	if k >= steps {
		return delta
	}

	// Work in units of 1/steps percent so that no step is rounded.
	s := int64(steps)
	x := int64(k) * 100
	x0, y0 := int64(0), int64(0)
	for _, p := range c.points {
		x1, y1 := int64(p.X), int64(p.Y)
		if x <= x1*s {
			span := (x1 - x0) * s
			num := y0*span + (y1-y0)*(x-x0*s)
			return num * delta / (span * 100)
		}
		x0, y0 = x1, y1
	}
	return delta
}

// Y returns the position percentage at integer progress x percent.
func (c Curve) Y(x int) int {
	return int(c.Offset(x, 100, 100))
}
