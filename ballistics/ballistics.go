// Package ballistics computes where a paint shot lands on the level canvas.
//
// The model is a fixed-range arc: the projectile flies a constant forward
// distance toward the canvas plane while gravity pulls it down. Initial
// speed is the shot power divided by the number of paint colors loaded,
// so heavier (multi-color) shots fly slower and drop more.
package ballistics

import "math"

const (
	// Gravity is the downward acceleration applied over the flight.
	Gravity = 1.0
	// Range is the fixed forward distance from the shooter to the canvas.
	Range = 200.0
)

// Shot holds the launch parameters of a single paint shot.
type Shot struct {
	Power      float64 // launch power
	AngleX     float64 // horizontal angle in degrees, -90..90
	AngleY     float64 // vertical angle in degrees, 0..90
	ColorCount int     // number of paint colors loaded, >= 1
}

// Impact is the computed landing point in canvas coordinates. Coordinates
// are always filled in, even when the point lies off the canvas.
type Impact struct {
	X, Y float64

	// Reachable is false when the forward velocity component is zero or
	// negative, i.e. the projectile can never cross the canvas plane.
	// Such shots are misses regardless of coordinates.
	Reachable bool
}

// Hit reports whether the impact lies on a canvas of the given dimensions.
// Bounds are inclusive on all four edges.
func (im Impact) Hit(width, height int) bool {
	return im.Reachable &&
		im.X >= 0 && im.X <= float64(width) &&
		im.Y >= 0 && im.Y <= float64(height)
}

// Compute resolves a shot against a canvas of the given dimensions.
//
// The impact column is measured from the canvas center, the impact row
// from the canvas bottom edge: a flatter or more powerful shot lands
// higher (smaller Y).
func Compute(s Shot, width, height int) Impact {
	rx := s.AngleX * math.Pi / 180
	ry := s.AngleY * math.Pi / 180

	v0 := s.Power / float64(s.ColorCount)
	vz := v0 * math.Cos(ry) * math.Cos(rx)
	vx := v0 * math.Cos(ry) * math.Sin(rx)
	vy := -v0 * math.Sin(ry)

	if vz <= 0 {
		// No forward motion: the projectile falls at the launch column
		// and never reaches the canvas. Report the column itself so the
		// caller still has coordinates to log.
		return Impact{X: float64(width) / 2, Y: float64(height)}
	}

	t := Range / vz
	return Impact{
		X:         float64(width)/2 + vx*t,
		Y:         float64(height) + vy*t + Gravity*t*t/2,
		Reachable: true,
	}
}
