// Package chassis maps between chassis-level motion and per-wheel states for
// an arbitrary set of steerable wheels.
package chassis

import "math"

// Speeds is the chassis velocity in its own frame: Vx forward, Vy left,
// Omega counter-clockwise.
type Speeds struct {
	Vx    float64 `json:"vx"`    // meters per second
	Vy    float64 `json:"vy"`    // meters per second
	Omega float64 `json:"omega"` // radians per second, counter-clockwise
}

// FromFieldRelative rotates field-frame velocities into the chassis frame
// using the current heading in degrees.
func FromFieldRelative(vx, vy, omega, heading float64) Speeds {
	rad := heading * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Speeds{
		Vx:    vx*cos + vy*sin,
		Vy:    -vx*sin + vy*cos,
		Omega: omega,
	}
}
