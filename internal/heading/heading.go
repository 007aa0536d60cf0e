// Package heading provides the chassis heading sources used by the drive
// coordinator.
package heading

// Source reports the chassis heading. Yaw grows counter-clockwise and is
// reported in degrees in [0, 360).
type Source interface {
	// Yaw returns the current heading in degrees.
	Yaw() (float64, error)
	// Zero makes the current orientation the new zero heading.
	Zero() error
}
