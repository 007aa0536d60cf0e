// Package actuator defines the capability interfaces the wheel controllers
// drive, plus the bus transports that implement them.
//
// All motor interfaces speak native sensor units: encoder ticks for position
// and ticks per 100 ms for velocity, with SensorTicksPerRev ticks to one
// motor revolution. Unit conversion to wheel speeds and azimuth degrees is
// the wheel package's job.
package actuator

// SensorTicksPerRev is the integrated sensor resolution of one motor
// revolution in the native unit the Motor interface speaks.
const SensorTicksPerRev = 2048

// Motor is one motor controller channel (drive or azimuth) of a wheel.
// Commands are fire-and-forget within a control cycle; implementations must
// not block longer than a bounded bus transaction.
type Motor interface {
	// Position returns the integrated sensor position in ticks.
	Position() (float64, error)
	// Velocity returns the sensor velocity in ticks per 100 ms.
	Velocity() (float64, error)
	// SetVelocity commands a closed-loop velocity set-point with an
	// additive feedforward demand in [-1, 1]. The feedforward is an
	// auxiliary output term, not blended into the set-point.
	SetVelocity(ticksPer100ms, feedforward float64) error
	// SetPercent commands a direct open-loop output in [-1, 1].
	SetPercent(output float64) error
	// SetPosition commands a closed-loop position set-point in ticks.
	SetPosition(ticks float64) error
	// SetSensorPosition overwrites the integrated sensor's position
	// reference without moving the motor.
	SetSensorPosition(ticks float64) error
}

// AbsoluteEncoder reports an azimuth angle in degrees [0, 360), independent
// of the azimuth motor's own integrated sensor. Used only to reseed that
// sensor after power-up or drift.
type AbsoluteEncoder interface {
	AbsoluteAngle() (float64, error)
}
