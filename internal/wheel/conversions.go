package wheel

import "github.com/relabs-tech/swerve_computer/internal/actuator"

// Conversions between the actuators' native units (sensor ticks, ticks per
// 100 ms) and wheel units (degrees, meters per second). Gear ratios are
// motor revolutions per output revolution.

// TicksToDegrees converts an azimuth sensor position to output degrees.
func TicksToDegrees(ticks, gearRatio float64) float64 {
	return ticks * (360.0 / (gearRatio * actuator.SensorTicksPerRev))
}

// DegreesToTicks converts an output angle in degrees to a sensor position.
func DegreesToTicks(degrees, gearRatio float64) float64 {
	return degrees / (360.0 / (gearRatio * actuator.SensorTicksPerRev))
}

// TicksToRPM converts a sensor velocity to output revolutions per minute.
func TicksToRPM(ticksPer100ms, gearRatio float64) float64 {
	motorRPM := ticksPer100ms * (600.0 / actuator.SensorTicksPerRev)
	return motorRPM / gearRatio
}

// RPMToTicks converts output revolutions per minute to a sensor velocity.
func RPMToTicks(rpm, gearRatio float64) float64 {
	motorRPM := rpm * gearRatio
	return motorRPM * (actuator.SensorTicksPerRev / 600.0)
}

// TicksToMPS converts a drive sensor velocity to wheel meters per second.
func TicksToMPS(ticksPer100ms, circumference, gearRatio float64) float64 {
	return TicksToRPM(ticksPer100ms, gearRatio) * circumference / 60.0
}

// MPSToTicks converts wheel meters per second to a drive sensor velocity.
func MPSToTicks(mps, circumference, gearRatio float64) float64 {
	return RPMToTicks(mps*60.0/circumference, gearRatio)
}
