package wheel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testDriveRatio    = 6.75
	testAngleRatio    = 12.8
	testCircumference = 0.319 // meters, 4" wheel
)

func TestDegreesTicksRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 45, 90, -180, 360, 725.5} {
		ticks := DegreesToTicks(deg, testAngleRatio)
		assert.InDelta(t, deg, TicksToDegrees(ticks, testAngleRatio), 1e-9)
	}
}

func TestDegreesToTicksFullTurn(t *testing.T) {
	// One azimuth revolution is gearRatio motor revolutions.
	ticks := DegreesToTicks(360, testAngleRatio)
	assert.InDelta(t, testAngleRatio*2048, ticks, 1e-9)
}

func TestTicksToRPM(t *testing.T) {
	// 2048 ticks per 100 ms is one motor revolution per 100 ms, 600 RPM at
	// the motor, divided down by the gear ratio.
	rpm := TicksToRPM(2048, testDriveRatio)
	assert.InDelta(t, 600.0/testDriveRatio, rpm, 1e-9)
}

func TestMPSTicksRoundTrip(t *testing.T) {
	for _, mps := range []float64{0, 0.5, -2.3, 4.5} {
		ticks := MPSToTicks(mps, testCircumference, testDriveRatio)
		assert.InDelta(t, mps, TicksToMPS(ticks, testCircumference, testDriveRatio), 1e-9)
	}
}

func TestTicksToMPS(t *testing.T) {
	// One wheel revolution per minute moves one circumference per minute.
	ticks := RPMToTicks(60, testDriveRatio)
	assert.InDelta(t, testCircumference, TicksToMPS(ticks, testCircumference, testDriveRatio), 1e-9)
}
