package wheel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/swerve_computer/internal/actuator"
)

func testConfig() Config {
	return Config{
		Index:              0,
		DriveGearRatio:     testDriveRatio,
		AngleGearRatio:     testAngleRatio,
		WheelCircumference: testCircumference,
		MaxSpeed:           4.5,
		Feedforward:        Feedforward{KS: 0.2, KV: 0.1},
	}
}

func newTestController(t *testing.T, cfg Config) (*Controller, *actuator.MockMotor, *actuator.MockMotor, *actuator.MockEncoder) {
	t.Helper()
	drive := actuator.NewMockMotor()
	azimuth := actuator.NewMockMotor()
	encoder := actuator.NewMockEncoder(cfg.AngleOffset)
	c, err := NewController(cfg, drive, azimuth, encoder)
	require.NoError(t, err)
	return c, drive, azimuth, encoder
}

func TestNewControllerRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.DriveGearRatio = 0
	_, err := NewController(cfg, actuator.NewMockMotor(), actuator.NewMockMotor(), actuator.NewMockEncoder(0))
	assert.Error(t, err)
}

func TestNewControllerSeedsSensors(t *testing.T) {
	cfg := testConfig()
	cfg.AngleOffset = 37.5
	drive := actuator.NewMockMotor()
	drive.PositionTicks = 1234
	azimuth := actuator.NewMockMotor()
	encoder := actuator.NewMockEncoder(120.0)

	c, err := NewController(cfg, drive, azimuth, encoder)
	require.NoError(t, err)

	assert.InDelta(t, 0, drive.PositionTicks, 1e-9)
	wantTicks := DegreesToTicks(120.0-37.5, cfg.AngleGearRatio)
	assert.InDelta(t, wantTicks, azimuth.PositionTicks, 1e-9)
	assert.InDelta(t, 120.0-37.5, c.LastAngle(), 1e-9)
}

func TestNewControllerFailsWhenEncoderUnavailable(t *testing.T) {
	encoder := actuator.NewMockEncoder(0)
	encoder.Err = errors.New("no reply")
	_, err := NewController(testConfig(), actuator.NewMockMotor(), actuator.NewMockMotor(), encoder)
	assert.Error(t, err)
}

func TestSetTargetOpenLoop(t *testing.T) {
	c, drive, azimuth, _ := newTestController(t, testConfig())

	c.SetTarget(Target{State: State{Speed: 2.25, Angle: 45}, OpenLoop: true})

	assert.Equal(t, 1, drive.PercentCommands)
	assert.InDelta(t, 0.5, drive.LastPercent, 1e-9)
	assert.Equal(t, 0, drive.VelocityCommands)
	assert.InDelta(t, DegreesToTicks(45, testAngleRatio), azimuth.LastPosition, 1e-9)
	assert.InDelta(t, 45.0, c.LastAngle(), 1e-9)
}

func TestSetTargetClosedLoop(t *testing.T) {
	cfg := testConfig()
	c, drive, _, _ := newTestController(t, cfg)

	c.SetTarget(Target{State: State{Speed: 1.5, Angle: 0}})

	assert.Equal(t, 1, drive.VelocityCommands)
	assert.InDelta(t, MPSToTicks(1.5, cfg.WheelCircumference, cfg.DriveGearRatio), drive.LastVelocity, 1e-9)
	assert.InDelta(t, cfg.Feedforward.Calculate(1.5, 0), drive.LastFeedforward, 1e-9)
}

func TestSetTargetHoldsAngleAtLowSpeed(t *testing.T) {
	cfg := testConfig()
	c, _, azimuth, _ := newTestController(t, cfg)

	c.SetTarget(Target{State: State{Speed: 2.0, Angle: 30}, OpenLoop: true})
	require.InDelta(t, 30.0, c.LastAngle(), 1e-9)

	// 0.5% of max speed is below the hold threshold; the azimuth must keep
	// pointing at 30° regardless of the requested angle.
	c.SetTarget(Target{State: State{Speed: cfg.MaxSpeed * 0.005, Angle: 90}, OpenLoop: true})

	assert.InDelta(t, 30.0, c.LastAngle(), 1e-9)
	assert.InDelta(t, DegreesToTicks(30, cfg.AngleGearRatio), azimuth.LastPosition, 1e-9)
}

func TestSetTargetAboveHoldThresholdTracks(t *testing.T) {
	cfg := testConfig()
	c, _, _, _ := newTestController(t, cfg)

	c.SetTarget(Target{State: State{Speed: cfg.MaxSpeed * 0.02, Angle: 60}, OpenLoop: true})
	assert.InDelta(t, 60.0, c.LastAngle(), 1e-9)
}

func TestSetTargetRejectedCommandDoesNotPanic(t *testing.T) {
	c, drive, azimuth, _ := newTestController(t, testConfig())
	drive.CommandErr = errors.New("bus off")
	azimuth.CommandErr = errors.New("bus off")

	c.SetTarget(Target{State: State{Speed: 1.0, Angle: 10}, OpenLoop: true})
	// Commands were rejected; the commanded-angle memory still advances so
	// the next accepted command is consistent.
	assert.InDelta(t, 10.0, c.LastAngle(), 1e-9)
}

func TestStateHoldsLastGoodOnSensorError(t *testing.T) {
	cfg := testConfig()
	c, drive, azimuth, _ := newTestController(t, cfg)

	drive.VelocityTicks = MPSToTicks(2.0, cfg.WheelCircumference, cfg.DriveGearRatio)
	azimuth.PositionTicks = DegreesToTicks(15, cfg.AngleGearRatio)
	good := c.State()
	require.InDelta(t, 2.0, good.Speed, 1e-9)
	require.InDelta(t, 15.0, good.Angle, 1e-9)

	drive.ReadErr = errors.New("no telemetry")
	held := c.State()
	assert.Equal(t, good, held)
}

func TestResetToAbsolute(t *testing.T) {
	cfg := testConfig()
	cfg.AngleOffset = 10
	c, _, azimuth, encoder := newTestController(t, cfg)

	encoder.Angle = 200
	require.NoError(t, c.ResetToAbsolute())
	assert.InDelta(t, DegreesToTicks(190, cfg.AngleGearRatio), azimuth.PositionTicks, 1e-9)
}
