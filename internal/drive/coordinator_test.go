package drive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/swerve_computer/internal/actuator"
	"github.com/relabs-tech/swerve_computer/internal/chassis"
	"github.com/relabs-tech/swerve_computer/internal/heading"
	"github.com/relabs-tech/swerve_computer/internal/odometry"
	"github.com/relabs-tech/swerve_computer/internal/wheel"
)

const (
	testMaxSpeed      = 4.5
	testDriveRatio    = 6.75
	testAngleRatio    = 12.8
	testCircumference = 0.319
)

type testRig struct {
	coord    *Coordinator
	source   *heading.MockSource
	drives   []*actuator.MockMotor
	azimuths []*actuator.MockMotor
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	kin, err := chassis.New(chassis.RectangularOffsets(0.62, 0.62))
	require.NoError(t, err)

	rig := &testRig{source: heading.NewMockSource()}
	wheels := make([]*wheel.Controller, WheelCount)
	for i := range wheels {
		drive := actuator.NewMockMotor()
		azimuth := actuator.NewMockMotor()
		w, err := wheel.NewController(wheel.Config{
			Index:              i,
			DriveGearRatio:     testDriveRatio,
			AngleGearRatio:     testAngleRatio,
			WheelCircumference: testCircumference,
			MaxSpeed:           testMaxSpeed,
		}, drive, azimuth, actuator.NewMockEncoder(0))
		require.NoError(t, err)
		wheels[i] = w
		rig.drives = append(rig.drives, drive)
		rig.azimuths = append(rig.azimuths, azimuth)
	}

	rig.coord, err = New(kin, wheels, rig.source, false, testMaxSpeed)
	require.NoError(t, err)
	return rig
}

func TestNewRejectsWrongWheelCount(t *testing.T) {
	kin, err := chassis.New(chassis.RectangularOffsets(0.62, 0.62))
	require.NoError(t, err)
	_, err = New(kin, nil, heading.NewMockSource(), false, testMaxSpeed)
	assert.Error(t, err)
}

func TestDriveDispatchesToEveryWheel(t *testing.T) {
	rig := newTestRig(t)
	rig.coord.Drive(1.0, 0, 0, false, true)

	for i, d := range rig.drives {
		assert.Equal(t, 1, d.PercentCommands, "wheel %d", i)
		assert.InDelta(t, 1.0/testMaxSpeed, d.LastPercent, 1e-9, "wheel %d", i)
	}
	for i, a := range rig.azimuths {
		assert.Equal(t, 1, a.PositionCommands, "wheel %d", i)
	}
}

func TestDriveFieldRelativeRotatesCommand(t *testing.T) {
	rig := newTestRig(t)
	rig.source.SetYaw(90)

	// Facing +90°, a field-forward request is chassis-rightward: every
	// wheel points to −90°.
	rig.coord.Drive(1.0, 0, 0, true, true)

	want := wheel.DegreesToTicks(-90, testAngleRatio)
	for i, a := range rig.azimuths {
		assert.InDelta(t, want, a.LastPosition, 1e-9, "wheel %d", i)
	}
}

func TestStopKeepsWheelAngles(t *testing.T) {
	rig := newTestRig(t)
	rig.coord.Drive(0, 1.0, 0, false, true) // all wheels to 90°
	rig.coord.Stop()

	for i, d := range rig.drives {
		assert.InDelta(t, 0.0, d.LastPercent, 1e-9, "wheel %d", i)
	}
	want := wheel.DegreesToTicks(90, testAngleRatio)
	for i, a := range rig.azimuths {
		assert.InDelta(t, want, a.LastPosition, 1e-9, "wheel %d", i)
	}
}

func TestSetWheelStatesDesaturates(t *testing.T) {
	rig := newTestRig(t)
	states := []wheel.State{
		{Speed: 5}, {Speed: 3}, {Speed: 6}, {Speed: 2},
	}
	require.NoError(t, rig.coord.SetWheelStates(states))

	scale := testMaxSpeed / 6
	for i, wantMPS := range []float64{5 * scale, 3 * scale, 6 * scale, 2 * scale} {
		want := wheel.MPSToTicks(wantMPS, testCircumference, testDriveRatio)
		assert.InDelta(t, want, rig.drives[i].LastVelocity, 1e-9, "wheel %d", i)
	}
	// Caller's slice is untouched.
	assert.InDelta(t, 5.0, states[0].Speed, 1e-9)
}

func TestSetWheelStatesRejectsWrongCount(t *testing.T) {
	rig := newTestRig(t)
	assert.Error(t, rig.coord.SetWheelStates([]wheel.State{{Speed: 1}}))
}

func TestYawHoldsLastGoodOnSensorError(t *testing.T) {
	rig := newTestRig(t)
	rig.source.SetYaw(45)
	require.InDelta(t, 45.0, rig.coord.Yaw(), 1e-9)

	rig.source.SetErr(errors.New("gyro gone"))
	assert.InDelta(t, 45.0, rig.coord.Yaw(), 1e-9)
}

func TestYawInverted(t *testing.T) {
	kin, err := chassis.New(chassis.RectangularOffsets(0.62, 0.62))
	require.NoError(t, err)
	wheels := make([]*wheel.Controller, WheelCount)
	for i := range wheels {
		wheels[i], err = wheel.NewController(wheel.Config{
			Index:              i,
			DriveGearRatio:     testDriveRatio,
			AngleGearRatio:     testAngleRatio,
			WheelCircumference: testCircumference,
			MaxSpeed:           testMaxSpeed,
		}, actuator.NewMockMotor(), actuator.NewMockMotor(), actuator.NewMockEncoder(0))
		require.NoError(t, err)
	}
	source := heading.NewMockSource()
	coord, err := New(kin, wheels, source, true, testMaxSpeed)
	require.NoError(t, err)

	source.SetYaw(90)
	assert.InDelta(t, 270.0, coord.Yaw(), 1e-9)
}

func TestPeriodicAdvancesPose(t *testing.T) {
	rig := newTestRig(t)
	rig.coord.Periodic() // starts the odometry clock

	// Make every drive motor report forward motion, then integrate.
	ticks := wheel.MPSToTicks(2.0, testCircumference, testDriveRatio)
	for _, d := range rig.drives {
		d.VelocityTicks = ticks
	}
	rig.coord.Periodic()

	// Real time elapsed between the two calls is tiny but positive; the
	// pose must have moved forward, not sideways.
	pose := rig.coord.Pose()
	assert.GreaterOrEqual(t, pose.X, 0.0)
	assert.InDelta(t, 0.0, pose.Y, 1e-9)
}

func TestResetOdometry(t *testing.T) {
	rig := newTestRig(t)
	rig.coord.ResetOdometry(odometry.Pose{X: 3, Y: -1, Heading: 45})
	pose := rig.coord.Pose()
	assert.InDelta(t, 3.0, pose.X, 1e-9)
	assert.InDelta(t, -1.0, pose.Y, 1e-9)
	assert.InDelta(t, 45.0, pose.Heading, 1e-9)
}

func TestZeroHeading(t *testing.T) {
	rig := newTestRig(t)
	rig.source.SetYaw(123)
	require.NoError(t, rig.coord.ZeroHeading())
	assert.InDelta(t, 0.0, rig.coord.Yaw(), 1e-9)
	assert.InDelta(t, 0.0, rig.coord.Pose().Heading, 1e-9)
}

func TestResetWheelsToAbsolute(t *testing.T) {
	rig := newTestRig(t)
	// Drift the azimuth sensors, then re-seed them from the encoders (all
	// reading 0° with zero offsets).
	for _, a := range rig.azimuths {
		a.PositionTicks = 999
	}
	require.NoError(t, rig.coord.ResetWheelsToAbsolute())
	for i, a := range rig.azimuths {
		assert.InDelta(t, 0.0, a.PositionTicks, 1e-9, "wheel %d", i)
	}
}
