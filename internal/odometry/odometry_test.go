package odometry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/swerve_computer/internal/chassis"
	"github.com/relabs-tech/swerve_computer/internal/wheel"
)

// fakeClock replaces the estimator's clock with a manually advanced one.
func fakeClock(e *Estimator, start time.Time) func(time.Duration) {
	now := start
	e.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func testEstimator(t *testing.T, initial Pose, sensorHeading float64) (*Estimator, func(time.Duration)) {
	t.Helper()
	kin, err := chassis.New(chassis.RectangularOffsets(0.62, 0.62))
	require.NoError(t, err)
	e := NewEstimator(kin, initial, sensorHeading)
	advance := fakeClock(e, time.Unix(1000, 0))
	return e, advance
}

func forwardStates(speed float64) []wheel.State {
	return []wheel.State{{Speed: speed}, {Speed: speed}, {Speed: speed}, {Speed: speed}}
}

func TestResetRoundTrip(t *testing.T) {
	e, _ := testEstimator(t, Pose{}, 0)
	want := Pose{X: 1.5, Y: -2.0, Heading: 30}
	e.Reset(want, 175)

	got, err := e.Update(175, forwardStates(0))
	require.NoError(t, err)
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)
	assert.InDelta(t, want.Heading, got.Heading, 1e-9)
}

func TestStationaryUpdatesAreIdempotent(t *testing.T) {
	e, advance := testEstimator(t, Pose{X: 1, Y: 2, Heading: 90}, 90)

	for i := 0; i < 5; i++ {
		advance(20 * time.Millisecond)
		got, err := e.Update(90, forwardStates(0))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got.X, 1e-9)
		assert.InDelta(t, 2.0, got.Y, 1e-9)
	}
}

func TestStraightLineIntegration(t *testing.T) {
	e, advance := testEstimator(t, Pose{}, 0)

	// Start the clock, then drive straight ahead at 2 m/s for one second in
	// 20 ms steps.
	_, err := e.Update(0, forwardStates(0))
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		advance(20 * time.Millisecond)
		_, err = e.Update(0, forwardStates(2.0))
		require.NoError(t, err)
	}

	got := e.Pose()
	assert.InDelta(t, 2.0, got.X, 1e-6)
	assert.InDelta(t, 0.0, got.Y, 1e-6)
}

func TestHeadingRotatesIntegration(t *testing.T) {
	e, advance := testEstimator(t, Pose{}, 0)

	// Chassis-forward motion with the chassis facing +Y moves the pose in
	// field +Y.
	_, err := e.Update(90, forwardStates(0))
	require.NoError(t, err)
	advance(time.Second)
	got, err := e.Update(90, forwardStates(1.0))
	require.NoError(t, err)

	assert.InDelta(t, 0.0, got.X, 1e-9)
	assert.InDelta(t, 1.0, got.Y, 1e-9)
	assert.InDelta(t, 90.0, got.Heading, 1e-9)
}

func TestUpdateRejectsWrongWheelCount(t *testing.T) {
	e, advance := testEstimator(t, Pose{}, 0)
	_, err := e.Update(0, forwardStates(0))
	require.NoError(t, err)
	advance(20 * time.Millisecond)
	_, err = e.Update(0, []wheel.State{{Speed: 1}})
	assert.Error(t, err)
}
