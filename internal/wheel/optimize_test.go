package wheel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptimizeReversesInsteadOfSwinging(t *testing.T) {
	current := State{Angle: 0}
	got := Optimize(State{Speed: 1.0, Angle: 170}, current)

	assert.InDelta(t, -10.0, got.Angle, 1e-9)
	assert.InDelta(t, -1.0, got.Speed, 1e-9)
}

func TestOptimizeKeepsNearbyTarget(t *testing.T) {
	current := State{Angle: 45}
	got := Optimize(State{Speed: 2.0, Angle: 50}, current)

	assert.InDelta(t, 50.0, got.Angle, 1e-9)
	assert.InDelta(t, 2.0, got.Speed, 1e-9)
}

func TestOptimizeTieAtNinetyKeepsTarget(t *testing.T) {
	current := State{Angle: 0}
	got := Optimize(State{Speed: 1.0, Angle: 90}, current)

	assert.InDelta(t, 90.0, got.Angle, 1e-9)
	assert.InDelta(t, 1.0, got.Speed, 1e-9)
}

func TestOptimizeContinuousAngleStaysNearCurrent(t *testing.T) {
	// After many turns the azimuth sensor reads far outside [0, 360); the
	// optimized target must land within 90° of it, not near the raw target.
	current := State{Angle: 725} // two turns plus 5°
	got := Optimize(State{Speed: 1.0, Angle: 10}, current)

	assert.InDelta(t, 730.0, got.Angle, 1e-9)
	assert.InDelta(t, 1.0, got.Speed, 1e-9)
}

func TestOptimizeNegativeScope(t *testing.T) {
	current := State{Angle: -350}
	got := Optimize(State{Speed: 1.5, Angle: 20}, current)

	assert.InDelta(t, -340.0, got.Angle, 1e-9)
	assert.InDelta(t, 1.5, got.Speed, 1e-9)
}

func TestPlaceInScope(t *testing.T) {
	cases := []struct {
		name      string
		reference float64
		angle     float64
		want      float64
	}{
		{"already in scope", 0, 90, 90},
		{"wraps up", 720, 10, 730},
		{"wraps down", -720, 10, -710},
		{"half turn away", 0, 180, 180},
		{"snaps to near side", 350, 10, 370},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, placeInScope(tc.reference, tc.angle), 1e-9)
		})
	}
}
