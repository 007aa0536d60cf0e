// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package chassis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/swerve_computer/internal/wheel"
)

// WheelOffset is a wheel's position relative to the chassis center of
// rotation, in meters. X is forward, Y is left.
type WheelOffset struct {
	X float64
	Y float64
}

// Kinematics converts between chassis speeds and per-wheel states for a
// fixed wheel layout. The inverse map (chassis to wheels) is exact; the
// forward map (wheels to chassis) is the least-squares solution of the
// overdetermined system, solved through a QR factorization computed once at
// construction.
type Kinematics struct {
	offsets []WheelOffset
	inverse *mat.Dense // 2N×3: [vx vy omega] -> wheel velocity components
	qr      *mat.QR
}

// New builds the kinematics for the given wheel layout. At least two wheels
// are required for the forward solution to be determined.
func New(offsets []WheelOffset) (*Kinematics, error) {
	if len(offsets) < 2 {
		return nil, fmt.Errorf("chassis: need at least 2 wheel offsets, got %d", len(offsets))
	}
	k := &Kinematics{
		offsets: append([]WheelOffset(nil), offsets...),
		inverse: mat.NewDense(2*len(offsets), 3, nil),
	}
	for i, o := range k.offsets {
		k.inverse.SetRow(2*i, []float64{1, 0, -o.Y})
		k.inverse.SetRow(2*i+1, []float64{0, 1, o.X})
	}
	k.qr = new(mat.QR)
	k.qr.Factorize(k.inverse)
	return k, nil
}

// WheelCount returns the number of wheels in the layout.
func (k *Kinematics) WheelCount() int {
	return len(k.offsets)
}

// ToWheelStates computes the wheel speed and angle each wheel needs for the
// chassis to move at the given speeds. A wheel whose speed comes out exactly
// zero reports angle 0 rather than an arbitrary atan2 of two zeros.
func (k *Kinematics) ToWheelStates(s Speeds) []wheel.State {
	states := make([]wheel.State, len(k.offsets))
	for i, o := range k.offsets {
		wx := s.Vx - s.Omega*o.Y
		wy := s.Vy + s.Omega*o.X
		speed := math.Hypot(wx, wy)
		angle := 0.0
		if speed != 0 {
			angle = math.Atan2(wy, wx) * 180 / math.Pi
		}
		states[i] = wheel.State{Speed: speed, Angle: angle}
	}
	return states
}

// ToChassisSpeeds recovers the chassis motion that best explains the given
// measured wheel states, in the least-squares sense.
func (k *Kinematics) ToChassisSpeeds(states []wheel.State) (Speeds, error) {
	if len(states) != len(k.offsets) {
		return Speeds{}, fmt.Errorf("chassis: got %d wheel states for %d wheels", len(states), len(k.offsets))
	}
	b := mat.NewDense(2*len(states), 1, nil)
	for i, st := range states {
		rad := st.Angle * math.Pi / 180
		b.Set(2*i, 0, st.Speed*math.Cos(rad))
		b.Set(2*i+1, 0, st.Speed*math.Sin(rad))
	}
	var x mat.Dense
	if err := k.qr.SolveTo(&x, false, b); err != nil {
		return Speeds{}, fmt.Errorf("chassis: solving forward kinematics: %w", err)
	}
	return Speeds{Vx: x.At(0, 0), Vy: x.At(1, 0), Omega: x.At(2, 0)}, nil
}

// Desaturate scales all wheel speeds down in place so none exceeds maxSpeed,
// preserving the ratio between wheels and leaving angles untouched. States
// already within the limit are not modified.
func Desaturate(states []wheel.State, maxSpeed float64) {
	highest := 0.0
	for _, s := range states {
		if v := math.Abs(s.Speed); v > highest {
			highest = v
		}
	}
	if highest <= maxSpeed {
		return
	}
	scale := maxSpeed / highest
	for i := range states {
		states[i].Speed *= scale
	}
}

// RectangularOffsets returns the standard four-wheel layout for a chassis
// with the given wheel base (front-back, X) and track width (left-right, Y),
// in order front-left, front-right, back-left, back-right.
func RectangularOffsets(wheelBase, trackWidth float64) []WheelOffset {
	return []WheelOffset{
		{X: wheelBase / 2, Y: trackWidth / 2},
		{X: wheelBase / 2, Y: -trackWidth / 2},
		{X: -wheelBase / 2, Y: trackWidth / 2},
		{X: -wheelBase / 2, Y: -trackWidth / 2},
	}
}
