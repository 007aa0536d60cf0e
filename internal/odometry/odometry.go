// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package odometry tracks the chassis pose on the field by integrating
// measured wheel states against the heading sensor.
package odometry

import (
	"math"
	"time"

	"github.com/relabs-tech/swerve_computer/internal/chassis"
	"github.com/relabs-tech/swerve_computer/internal/wheel"
)

// Pose is a field-frame position and orientation: X forward, Y left, both in
// meters, Heading in degrees counter-clockwise.
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// Estimator integrates wheel odometry into a field pose. The heading comes
// from the heading sensor, not from integrating wheel states, so wheel slip
// does not accumulate into the orientation.
type Estimator struct {
	kin           *chassis.Kinematics
	pose          Pose
	headingOffset float64 // pose heading minus sensor heading, degrees
	lastUpdate    time.Time

	now func() time.Time
}

// NewEstimator creates an estimator at the given initial pose, with the
// heading sensor currently reading sensorHeading degrees.
func NewEstimator(kin *chassis.Kinematics, initial Pose, sensorHeading float64) *Estimator {
	e := &Estimator{kin: kin, now: time.Now}
	e.Reset(initial, sensorHeading)
	return e
}

// Reset moves the estimate to pose and re-references the heading sensor,
// which currently reads sensorHeading degrees. The next Update only
// re-arms the integration clock.
func (e *Estimator) Reset(pose Pose, sensorHeading float64) {
	e.pose = pose
	e.headingOffset = pose.Heading - sensorHeading
	e.lastUpdate = time.Time{}
}

// Update advances the pose using the current sensor heading in degrees and
// the measured wheel states, and returns the new pose. The first call after
// a reset integrates nothing and only starts the clock.
func (e *Estimator) Update(sensorHeading float64, states []wheel.State) (Pose, error) {
	now := e.now()
	heading := sensorHeading + e.headingOffset

	if !e.lastUpdate.IsZero() {
		dt := now.Sub(e.lastUpdate).Seconds()
		speeds, err := e.kin.ToChassisSpeeds(states)
		if err != nil {
			return e.pose, err
		}
		rad := heading * math.Pi / 180
		sin, cos := math.Sincos(rad)
		e.pose.X += (speeds.Vx*cos - speeds.Vy*sin) * dt
		e.pose.Y += (speeds.Vx*sin + speeds.Vy*cos) * dt
	}
	e.pose.Heading = heading
	e.lastUpdate = now
	return e.pose, nil
}

// Pose returns the current estimate without advancing it.
func (e *Estimator) Pose() Pose {
	return e.pose
}
