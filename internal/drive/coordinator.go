// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package drive coordinates the four wheel modules, the heading sensor and
// the odometry into one drivetrain.
package drive

import (
	"fmt"
	"log"

	"github.com/relabs-tech/swerve_computer/internal/chassis"
	"github.com/relabs-tech/swerve_computer/internal/heading"
	"github.com/relabs-tech/swerve_computer/internal/odometry"
	"github.com/relabs-tech/swerve_computer/internal/wheel"
)

// WheelCount is the number of wheel modules the coordinator drives.
const WheelCount = 4

// Coordinator fans chassis commands out to the wheel controllers and keeps
// the pose estimate current. All methods are meant to be called from the
// single control loop goroutine.
type Coordinator struct {
	kin        *chassis.Kinematics
	wheels     []*wheel.Controller
	source     heading.Source
	invertGyro bool
	maxSpeed   float64

	odom    *odometry.Estimator
	lastYaw float64
}

// New builds a coordinator from exactly WheelCount wheel controllers. The
// heading sensor is zeroed so the chassis's startup orientation becomes
// field-forward, and odometry starts at the origin.
func New(kin *chassis.Kinematics, wheels []*wheel.Controller, source heading.Source, invertGyro bool, maxSpeed float64) (*Coordinator, error) {
	if len(wheels) != WheelCount {
		return nil, fmt.Errorf("drive: need %d wheel controllers, got %d", WheelCount, len(wheels))
	}
	if kin.WheelCount() != WheelCount {
		return nil, fmt.Errorf("drive: kinematics has %d wheels, need %d", kin.WheelCount(), WheelCount)
	}
	if maxSpeed <= 0 {
		return nil, fmt.Errorf("drive: max speed must be positive, got %f", maxSpeed)
	}
	if err := source.Zero(); err != nil {
		return nil, fmt.Errorf("drive: zeroing heading sensor: %w", err)
	}
	c := &Coordinator{
		kin:        kin,
		wheels:     wheels,
		source:     source,
		invertGyro: invertGyro,
		maxSpeed:   maxSpeed,
	}
	c.odom = odometry.NewEstimator(kin, odometry.Pose{}, c.Yaw())
	return c, nil
}

// Yaw returns the chassis heading in degrees. When the sensor is unavailable
// the last good reading is returned so one bad cycle cannot jerk the
// field-relative frame.
func (c *Coordinator) Yaw() float64 {
	y, err := c.source.Yaw()
	if err != nil {
		log.Printf("drive: heading unavailable, holding %.1f°: %v", c.lastYaw, err)
		return c.lastYaw
	}
	if c.invertGyro {
		y = 360 - y
	}
	c.lastYaw = y
	return y
}

// Drive converts a chassis velocity command into wheel targets and dispatches
// them. With fieldRelative the velocities are interpreted in the field frame
// and rotated by the current heading.
func (c *Coordinator) Drive(vx, vy, omega float64, fieldRelative, openLoop bool) {
	speeds := chassis.Speeds{Vx: vx, Vy: vy, Omega: omega}
	if fieldRelative {
		speeds = chassis.FromFieldRelative(vx, vy, omega, c.Yaw())
	}
	states := c.kin.ToWheelStates(speeds)
	chassis.Desaturate(states, c.maxSpeed)
	for i, w := range c.wheels {
		w.SetTarget(wheel.Target{State: states[i], OpenLoop: openLoop})
	}
}

// Stop commands zero velocity. The wheels keep their last angle through the
// low-speed hold, so a stop does not twitch the azimuths.
func (c *Coordinator) Stop() {
	c.Drive(0, 0, 0, false, true)
}

// SetWheelStates dispatches explicit per-wheel targets in closed loop,
// desaturating them first. Used by trajectory followers that compute wheel
// states directly.
func (c *Coordinator) SetWheelStates(states []wheel.State) error {
	if len(states) != len(c.wheels) {
		return fmt.Errorf("drive: got %d wheel states for %d wheels", len(states), len(c.wheels))
	}
	desired := append([]wheel.State(nil), states...)
	chassis.Desaturate(desired, c.maxSpeed)
	for i, w := range c.wheels {
		w.SetTarget(wheel.Target{State: desired[i]})
	}
	return nil
}

// WheelStates returns the measured state of every wheel.
func (c *Coordinator) WheelStates() []wheel.State {
	states := make([]wheel.State, len(c.wheels))
	for i, w := range c.wheels {
		states[i] = w.State()
	}
	return states
}

// Periodic advances the odometry one control cycle. Call once per cycle
// after commands have been dispatched.
func (c *Coordinator) Periodic() {
	if _, err := c.odom.Update(c.Yaw(), c.WheelStates()); err != nil {
		log.Printf("drive: odometry update failed: %v", err)
	}
}

// Pose returns the current field pose estimate.
func (c *Coordinator) Pose() odometry.Pose {
	return c.odom.Pose()
}

// ResetOdometry moves the pose estimate, keeping the current heading sensor
// reference.
func (c *Coordinator) ResetOdometry(p odometry.Pose) {
	c.odom.Reset(p, c.Yaw())
}

// ZeroHeading makes the chassis's current orientation the new field-forward.
func (c *Coordinator) ZeroHeading() error {
	if err := c.source.Zero(); err != nil {
		return fmt.Errorf("drive: zeroing heading sensor: %w", err)
	}
	pose := c.odom.Pose()
	pose.Heading = 0
	c.odom.Reset(pose, c.Yaw())
	return nil
}

// ResetWheelsToAbsolute re-seeds every azimuth sensor from its absolute
// encoder. Only call while the chassis is stationary.
func (c *Coordinator) ResetWheelsToAbsolute() error {
	for _, w := range c.wheels {
		if err := w.ResetToAbsolute(); err != nil {
			return fmt.Errorf("drive: wheel %d: %w", w.Index(), err)
		}
	}
	return nil
}
