// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wheel

import (
	"fmt"
	"log"
	"math"

	"github.com/relabs-tech/swerve_computer/internal/actuator"
)

// holdSpeedFraction is the fraction of the maximum speed below which the
// azimuth holds its last commanded angle instead of tracking the target.
// Empirically chosen to suppress azimuth jitter around zero demand.
const holdSpeedFraction = 0.01

// Config describes one wheel module's mechanics and control gains.
type Config struct {
	Index              int     // position in the wheel array, 0..3
	DriveGearRatio     float64 // motor revolutions per wheel revolution
	AngleGearRatio     float64 // motor revolutions per azimuth revolution
	WheelCircumference float64 // meters
	AngleOffset        float64 // absolute encoder reading at wheel zero, degrees
	MaxSpeed           float64 // meters per second
	Feedforward        Feedforward
}

func (c Config) validate() error {
	if c.Index < 0 {
		return fmt.Errorf("wheel %d: negative index", c.Index)
	}
	if c.DriveGearRatio <= 0 {
		return fmt.Errorf("wheel %d: DriveGearRatio must be positive, got %f", c.Index, c.DriveGearRatio)
	}
	if c.AngleGearRatio <= 0 {
		return fmt.Errorf("wheel %d: AngleGearRatio must be positive, got %f", c.Index, c.AngleGearRatio)
	}
	if c.WheelCircumference <= 0 {
		return fmt.Errorf("wheel %d: WheelCircumference must be positive, got %f", c.Index, c.WheelCircumference)
	}
	if c.MaxSpeed <= 0 {
		return fmt.Errorf("wheel %d: MaxSpeed must be positive, got %f", c.Index, c.MaxSpeed)
	}
	return nil
}

// Controller drives one swerve module: a drive motor, an azimuth motor and
// the absolute encoder used to seed the azimuth's relative sensor.
type Controller struct {
	cfg     Config
	drive   actuator.Motor
	azimuth actuator.Motor
	encoder actuator.AbsoluteEncoder

	lastAngle float64 // last commanded azimuth angle, degrees
	lastState State   // last successfully read state
}

// NewController validates the configuration, seeds the azimuth sensor from
// the absolute encoder and zeroes the drive sensor. A configuration or
// seeding failure here is fatal to the caller; a wheel that starts with a
// wrong azimuth reference drives in the wrong direction.
func NewController(cfg Config, drive, azimuth actuator.Motor, encoder actuator.AbsoluteEncoder) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:     cfg,
		drive:   drive,
		azimuth: azimuth,
		encoder: encoder,
	}
	if err := c.ResetToAbsolute(); err != nil {
		return nil, fmt.Errorf("wheel %d: seeding azimuth sensor: %w", cfg.Index, err)
	}
	if err := drive.SetSensorPosition(0); err != nil {
		return nil, fmt.Errorf("wheel %d: zeroing drive sensor: %w", cfg.Index, err)
	}
	c.lastAngle = c.State().Angle
	c.lastState = State{Angle: c.lastAngle}
	return c, nil
}

// Index returns the wheel's position in the chassis wheel array.
func (c *Controller) Index() int {
	return c.cfg.Index
}

// SetTarget commands the wheel toward the target state. The target is first
// optimized against the measured state so the azimuth never turns more than
// 90°. Rejected actuator commands are logged and skipped; the next cycle
// retries with fresh demand.
func (c *Controller) SetTarget(t Target) {
	s := Optimize(t.State, c.State())

	if t.OpenLoop {
		if err := c.drive.SetPercent(s.Speed / c.cfg.MaxSpeed); err != nil {
			log.Printf("wheel %d: drive percent command rejected: %v", c.cfg.Index, err)
		}
	} else {
		ticks := MPSToTicks(s.Speed, c.cfg.WheelCircumference, c.cfg.DriveGearRatio)
		ff := c.cfg.Feedforward.Calculate(s.Speed, 0)
		if err := c.drive.SetVelocity(ticks, ff); err != nil {
			log.Printf("wheel %d: drive velocity command rejected: %v", c.cfg.Index, err)
		}
	}

	angle := s.Angle
	if math.Abs(t.Speed) <= c.cfg.MaxSpeed*holdSpeedFraction {
		angle = c.lastAngle
	}
	if err := c.azimuth.SetPosition(DegreesToTicks(angle, c.cfg.AngleGearRatio)); err != nil {
		log.Printf("wheel %d: azimuth position command rejected: %v", c.cfg.Index, err)
	}
	c.lastAngle = angle
}

// State returns the measured wheel state. When a sensor read fails the last
// good state is returned so the control loop keeps a consistent view.
func (c *Controller) State() State {
	velocity, err := c.drive.Velocity()
	if err != nil {
		log.Printf("wheel %d: drive velocity unavailable, holding last state: %v", c.cfg.Index, err)
		return c.lastState
	}
	position, err := c.azimuth.Position()
	if err != nil {
		log.Printf("wheel %d: azimuth position unavailable, holding last state: %v", c.cfg.Index, err)
		return c.lastState
	}
	c.lastState = State{
		Speed: TicksToMPS(velocity, c.cfg.WheelCircumference, c.cfg.DriveGearRatio),
		Angle: TicksToDegrees(position, c.cfg.AngleGearRatio),
	}
	return c.lastState
}

// AbsoluteAngle reads the wheel's absolute encoder in degrees.
func (c *Controller) AbsoluteAngle() (float64, error) {
	return c.encoder.AbsoluteAngle()
}

// LastAngle returns the last commanded azimuth angle in degrees.
func (c *Controller) LastAngle() float64 {
	return c.lastAngle
}

// ResetToAbsolute re-seeds the azimuth's relative sensor from the absolute
// encoder, removing any drift accumulated since startup. Call only while the
// wheel is at rest.
func (c *Controller) ResetToAbsolute() error {
	abs, err := c.encoder.AbsoluteAngle()
	if err != nil {
		return fmt.Errorf("reading absolute encoder: %w", err)
	}
	ticks := DegreesToTicks(abs-c.cfg.AngleOffset, c.cfg.AngleGearRatio)
	if err := c.azimuth.SetSensorPosition(ticks); err != nil {
		return fmt.Errorf("writing azimuth sensor: %w", err)
	}
	return nil
}
