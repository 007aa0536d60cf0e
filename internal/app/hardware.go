// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"

	"github.com/relabs-tech/swerve_computer/internal/actuator"
	"github.com/relabs-tech/swerve_computer/internal/chassis"
	"github.com/relabs-tech/swerve_computer/internal/config"
	"github.com/relabs-tech/swerve_computer/internal/drive"
	"github.com/relabs-tech/swerve_computer/internal/heading"
	"github.com/relabs-tech/swerve_computer/internal/wheel"
)

// actuatorSet groups the three actuators of one wheel module.
type actuatorSet struct {
	drive   actuator.Motor
	azimuth actuator.Motor
	encoder actuator.AbsoluteEncoder
}

// openActuators builds the per-wheel actuators for the configured transport
// and returns a close function for the underlying bus, if any.
func openActuators(cfg *config.Config) ([drive.WheelCount]actuatorSet, func(), error) {
	var sets [drive.WheelCount]actuatorSet

	switch cfg.ActuatorTransport {
	case "can":
		nodes := make([]uint32, 0, drive.WheelCount*3)
		for _, w := range cfg.Wheels {
			nodes = append(nodes, uint32(w.DriveID), uint32(w.AngleID), uint32(w.EncoderID))
		}
		bus, err := actuator.NewBus(cfg.CANChannel, nodes)
		if err != nil {
			return sets, nil, fmt.Errorf("opening CAN bus %s: %w", cfg.CANChannel, err)
		}
		for i, w := range cfg.Wheels {
			sets[i] = actuatorSet{
				drive:   bus.Motor(uint32(w.DriveID)),
				azimuth: bus.Motor(uint32(w.AngleID)),
				encoder: bus.Encoder(uint32(w.EncoderID)),
			}
		}
		return sets, func() { bus.Close() }, nil

	case "dxl":
		bus, err := actuator.NewDXLBus(cfg.DXLPort, cfg.DXLBaudRate)
		if err != nil {
			return sets, nil, fmt.Errorf("opening dynamixel port %s: %w", cfg.DXLPort, err)
		}
		for i, w := range cfg.Wheels {
			driveMotor := bus.Motor(byte(w.DriveID))
			azimuthMotor := bus.Motor(byte(w.AngleID))
			if err := driveMotor.SetOperatingMode(actuator.DXLModeVelocity); err != nil {
				bus.Close()
				return sets, nil, fmt.Errorf("wheel %d drive servo: %w", i, err)
			}
			if err := azimuthMotor.SetOperatingMode(actuator.DXLModeExtendedPosition); err != nil {
				bus.Close()
				return sets, nil, fmt.Errorf("wheel %d azimuth servo: %w", i, err)
			}
			sets[i] = actuatorSet{
				drive:   driveMotor,
				azimuth: azimuthMotor,
				encoder: bus.Encoder(byte(w.EncoderID)),
			}
		}
		return sets, func() { bus.Close() }, nil

	case "mock":
		for i := range sets {
			sets[i] = actuatorSet{
				drive:   actuator.NewMockMotor(),
				azimuth: actuator.NewMockMotor(),
				encoder: actuator.NewMockEncoder(cfg.Wheels[i].AngleOffset),
			}
		}
		return sets, func() {}, nil

	default:
		return sets, nil, fmt.Errorf("unknown actuator transport %q", cfg.ActuatorTransport)
	}
}

// openHeadingSource builds the configured heading source.
func openHeadingSource(cfg *config.Config) (heading.Source, func(), error) {
	switch cfg.HeadingSource {
	case "gyro":
		src, err := heading.NewGyroSource(cfg.GyroSPIDevice, cfg.GyroRange)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { src.Close() }, nil
	case "mock":
		return heading.NewMockSource(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown heading source %q", cfg.HeadingSource)
	}
}

// buildCoordinator assembles the full drivetrain from the configuration.
// Every error here means the chassis cannot be driven safely and is fatal.
func buildCoordinator(cfg *config.Config) (*drive.Coordinator, func(), error) {
	sets, closeActuators, err := openActuators(cfg)
	if err != nil {
		return nil, nil, err
	}

	wheels := make([]*wheel.Controller, drive.WheelCount)
	for i, set := range sets {
		wheels[i], err = wheel.NewController(wheel.Config{
			Index:              i,
			DriveGearRatio:     cfg.DriveGearRatio,
			AngleGearRatio:     cfg.AngleGearRatio,
			WheelCircumference: cfg.WheelCircumference(),
			AngleOffset:        cfg.Wheels[i].AngleOffset,
			MaxSpeed:           cfg.MaxSpeed,
			Feedforward:        wheel.Feedforward{KS: cfg.DriveKS, KV: cfg.DriveKV, KA: cfg.DriveKA},
		}, set.drive, set.azimuth, set.encoder)
		if err != nil {
			closeActuators()
			return nil, nil, err
		}
	}
	log.Printf("drive: %d wheel controllers initialized over %s", drive.WheelCount, cfg.ActuatorTransport)

	source, closeSource, err := openHeadingSource(cfg)
	if err != nil {
		closeActuators()
		return nil, nil, err
	}

	kin, err := chassis.New(chassis.RectangularOffsets(cfg.WheelBase, cfg.TrackWidth))
	if err != nil {
		closeSource()
		closeActuators()
		return nil, nil, err
	}

	coord, err := drive.New(kin, wheels, source, cfg.InvertGyro, cfg.MaxSpeed)
	if err != nil {
		closeSource()
		closeActuators()
		return nil, nil, err
	}

	closeAll := func() {
		closeSource()
		closeActuators()
	}
	return coord, closeAll, nil
}
