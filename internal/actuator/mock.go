// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package actuator

// MockMotor implements Motor in memory, for tests and for bench runs without
// hardware. Position and velocity snap to the last command so a control loop
// driving mocks sees plausible sensor readback.
type MockMotor struct {
	PositionTicks float64 // reported by Position
	VelocityTicks float64 // reported by Velocity

	LastVelocity    float64
	LastFeedforward float64
	LastPercent     float64
	LastPosition    float64

	VelocityCommands int
	PercentCommands  int
	PositionCommands int

	ReadErr    error // returned by Position and Velocity when set
	CommandErr error // returned by every command when set
}

// NewMockMotor creates a mock motor at rest at position zero.
func NewMockMotor() *MockMotor {
	return &MockMotor{}
}

func (m *MockMotor) Position() (float64, error) {
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	return m.PositionTicks, nil
}

func (m *MockMotor) Velocity() (float64, error) {
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	return m.VelocityTicks, nil
}

func (m *MockMotor) SetVelocity(ticksPer100ms, feedforward float64) error {
	if m.CommandErr != nil {
		return m.CommandErr
	}
	m.LastVelocity = ticksPer100ms
	m.LastFeedforward = feedforward
	m.VelocityTicks = ticksPer100ms
	m.VelocityCommands++
	return nil
}

func (m *MockMotor) SetPercent(output float64) error {
	if m.CommandErr != nil {
		return m.CommandErr
	}
	m.LastPercent = output
	m.PercentCommands++
	return nil
}

func (m *MockMotor) SetPosition(ticks float64) error {
	if m.CommandErr != nil {
		return m.CommandErr
	}
	m.LastPosition = ticks
	m.PositionTicks = ticks
	m.PositionCommands++
	return nil
}

func (m *MockMotor) SetSensorPosition(ticks float64) error {
	if m.CommandErr != nil {
		return m.CommandErr
	}
	m.PositionTicks = ticks
	return nil
}

// MockEncoder implements AbsoluteEncoder with a settable angle.
type MockEncoder struct {
	Angle float64
	Err   error
}

// NewMockEncoder creates a mock encoder reading the given angle in degrees.
func NewMockEncoder(angle float64) *MockEncoder {
	return &MockEncoder{Angle: angle}
}

func (e *MockEncoder) AbsoluteAngle() (float64, error) {
	if e.Err != nil {
		return 0, e.Err
	}
	return e.Angle, nil
}
