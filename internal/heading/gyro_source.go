// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package heading

import (
	"fmt"
	"log"
	"math"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// MPU-9250 registers used for yaw integration.
const (
	regSmplrtDiv  = 0x19
	regConfig     = 0x1A
	regGyroConfig = 0x1B
	regGyroZOutH  = 0x47
	regPwrMgmt1   = 0x6B
	regWhoAmI     = 0x75

	whoAmIValue = 0x71
	readFlag    = 0x80

	// DLPF 41 Hz, sample rate 1 kHz / (1+4) = 200 Hz.
	dlpfConfig  = 0x03
	sampleDiv   = 0x04
	biasSamples = 200
)

// GyroSource integrates the MPU-9250's Z-axis rate gyro into a yaw angle.
// Yaw must be called regularly (every control cycle) for the integration to
// track; the gyro's rate bias is measured once at startup while the chassis
// is at rest.
type GyroSource struct {
	conn     spi.Conn
	port     spi.PortCloser
	scale    float64 // degrees per second per LSB
	bias     float64 // degrees per second
	yaw      float64
	lastRead time.Time
}

// NewGyroSource opens the MPU-9250 on the given SPI device and prepares it
// for yaw integration. gyroRange selects full scale: 0=±250°/s up to
// 3=±2000°/s. The chassis must be stationary during the bias measurement.
func NewGyroSource(spiDev string, gyroRange byte) (*GyroSource, error) {
	if gyroRange > 3 {
		return nil, fmt.Errorf("gyro: range must be 0..3, got %d", gyroRange)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gyro: periph host init: %w", err)
	}
	port, err := spireg.Open(spiDev)
	if err != nil {
		return nil, fmt.Errorf("gyro: opening SPI port %q: %w", spiDev, err)
	}
	conn, err := port.Connect(physic.MegaHertz, spi.Mode3, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("gyro: SPI connect: %w", err)
	}

	s := &GyroSource{
		conn:  conn,
		port:  port,
		scale: 250.0 * math.Pow(2, float64(gyroRange)) / 32768.0,
	}

	id, err := s.readRegister(regWhoAmI)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("gyro: reading WHO_AM_I: %w", err)
	}
	if id != whoAmIValue {
		port.Close()
		return nil, fmt.Errorf("gyro: unexpected WHO_AM_I 0x%02X, want 0x%02X", id, whoAmIValue)
	}

	// Wake from sleep, auto-select the best clock source.
	for _, w := range []struct{ reg, val byte }{
		{regPwrMgmt1, 0x01},
		{regConfig, dlpfConfig},
		{regSmplrtDiv, sampleDiv},
		{regGyroConfig, gyroRange << 3},
	} {
		if err := s.writeRegister(w.reg, w.val); err != nil {
			port.Close()
			return nil, fmt.Errorf("gyro: writing register 0x%02X: %w", w.reg, err)
		}
	}
	time.Sleep(100 * time.Millisecond)

	if err := s.measureBias(); err != nil {
		port.Close()
		return nil, fmt.Errorf("gyro: bias measurement: %w", err)
	}
	log.Printf("gyro: initialized on %s, range ±%.0f°/s, bias %.4f°/s",
		spiDev, 250*math.Pow(2, float64(gyroRange)), s.bias)
	return s, nil
}

// Yaw integrates the rate since the previous call and returns the heading in
// degrees in [0, 360).
func (s *GyroSource) Yaw() (float64, error) {
	rate, err := s.readRate()
	if err != nil {
		return 0, err
	}
	now := time.Now()
	if !s.lastRead.IsZero() {
		dt := now.Sub(s.lastRead).Seconds()
		s.yaw = math.Mod(s.yaw+(rate-s.bias)*dt, 360)
		if s.yaw < 0 {
			s.yaw += 360
		}
	}
	s.lastRead = now
	return s.yaw, nil
}

// Zero resets the integrated heading to zero.
func (s *GyroSource) Zero() error {
	s.yaw = 0
	return nil
}

// Close releases the SPI port.
func (s *GyroSource) Close() error {
	return s.port.Close()
}

// measureBias averages the stationary rate to cancel the gyro's zero offset.
func (s *GyroSource) measureBias() error {
	sum := 0.0
	for i := 0; i < biasSamples; i++ {
		rate, err := s.readRate()
		if err != nil {
			return err
		}
		sum += rate
		time.Sleep(5 * time.Millisecond)
	}
	s.bias = sum / biasSamples
	return nil
}

// readRate reads the Z-axis angular rate in degrees per second.
func (s *GyroSource) readRate() (float64, error) {
	write := []byte{regGyroZOutH | readFlag, 0, 0}
	read := make([]byte, len(write))
	if err := s.conn.Tx(write, read); err != nil {
		return 0, fmt.Errorf("reading gyro Z: %w", err)
	}
	raw := int16(uint16(read[1])<<8 | uint16(read[2]))
	return float64(raw) * s.scale, nil
}

func (s *GyroSource) readRegister(reg byte) (byte, error) {
	write := []byte{reg | readFlag, 0}
	read := make([]byte, len(write))
	if err := s.conn.Tx(write, read); err != nil {
		return 0, err
	}
	return read[1], nil
}

func (s *GyroSource) writeRegister(reg, value byte) error {
	return s.conn.Tx([]byte{reg, value}, nil)
}
