// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/relabs-tech/swerve_computer/internal/config"
	"github.com/relabs-tech/swerve_computer/internal/drive"
)

const (
	calibrationSamples  = 100
	calibrationInterval = 20 * time.Millisecond
)

// WheelCalibration is the measured encoder offset of one wheel.
type WheelCalibration struct {
	Index       int     `json:"index"`
	AngleOffset float64 `json:"angle_offset"` // degrees
	StdDev      float64 `json:"stddev"`       // degrees, sampling noise
}

// CalibrationResult is the JSON document written after a calibration run.
type CalibrationResult struct {
	Version   int                `json:"version"`
	Timestamp time.Time          `json:"timestamp"`
	Transport string             `json:"transport"`
	Samples   int                `json:"samples"`
	Wheels    []WheelCalibration `json:"wheels"`
}

// RunCalibration measures each wheel's absolute encoder reading while the
// wheels are held at mechanical zero, then prints the ANGLE_OFFSET config
// lines and writes the result as JSON.
//
// The operator aligns all wheels pointing straight forward (bevel gears to
// the same side) before confirming; the measured offsets go into the config
// file so every later startup seeds the azimuth sensors correctly.
func RunCalibration() error {
	cfg := config.Get()

	sets, closeActuators, err := openActuators(cfg)
	if err != nil {
		return err
	}
	defer closeActuators()

	fmt.Println("Wheel angle offset calibration")
	fmt.Println("Align all four wheels pointing straight forward, then press Enter.")
	if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
		return fmt.Errorf("reading confirmation: %w", err)
	}

	result := CalibrationResult{
		Version:   1,
		Timestamp: time.Now(),
		Transport: cfg.ActuatorTransport,
		Samples:   calibrationSamples,
	}

	for i := 0; i < drive.WheelCount; i++ {
		samples := make([]float64, 0, calibrationSamples)
		for n := 0; n < calibrationSamples; n++ {
			angle, err := sets[i].encoder.AbsoluteAngle()
			if err != nil {
				return fmt.Errorf("wheel %d: reading absolute encoder: %w", i, err)
			}
			samples = append(samples, angle)
			time.Sleep(calibrationInterval)
		}

		offset, stddev := circularMean(samples)
		result.Wheels = append(result.Wheels, WheelCalibration{
			Index:       i,
			AngleOffset: offset,
			StdDev:      stddev,
		})
		fmt.Printf("wheel %d: offset %.2f° (stddev %.3f°)\n", i, offset, stddev)
	}

	fmt.Println("\nConfig lines:")
	for _, w := range result.Wheels {
		fmt.Printf("WHEEL_%d_ANGLE_OFFSET=%.2f\n", w.Index, w.AngleOffset)
	}

	filename := fmt.Sprintf("swerve_calibration_%d.json", result.Timestamp.Unix())
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	path := filepath.Join(cwd, filename)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal calibration results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write calibration file: %w", err)
	}
	fmt.Printf("\nsaved results to %s\n", path)
	return nil
}

// circularMean averages angles on the circle so samples straddling the
// 0°/360° wrap do not cancel, and reports angular standard deviation.
func circularMean(samples []float64) (mean, stddev float64) {
	var sinSum, cosSum float64
	for _, a := range samples {
		rad := a * math.Pi / 180
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}
	mean = math.Atan2(sinSum, cosSum) * 180 / math.Pi
	if mean < 0 {
		mean += 360
	}

	variance := 0.0
	for _, a := range samples {
		diff := math.Mod(a-mean+540, 360) - 180
		variance += diff * diff
	}
	variance /= float64(len(samples))
	return mean, math.Sqrt(variance)
}
