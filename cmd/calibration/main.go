// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Guided wheel angle offset calibration.
//
// With all wheels held pointing straight forward, the tool samples each
// wheel's absolute encoder, averages the readings and prints the
// WHEEL_<n>_ANGLE_OFFSET lines to paste into the config file. A JSON record
// of the run is written to the current directory.
//
// Run:
//
//	go run ./cmd/calibration
package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/swerve_computer/internal/app"
	"github.com/relabs-tech/swerve_computer/internal/config"
)

func main() {
	configPath := flag.String("config", "./swerve_config.txt", "path to configuration file")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunCalibration(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
