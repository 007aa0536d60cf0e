// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app wires the drivetrain, sensors and transports into runnable
// programs.
package app

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/swerve_computer/internal/config"
	"github.com/relabs-tech/swerve_computer/internal/odometry"
	"github.com/relabs-tech/swerve_computer/internal/wheel"
)

// Command is one chassis velocity request, received over MQTT.
type Command struct {
	Vx            float64 `json:"vx"`    // meters per second
	Vy            float64 `json:"vy"`    // meters per second
	Omega         float64 `json:"omega"` // radians per second
	FieldRelative *bool   `json:"field_relative,omitempty"`
	OpenLoop      *bool   `json:"open_loop,omitempty"`
}

// Telemetry is the state snapshot published each telemetry interval.
type Telemetry struct {
	Pose   odometry.Pose `json:"pose"`
	Wheels []wheel.State `json:"wheels"`
	Yaw    float64       `json:"yaw"`
}

// commandBox holds the latest command and its arrival time behind a mutex.
// MQTT delivers on its own goroutine; the control loop reads on its tick.
type commandBox struct {
	mu         sync.Mutex
	cmd        Command
	receivedAt time.Time
}

func (b *commandBox) set(cmd Command) {
	b.mu.Lock()
	b.cmd = cmd
	b.receivedAt = time.Now()
	b.mu.Unlock()
}

func (b *commandBox) get() (Command, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cmd, b.receivedAt
}

// RunDrive runs the drive control loop: it builds the drivetrain from the
// configuration, subscribes to the command topic and dispatches one chassis
// command per cycle. Commands older than the configured timeout stop the
// chassis rather than keeping it on its last heading.
func RunDrive() error {
	cfg := config.Get()

	coord, closeHardware, err := buildCoordinator(cfg)
	if err != nil {
		return err
	}
	defer closeHardware()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDrive)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("drive: connected to MQTT broker at %s", cfg.MQTTBroker)

	box := &commandBox{}
	token := client.Subscribe(cfg.TopicCommand, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var cmd Command
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			log.Printf("drive: command unmarshal error: %v", err)
			return
		}
		box.set(cmd)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("drive: subscribed to %s", cfg.TopicCommand)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.CyclePeriod())
	defer ticker.Stop()

	lastTelemetry := time.Time{}
	stopped := false
	log.Printf("drive: control loop running at %s per cycle", cfg.CyclePeriod())

	for {
		select {
		case <-sigCh:
			log.Println("drive: shutting down")
			coord.Stop()
			return nil

		case now := <-ticker.C:
			cmd, receivedAt := box.get()
			if receivedAt.IsZero() || now.Sub(receivedAt) > cfg.CommandTimeout() {
				if !stopped {
					if !receivedAt.IsZero() {
						log.Printf("drive: command stale for %s, stopping", now.Sub(receivedAt).Round(time.Millisecond))
					}
					coord.Stop()
					stopped = true
				}
			} else {
				fieldRelative := cfg.FieldRelative
				if cmd.FieldRelative != nil {
					fieldRelative = *cmd.FieldRelative
				}
				openLoop := cfg.OpenLoop
				if cmd.OpenLoop != nil {
					openLoop = *cmd.OpenLoop
				}
				omega := cmd.Omega
				if cfg.MaxAngularVelocity > 0 {
					if omega > cfg.MaxAngularVelocity {
						omega = cfg.MaxAngularVelocity
					} else if omega < -cfg.MaxAngularVelocity {
						omega = -cfg.MaxAngularVelocity
					}
				}
				coord.Drive(cmd.Vx, cmd.Vy, omega, fieldRelative, openLoop)
				stopped = false
			}

			coord.Periodic()

			if now.Sub(lastTelemetry) >= cfg.TelemetryInterval() {
				publishTelemetry(client, cfg, coord.Pose(), coord.WheelStates(), coord.Yaw())
				lastTelemetry = now
			}
		}
	}
}

func publishTelemetry(client mqtt.Client, cfg *config.Config, pose odometry.Pose, wheels []wheel.State, yaw float64) {
	t := Telemetry{Pose: pose, Wheels: wheels, Yaw: yaw}

	if payload, err := json.Marshal(t.Pose); err != nil {
		log.Printf("drive: pose marshal error: %v", err)
	} else {
		client.Publish(cfg.TopicPose, 0, true, payload)
	}

	if payload, err := json.Marshal(t); err != nil {
		log.Printf("drive: telemetry marshal error: %v", err)
	} else {
		client.Publish(cfg.TopicWheelStates, 0, true, payload)
	}
}
