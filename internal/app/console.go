package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/swerve_computer/internal/config"
	"github.com/relabs-tech/swerve_computer/internal/gps"
	"github.com/relabs-tech/swerve_computer/internal/odometry"
)

// RunConsole subscribes to the drive telemetry topics and prints each
// message to stdout.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to pose
	poseToken := client.Subscribe(cfg.TopicPose, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p odometry.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("console: pose unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[POSE]  X=%7.3f  Y=%7.3f  HEADING=%6.2f\n",
			p.X, p.Y, p.Heading,
		)
	})
	poseToken.Wait()
	if poseToken.Error() != nil {
		return poseToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicPose)

	// Subscribe to wheel telemetry
	wheelToken := client.Subscribe(cfg.TopicWheelStates, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t Telemetry
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("console: telemetry unmarshal error: %v", err)
			return
		}

		fmt.Printf("[WHEEL] yaw=%6.2f ", t.Yaw)
		for i, w := range t.Wheels {
			fmt.Printf(" %d:%5.2fm/s@%7.1f°", i, w.Speed, w.Angle)
		}
		fmt.Println()
	})
	wheelToken.Wait()
	if wheelToken.Error() != nil {
		return wheelToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicWheelStates)

	// Subscribe to GPS when the comparison producer runs
	if cfg.TopicGPS != "" {
		gpsToken := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var f gps.Fix
			if err := json.Unmarshal(msg.Payload(), &f); err != nil {
				log.Printf("console: gps unmarshal error: %v", err)
				return
			}

			fmt.Printf(
				"[GPS ]  time=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s\n",
				f.Time, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity,
			)
		})
		gpsToken.Wait()
		if gpsToken.Error() != nil {
			return gpsToken.Error()
		}
		log.Printf("console: subscribed to %s", cfg.TopicGPS)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
