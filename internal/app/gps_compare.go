package app

import (
	"bufio"
	"encoding/json"
	"log"
	"math"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/swerve_computer/internal/config"
	"github.com/relabs-tech/swerve_computer/internal/gps"
	"github.com/relabs-tech/swerve_computer/internal/odometry"
)

const earthRadiusMeters = 6371000.0

// RunGPSCompare opens the GPS serial port, publishes RMC fixes as JSON, and
// logs the drift between GPS displacement and wheel odometry displacement.
// It is a bench tool for tuning wheel diameter and gear ratio values.
func RunGPSCompare() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDGPS)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("gps: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Track odometry displacement alongside the GPS track.
	var (
		mu           sync.Mutex
		lastPose     odometry.Pose
		firstPose    odometry.Pose
		havePose     bool
		haveBaseline bool
	)
	poseToken := client.Subscribe(cfg.TopicPose, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p odometry.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("gps: pose unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastPose = p
		havePose = true
		mu.Unlock()
	})
	poseToken.Wait()
	if poseToken.Error() != nil {
		return poseToken.Error()
	}
	log.Printf("gps: subscribed to %s", cfg.TopicPose)

	// ---- 2) Open GPS serial port ----
	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("gps: serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	reader := bufio.NewReader(port)

	var (
		current  gps.Fix
		firstLat float64
		firstLon float64
		haveFix  bool
	)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("gps: read error: %v", err)
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy GPS or partial sentences
			continue
		}

		if sentence.DataType() != nmea.TypeRMC {
			continue
		}
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			continue
		}

		current.Time = m.Time.String()
		current.Date = m.Date.String()
		current.Latitude = m.Latitude
		current.Longitude = m.Longitude
		current.SpeedKnots = m.Speed
		current.CourseDeg = m.Course
		current.Validity = string(m.Validity)

		payload, err := json.Marshal(current)
		if err != nil {
			log.Printf("gps: JSON marshal error: %v", err)
			continue
		}
		token := client.Publish(cfg.TopicGPS, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("gps: publish error: %v", token.Error())
			continue
		}

		// Baseline both tracks on the first valid fix, then report drift.
		mu.Lock()
		pose, poseReady := lastPose, havePose
		if poseReady && !haveBaseline {
			firstPose = pose
			haveBaseline = true
		}
		mu.Unlock()

		if !haveFix {
			firstLat, firstLon = m.Latitude, m.Longitude
			haveFix = true
			continue
		}
		if !haveBaseline {
			continue
		}

		gpsDist := haversineMeters(firstLat, firstLon, m.Latitude, m.Longitude)
		odomDist := math.Hypot(pose.X-firstPose.X, pose.Y-firstPose.Y)
		log.Printf("gps: displacement gps=%.2fm odometry=%.2fm drift=%.2fm",
			gpsDist, odomDist, gpsDist-odomDist)
	}
}

// haversineMeters returns the great-circle distance between two WGS84 points.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
