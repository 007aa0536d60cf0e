package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/swerve_computer/internal/config"
	"github.com/relabs-tech/swerve_computer/internal/odometry"
)

// displayData holds the latest telemetry for the display
type displayData struct {
	mu sync.RWMutex

	pose     odometry.Pose
	havePose bool

	telemetry     Telemetry
	haveTelemetry bool
}

// RunDisplay drives the status OLED: pose on the upper half, wheel speeds on
// the lower half.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	display, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized")

	if err := showSplash(display); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &displayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	poseToken := client.Subscribe(cfg.TopicPose, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p odometry.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("display: pose unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.pose = p
		data.havePose = true
		data.mu.Unlock()
	})
	poseToken.Wait()
	if poseToken.Error() != nil {
		return poseToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicPose)

	telToken := client.Subscribe(cfg.TopicWheelStates, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t Telemetry
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("display: telemetry unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.telemetry = t
		data.haveTelemetry = true
		data.mu.Unlock()
	})
	telToken.Wait()
	if telToken.Error() != nil {
		return telToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicWheelStates)

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		pose, havePose := data.pose, data.havePose
		telemetry, haveTelemetry := data.telemetry, data.haveTelemetry
		data.mu.RUnlock()

		if err := updateStatusDisplay(display, pose, havePose, telemetry, haveTelemetry); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func updateStatusDisplay(dev *ssd1306.Dev, pose odometry.Pose, havePose bool, telemetry Telemetry, haveTelemetry bool) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !havePose {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Swerve Pi"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("X %6.2f Y %6.2f", pose.X, pose.Y)))

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte(fmt.Sprintf("HDG %6.1f", pose.Heading)))

	if haveTelemetry && len(telemetry.Wheels) >= 4 {
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(fmt.Sprintf("W %4.1f %4.1f",
			telemetry.Wheels[0].Speed, telemetry.Wheels[1].Speed)))
		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(fmt.Sprintf("  %4.1f %4.1f",
			telemetry.Wheels[2].Speed, telemetry.Wheels[3].Speed)))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Swerve Pi"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Waiting for"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("drive"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
