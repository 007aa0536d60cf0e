package config

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// WheelConfig holds the per-wheel actuator IDs and the absolute encoder
// offset measured with the calibration tool.
type WheelConfig struct {
	DriveID     int
	AngleID     int
	EncoderID   int
	AngleOffset float64 // degrees
}

// Config holds all application configuration values.
type Config struct {
	// Chassis geometry
	TrackWidth    float64 // meters, left-right wheel separation
	WheelBase     float64 // meters, front-back wheel separation
	WheelDiameter float64 // meters

	// Drivetrain limits and gearing
	MaxSpeed           float64 // meters per second
	MaxAngularVelocity float64 // radians per second
	DriveGearRatio     float64
	AngleGearRatio     float64

	// Drive feedforward gains
	DriveKS float64
	DriveKV float64
	DriveKA float64

	// Control behavior
	FieldRelative bool
	OpenLoop      bool
	InvertGyro    bool

	// Timing (milliseconds)
	CyclePeriodMS       int
	CommandTimeoutMS    int
	TelemetryIntervalMS int

	// Actuator transport: "can", "dxl" or "mock"
	ActuatorTransport string
	CANChannel        string
	DXLPort           string
	DXLBaudRate       int

	// Per-wheel wiring, front-left, front-right, back-left, back-right
	Wheels [4]WheelConfig

	// Heading source: "gyro" or "mock"
	HeadingSource string
	GyroSPIDevice string
	// Gyroscope full scale: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	GyroRange byte

	// MQTT
	MQTTBroker          string
	MQTTClientIDDrive   string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string
	MQTTClientIDGPS     string

	// Topics
	TopicCommand     string
	TopicWheelStates string
	TopicPose        string
	TopicGPS         string

	// Web Server
	WebServerPort int

	// GPS (drift comparison)
	GPSSerialPort string
	GPSBaudRate   int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//     Has package-level scope (visible to all functions in this package, persists for program lifetime).
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Chassis geometry
	case "TRACK_WIDTH":
		return setFloat(&c.TrackWidth, key, value)
	case "WHEEL_BASE":
		return setFloat(&c.WheelBase, key, value)
	case "WHEEL_DIAMETER":
		return setFloat(&c.WheelDiameter, key, value)

	// Drivetrain limits and gearing
	case "MAX_SPEED":
		return setFloat(&c.MaxSpeed, key, value)
	case "MAX_ANGULAR_VELOCITY":
		return setFloat(&c.MaxAngularVelocity, key, value)
	case "DRIVE_GEAR_RATIO":
		return setFloat(&c.DriveGearRatio, key, value)
	case "ANGLE_GEAR_RATIO":
		return setFloat(&c.AngleGearRatio, key, value)

	// Drive feedforward gains
	case "DRIVE_KS":
		return setFloat(&c.DriveKS, key, value)
	case "DRIVE_KV":
		return setFloat(&c.DriveKV, key, value)
	case "DRIVE_KA":
		return setFloat(&c.DriveKA, key, value)

	// Control behavior
	case "FIELD_RELATIVE":
		return setBool(&c.FieldRelative, key, value)
	case "OPEN_LOOP":
		return setBool(&c.OpenLoop, key, value)
	case "INVERT_GYRO":
		return setBool(&c.InvertGyro, key, value)

	// Timing
	case "CYCLE_PERIOD_MS":
		return setInt(&c.CyclePeriodMS, key, value)
	case "COMMAND_TIMEOUT_MS":
		return setInt(&c.CommandTimeoutMS, key, value)
	case "TELEMETRY_INTERVAL_MS":
		return setInt(&c.TelemetryIntervalMS, key, value)

	// Actuator transport
	case "ACTUATOR_TRANSPORT":
		if value != "can" && value != "dxl" && value != "mock" {
			return fmt.Errorf("ACTUATOR_TRANSPORT must be \"can\", \"dxl\" or \"mock\", got %q", value)
		}
		c.ActuatorTransport = value
	case "CAN_CHANNEL":
		c.CANChannel = value
	case "DXL_PORT":
		c.DXLPort = value
	case "DXL_BAUD_RATE":
		return setInt(&c.DXLBaudRate, key, value)

	// Heading source
	case "HEADING_SOURCE":
		if value != "gyro" && value != "mock" {
			return fmt.Errorf("HEADING_SOURCE must be \"gyro\" or \"mock\", got %q", value)
		}
		c.HeadingSource = value
	case "GYRO_SPI_DEVICE":
		c.GyroSPIDevice = value
	case "GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.GyroRange = byte(rangeVal)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_DRIVE":
		c.MQTTClientIDDrive = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value

	// Topics
	case "TOPIC_COMMAND":
		c.TopicCommand = value
	case "TOPIC_WHEEL_STATES":
		c.TopicWheelStates = value
	case "TOPIC_POSE":
		c.TopicPose = value
	case "TOPIC_GPS":
		c.TopicGPS = value

	// Web Server
	case "WEB_SERVER_PORT":
		return setInt(&c.WebServerPort, key, value)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		return setInt(&c.GPSBaudRate, key, value)

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		return setInt(&c.DisplayUpdateInterval, key, value)

	default:
		// Per-wheel keys look like WHEEL_2_DRIVE_ID.
		if strings.HasPrefix(key, "WHEEL_") {
			return c.setWheelValue(key, value)
		}
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// setWheelValue parses keys of the form WHEEL_<index>_<field>.
func (c *Config) setWheelValue(key, value string) error {
	rest := strings.TrimPrefix(key, "WHEEL_")
	idxStr, field, ok := strings.Cut(rest, "_")
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 || idx >= len(c.Wheels) {
		return fmt.Errorf("wheel index in %q must be 0-%d", key, len(c.Wheels)-1)
	}

	w := &c.Wheels[idx]
	switch field {
	case "DRIVE_ID":
		return setInt(&w.DriveID, key, value)
	case "ANGLE_ID":
		return setInt(&w.AngleID, key, value)
	case "ENCODER_ID":
		return setInt(&w.EncoderID, key, value)
	case "ANGLE_OFFSET":
		return setFloat(&w.AngleOffset, key, value)
	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
}

func setFloat(dst *float64, key, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func setInt(dst *int, key, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func setBool(dst *bool, key, value string) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.TrackWidth <= 0 {
		return fmt.Errorf("TRACK_WIDTH is required and must be positive")
	}
	if c.WheelBase <= 0 {
		return fmt.Errorf("WHEEL_BASE is required and must be positive")
	}
	if c.WheelDiameter <= 0 {
		return fmt.Errorf("WHEEL_DIAMETER is required and must be positive")
	}
	if c.MaxSpeed <= 0 {
		return fmt.Errorf("MAX_SPEED is required and must be positive")
	}
	if c.DriveGearRatio <= 0 {
		return fmt.Errorf("DRIVE_GEAR_RATIO is required and must be positive")
	}
	if c.AngleGearRatio <= 0 {
		return fmt.Errorf("ANGLE_GEAR_RATIO is required and must be positive")
	}
	if c.CyclePeriodMS <= 0 {
		return fmt.Errorf("CYCLE_PERIOD_MS is required")
	}
	if c.CommandTimeoutMS <= 0 {
		return fmt.Errorf("COMMAND_TIMEOUT_MS is required")
	}
	if c.ActuatorTransport == "" {
		return fmt.Errorf("ACTUATOR_TRANSPORT is required")
	}
	if c.ActuatorTransport == "can" && c.CANChannel == "" {
		return fmt.Errorf("CAN_CHANNEL is required when ACTUATOR_TRANSPORT=can")
	}
	if c.ActuatorTransport == "dxl" {
		if c.DXLPort == "" {
			return fmt.Errorf("DXL_PORT is required when ACTUATOR_TRANSPORT=dxl")
		}
		if c.DXLBaudRate == 0 {
			return fmt.Errorf("DXL_BAUD_RATE is required when ACTUATOR_TRANSPORT=dxl")
		}
	}
	if c.HeadingSource == "" {
		return fmt.Errorf("HEADING_SOURCE is required")
	}
	if c.HeadingSource == "gyro" && c.GyroSPIDevice == "" {
		return fmt.Errorf("GYRO_SPI_DEVICE is required when HEADING_SOURCE=gyro")
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	return nil
}

// CyclePeriod returns the control loop period as a duration.
func (c *Config) CyclePeriod() time.Duration {
	return time.Duration(c.CyclePeriodMS) * time.Millisecond
}

// CommandTimeout returns how long a chassis command stays valid.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMS) * time.Millisecond
}

// TelemetryInterval returns how often telemetry is published.
func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.TelemetryIntervalMS) * time.Millisecond
}

// WheelCircumference returns the wheel circumference in meters.
func (c *Config) WheelCircumference() float64 {
	return c.WheelDiameter * math.Pi
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
// This is thread-safe and efficient for concurrent access across goroutines.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
