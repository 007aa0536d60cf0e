package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `# chassis
TRACK_WIDTH=0.62
WHEEL_BASE=0.62
WHEEL_DIAMETER=0.1016
MAX_SPEED=4.5
MAX_ANGULAR_VELOCITY=11.5
DRIVE_GEAR_RATIO=6.75
ANGLE_GEAR_RATIO=12.8

DRIVE_KS=0.32
DRIVE_KV=1.51
DRIVE_KA=0.27

FIELD_RELATIVE=true
OPEN_LOOP=true
INVERT_GYRO=false

CYCLE_PERIOD_MS=20
COMMAND_TIMEOUT_MS=500
TELEMETRY_INTERVAL_MS=100

ACTUATOR_TRANSPORT=can
CAN_CHANNEL=can0

WHEEL_0_DRIVE_ID=1
WHEEL_0_ANGLE_ID=2
WHEEL_0_ENCODER_ID=3
WHEEL_0_ANGLE_OFFSET=37.5
WHEEL_1_DRIVE_ID=4
WHEEL_1_ANGLE_ID=5
WHEEL_1_ENCODER_ID=6
WHEEL_1_ANGLE_OFFSET=112.1
WHEEL_2_DRIVE_ID=7
WHEEL_2_ANGLE_ID=8
WHEEL_2_ENCODER_ID=9
WHEEL_2_ANGLE_OFFSET=263.9
WHEEL_3_DRIVE_ID=10
WHEEL_3_ANGLE_ID=11
WHEEL_3_ENCODER_ID=12
WHEEL_3_ANGLE_OFFSET=5.0

HEADING_SOURCE=gyro
GYRO_SPI_DEVICE=/dev/spidev0.0
GYRO_RANGE=1

MQTT_BROKER=tcp://localhost:1883
MQTT_CLIENT_ID_DRIVE=swerve-drive
TOPIC_COMMAND=swerve/command
TOPIC_WHEEL_STATES=swerve/wheels
TOPIC_POSE=swerve/pose
WEB_SERVER_PORT=8080
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swerve_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.InDelta(t, 0.62, cfg.TrackWidth, 1e-9)
	assert.InDelta(t, 4.5, cfg.MaxSpeed, 1e-9)
	assert.InDelta(t, 6.75, cfg.DriveGearRatio, 1e-9)
	assert.True(t, cfg.FieldRelative)
	assert.False(t, cfg.InvertGyro)
	assert.Equal(t, "can", cfg.ActuatorTransport)
	assert.Equal(t, "can0", cfg.CANChannel)
	assert.Equal(t, byte(1), cfg.GyroRange)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)

	assert.Equal(t, 4, cfg.Wheels[1].DriveID)
	assert.Equal(t, 9, cfg.Wheels[2].EncoderID)
	assert.InDelta(t, 263.9, cfg.Wheels[2].AngleOffset, 1e-9)

	assert.Equal(t, 20*time.Millisecond, cfg.CyclePeriod())
	assert.Equal(t, 500*time.Millisecond, cfg.CommandTimeout())
	assert.InDelta(t, 0.1016*3.14159265, cfg.WheelCircumference(), 1e-6)
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	_, err := Load(writeConfig(t, "TRACK_WIDTH 0.62\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config line 1")
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "NOT_A_KEY=1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoadRejectsBadWheelIndex(t *testing.T) {
	_, err := Load(writeConfig(t, "WHEEL_7_DRIVE_ID=1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wheel index")
}

func TestLoadRejectsMissingRequired(t *testing.T) {
	// Everything but MQTT_BROKER.
	content := ""
	for _, line := range []string{
		"TRACK_WIDTH=0.62", "WHEEL_BASE=0.62", "WHEEL_DIAMETER=0.1",
		"MAX_SPEED=4.5", "DRIVE_GEAR_RATIO=6.75", "ANGLE_GEAR_RATIO=12.8",
		"CYCLE_PERIOD_MS=20", "COMMAND_TIMEOUT_MS=500",
		"ACTUATOR_TRANSPORT=mock", "HEADING_SOURCE=mock",
	} {
		content += line + "\n"
	}
	_, err := Load(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MQTT_BROKER")
}

func TestLoadRejectsTransportMissingChannel(t *testing.T) {
	content := "ACTUATOR_TRANSPORT=dxl\n" +
		"TRACK_WIDTH=0.62\nWHEEL_BASE=0.62\nWHEEL_DIAMETER=0.1\nMAX_SPEED=4.5\n" +
		"DRIVE_GEAR_RATIO=6.75\nANGLE_GEAR_RATIO=12.8\nCYCLE_PERIOD_MS=20\n" +
		"COMMAND_TIMEOUT_MS=500\nHEADING_SOURCE=mock\nMQTT_BROKER=tcp://localhost:1883\n"
	_, err := Load(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DXL_PORT")
}

func TestLoadRejectsOutOfRangeGyro(t *testing.T) {
	_, err := Load(writeConfig(t, "GYRO_RANGE=4\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GYRO_RANGE")
}

func TestCommentsAndBlankLinesIgnored(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# leading comment\n\n"+validConfig))
	require.NoError(t, err)
	assert.InDelta(t, 0.62, cfg.WheelBase, 1e-9)
}
