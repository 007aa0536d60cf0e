package actuator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommandLayout(t *testing.T) {
	data := encodeCommand(canModeVelocity, 0x01020304, 0x0506)

	require.Len(t, data, 7)
	assert.Equal(t, canModeVelocity, data[0])
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, data[1:5], "value is little-endian")
	assert.Equal(t, []byte{0x06, 0x05}, data[5:7], "feedforward is little-endian")
}

func TestTelemetryRoundTrip(t *testing.T) {
	data := encodeCommand(canModePosition, ticksToSignal(1234.5), 0)

	// Re-read the packed value through the telemetry decoder's scaling.
	pos, _, ok := decodeTelemetry(append(data[1:5], 0, 0, 0, 0))
	require.True(t, ok)
	assert.InDelta(t, 1234.5, pos, canTickScalar)
}

func TestDecodeTelemetry(t *testing.T) {
	// position = 256 ticks, velocity = -256 ticks/100ms at 1/256 per LSB.
	data := []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0xFF, 0xFF}
	pos, vel, ok := decodeTelemetry(data)
	require.True(t, ok)
	assert.InDelta(t, 256.0, pos, 1e-9)
	assert.InDelta(t, -256.0, vel, 1e-9)

	_, _, ok = decodeTelemetry(data[:7])
	assert.False(t, ok, "short frame must be rejected")
}

func TestDecodeAbsolute(t *testing.T) {
	// 1024 counts of 4096 is a quarter turn.
	angle, ok := decodeAbsolute([]byte{0x00, 0x04})
	require.True(t, ok)
	assert.InDelta(t, 90.0, angle, 1e-9)

	// 4096 wraps back to zero.
	angle, ok = decodeAbsolute([]byte{0x00, 0x10})
	require.True(t, ok)
	assert.InDelta(t, 0.0, angle, 1e-9)

	_, ok = decodeAbsolute([]byte{0x00})
	assert.False(t, ok)
}

func TestFeedforwardSignalResolution(t *testing.T) {
	assert.Equal(t, int16(10000), feedforwardToSignal(1.0))
	assert.Equal(t, int16(-10000), feedforwardToSignal(-1.0))
	assert.Equal(t, int32(10000), percentToSignal(1.0))
}
