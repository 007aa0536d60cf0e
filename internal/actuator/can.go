// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package actuator

import (
	"encoding/binary"
	"log"
	"math"
	"sync"

	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// CAN frame layout: the upper bits of the standard identifier carry a
// function code, the lower six bits the node number.
const (
	canFnCommand    uint32 = 0x200 // host -> motor: control command
	canFnSensorSeed uint32 = 0x300 // host -> motor: overwrite sensor position
	canFnTelemetry  uint32 = 0x580 // motor -> host: position + velocity
	canFnAbsolute   uint32 = 0x600 // encoder -> host: absolute angle

	canNodeMask uint32 = 0x03F
)

// Control modes, command frame byte 0.
const (
	canModePercent byte = iota
	canModeVelocity
	canModePosition
)

// Signal scaling (value per LSB).
const (
	canTickScalar    = 0.00390625 // ticks, 1/256
	canPercentScalar = 0.0001     // dimensionless output
	canAngleScalar   = 360.0 / 4096.0
)

// Bus owns one SocketCAN channel: a send socket and a receive goroutine that
// caches the latest telemetry frame per node, so sensor reads never block
// the control cycle.
type Bus struct {
	send *canbus.Socket
	recv *canbus.Socket
	done chan struct{}

	mu        sync.RWMutex
	telemetry map[uint32]canTelemetry
	absolute  map[uint32]float64
}

type canTelemetry struct {
	position float64 // ticks
	velocity float64 // ticks per 100 ms
}

// NewBus opens the channel and starts listening for telemetry from the given
// node numbers.
func NewBus(channel string, nodes []uint32) (*Bus, error) {
	send, err := canbus.New()
	if err != nil {
		return nil, errors.Wrap(err, "can: open send socket")
	}
	if err := send.Bind(channel); err != nil {
		send.Close()
		return nil, errors.Wrapf(err, "can: bind send socket to %s", channel)
	}

	recv, err := canbus.New()
	if err != nil {
		send.Close()
		return nil, errors.Wrap(err, "can: open receive socket")
	}
	filters := make([]unix.CanFilter, 0, 2*len(nodes))
	for _, n := range nodes {
		filters = append(filters,
			unix.CanFilter{Id: canFnTelemetry | n, Mask: unix.CAN_SFF_MASK},
			unix.CanFilter{Id: canFnAbsolute | n, Mask: unix.CAN_SFF_MASK},
		)
	}
	if err := recv.SetFilters(filters); err != nil {
		send.Close()
		recv.Close()
		return nil, errors.Wrap(err, "can: set receive filters")
	}
	if err := recv.Bind(channel); err != nil {
		send.Close()
		recv.Close()
		return nil, errors.Wrapf(err, "can: bind receive socket to %s", channel)
	}

	b := &Bus{
		send:      send,
		recv:      recv,
		done:      make(chan struct{}),
		telemetry: make(map[uint32]canTelemetry),
		absolute:  make(map[uint32]float64),
	}
	go b.receiveLoop()
	return b, nil
}

// receiveLoop caches telemetry and absolute-encoder frames as they arrive.
func (b *Bus) receiveLoop() {
	for {
		frame, err := b.recv.Recv()
		if err != nil {
			select {
			case <-b.done:
				return
			default:
			}
			log.Printf("can: receive error: %v", err)
			continue
		}

		node := frame.ID & canNodeMask
		switch frame.ID &^ canNodeMask {
		case canFnTelemetry:
			pos, vel, ok := decodeTelemetry(frame.Data)
			if !ok {
				continue
			}
			b.mu.Lock()
			b.telemetry[node] = canTelemetry{position: pos, velocity: vel}
			b.mu.Unlock()
		case canFnAbsolute:
			angle, ok := decodeAbsolute(frame.Data)
			if !ok {
				continue
			}
			b.mu.Lock()
			b.absolute[node] = angle
			b.mu.Unlock()
		}
	}
}

// Close stops the receive loop and closes both sockets.
func (b *Bus) Close() error {
	close(b.done)
	b.send.Close()
	// Closing the socket unblocks the pending Recv in receiveLoop.
	return b.recv.Close()
}

// Motor returns the Motor speaking to the given node.
func (b *Bus) Motor(node uint32) *CANMotor {
	return &CANMotor{bus: b, node: node}
}

// Encoder returns the AbsoluteEncoder broadcasting on the given node.
func (b *Bus) Encoder(node uint32) *CANEncoder {
	return &CANEncoder{bus: b, node: node}
}

// CANMotor implements Motor over one bus node.
type CANMotor struct {
	bus  *Bus
	node uint32
}

func (m *CANMotor) Position() (float64, error) {
	t, ok := m.bus.lookupTelemetry(m.node)
	if !ok {
		return 0, errors.Errorf("can: node 0x%02X: no telemetry received", m.node)
	}
	return t.position, nil
}

func (m *CANMotor) Velocity() (float64, error) {
	t, ok := m.bus.lookupTelemetry(m.node)
	if !ok {
		return 0, errors.Errorf("can: node 0x%02X: no telemetry received", m.node)
	}
	return t.velocity, nil
}

func (m *CANMotor) SetVelocity(ticksPer100ms, feedforward float64) error {
	return m.command(canFnCommand, encodeCommand(canModeVelocity, ticksToSignal(ticksPer100ms), feedforwardToSignal(feedforward)))
}

func (m *CANMotor) SetPercent(output float64) error {
	return m.command(canFnCommand, encodeCommand(canModePercent, percentToSignal(output), 0))
}

func (m *CANMotor) SetPosition(ticks float64) error {
	return m.command(canFnCommand, encodeCommand(canModePosition, ticksToSignal(ticks), 0))
}

func (m *CANMotor) SetSensorPosition(ticks float64) error {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(ticksToSignal(ticks)))
	return m.command(canFnSensorSeed, data)
}

func (m *CANMotor) command(fn uint32, data []byte) error {
	frame := canbus.Frame{
		ID:   fn | m.node,
		Data: data,
		Kind: canbus.SFF,
	}
	if _, err := m.bus.send.Send(frame); err != nil {
		return errors.Wrapf(err, "can: node 0x%02X: send command", m.node)
	}
	return nil
}

// CANEncoder implements AbsoluteEncoder over one bus node.
type CANEncoder struct {
	bus  *Bus
	node uint32
}

func (e *CANEncoder) AbsoluteAngle() (float64, error) {
	e.bus.mu.RLock()
	angle, ok := e.bus.absolute[e.node]
	e.bus.mu.RUnlock()
	if !ok {
		return 0, errors.Errorf("can: encoder node 0x%02X: no angle received", e.node)
	}
	return angle, nil
}

func (b *Bus) lookupTelemetry(node uint32) (canTelemetry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.telemetry[node]
	return t, ok
}

// encodeCommand packs a command frame: mode byte, int32 LE value, int16 LE
// feedforward.
func encodeCommand(mode byte, value int32, feedforward int16) []byte {
	data := make([]byte, 7)
	data[0] = mode
	binary.LittleEndian.PutUint32(data[1:5], uint32(value))
	binary.LittleEndian.PutUint16(data[5:7], uint16(feedforward))
	return data
}

// decodeTelemetry unpacks a telemetry frame: int32 LE position, int32 LE
// velocity, both in the tick fixed-point scale.
func decodeTelemetry(data []byte) (position, velocity float64, ok bool) {
	if len(data) < 8 {
		return 0, 0, false
	}
	position = float64(int32(binary.LittleEndian.Uint32(data[0:4]))) * canTickScalar
	velocity = float64(int32(binary.LittleEndian.Uint32(data[4:8]))) * canTickScalar
	return position, velocity, true
}

// decodeAbsolute unpacks an absolute encoder frame: uint16 LE raw angle,
// 4096 counts per revolution.
func decodeAbsolute(data []byte) (angle float64, ok bool) {
	if len(data) < 2 {
		return 0, false
	}
	angle = math.Mod(float64(binary.LittleEndian.Uint16(data[0:2]))*canAngleScalar, 360)
	return angle, true
}

func ticksToSignal(ticks float64) int32 {
	return int32(math.Round(ticks / canTickScalar))
}

func percentToSignal(output float64) int32 {
	return int32(math.Round(output / canPercentScalar))
}

func feedforwardToSignal(feedforward float64) int16 {
	return int16(math.Round(feedforward / canPercentScalar))
}
