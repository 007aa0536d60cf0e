package actuator

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	protocol "github.com/haguro/go-dxl/protocol/v2"
	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Control table addresses (X series, Protocol 2.0).
const (
	dxlAddrHomingOffset    uint16 = 20
	dxlAddrOperatingMode   uint16 = 11
	dxlAddrTorqueEnable    uint16 = 64
	dxlAddrGoalPWM         uint16 = 100
	dxlAddrGoalVelocity    uint16 = 104
	dxlAddrGoalPosition    uint16 = 116
	dxlAddrPresentVelocity uint16 = 128
	dxlAddrPresentPosition uint16 = 132
)

const (
	dxlTicksPerRev = 4096
	dxlVelocityRPM = 0.229 // rev/min per velocity LSB
	dxlPWMMax      = 885   // Goal PWM limit, 100% duty
)

// Operating modes for the X-series control table.
const (
	DXLModeVelocity         byte = 1
	DXLModeExtendedPosition byte = 4
)

// ErrDXLClosed is returned when operations are attempted on a closed bus.
var ErrDXLClosed = errors.New("dxl: bus closed")

// DXLBus shares one serial handler between the wheel servos; protocol access
// is serialized behind the bus mutex.
type DXLBus struct {
	port    serial.Port
	handler *protocol.Handler
	mu      sync.Mutex
	isOpen  bool
}

// NewDXLBus opens the serial port and prepares a protocol handler for it.
func NewDXLBus(portName string, baudRate int) (*DXLBus, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "dxl: open serial port %s", portName)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "dxl: set read timeout")
	}

	return &DXLBus{
		port:    port,
		handler: protocol.NewHandler(port, 100*time.Millisecond),
		isOpen:  true,
	}, nil
}

// Close closes the bus and releases the serial port.
func (b *DXLBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.isOpen {
		return nil
	}
	b.isOpen = false
	return b.port.Close()
}

// Motor returns the Motor speaking to the servo with the given bus ID.
func (b *DXLBus) Motor(id byte) *DXLMotor {
	return &DXLMotor{bus: b, id: id}
}

// DXLMotor implements Motor on one Dynamixel-style servo. The servo firmware
// has no auxiliary additive demand input, so the feedforward term of
// SetVelocity is dropped on this transport.
type DXLMotor struct {
	bus *DXLBus
	id  byte
}

// SetOperatingMode switches the servo's control mode. The mode register only
// accepts writes with torque off.
func (m *DXLMotor) SetOperatingMode(mode byte) error {
	if err := m.write8(dxlAddrTorqueEnable, 0); err != nil {
		return err
	}
	if err := m.write8(dxlAddrOperatingMode, mode); err != nil {
		return err
	}
	return m.write8(dxlAddrTorqueEnable, 1)
}

func (m *DXLMotor) Position() (float64, error) {
	raw, err := m.read32(dxlAddrPresentPosition)
	if err != nil {
		return 0, err
	}
	return float64(raw) * SensorTicksPerRev / dxlTicksPerRev, nil
}

func (m *DXLMotor) Velocity() (float64, error) {
	raw, err := m.read32(dxlAddrPresentVelocity)
	if err != nil {
		return 0, err
	}
	rpm := float64(raw) * dxlVelocityRPM
	return rpm * SensorTicksPerRev / 600.0, nil
}

func (m *DXLMotor) SetVelocity(ticksPer100ms, _ float64) error {
	rpm := ticksPer100ms * 600.0 / SensorTicksPerRev
	return m.write32(dxlAddrGoalVelocity, int32(math.Round(rpm/dxlVelocityRPM)))
}

func (m *DXLMotor) SetPercent(output float64) error {
	if output > 1 {
		output = 1
	} else if output < -1 {
		output = -1
	}
	return m.write32(dxlAddrGoalPWM, int32(math.Round(output*dxlPWMMax)))
}

func (m *DXLMotor) SetPosition(ticks float64) error {
	return m.write32(dxlAddrGoalPosition, toDXLTicks(ticks))
}

// SetSensorPosition shifts the homing offset so the present position reads
// as the given value. Torque must be off while the offset register is
// written, so this is intended for construction-time reseeding only.
func (m *DXLMotor) SetSensorPosition(ticks float64) error {
	present, err := m.read32(dxlAddrPresentPosition)
	if err != nil {
		return err
	}
	offset, err := m.read32(dxlAddrHomingOffset)
	if err != nil {
		return err
	}
	delta := toDXLTicks(ticks) - present

	if err := m.write8(dxlAddrTorqueEnable, 0); err != nil {
		return err
	}
	if err := m.write32(dxlAddrHomingOffset, offset+delta); err != nil {
		return err
	}
	return m.write8(dxlAddrTorqueEnable, 1)
}

func (m *DXLMotor) read32(addr uint16) (int32, error) {
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()
	if !m.bus.isOpen {
		return 0, ErrDXLClosed
	}
	data, err := m.bus.handler.Read(m.id, addr, 4)
	if err != nil {
		return 0, errors.Wrapf(err, "dxl: servo %d: read 0x%02X", m.id, addr)
	}
	if len(data) < 4 {
		return 0, errors.Errorf("dxl: servo %d: short read at 0x%02X", m.id, addr)
	}
	return int32(binary.LittleEndian.Uint32(data)), nil
}

func (m *DXLMotor) write32(addr uint16, value int32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(value))

	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()
	if !m.bus.isOpen {
		return ErrDXLClosed
	}
	if err := m.bus.handler.Write(m.id, addr, buf...); err != nil {
		return errors.Wrapf(err, "dxl: servo %d: write 0x%02X", m.id, addr)
	}
	return nil
}

func (m *DXLMotor) write8(addr uint16, value byte) error {
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()
	if !m.bus.isOpen {
		return ErrDXLClosed
	}
	if err := m.bus.handler.Write(m.id, addr, value); err != nil {
		return errors.Wrapf(err, "dxl: servo %d: write 0x%02X", m.id, addr)
	}
	return nil
}

// DXLEncoder implements AbsoluteEncoder by reading a servo's absolute
// position register modulo one revolution.
type DXLEncoder struct {
	bus *DXLBus
	id  byte
}

// Encoder returns the AbsoluteEncoder for the servo with the given bus ID.
func (b *DXLBus) Encoder(id byte) *DXLEncoder {
	return &DXLEncoder{bus: b, id: id}
}

func (e *DXLEncoder) AbsoluteAngle() (float64, error) {
	m := DXLMotor{bus: e.bus, id: e.id}
	raw, err := m.read32(dxlAddrPresentPosition)
	if err != nil {
		return 0, err
	}
	angle := math.Mod(float64(raw)*360.0/dxlTicksPerRev, 360)
	if angle < 0 {
		angle += 360
	}
	return angle, nil
}

func toDXLTicks(ticks float64) int32 {
	return int32(math.Round(ticks * dxlTicksPerRev / SensorTicksPerRev))
}
