package modbusaccess

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
)

// ErrMockIllegalAddress is returned by MockDevice for reads that touch an address marked as failing.
var ErrMockIllegalAddress = errors.New("illegal data address")

// MockDevice is an in-memory register map that satisfies RegisterReader, for tests and emulation.
type MockDevice struct {
	lock      sync.Mutex
	registers map[uint16]uint16
	failing   map[uint16]bool
	Err       error // when set, every read fails with this error
	Reads     int   // number of read requests served or refused
}

func NewMockDevice() *MockDevice {
	return &MockDevice{
		registers: make(map[uint16]uint16),
		failing:   make(map[uint16]bool),
	}
}

// SetUint16 stores a raw register value.
func (m *MockDevice) SetUint16(addr, val uint16) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.registers[addr] = val
}

// SetUint32 stores a value across two registers, high word first.
func (m *MockDevice) SetUint32(addr uint16, val uint32) {
	m.SetUint16(addr, uint16(val>>16))
	m.SetUint16(addr+1, uint16(val))
}

// SetInt16 stores a signed value, e.g. a scale factor.
func (m *MockDevice) SetInt16(addr uint16, val int16) {
	m.SetUint16(addr, uint16(val))
}

// SetFloat32 stores a vendor float across two registers, high word first.
func (m *MockDevice) SetFloat32(addr uint16, val float32) {
	m.SetUint32(addr, math.Float32bits(val))
}

// Fail makes any read covering `addr` return ErrMockIllegalAddress.
func (m *MockDevice) Fail(addr uint16) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.failing[addr] = true
}

// ReadHoldingRegisters returns the stored registers, zero where nothing was set.
func (m *MockDevice) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.Reads++
	if m.Err != nil {
		return nil, m.Err
	}

	bytes := make([]byte, int(quantity)*2)
	for i := uint16(0); i < quantity; i++ {
		if m.failing[address+i] {
			return nil, ErrMockIllegalAddress
		}
		binary.BigEndian.PutUint16(bytes[i*2:], m.registers[address+i])
	}
	return bytes, nil
}
