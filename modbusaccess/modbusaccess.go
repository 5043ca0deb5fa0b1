package modbusaccess

import (
	"github.com/cepro/solarmonitor/telemetry"
)

// RegisterReader is the subset of a Modbus client needed to read holding registers. The returned bytes are the
// big-endian register contents, two per register.
type RegisterReader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
}

// Type represents the different types of data that can be queried over modbus.
type Type struct {
	name         string         // the name of the data type
	numRegisters uint16         // the number of 16 bit registers that hold the value
	kind         telemetry.Kind // the semantic type of the decoded value
	scaled       bool           // true if the value must be combined with a scale factor register
	decodeFunc   func(words []uint16, sf int16) (float64, bool)
}

// NumRegisters returns the number of 16 bit registers that hold a value of this type.
func (t Type) NumRegisters() uint16 {
	return t.numRegisters
}

// Float32Type is a vendor float: two registers, high word first, holding an IEEE-754 binary32.
var Float32Type = Type{
	name:         "float32",
	numRegisters: 2,
	kind:         telemetry.Float,
	decodeFunc: func(words []uint16, _ int16) (float64, bool) {
		return DecodeFloat32(words[0], words[1]), true
	},
}

// EnumType is an unsigned integer register holding a status code.
var EnumType = Type{
	name:         "enum16",
	numRegisters: 1,
	kind:         telemetry.Enum,
	decodeFunc: func(words []uint16, _ int16) (float64, bool) {
		return float64(DecodeUint16(words[0])), true
	},
}

// SunspecInt16Type is a SunSpec int16 scaled by a scale factor register.
var SunspecInt16Type = Type{
	name:         "sunspec_int16",
	numRegisters: 1,
	kind:         telemetry.Float,
	scaled:       true,
	decodeFunc: func(words []uint16, sf int16) (float64, bool) {
		return DecodeSunspecInt16(words[0], sf)
	},
}

// SunspecUint32Type is a SunSpec uint32 (or acc32) scaled by a scale factor register.
var SunspecUint32Type = Type{
	name:         "sunspec_uint32",
	numRegisters: 2,
	kind:         telemetry.Float,
	scaled:       true,
	decodeFunc: func(words []uint16, sf int16) (float64, bool) {
		return DecodeSunspecUint32(words[0], words[1], sf)
	},
}

// valueScalingFunc converts a decoded value into the unit we store, e.g. Wh to kWh.
type valueScalingFunc func(float64) float64

// Register holds a value on the modbus slave at the given address
type Register struct {
	StartAddr   uint16
	DataType    Type
	ScaleFactor string           // name of the scale factor register in the same block, for SunSpec types
	ScalingFunc valueScalingFunc // optional unit conversion applied after decoding
}

// RegisterBlock represents a contiguous block of modbus registers that are read in one chunk.
type RegisterBlock struct {
	Name         string              // name of the block used for context/logging
	StartAddr    uint16              // the first register address of the block
	NumRegisters uint16              // the number of registers in this block
	Registers    map[string]Register // the registers of interest in this block, keyed by field name
	ScaleFactors map[string]uint16   // addresses of the scale factor registers in this block, keyed by name
}

// KiloFromBase converts e.g. Wh into kWh.
func KiloFromBase(v float64) float64 {
	return v / 1000
}

// RatioFromPercent converts a percentage into a ratio.
func RatioFromPercent(v float64) float64 {
	return v / 100
}
