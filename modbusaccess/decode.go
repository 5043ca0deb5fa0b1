package modbusaccess

import (
	"encoding/binary"
	"math"
)

// SunSpec "not implemented" values, per register width.
const (
	sunspecInt16NotImplemented  uint16 = 0x8000
	sunspecUint16NotImplemented uint16 = 0xFFFF
	sunspecUint32NotImplemented uint32 = 0xFFFFFFFF
)

// DecodeFloat32 packs two big-endian registers, high word first, and reinterprets them as an IEEE-754 binary32.
// Any bit pattern decodes; plausibility is the caller's problem.
func DecodeFloat32(hi, lo uint16) float64 {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint16(bytes[0:2], hi)
	binary.BigEndian.PutUint16(bytes[2:4], lo)
	return float64(math.Float32frombits(binary.BigEndian.Uint32(bytes)))
}

// DecodeUint16 returns the register unchanged.
func DecodeUint16(word uint16) uint16 {
	return word
}

// DecodeScaleFactor reinterprets a scale factor register as the signed power of ten it represents.
func DecodeScaleFactor(raw uint16) int16 {
	return int16(raw)
}

// DecodeSunspecInt16 returns raw (as a signed value) × 10^sf, or false if the register holds the not-implemented value.
func DecodeSunspecInt16(raw uint16, sf int16) (float64, bool) {
	if raw == sunspecInt16NotImplemented {
		return 0, false
	}
	return scale(float64(int16(raw)), sf), true
}

// DecodeSunspecUint16 returns raw × 10^sf, or false if the register holds either not-implemented value.
func DecodeSunspecUint16(raw uint16, sf int16) (float64, bool) {
	if raw == sunspecUint16NotImplemented || raw == sunspecInt16NotImplemented {
		return 0, false
	}
	return scale(float64(raw), sf), true
}

// DecodeSunspecUint32 returns (hi<<16 | lo) × 10^sf, or false if the registers hold the not-implemented value.
func DecodeSunspecUint32(hi, lo uint16, sf int16) (float64, bool) {
	raw := uint32(hi)<<16 | uint32(lo)
	if raw == sunspecUint32NotImplemented {
		return 0, false
	}
	return scale(float64(raw), sf), true
}

// scaleFactorImplemented returns false for the scale factor register's own not-implemented value.
func scaleFactorImplemented(raw uint16) bool {
	return raw != sunspecInt16NotImplemented
}

func scale(v float64, sf int16) float64 {
	return v * math.Pow10(int(sf))
}

// wordsFromBytes splits big-endian register bytes into 16 bit words.
func wordsFromBytes(bytes []byte) []uint16 {
	words := make([]uint16, len(bytes)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(bytes[i*2 : i*2+2])
	}
	return words
}
