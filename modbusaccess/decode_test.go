package modbusaccess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeFloat32(t *testing.T) {

	type subTest struct {
		name     string
		hi       uint16
		lo       uint16
		expected float64
	}

	subTests := []subTest{
		{"Twelve and a half", 0x4148, 0x0000, 12.5},
		{"Fifty", 0x4248, 0x0000, 50.0},
		{"Zero", 0x0000, 0x0000, 0.0},
		{"Negative", 0xC2C8, 0x0000, -100.0},
		{"Low word matters", 0x4049, 0x0FDB, float64(float32(math.Pi))},
	}
	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			got := DecodeFloat32(subTest.hi, subTest.lo)
			if got != subTest.expected {
				t.Errorf("Got %v, expected %v", got, subTest.expected)
			}
		})
	}
}

func TestDecodeFloat32RoundTrip(t *testing.T) {
	for _, f := range []float32{0.001, 230.4, -4321.5, 49.98, 1e9} {
		bits := math.Float32bits(f)
		got := DecodeFloat32(uint16(bits>>16), uint16(bits))
		assert.Equal(t, float64(f), got)
	}
}

func TestDecodeScaleFactor(t *testing.T) {
	assert.Equal(t, int16(-2), DecodeScaleFactor(0xFFFE))
	assert.Equal(t, int16(3), DecodeScaleFactor(0x0003))
	assert.Equal(t, uint16(0xBEEF), DecodeUint16(0xBEEF))
}

func TestDecodeSunspec(t *testing.T) {

	type subTest struct {
		name       string
		decode     func() (float64, bool)
		expected   float64
		expectedOK bool
	}

	subTests := []subTest{
		{"int16 positive", func() (float64, bool) { return DecodeSunspecInt16(2305, -1) }, 230.5, true},
		{"int16 negative", func() (float64, bool) { return DecodeSunspecInt16(0xFF9C, 0) }, -100, true},
		{"int16 negative with scale", func() (float64, bool) { return DecodeSunspecInt16(0xFC18, 1) }, -10000, true},
		{"int16 not implemented", func() (float64, bool) { return DecodeSunspecInt16(0x8000, -2) }, 0, false},
		{"int16 not implemented without scale", func() (float64, bool) { return DecodeSunspecInt16(0x8000, 0) }, 0, false},
		{"int16 0xFFFF is minus one", func() (float64, bool) { return DecodeSunspecInt16(0xFFFF, 0) }, -1, true},

		{"uint16", func() (float64, bool) { return DecodeSunspecUint16(4999, -2) }, 49.99, true},
		{"uint16 0xFFFF", func() (float64, bool) { return DecodeSunspecUint16(0xFFFF, -2) }, 0, false},
		{"uint16 0x8000", func() (float64, bool) { return DecodeSunspecUint16(0x8000, 0) }, 0, false},

		{"uint32", func() (float64, bool) { return DecodeSunspecUint32(0x0001, 0x86A0, 0) }, 100000, true},
		{"uint32 scaled", func() (float64, bool) { return DecodeSunspecUint32(0x0001, 0x86A0, 2) }, 10000000, true},
		{"uint32 not implemented", func() (float64, bool) { return DecodeSunspecUint32(0xFFFF, 0xFFFF, 0) }, 0, false},
		{"uint32 not implemented scaled down", func() (float64, bool) { return DecodeSunspecUint32(0xFFFF, 0xFFFF, -3) }, 0, false},
		{"uint32 not implemented scaled up", func() (float64, bool) { return DecodeSunspecUint32(0xFFFF, 0xFFFF, 4) }, 0, false},
	}
	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			got, ok := subTest.decode()
			assert.Equal(t, subTest.expectedOK, ok)
			if ok {
				assert.InDelta(t, subTest.expected, got, 1e-9)
			}
		})
	}
}
