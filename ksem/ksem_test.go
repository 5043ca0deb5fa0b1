package ksem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cepro/solarmonitor/modbusaccess"
	"github.com/cepro/solarmonitor/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = DefaultBaseAddr

// newMeter returns a mock meter importing 2.5 kW over three balanced phases.
func newMeter() *modbusaccess.MockDevice {
	meter := modbusaccess.NewMockDevice()

	meter.SetInt16(base+0, 1089) // A, 10.89 A
	meter.SetInt16(base+1, 363)
	meter.SetInt16(base+2, 363)
	meter.SetInt16(base+3, 363)
	meter.SetInt16(base+4, -2) // A_SF

	meter.SetInt16(base+5, 2301) // PhV, 230.1 V
	meter.SetInt16(base+6, 2300)
	meter.SetInt16(base+7, 2302)
	meter.SetInt16(base+8, 2301)
	meter.SetInt16(base+9, 3985)
	meter.SetInt16(base+13, -1) // V_SF

	meter.SetInt16(base+14, 5001) // Hz
	meter.SetInt16(base+15, -2)   // Hz_SF

	meter.SetInt16(base+16, 250) // W, 2500 W
	meter.SetInt16(base+17, 80)
	meter.SetInt16(base+18, 85)
	meter.SetInt16(base+19, 85)
	meter.SetInt16(base+20, 1) // W_SF

	meter.SetInt16(base+31, 9850) // PF, 98.5 %
	meter.SetInt16(base+35, -2)   // PF_SF

	meter.SetUint32(base+36, 1_234_500) // TotWhExp
	meter.SetUint32(base+44, 987_654)   // TotWhImp
	meter.SetInt16(base+52, 1)          // TotWh_SF

	return meter
}

func newTestReader(client modbusaccess.RegisterReader) *Reader {
	reader := NewWithClient(client, base)
	reader.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return reader
}

func TestRead(t *testing.T) {
	meter := newMeter()

	record, err := newTestReader(meter).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, meter.Reads, "the whole model is read in one request")

	expected := map[string]float64{
		"current_total":       10.89,
		"current_l1":          3.63,
		"voltage_ln":          230.1,
		"voltage_l2":          230.2,
		"voltage_ll":          398.5,
		"frequency":           50.01,
		"active_power_total":  2500,
		"active_power_l1":     800,
		"power_factor":        0.985,
		"energy_export_total": 12_345,
		"energy_import_total": 9_876.54,
	}
	for name, value := range expected {
		field, ok := record.Fields[name]
		require.True(t, ok, name)
		require.True(t, field.Present(), name)
		assert.InDelta(t, value, *field.Value, 1e-6, name)
	}
	assert.Equal(t, telemetry.MeasurementMeter, record.Measurement)
	assert.True(t, record.Reachable)
}

func TestReadExporting(t *testing.T) {
	meter := newMeter()
	meter.SetInt16(base+16, -1200)

	record, err := newTestReader(meter).Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -12000.0, *record.Fields["active_power_total"].Value, 1e-9)
}

func TestReadNotImplemented(t *testing.T) {
	meter := newMeter()
	meter.SetUint16(base+3, 0x8000)      // current_l3
	meter.SetUint32(base+44, 0xFFFFFFFF) // TotWhImp
	meter.SetUint16(base+offsetPowerFactorSF, 0x8000)

	record, err := newTestReader(meter).Read(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"current_l3", "energy_import_total", "power_factor"} {
		field, ok := record.Fields[name]
		require.True(t, ok, name)
		assert.False(t, field.Present(), name)
	}
	assert.NotContains(t, record.Point().Fields, "energy_import_total")
	assert.Contains(t, record.Point().Fields, "energy_export_total")
}

func TestReadUnreachable(t *testing.T) {
	meter := newMeter()
	meter.Err = errors.New("i/o timeout")

	record, err := newTestReader(meter).Read(context.Background())

	assert.ErrorIs(t, err, telemetry.ErrUnreachable)
	assert.False(t, record.Reachable)
}
