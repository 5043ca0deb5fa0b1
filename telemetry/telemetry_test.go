package telemetry

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPointDropsAbsentFields(t *testing.T) {
	record := NewRecord(MeasurementMeter, DeviceKsem, mustParseTime("2024-03-12T10:00:00Z"))
	record.Set("frequency", FloatField(50.01))
	record.Set("current_l1", AbsentField(Float))
	record.Set("power_factor", FloatField(math.NaN()))
	record.Set("status", OptionalField(Enum, 3, true))

	point := record.Point()

	assert.Equal(t, MeasurementMeter, point.Measurement)
	assert.Equal(t, DeviceKsem, point.Device)
	assert.Equal(t, map[string]float64{"frequency": 50.01, "status": 3}, point.Fields)
}

func TestAggregate(t *testing.T) {
	values := []float64{4, 1, 7, 2}

	type subTest struct {
		name     string
		fn       AggregateFn
		expected float64
	}

	subTests := []subTest{
		{"Mean", Mean, 3.5},
		{"Sum", Sum, 14},
		{"Min", Min, 1},
		{"Max", Max, 7},
		{"First", First, 4},
		{"Last", Last, 2},
		{"Spread", Spread, 6},
		{"Count", Count, 4},
	}
	for _, subTest := range subTests {
		t.Run(subTest.name, func(t *testing.T) {
			got, err := Aggregate(subTest.fn, values)
			require.NoError(t, err)
			assert.InDelta(t, subTest.expected, got, 1e-9)
		})
	}

	_, err := Aggregate(Mean, nil)
	assert.Error(t, err)
	_, err = Aggregate("median", values)
	assert.Error(t, err)
}

func TestWindowAlignsToTariffClock(t *testing.T) {
	samples := []Sample{
		{Device: "ksem", Time: mustParseTime("2024-03-12T09:05:00Z"), Value: 100.0},
		{Device: "ksem", Time: mustParseTime("2024-03-12T09:55:00Z"), Value: 101.5},
		{Device: "ksem", Time: mustParseTime("2024-03-12T10:10:00Z"), Value: 102.0},
		{Device: "ksem", Time: mustParseTime("2024-03-12T10:40:00Z"), Value: 104.0},
	}

	windows, err := Window(samples, time.Hour, Spread)
	require.NoError(t, err)
	require.Len(t, windows, 2)

	assert.True(t, windows[0].Time.Equal(mustParseTime("2024-03-12T10:00:00+01:00")))
	assert.InDelta(t, 1.5, windows[0].Value, 1e-9)
	assert.True(t, windows[1].Time.Equal(mustParseTime("2024-03-12T11:00:00+01:00")))
	assert.InDelta(t, 2.0, windows[1].Value, 1e-9)
}

func TestSumByTime(t *testing.T) {
	at := mustParseTime("2024-03-12T10:00:00Z")
	samples := []Sample{
		{Device: DevicePiko15, Time: at.Add(time.Minute), Value: 1000},
		{Device: DevicePikoCI50, Time: at, Value: 3000},
		{Device: DevicePiko15, Time: at, Value: 500},
	}

	got := SumByTime(samples)

	require.Len(t, got, 2)
	assert.Equal(t, 3500.0, got[0].Value)
	assert.Equal(t, 1000.0, got[1].Value)
}

func TestDecodeError(t *testing.T) {
	var err error = &DecodeError{Device: DevicePiko15, Field: "status", Raw: 2.5, Reason: "not an integer"}
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	assert.Contains(t, err.Error(), "status")
}

// mustParseTime returns the time.Time associated with the given string or panics.
func mustParseTime(str string) time.Time {
	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		panic(err)
	}
	return t
}
