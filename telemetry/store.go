package telemetry

import (
	"context"
	"fmt"
	"slices"
	"time"

	timeutils "github.com/cepro/solarmonitor/time_utils"
)

// Point is a set of field values for one device at one instant, as written to the time-series store.
type Point struct {
	Measurement string
	Device      string
	Time        time.Time
	Fields      map[string]float64
}

// Sample is a single value read back from the time-series store.
type Sample struct {
	Device string
	Time   time.Time
	Value  float64
}

// AggregateFn selects how samples within a window are combined.
type AggregateFn string

const (
	Mean   AggregateFn = "mean"
	Sum    AggregateFn = "sum"
	Min    AggregateFn = "min"
	Max    AggregateFn = "max"
	First  AggregateFn = "first"
	Last   AggregateFn = "last"
	Spread AggregateFn = "spread"
	Count  AggregateFn = "count"
)

// Query selects a single field of a measurement over a period. When Window is non-zero the samples of each device are
// bucketed into windows aligned to the tariff clock, each labelled by its start, and combined using Fn. When Window is
// zero the raw samples are returned, unless Fn is set in which case a single aggregate per device covers the period.
type Query struct {
	Measurement string
	Device      string // optional, all devices when empty
	Field       string
	Period      timeutils.Period
	Window      time.Duration
	Fn          AggregateFn
}

// Writer appends points to the time-series store. It must be safe for use by concurrent producers.
type Writer interface {
	WritePoint(ctx context.Context, p Point) error
}

// Querier reads samples back from the time-series store, ordered by device and then time.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Sample, error)
}

// Aggregate combines the values using the given function.
func Aggregate(fn AggregateFn, values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("aggregate %s: no values", fn)
	}
	switch fn {
	case Mean:
		total := 0.0
		for _, v := range values {
			total += v
		}
		return total / float64(len(values)), nil
	case Sum:
		total := 0.0
		for _, v := range values {
			total += v
		}
		return total, nil
	case Min, Max, Spread:
		lo, hi := values[0], values[0]
		for _, v := range values[1:] {
			lo = min(lo, v)
			hi = max(hi, v)
		}
		switch fn {
		case Min:
			return lo, nil
		case Max:
			return hi, nil
		default:
			return hi - lo, nil
		}
	case First:
		return values[0], nil
	case Last:
		return values[len(values)-1], nil
	case Count:
		return float64(len(values)), nil
	default:
		return 0, fmt.Errorf("unknown aggregate function '%s'", fn)
	}
}

// Window buckets time-ordered samples (of a single device) and aggregates each bucket.
func Window(samples []Sample, window time.Duration, fn AggregateFn) ([]Sample, error) {
	var out []Sample
	var values []float64
	var bucket time.Time

	flush := func(device string) error {
		if len(values) == 0 {
			return nil
		}
		v, err := Aggregate(fn, values)
		if err != nil {
			return err
		}
		out = append(out, Sample{Device: device, Time: bucket, Value: v})
		values = values[:0]
		return nil
	}

	device := ""
	for _, s := range samples {
		start := timeutils.Floor(s.Time, window)
		if len(values) > 0 && (!start.Equal(bucket) || s.Device != device) {
			if err := flush(device); err != nil {
				return nil, err
			}
		}
		bucket = start
		device = s.Device
		values = append(values, s.Value)
	}
	if err := flush(device); err != nil {
		return nil, err
	}
	return out, nil
}

// SumByTime adds together the samples of all devices that share a timestamp, e.g. to combine the output of several
// inverters. The result is ordered by time.
func SumByTime(samples []Sample) []Sample {
	totals := make(map[int64]float64)
	times := make(map[int64]time.Time)
	for _, s := range samples {
		key := s.Time.UnixNano()
		totals[key] += s.Value
		times[key] = s.Time
	}
	out := make([]Sample, 0, len(totals))
	for key, total := range totals {
		out = append(out, Sample{Time: times[key], Value: total})
	}
	SortByTime(out)
	return out
}

// SortByTime orders samples by time, keeping the relative order of equal timestamps.
func SortByTime(samples []Sample) {
	slices.SortStableFunc(samples, func(a, b Sample) int {
		return a.Time.Compare(b.Time)
	})
}

// ByDevice splits samples by device, preserving their order.
func ByDevice(samples []Sample) map[string][]Sample {
	out := make(map[string][]Sample)
	for _, s := range samples {
		out[s.Device] = append(out[s.Device], s)
	}
	return out
}
