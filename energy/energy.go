package energy

import (
	"time"

	"github.com/cepro/solarmonitor/telemetry"
)

// MaxHourlyKWh is the largest energy a 69 kW connection can plausibly move in one hour. Larger hourly counter deltas
// are artifacts, e.g. the first read after a restart capturing the counter's whole history.
const MaxHourlyKWh = 200.0

// MaxSampleGap is the longest interval between two power samples that is integrated. Longer gaps, such as an inverter
// being unreachable overnight, contribute no energy.
const MaxSampleGap = time.Hour

// GenerationKWh integrates instantaneous power samples (W) into energy (kWh) using the trapezoid rule. Each device is
// integrated separately, in time order, and the results are summed.
func GenerationKWh(samples []telemetry.Sample) float64 {
	total := 0.0
	for _, deviceSamples := range telemetry.ByDevice(samples) {
		telemetry.SortByTime(deviceSamples)
		for i := 1; i < len(deviceSamples); i++ {
			prev, cur := deviceSamples[i-1], deviceSamples[i]
			gap := cur.Time.Sub(prev.Time)
			if gap > MaxSampleGap {
				continue
			}
			total += (prev.Value + cur.Value) / 2 * gap.Hours()
		}
	}
	return total / 1000
}

// IsValidDelta returns true if an hourly counter delta is plausible.
func IsValidDelta(kwh float64) bool {
	return kwh >= 0 && kwh <= MaxHourlyKWh
}

// ValidDeltas returns the hourly counter deltas that are plausible. Implausible hours are dropped entirely rather than
// clipped.
func ValidDeltas(deltas []telemetry.Sample) []telemetry.Sample {
	out := make([]telemetry.Sample, 0, len(deltas))
	for _, d := range deltas {
		if IsValidDelta(d.Value) {
			out = append(out, d)
		}
	}
	return out
}

// CounterKWh sums the plausible hourly deltas of an energy counter.
func CounterKWh(deltas []telemetry.Sample) float64 {
	total := 0.0
	for _, d := range ValidDeltas(deltas) {
		total += d.Value
	}
	return total
}

// SumWindows adds hourly deltas into coarser buckets, e.g. days, labelled by their start on the tariff clock.
func SumWindows(hourly []telemetry.Sample, window time.Duration) []telemetry.Sample {
	sorted := make([]telemetry.Sample, len(hourly))
	copy(sorted, hourly)
	for i := range sorted {
		sorted[i].Device = ""
	}
	telemetry.SortByTime(sorted)

	// cannot fail: Sum is always defined and Window only aggregates non-empty buckets
	out, _ := telemetry.Window(sorted, window, telemetry.Sum)
	return out
}

// LiveConsumption is the household's instantaneous demand (W) given the plant's output and the grid flow, which is
// positive when importing.
func LiveConsumption(plantW, gridW float64) float64 {
	return plantW + gridW
}
