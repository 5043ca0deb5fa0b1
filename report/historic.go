package report

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cepro/solarmonitor/energy"
	"github.com/cepro/solarmonitor/telemetry"
	timeutils "github.com/cepro/solarmonitor/time_utils"
)

// Range is a lookback window of the historic view.
type Range string

const (
	Range7d  Range = "7d"
	Range30d Range = "30d"
	Range90d Range = "90d"
	Range1y  Range = "1y"
	RangeAll Range = "all"
)

// Ranges lists every range, shortest first.
var Ranges = []Range{Range7d, Range30d, Range90d, Range1y, RangeAll}

const day = 24 * time.Hour

// minBucketKWh drops generation buckets that only hold standby noise.
const minBucketKWh = 0.01

// ParseRange returns the range named by `s`.
func ParseRange(s string) (Range, error) {
	rng := Range(s)
	if !slices.Contains(Ranges, rng) {
		return "", fmt.Errorf("unknown range '%s'", s)
	}
	return rng, nil
}

// Granularity is the bucket size the range is reported in.
func (rng Range) Granularity() time.Duration {
	if rng == Range7d {
		return time.Hour
	}
	return day
}

// Start returns the beginning of the range ending at `now`.
func (rng Range) Start(now time.Time) time.Time {
	switch rng {
	case Range7d:
		return now.Add(-7 * day)
	case Range30d:
		return now.Add(-30 * day)
	case Range90d:
		return now.Add(-90 * day)
	case Range1y:
		return now.AddDate(-1, 0, 0)
	default:
		return time.Unix(0, 0)
	}
}

type HistoricSummary struct {
	GenerationKWh      float64
	ConsumptionKWh     float64
	ImportKWh          float64
	ExportKWh          float64
	MeanIndexedEURkWh  float64
	SelfConsumptionPct float64
	Days               int // tariff-clock days with any data
}

// Historic holds per-bucket energy series in kWh and the mean indexed rate per bucket in EUR/kWh.
type Historic struct {
	Range       Range
	Granularity time.Duration
	Generation  []telemetry.Sample
	Consumption []telemetry.Sample
	Import      []telemetry.Sample
	Export      []telemetry.Sample
	IndexedRate []telemetry.Sample
	FlatRate    float64
	Summary     HistoricSummary
}

func (r *Reporter) Historic(ctx context.Context, now time.Time, rng Range) (Historic, error) {
	cfg, err := r.rates.Get()
	if err != nil {
		return Historic{}, fmt.Errorf("get rates: %w", err)
	}
	indexed, err := cfg.IndexedRates()
	if err != nil {
		return Historic{}, err
	}

	granularity := rng.Granularity()
	period := timeutils.Since(rng.Start(now), now)

	generation, err := r.bucketGeneration(ctx, period, granularity)
	if err != nil {
		return Historic{}, err
	}

	imports, err := r.reconciler.HourlyImports(ctx, period)
	if err != nil {
		return Historic{}, err
	}
	exports, err := r.reconciler.HourlyExports(ctx, period)
	if err != nil {
		return Historic{}, err
	}
	if granularity > time.Hour {
		imports = energy.SumWindows(imports, granularity)
		exports = energy.SumWindows(exports, granularity)
	}

	prices, err := r.hourlyPrices(ctx, period)
	if err != nil {
		return Historic{}, err
	}
	indexedRates := make([]telemetry.Sample, 0, len(prices))
	for _, price := range prices {
		indexedRates = append(indexedRates, telemetry.Sample{Time: price.Time, Value: indexed.Rate(price.Time, price.Value)})
	}
	if granularity > time.Hour {
		// cannot fail: Mean is always defined and Window only aggregates non-empty buckets
		indexedRates, _ = telemetry.Window(indexedRates, granularity, telemetry.Mean)
	}
	for i := range indexedRates {
		indexedRates[i].Value = round(indexedRates[i].Value, 5)
	}

	consumption := bucketConsumption(generation, imports, exports)

	h := Historic{
		Range:       rng,
		Granularity: granularity,
		Generation:  generation,
		Consumption: consumption,
		Import:      imports,
		Export:      exports,
		IndexedRate: indexedRates,
		FlatRate:    cfg.Energy.EffectiveRate,
	}
	h.Summary = summarise(h)
	return h, nil
}

// bucketGeneration estimates the energy generated in each bucket as the mean inverter power times the bucket length.
func (r *Reporter) bucketGeneration(ctx context.Context, period timeutils.Period, granularity time.Duration) ([]telemetry.Sample, error) {
	means, err := r.store.Query(ctx, telemetry.Query{
		Measurement: telemetry.MeasurementInverter,
		Field:       energy.FieldACPower,
		Period:      period,
		Window:      granularity,
		Fn:          telemetry.Mean,
	})
	if err != nil {
		return nil, fmt.Errorf("query mean generation: %w", err)
	}

	hours := granularity.Hours()
	for i := range means {
		means[i].Value = means[i].Value * hours / 1000
	}

	var out []telemetry.Sample
	for _, s := range telemetry.SumByTime(means) {
		if s.Value > minBucketKWh {
			out = append(out, s)
		}
	}
	return out, nil
}

// bucketConsumption is generation minus export plus import for every bucket present in any of the series.
func bucketConsumption(generation, imports, exports []telemetry.Sample) []telemetry.Sample {
	combined := make([]telemetry.Sample, 0, len(generation)+len(imports)+len(exports))
	for _, s := range generation {
		combined = append(combined, telemetry.Sample{Time: s.Time, Value: s.Value})
	}
	for _, s := range imports {
		combined = append(combined, telemetry.Sample{Time: s.Time, Value: s.Value})
	}
	for _, s := range exports {
		combined = append(combined, telemetry.Sample{Time: s.Time, Value: -s.Value})
	}
	out := telemetry.SumByTime(combined)
	for i := range out {
		out[i].Value = round(out[i].Value, 2)
	}
	return out
}

func summarise(h Historic) HistoricSummary {
	summary := HistoricSummary{
		GenerationKWh:  round(sumValues(h.Generation), 1),
		ConsumptionKWh: round(sumValues(h.Consumption), 1),
		ImportKWh:      round(sumValues(h.Import), 1),
		ExportKWh:      round(sumValues(h.Export), 1),
	}
	if len(h.IndexedRate) > 0 {
		summary.MeanIndexedEURkWh = round(sumValues(h.IndexedRate)/float64(len(h.IndexedRate)), 5)
	}

	generation := sumValues(h.Generation)
	if generation > 0 {
		summary.SelfConsumptionPct = round((generation-sumValues(h.Export))/generation*100, 1)
	}

	days := make(map[int64]bool)
	for _, series := range [][]telemetry.Sample{h.Generation, h.Import, h.Export} {
		for _, s := range series {
			days[timeutils.StartOfDay(s.Time).Unix()] = true
		}
	}
	summary.Days = len(days)
	return summary
}

func sumValues(samples []telemetry.Sample) float64 {
	total := 0.0
	for _, s := range samples {
		total += s.Value
	}
	return total
}
