package report

import (
	"context"
	"fmt"
	"time"

	"github.com/cepro/solarmonitor/billing"
	"github.com/cepro/solarmonitor/energy"
	"github.com/cepro/solarmonitor/omie"
	"github.com/cepro/solarmonitor/rates"
	"github.com/cepro/solarmonitor/tariff"
	"github.com/cepro/solarmonitor/telemetry"
	timeutils "github.com/cepro/solarmonitor/time_utils"
)

// DayFlag classifies a day by its mean day-ahead price.
type DayFlag string

const (
	DayCheap     DayFlag = "cheap"
	DayNormal    DayFlag = "normal"
	DayExpensive DayFlag = "expensive"
)

const (
	cheapBelowEURMWh     = 20.0
	expensiveAboveEURMWh = 80.0
)

func flagDay(meanEURMWh float64) DayFlag {
	switch {
	case meanEURMWh < cheapBelowEURMWh:
		return DayCheap
	case meanEURMWh > expensiveAboveEURMWh:
		return DayExpensive
	default:
		return DayNormal
	}
}

// Market compares the fixed and indexed tariffs on today's and this month's imports.
type Market struct {
	PriceEURMWh float64
	PriceEURkWh float64
	Period      tariff.Period
	IndexedRate float64 // EUR/kWh right now, all components included
	FlatRate    float64 // the effective rate of the fixed tariff

	CostFlatToday    float64
	CostIndexedToday float64
	DiffToday        float64 // fixed minus indexed
	ImportedKWhToday float64
	UnpricedKWhToday float64
	CostFlatMonth    float64
	CostIndexedMonth float64
	DiffMonth        float64
	UnpricedKWhMonth float64
	MeanPriceEURMWh  float64 // today so far
	DayFlag          DayFlag
	HourlyPrices     []telemetry.Sample // EUR/kWh
	IndexedHourly    []telemetry.Sample // EUR/kWh
}

func (r *Reporter) Market(ctx context.Context, now time.Time) (Market, error) {
	cfg, err := r.rates.Get()
	if err != nil {
		return Market{}, fmt.Errorf("get rates: %w", err)
	}
	indexed, err := cfg.IndexedRates()
	if err != nil {
		return Market{}, err
	}
	flat := cfg.FlatRates()

	currentHour := timeutils.FloorHour(now)
	current, err := r.store.Query(ctx, telemetry.Query{
		Measurement: telemetry.MeasurementPrices,
		Device:      telemetry.DeviceOmie,
		Field:       omie.FieldPriceEURkWh,
		Period:      timeutils.Period{Start: currentHour.Add(-time.Hour), End: currentHour.Add(time.Hour)},
		Fn:          telemetry.Last,
	})
	if err != nil {
		return Market{}, fmt.Errorf("query current price: %w", err)
	}
	priceKWh := 0.0
	if len(current) > 0 {
		priceKWh = current[0].Value
	}

	todayPeriod := timeutils.Since(timeutils.StartOfDay(now), now)
	today, err := r.weightedCosts(ctx, todayPeriod, flat, indexed)
	if err != nil {
		return Market{}, err
	}
	month, err := r.weightedCosts(ctx, timeutils.Since(timeutils.StartOfMonth(now), now), flat, indexed)
	if err != nil {
		return Market{}, err
	}

	meanToday, err := r.store.Query(ctx, telemetry.Query{
		Measurement: telemetry.MeasurementPrices,
		Device:      telemetry.DeviceOmie,
		Field:       omie.FieldPriceEURMWh,
		Period:      todayPeriod,
		Fn:          telemetry.Mean,
	})
	if err != nil {
		return Market{}, fmt.Errorf("query mean price: %w", err)
	}
	meanEURMWh := 0.0
	if len(meanToday) > 0 {
		meanEURMWh = meanToday[0].Value
	}

	hourly, err := r.hourlyPrices(ctx, todayPeriod)
	if err != nil {
		return Market{}, err
	}

	return Market{
		PriceEURMWh:      round(priceKWh*1000, 2),
		PriceEURkWh:      round(priceKWh, 5),
		Period:           tariff.Classify(now),
		IndexedRate:      round(indexed.Rate(now, priceKWh), 5),
		FlatRate:         cfg.Energy.EffectiveRate,
		CostFlatToday:    billing.Round2(today.Flat),
		CostIndexedToday: billing.Round2(today.Indexed),
		DiffToday:        billing.Round2(today.Flat - today.Indexed),
		ImportedKWhToday: round(today.ImportKWh, 1),
		UnpricedKWhToday: round(today.UnpricedImportKWh, 1),
		CostFlatMonth:    billing.Round2(month.Flat),
		CostIndexedMonth: billing.Round2(month.Indexed),
		DiffMonth:        billing.Round2(month.Flat - month.Indexed),
		UnpricedKWhMonth: round(month.UnpricedImportKWh, 1),
		MeanPriceEURMWh:  round(meanEURMWh, 1),
		DayFlag:          flagDay(meanEURMWh),
		HourlyPrices:     hourly,
		IndexedHourly:    today.IndexedRates,
	}, nil
}

// Bill projects the current month's bill under both tariffs.
func (r *Reporter) Bill(ctx context.Context, now time.Time) (billing.Projection, error) {
	cfg, err := r.rates.Get()
	if err != nil {
		return billing.Projection{}, fmt.Errorf("get rates: %w", err)
	}
	indexed, err := cfg.IndexedRates()
	if err != nil {
		return billing.Projection{}, err
	}

	month := timeutils.Since(timeutils.StartOfMonth(now), now)
	costs, err := r.weightedCosts(ctx, month, cfg.FlatRates(), indexed)
	if err != nil {
		return billing.Projection{}, err
	}
	exports, err := r.reconciler.HourlyExports(ctx, month)
	if err != nil {
		return billing.Projection{}, err
	}

	partial := billing.PartialMonth{
		FlatCost:    costs.Flat,
		IndexedCost: costs.Indexed,
		ExportKWh:   energy.CounterKWh(exports),
	}
	return billing.Project(now, partial, cfg.Charges()), nil
}

func (r *Reporter) weightedCosts(ctx context.Context, period timeutils.Period, flat tariff.FlatRates, indexed tariff.IndexedRates) (tariff.Costs, error) {
	prices, err := r.hourlyPrices(ctx, period)
	if err != nil {
		return tariff.Costs{}, err
	}
	imports, err := r.reconciler.HourlyImports(ctx, period)
	if err != nil {
		return tariff.Costs{}, err
	}
	return tariff.WeightedCosts(prices, imports, flat, indexed), nil
}

// indexedRatesOrZero returns the regulated indexed components, or zeros when they are not configured.
func indexedRatesOrZero(cfg rates.Config) (tariff.IndexedRates, bool) {
	indexed, err := cfg.IndexedRates()
	if err != nil {
		return tariff.IndexedRates{}, false
	}
	return indexed, true
}
