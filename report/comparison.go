package report

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/cepro/solarmonitor/billing"
	"github.com/cepro/solarmonitor/tariff"
	"github.com/cepro/solarmonitor/telemetry"
	timeutils "github.com/cepro/solarmonitor/time_utils"
)

const (
	comparisonMonths = 3
	lowDataHours     = 168 // one week of hourly data
	daysPerMonth     = 30
	realScenario     = "real"
)

// Consumption is the measured import split by tariff period.
type Consumption struct {
	KWhByPeriod map[tariff.Period]float64
	PctByPeriod map[tariff.Period]float64
	TotalKWh    float64
	ExportKWh   float64
	Days        float64 // span of the data, at least one
	HoursOfData int
}

type OfferEstimate struct {
	Offer billing.Offer

	// MonthlyEnergyCost is the estimated energy cost in EUR by scenario name.
	MonthlyEnergyCost map[string]float64
}

// Comparison prices the stored supplier offers against measured and reference consumption profiles.
type Comparison struct {
	Actual           Consumption
	MonthlyKWh       float64
	MonthlyExportKWh float64
	LowData          bool
	MarketByPeriod   map[tariff.Period]float64 // mean day-ahead price, EUR/kWh
	Regulated        tariff.IndexedRates
	Scenarios        map[string]billing.Mix
	Offers           []OfferEstimate

	// CurrentMonthlyEnergyCost prices the measured monthly consumption at the configured fixed tariff.
	CurrentMonthlyEnergyCost float64
}

func (r *Reporter) Comparison(ctx context.Context, now time.Time) (Comparison, error) {
	cfg, err := r.rates.Get()
	if err != nil {
		return Comparison{}, fmt.Errorf("get rates: %w", err)
	}
	regulated, ok := indexedRatesOrZero(cfg)
	if !ok {
		r.logger.Warn("Indexed tariff components not configured, comparing offers without them")
	}

	period := timeutils.Since(now.AddDate(0, -comparisonMonths, 0), now)

	imports, err := r.reconciler.HourlyImports(ctx, period)
	if err != nil {
		return Comparison{}, err
	}
	exports, err := r.reconciler.HourlyExports(ctx, period)
	if err != nil {
		return Comparison{}, err
	}
	actual := consumptionByPeriod(imports, exports)

	prices, err := r.hourlyPrices(ctx, period)
	if err != nil {
		return Comparison{}, err
	}
	market := make(map[tariff.Period]float64, len(tariff.Periods))
	for _, p := range tariff.Periods {
		market[p] = 0
	}
	for p, mean := range tariff.AverageByPeriod(prices) {
		market[p] = round(mean, 6)
	}

	scenarios := make(map[string]billing.Mix, len(billing.Scenarios)+1)
	maps.Copy(scenarios, billing.Scenarios)
	scenarios[realScenario] = billing.Mix(actual.PctByPeriod)

	monthlyKWh := round(actual.TotalKWh/actual.Days*daysPerMonth, 1)
	monthlyByPeriod := make(map[tariff.Period]float64, len(tariff.Periods))
	for p, pct := range actual.PctByPeriod {
		monthlyByPeriod[p] = monthlyKWh * pct / 100
	}

	offers, err := r.offers.ListOffers()
	if err != nil {
		return Comparison{}, fmt.Errorf("list offers: %w", err)
	}
	estimates := make([]OfferEstimate, 0, len(offers))
	for _, offer := range offers {
		costs := make(map[string]float64, len(scenarios))
		for name, mix := range scenarios {
			costs[name] = offer.MonthlyEnergyCost(monthlyKWh, mix, market, regulated)
		}
		estimates = append(estimates, OfferEstimate{Offer: offer, MonthlyEnergyCost: costs})
	}

	return Comparison{
		Actual:           actual,
		MonthlyKWh:       monthlyKWh,
		MonthlyExportKWh: round(actual.ExportKWh/actual.Days*daysPerMonth, 1),
		LowData:          actual.HoursOfData < lowDataHours,
		MarketByPeriod:   market,
		Regulated:        regulated,
		Scenarios:        scenarios,
		Offers:           estimates,

		CurrentMonthlyEnergyCost: billing.Round2(tariff.FlatCost(monthlyByPeriod, cfg.FlatRates())),
	}, nil
}

// consumptionByPeriod splits valid hourly imports by period. The span in days is measured between the first and last
// hour of import data.
func consumptionByPeriod(imports, exports []telemetry.Sample) Consumption {
	c := Consumption{
		KWhByPeriod: make(map[tariff.Period]float64, len(tariff.Periods)),
		PctByPeriod: make(map[tariff.Period]float64, len(tariff.Periods)),
		Days:        1,
		HoursOfData: len(imports),
	}

	byPeriod := tariff.EnergyByPeriod(imports)
	total := 0.0
	for _, p := range tariff.Periods {
		total += byPeriod[p]
	}
	for _, p := range tariff.Periods {
		c.KWhByPeriod[p] = round(byPeriod[p], 1)
		if total > 0 {
			c.PctByPeriod[p] = round(byPeriod[p]/total*100, 1)
		} else {
			c.PctByPeriod[p] = 0
		}
	}
	c.TotalKWh = round(total, 1)
	c.ExportKWh = round(sumValues(exports), 1)

	if len(imports) > 0 {
		sorted := make([]telemetry.Sample, len(imports))
		copy(sorted, imports)
		telemetry.SortByTime(sorted)
		elapsed := sorted[len(sorted)-1].Time.Sub(sorted[0].Time)
		c.Days = round(max(elapsed.Hours()/24, 1), 1)
	}
	return c
}
