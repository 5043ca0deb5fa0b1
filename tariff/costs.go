package tariff

import (
	"github.com/cepro/solarmonitor/telemetry"
	timeutils "github.com/cepro/solarmonitor/time_utils"
)

// Costs is the result of pricing a range of hourly imports under both tariffs.
type Costs struct {
	Indexed   float64 // EUR
	Flat      float64 // EUR
	ImportKWh float64 // imports in hours that have a market price

	// UnpricedImportKWh is imported energy in hours without a market price. It is not charged under either tariff.
	UnpricedImportKWh float64

	ByPeriod map[Period]float64 // priced kWh per period

	// IndexedRates is the indexed rate in EUR/kWh for every hour with a market price, whether or not energy was
	// imported in that hour, ordered by time.
	IndexedRates []telemetry.Sample
}

// WeightedCosts prices hourly imports (kWh) against hourly market prices (EUR/kWh). The two series are joined on the
// tariff-clock hour: only hours present in both contribute cost.
func WeightedCosts(prices, imports []telemetry.Sample, flat FlatRates, indexed IndexedRates) Costs {
	costs := Costs{
		ByPeriod: make(map[Period]float64, len(Periods)),
	}

	priceByHour := make(map[int64]float64, len(prices))
	for _, price := range prices {
		hour := timeutils.FloorHour(price.Time)
		priceByHour[hour.UnixNano()] = price.Value
		costs.IndexedRates = append(costs.IndexedRates, telemetry.Sample{
			Device: price.Device,
			Time:   hour,
			Value:  indexed.Rate(hour, price.Value),
		})
	}
	telemetry.SortByTime(costs.IndexedRates)

	for _, imported := range imports {
		hour := timeutils.FloorHour(imported.Time)
		price, priced := priceByHour[hour.UnixNano()]
		if !priced {
			costs.UnpricedImportKWh += imported.Value
			continue
		}
		costs.Indexed += imported.Value * indexed.Rate(hour, price)
		costs.ImportKWh += imported.Value
		costs.ByPeriod[Classify(hour)] += imported.Value
	}
	costs.Flat = FlatCost(costs.ByPeriod, flat)

	return costs
}

// FlatCost prices energy already split by period at the flat rates.
func FlatCost(byPeriod map[Period]float64, rates FlatRates) float64 {
	total := 0.0
	for _, period := range Periods {
		total += byPeriod[period] * rates[period]
	}
	return total
}

// EnergyByPeriod sums hourly values by the period of their timestamp.
func EnergyByPeriod(samples []telemetry.Sample) map[Period]float64 {
	out := make(map[Period]float64, len(Periods))
	for _, s := range samples {
		out[Classify(s.Time)] += s.Value
	}
	return out
}

// AverageByPeriod returns the mean of the values falling in each period. Periods without samples are left out.
func AverageByPeriod(samples []telemetry.Sample) map[Period]float64 {
	totals := make(map[Period]float64, len(Periods))
	counts := make(map[Period]int, len(Periods))
	for _, s := range samples {
		period := Classify(s.Time)
		totals[period] += s.Value
		counts[period]++
	}
	out := make(map[Period]float64, len(counts))
	for period, count := range counts {
		out[period] = totals[period] / float64(count)
	}
	return out
}
