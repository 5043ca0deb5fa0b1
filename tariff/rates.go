package tariff

import "time"

// FlatRates is the energy price of a fixed tariff in EUR/kWh, per period.
type FlatRates map[Period]float64

// Rate returns the flat energy price that applies at `t`.
func (r FlatRates) Rate(t time.Time) float64 {
	return r[Classify(t)]
}

// IndexedRates holds the regulated components that are added to the day-ahead market price under an indexed tariff.
// All values are EUR/kWh.
type IndexedRates struct {
	Tolls   map[Period]float64
	Charges map[Period]float64
	Margin  float64
}

// Rate returns the indexed energy price for the hour at `t` given that hour's market price in EUR/kWh.
func (r IndexedRates) Rate(t time.Time, marketPrice float64) float64 {
	period := Classify(t)
	return marketPrice + r.Tolls[period] + r.Charges[period] + r.Margin
}
