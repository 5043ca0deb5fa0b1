package billing

import (
	"fmt"

	"github.com/cepro/solarmonitor/tariff"
)

// OfferKind distinguishes supplier offers priced at fixed per-period rates from those indexed to the day-ahead market.
type OfferKind string

const (
	OfferFixed   OfferKind = "fixed"
	OfferIndexed OfferKind = "indexed"
)

// Offer is a supplier's energy price proposal.
type Offer struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Kind        OfferKind        `json:"kind"`
	EnergyRates tariff.FlatRates `json:"energy_rates_eur_kwh,omitempty"` // fixed offers
	Margin      float64          `json:"margin_eur_kwh,omitempty"`       // indexed offers
	Notes       string           `json:"notes,omitempty"`
}

// Validate checks that the offer carries the prices its kind needs.
func (o Offer) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("offer has no name")
	}
	switch o.Kind {
	case OfferFixed:
		for _, period := range tariff.Periods {
			if _, ok := o.EnergyRates[period]; !ok {
				return fmt.Errorf("fixed offer '%s' has no rate for %s", o.Name, period)
			}
		}
	case OfferIndexed:
	default:
		return fmt.Errorf("offer '%s' has unknown kind '%s'", o.Name, o.Kind)
	}
	return nil
}

// Mix is the share of consumption in each period, in percent.
type Mix map[tariff.Period]float64

// Scenarios are reference consumption profiles that offers are compared under, alongside the measured one.
var Scenarios = map[string]Mix{
	"daytime": {tariff.P1: 25, tariff.P2: 30, tariff.P3: 10, tariff.P4: 10, tariff.P5: 15, tariff.P6: 10},
	"night":   {tariff.P1: 3, tariff.P2: 5, tariff.P3: 5, tariff.P4: 2, tariff.P5: 60, tariff.P6: 25},
	"uniform": {tariff.P1: 12, tariff.P2: 18, tariff.P3: 12, tariff.P4: 6, tariff.P5: 38, tariff.P6: 14},
}

// MonthlyEnergyCost estimates the offer's energy cost in EUR for `monthlyKWh` spread across periods by `mix`. Indexed
// offers are priced at the mean market price of each period plus the regulated tolls and charges and the offer's own
// margin.
func (o Offer) MonthlyEnergyCost(monthlyKWh float64, mix Mix, marketByPeriod map[tariff.Period]float64, regulated tariff.IndexedRates) float64 {
	total := 0.0
	for period, pct := range mix {
		kwh := monthlyKWh * pct / 100

		var rate float64
		switch o.Kind {
		case OfferIndexed:
			rate = marketByPeriod[period] + regulated.Tolls[period] + regulated.Charges[period] + o.Margin
		default:
			rate = o.EnergyRates[period]
		}
		total += kwh * rate
	}
	return Round2(total)
}
