package rates

import (
	"errors"
	"fmt"
	"maps"

	"github.com/cepro/solarmonitor/billing"
	"github.com/cepro/solarmonitor/tariff"
)

const (
	DefaultEffectiveRate  = 0.154 // EUR/kWh
	DefaultInjectionPrice = 0.05  // EUR/kWh
)

// ErrIncomplete is returned when the configuration lacks a component that has no safe default.
var ErrIncomplete = errors.New("incomplete rate configuration")

type EnergyConfig struct {
	Rates         map[tariff.Period]float64 `json:"rates_eur_kwh"`
	EffectiveRate float64                   `json:"effective_rate_eur_kwh"`
}

type TaxesConfig struct {
	ElectricityTaxPct float64 `json:"electricity_tax_pct"`
	VATPct            float64 `json:"iva_pct"`
}

type InjectionConfig struct {
	Price float64 `json:"price_eur_kwh"`
}

type IndexedTariffConfig struct {
	Tolls   map[tariff.Period]float64 `json:"peajes_eur_kwh"`
	Charges map[tariff.Period]float64 `json:"cargos_eur_kwh"`
	Margin  float64                   `json:"margin_comercialitzadora_eur_kwh"`
}

// Config is the tariff configuration as stored in pricing.json.
type Config struct {
	Energy            EnergyConfig              `json:"energy"`
	ContractedPowerKW map[tariff.Period]float64 `json:"contracted_power_kw"`
	PowerCharges      map[tariff.Period]float64 `json:"power_charges_eur_kw_day"`
	Taxes             TaxesConfig               `json:"taxes"`
	FixedCharges      map[string]float64        `json:"fixed_charges_eur_day"`
	Injection         InjectionConfig           `json:"injection"`
	IndexedTariff     IndexedTariffConfig       `json:"indexed_tariff"`
}

// Default returns the configuration used when no file exists yet: every period at the default effective rate and no
// indexed tariff components.
func Default() Config {
	cfg := Config{}
	cfg.Normalize()
	return cfg
}

// Clone returns a copy of the configuration that shares no maps with `c`.
func (c Config) Clone() Config {
	out := c
	out.Energy.Rates = maps.Clone(c.Energy.Rates)
	out.ContractedPowerKW = maps.Clone(c.ContractedPowerKW)
	out.PowerCharges = maps.Clone(c.PowerCharges)
	out.FixedCharges = maps.Clone(c.FixedCharges)
	out.IndexedTariff.Tolls = maps.Clone(c.IndexedTariff.Tolls)
	out.IndexedTariff.Charges = maps.Clone(c.IndexedTariff.Charges)
	return out
}

// Normalize fills in the values that have a safe default. Flat rates missing for a period fall back to the effective
// rate.
func (c *Config) Normalize() {
	if c.Energy.EffectiveRate <= 0 {
		c.Energy.EffectiveRate = DefaultEffectiveRate
	}
	if c.Energy.Rates == nil {
		c.Energy.Rates = make(map[tariff.Period]float64, len(tariff.Periods))
	}
	for _, period := range tariff.Periods {
		if _, ok := c.Energy.Rates[period]; !ok {
			c.Energy.Rates[period] = c.Energy.EffectiveRate
		}
	}
	if c.Injection.Price <= 0 {
		c.Injection.Price = DefaultInjectionPrice
	}
}

// Validate checks for values that are present but unusable.
func (c Config) Validate() error {
	for period, rate := range c.Energy.Rates {
		if _, err := tariff.ParsePeriod(string(period)); err != nil {
			return fmt.Errorf("energy rates: %w", err)
		}
		if rate < 0 {
			return fmt.Errorf("energy rate for %s is negative: %v", period, rate)
		}
	}
	if c.Taxes.ElectricityTaxPct < 0 || c.Taxes.ElectricityTaxPct > 100 {
		return fmt.Errorf("electricity tax must be a percentage: %v", c.Taxes.ElectricityTaxPct)
	}
	if c.Taxes.VATPct < 0 || c.Taxes.VATPct > 100 {
		return fmt.Errorf("VAT must be a percentage: %v", c.Taxes.VATPct)
	}
	for period, kw := range c.ContractedPowerKW {
		if kw <= 0 {
			return fmt.Errorf("contracted power for %s must be positive: %v", period, kw)
		}
	}
	return nil
}

// MeanFlatRate is the unweighted mean of the six flat energy rates.
func (c Config) MeanFlatRate() float64 {
	total := 0.0
	for _, period := range tariff.Periods {
		total += c.Energy.Rates[period]
	}
	return total / float64(len(tariff.Periods))
}

// FlatRates returns the per-period rates of the fixed tariff.
func (c Config) FlatRates() tariff.FlatRates {
	rates := make(tariff.FlatRates, len(tariff.Periods))
	for _, period := range tariff.Periods {
		rate, ok := c.Energy.Rates[period]
		if !ok {
			rate = c.Energy.EffectiveRate
		}
		rates[period] = rate
	}
	return rates
}

// IndexedRates returns the regulated components of the indexed tariff. Tolls and charges have no safe default, so
// ErrIncomplete is returned unless both are configured for every period.
func (c Config) IndexedRates() (tariff.IndexedRates, error) {
	for _, period := range tariff.Periods {
		if _, ok := c.IndexedTariff.Tolls[period]; !ok {
			return tariff.IndexedRates{}, fmt.Errorf("%w: no indexed toll for %s", ErrIncomplete, period)
		}
		if _, ok := c.IndexedTariff.Charges[period]; !ok {
			return tariff.IndexedRates{}, fmt.Errorf("%w: no indexed charge for %s", ErrIncomplete, period)
		}
	}
	return tariff.IndexedRates{
		Tolls:   c.IndexedTariff.Tolls,
		Charges: c.IndexedTariff.Charges,
		Margin:  c.IndexedTariff.Margin,
	}, nil
}

// Charges returns the energy-independent parts of a bill.
func (c Config) Charges() billing.Charges {
	return billing.Charges{
		PowerRates:        c.PowerCharges,
		ContractedKW:      c.ContractedPowerKW,
		FixedDaily:        c.FixedCharges,
		ElectricityTaxPct: c.Taxes.ElectricityTaxPct,
		VATPct:            c.Taxes.VATPct,
		InjectionPrice:    c.Injection.Price,
	}
}
