package rates

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cepro/solarmonitor/tariff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pricingJSON = `{
  "energy": {
    "rates_eur_kwh": {"P1": 0.20, "P2": 0.17, "P3": 0.14, "P4": 0.12, "P5": 0.10, "P6": 0.09},
    "effective_rate_eur_kwh": 0.14
  },
  "contracted_power_kw": {"P1": 69, "P2": 69, "P3": 69, "P4": 69, "P5": 69, "P6": 69},
  "power_charges_eur_kw_day": {"P1": 0.0706, "P2": 0.0379, "P3": 0.0158, "P4": 0.0133, "P5": 0.0043, "P6": 0.0025},
  "taxes": {"electricity_tax_pct": 5.11, "iva_pct": 21},
  "fixed_charges_eur_day": {"meter_rental": 0.0267},
  "injection": {"price_eur_kwh": 0.06},
  "indexed_tariff": {
    "peajes_eur_kwh": {"P1": 0.0297, "P2": 0.0226, "P3": 0.0114, "P4": 0.0072, "P5": 0.0006, "P6": 0.0004},
    "cargos_eur_kwh": {"P1": 0.0435, "P2": 0.0326, "P3": 0.0174, "P4": 0.0087, "P5": 0.0029, "P6": 0.0017},
    "margin_comercialitzadora_eur_kwh": 0.008
  }
}`

func writePricing(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricing.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGet(t *testing.T) {
	store := NewStore(writePricing(t, pricingJSON))

	cfg, err := store.Get()
	require.NoError(t, err)

	assert.Equal(t, 0.14, cfg.Energy.EffectiveRate)
	assert.Equal(t, 0.20, cfg.FlatRates()[tariff.P1])
	assert.Equal(t, 0.06, cfg.Injection.Price)

	indexed, err := cfg.IndexedRates()
	require.NoError(t, err)
	assert.Equal(t, 0.008, indexed.Margin)
	assert.Equal(t, 0.0297, indexed.Tolls[tariff.P1])

	charges := cfg.Charges()
	assert.Equal(t, 5.11, charges.ElectricityTaxPct)
	assert.Equal(t, 21.0, charges.VATPct)
	assert.Equal(t, 0.0267, charges.FixedDaily["meter_rental"])
}

func TestGetMissingFileUsesDefaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "pricing.json"))

	cfg, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, DefaultEffectiveRate, cfg.Energy.EffectiveRate)
	for _, period := range tariff.Periods {
		assert.Equal(t, DefaultEffectiveRate, cfg.FlatRates()[period])
	}

	_, err = cfg.IndexedRates()
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestGetCorruptFile(t *testing.T) {
	store := NewStore(writePricing(t, `{"energy": `))
	_, err := store.Get()
	assert.ErrorContains(t, err, "unmarshal rates")
}

func TestPartialFlatRatesFallBack(t *testing.T) {
	store := NewStore(writePricing(t, `{"energy": {"rates_eur_kwh": {"P1": 0.25}, "effective_rate_eur_kwh": 0.15}}`))

	cfg, err := store.Get()
	require.NoError(t, err)
	flat := cfg.FlatRates()
	assert.Equal(t, 0.25, flat[tariff.P1])
	assert.Equal(t, 0.15, flat[tariff.P6])
}

func TestGetIsCachedUntilInvalidated(t *testing.T) {
	path := writePricing(t, pricingJSON)
	store := NewStore(path)

	cfg, err := store.Get()
	require.NoError(t, err)
	require.Equal(t, 0.14, cfg.Energy.EffectiveRate)

	require.NoError(t, os.WriteFile(path, []byte(`{"energy": {"effective_rate_eur_kwh": 0.3}}`), 0o644))

	cfg, err = store.Get()
	require.NoError(t, err)
	assert.Equal(t, 0.14, cfg.Energy.EffectiveRate, "served from cache")

	store.Invalidate()
	cfg, err = store.Get()
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.Energy.EffectiveRate)
}

func TestSave(t *testing.T) {
	path := writePricing(t, pricingJSON)
	store := NewStore(path)

	cfg, err := store.Get()
	require.NoError(t, err)

	cfg.Energy.Rates = map[tariff.Period]float64{
		tariff.P1: 0.30, tariff.P2: 0.24, tariff.P3: 0.18, tariff.P4: 0.12, tariff.P5: 0.06, tariff.P6: 0.00,
	}
	saved, err := store.Save(cfg)
	require.NoError(t, err)
	assert.InDelta(t, 0.15, saved.Energy.EffectiveRate, 1e-12)

	cached, err := store.Get()
	require.NoError(t, err)
	assert.InDelta(t, 0.15, cached.Energy.EffectiveRate, 1e-12)

	// a fresh store reads what was written
	reloaded, err := NewStore(path).Get()
	require.NoError(t, err)
	assert.InDelta(t, 0.15, reloaded.Energy.EffectiveRate, 1e-12)
	assert.Equal(t, 0.30, reloaded.FlatRates()[tariff.P1])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestSaveRejectsInvalid(t *testing.T) {
	path := writePricing(t, pricingJSON)
	store := NewStore(path)

	cfg, err := store.Get()
	require.NoError(t, err)

	cfg.Taxes.VATPct = 121
	_, err = store.Save(cfg)
	assert.ErrorContains(t, err, "VAT")

	current, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, 21.0, current.Taxes.VATPct)
}

func TestConcurrentGetAndSave(t *testing.T) {
	store := NewStore(writePricing(t, pricingJSON))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			cfg, err := store.Get()
			if assert.NoError(t, err) {
				rate := cfg.Energy.EffectiveRate
				assert.True(t, rate == 0.14 || math.Abs(rate-DefaultEffectiveRate) < 1e-9, "unexpected rate %v", rate)
			}
		}()
		go func() {
			defer wg.Done()
			cfg := Default()
			_, err := store.Save(cfg)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	store := NewStore(writePricing(t, pricingJSON))

	cfg, err := store.Get()
	require.NoError(t, err)
	cfg.Energy.Rates[tariff.P1] = 9
	cfg.IndexedTariff.Tolls[tariff.P1] = 9
	cfg.ContractedPowerKW[tariff.P1] = 9
	cfg.FixedCharges["meter_rental"] = 9

	again, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, 0.20, again.Energy.Rates[tariff.P1])
	assert.Equal(t, 0.0297, again.IndexedTariff.Tolls[tariff.P1])
	assert.Equal(t, 69.0, again.ContractedPowerKW[tariff.P1])
	assert.Equal(t, 0.0267, again.FixedCharges["meter_rental"])
}

func TestSaveDoesNotKeepCallerMaps(t *testing.T) {
	store := NewStore(writePricing(t, pricingJSON))

	cfg, err := store.Get()
	require.NoError(t, err)
	_, err = store.Save(cfg)
	require.NoError(t, err)

	cfg.Energy.Rates[tariff.P2] = 9

	cached, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, 0.17, cached.Energy.Rates[tariff.P2])
}
