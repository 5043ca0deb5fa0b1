package billing

import (
	"bytes"
	"testing"
	"time"

	"github.com/cepro/solarmonitor/tariff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBill(t *testing.T) {
	// a 20 EUR power term and 5 EUR of fixed charges over one day
	charges := Charges{
		PowerRates:        map[tariff.Period]float64{tariff.P1: 1},
		ContractedKW:      map[tariff.Period]float64{tariff.P1: 20},
		FixedDaily:        map[string]float64{"meter_rental": 3, "social_bonus": 2},
		ElectricityTaxPct: 5.11,
		VATPct:            21,
		InjectionPrice:    0.05,
	}

	bill := ComputeBill(100, 1, 40, charges)

	assert.InDelta(t, 100.00, bill.Energy, 1e-9)
	assert.InDelta(t, 20.00, bill.Power, 1e-9)
	assert.InDelta(t, 5.00, bill.FixedCharges, 1e-9)
	assert.InDelta(t, 6.13, bill.ElectricityTax, 1e-9)
	assert.InDelta(t, 131.13, bill.Subtotal, 1e-9)
	assert.InDelta(t, 27.54, bill.VAT, 1e-9)
	assert.InDelta(t, 158.67, bill.Total, 1e-9)
	assert.InDelta(t, 2.00, bill.Compensation, 1e-9)
	assert.InDelta(t, 156.67, bill.Net, 1e-9)

	assertBalances(t, bill)
}

func TestComputeBillIdentities(t *testing.T) {
	charges := Charges{
		PowerRates:        map[tariff.Period]float64{tariff.P1: 0.073, tariff.P2: 0.038, tariff.P6: 0.0017},
		ContractedKW:      map[tariff.Period]float64{tariff.P1: 50},
		FixedDaily:        map[string]float64{"meter_rental": 0.0267},
		ElectricityTaxPct: 5.11269632,
		VATPct:            21,
		InjectionPrice:    0.0417,
	}

	for _, energy := range []float64{0, 0.005, 17.333, 412.987, 1234.5678} {
		for _, days := range []int{1, 28, 31} {
			assertBalances(t, ComputeBill(energy, days, 123.4, charges))
		}
	}
}

func assertBalances(t *testing.T, b Bill) {
	t.Helper()
	assert.InDelta(t, b.Subtotal, b.Energy+b.Power+b.ElectricityTax+b.FixedCharges, 0.001)
	assert.InDelta(t, b.Total, b.Subtotal+b.VAT, 0.001)
	assert.InDelta(t, b.Net, b.Total-b.Compensation, 0.001)
}

func TestPowerCostDefaultsContractedPower(t *testing.T) {
	charges := Charges{PowerRates: map[tariff.Period]float64{tariff.P3: 0.01}}
	// 0.01 EUR/kW/day at 69 kW for 30 days
	assert.InDelta(t, 20.70, charges.PowerCost(30), 1e-9)
}

func TestDaysElapsed(t *testing.T) {

	type subTest struct {
		name     string
		now      time.Time
		expected float64
	}

	subTests := []subTest{
		{"Start of month", mustParseTime("2024-03-01T00:10:00+01:00"), 0},
		{"Noon on the first", mustParseTime("2024-03-01T12:00:00+01:00"), 0.5},
		{"Sixteenth at 6am", mustParseTime("2024-03-16T06:00:00+01:00"), 15.25},
		// still March in UTC but already April on the tariff clock
		{"UTC month boundary", mustParseTime("2024-03-31T23:30:00Z"), 0},
		{"Leap day", mustParseTime("2024-02-29T22:30:00Z"), 28 + 23.0/24},
	}

	for _, st := range subTests {
		t.Run(st.name, func(t *testing.T) {
			assert.InDelta(t, st.expected, DaysElapsed(st.now), 1e-9)
		})
	}
}

func TestProject(t *testing.T) {
	charges := Charges{
		PowerRates:        map[tariff.Period]float64{tariff.P1: 0.1},
		ContractedKW:      map[tariff.Period]float64{tariff.P1: 10},
		FixedDaily:        map[string]float64{"meter_rental": 0.1},
		ElectricityTaxPct: 5,
		VATPct:            20,
		InjectionPrice:    0.05,
	}

	// ten days into a thirty day month
	now := mustParseTime("2024-04-11T00:00:00+01:00")
	p := Project(now, PartialMonth{FlatCost: 30, IndexedCost: 20, ExportKWh: 100}, charges)

	assert.Equal(t, 30, p.DaysInMonth)
	assert.InDelta(t, 10.0, p.DaysElapsed, 1e-9)
	assert.InDelta(t, 3.0, p.Ratio, 1e-9)

	assert.InDelta(t, 90.0, p.Fixed.Energy, 1e-9)
	assert.InDelta(t, 60.0, p.Indexed.Energy, 1e-9)
	assert.InDelta(t, 30.0, p.Fixed.Power, 1e-9)
	assert.InDelta(t, 3.0, p.Fixed.FixedCharges, 1e-9)
	assert.InDelta(t, 15.0, p.Fixed.Compensation, 1e-9)

	// fixed: tax 6.00, subtotal 129.00, VAT 25.80, total 154.80, net 139.80
	assert.InDelta(t, 139.80, p.Fixed.Net, 1e-9)
	// indexed: tax 4.50, subtotal 97.50, VAT 19.50, total 117.00, net 102.00
	assert.InDelta(t, 102.00, p.Indexed.Net, 1e-9)

	assert.InDelta(t, 37.80, p.MonthlyDifference, 1e-9)
	assert.InDelta(t, 1677.60, p.AnnualFixed, 1e-9)
	assert.InDelta(t, 1224.00, p.AnnualIndexed, 1e-9)
	assert.InDelta(t, 453.60, p.AnnualSaving, 1e-9)
}

func TestProjectEarlyInMonth(t *testing.T) {
	// ten minutes into the month the elapsed time is floored at half a day
	now := mustParseTime("2024-04-01T00:10:00+01:00")
	p := Project(now, PartialMonth{IndexedCost: 0.1}, Charges{})

	assert.InDelta(t, 60.0, p.Ratio, 1e-9)
	assert.InDelta(t, 6.0, p.Indexed.Energy, 1e-9)
}

func TestMonthlyEnergyCost(t *testing.T) {
	regulated := tariff.IndexedRates{
		Tolls:   map[tariff.Period]float64{tariff.P1: 0.03, tariff.P6: 0.001},
		Charges: map[tariff.Period]float64{tariff.P1: 0.04, tariff.P6: 0.002},
	}
	market := map[tariff.Period]float64{tariff.P1: 0.08, tariff.P6: 0.03}
	mix := Mix{tariff.P1: 50, tariff.P6: 50}

	fixed := Offer{Name: "Fixed", Kind: OfferFixed, EnergyRates: tariff.FlatRates{tariff.P1: 0.2, tariff.P6: 0.1}}
	assert.InDelta(t, 150.0, fixed.MonthlyEnergyCost(1000, mix, market, regulated), 1e-9)

	indexed := Offer{Name: "Indexed", Kind: OfferIndexed, Margin: 0.01}
	// 500 kWh at 0.16 plus 500 kWh at 0.043
	assert.InDelta(t, 101.5, indexed.MonthlyEnergyCost(1000, mix, market, regulated), 1e-9)
}

func TestScenariosAddUp(t *testing.T) {
	for name, mix := range Scenarios {
		total := 0.0
		for _, pct := range mix {
			total += pct
		}
		assert.Equal(t, 100.0, total, name)
		assert.Len(t, mix, len(tariff.Periods), name)
	}
}

func TestOfferValidate(t *testing.T) {
	assert.NoError(t, Offer{Name: "Indexed", Kind: OfferIndexed}.Validate())
	assert.ErrorContains(t, Offer{Name: "Fixed", Kind: OfferFixed, EnergyRates: tariff.FlatRates{tariff.P1: 0.2}}.Validate(), "no rate for P2")
	assert.ErrorContains(t, Offer{Name: "Odd", Kind: "tiered"}.Validate(), "unknown kind")
	assert.Error(t, Offer{Kind: OfferIndexed}.Validate())
}

func TestWritePDF(t *testing.T) {
	p := Project(mustParseTime("2024-04-11T00:00:00+01:00"), PartialMonth{FlatCost: 30, IndexedCost: 20}, Charges{VATPct: 21})

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, "April 2024", p))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func mustParseTime(str string) time.Time {
	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		panic(err)
	}
	return t
}
