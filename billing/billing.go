package billing

import (
	"math"
	"time"

	"github.com/cepro/solarmonitor/tariff"
	timeutils "github.com/cepro/solarmonitor/time_utils"
)

// DefaultContractedKW is used for any period without a contracted power.
const DefaultContractedKW = 69.0

// minDaysElapsed stops the projection ratio from blowing up in the first hours of a month.
const minDaysElapsed = 0.5

// Charges holds the parts of a bill that do not depend on energy consumed.
type Charges struct {
	PowerRates        map[tariff.Period]float64 // EUR per kW per day
	ContractedKW      map[tariff.Period]float64
	FixedDaily        map[string]float64 // EUR per day, by item
	ElectricityTaxPct float64            // e.g. 5.11 for 5.11%
	VATPct            float64
	InjectionPrice    float64 // EUR/kWh paid for exported energy
}

// PowerCost returns the power term for `days` days, rounded to the cent.
func (c Charges) PowerCost(days int) float64 {
	total := 0.0
	for period, rate := range c.PowerRates {
		kw, ok := c.ContractedKW[period]
		if !ok {
			kw = DefaultContractedKW
		}
		total += rate * kw * float64(days)
	}
	return Round2(total)
}

// FixedCost returns the fixed daily charges for `days` days, rounded to the cent.
func (c Charges) FixedCost(days int) float64 {
	daily := 0.0
	for _, charge := range c.FixedDaily {
		daily += charge
	}
	return Round2(daily * float64(days))
}

// Bill is a cost breakdown in EUR. Subtotal = Energy + Power + ElectricityTax + FixedCharges and Total = Subtotal + VAT
// hold exactly at cent precision.
type Bill struct {
	Energy         float64
	Power          float64
	ElectricityTax float64
	FixedCharges   float64
	Subtotal       float64
	VAT            float64
	Total          float64
	Compensation   float64 // paid for exported energy
	Net            float64
}

// ComputeBill builds a bill from its energy cost and the deterministic charges for `days` days. The electricity tax
// applies to energy and power; VAT applies to the subtotal. Each component is rounded to the cent before it is summed.
func ComputeBill(energyCost float64, days int, exportKWh float64, charges Charges) Bill {
	energy := Round2(energyCost)
	power := charges.PowerCost(days)
	fixed := charges.FixedCost(days)

	tax := Round2((energy + power) * charges.ElectricityTaxPct / 100)
	subtotal := Round2(energy + power + tax + fixed)
	vat := Round2(subtotal * charges.VATPct / 100)
	total := Round2(subtotal + vat)
	compensation := Round2(exportKWh * charges.InjectionPrice)

	return Bill{
		Energy:         energy,
		Power:          power,
		ElectricityTax: tax,
		FixedCharges:   fixed,
		Subtotal:       subtotal,
		VAT:            vat,
		Total:          total,
		Compensation:   compensation,
		Net:            Round2(total - compensation),
	}
}

// PartialMonth is what has been measured so far in the current month.
type PartialMonth struct {
	FlatCost    float64 // EUR
	IndexedCost float64 // EUR
	ExportKWh   float64
}

// Projection extrapolates the current month to a full month under both tariffs.
type Projection struct {
	DaysElapsed float64
	DaysInMonth int
	Ratio       float64

	Fixed   Bill
	Indexed Bill

	MonthlyDifference float64 // fixed minus indexed net
	AnnualFixed       float64
	AnnualIndexed     float64
	AnnualSaving      float64 // saved per year by the indexed tariff, negative if it costs more
}

// DaysElapsed returns the whole days since the start of the month containing `now`, plus the fraction given by the
// current hour, on the tariff clock.
func DaysElapsed(now time.Time) float64 {
	now = now.In(timeutils.TariffZone)
	return float64(now.Day()-1) + float64(now.Hour())/24
}

// Project scales the month's energy costs and exports by days_in_month / days_elapsed and prices full-month bills.
// Power and fixed charges are already per day, so they are charged for the whole month rather than projected.
func Project(now time.Time, partial PartialMonth, charges Charges) Projection {
	daysInMonth := timeutils.DaysInMonth(now)
	daysElapsed := DaysElapsed(now)
	ratio := float64(daysInMonth) / max(daysElapsed, minDaysElapsed)

	exportKWh := partial.ExportKWh * ratio
	fixed := ComputeBill(partial.FlatCost*ratio, daysInMonth, exportKWh, charges)
	indexed := ComputeBill(partial.IndexedCost*ratio, daysInMonth, exportKWh, charges)

	annualFixed := Round2(fixed.Net * 12)
	annualIndexed := Round2(indexed.Net * 12)

	return Projection{
		DaysElapsed:       math.Round(daysElapsed*10) / 10,
		DaysInMonth:       daysInMonth,
		Ratio:             ratio,
		Fixed:             fixed,
		Indexed:           indexed,
		MonthlyDifference: Round2(fixed.Net - indexed.Net),
		AnnualFixed:       annualFixed,
		AnnualIndexed:     annualIndexed,
		AnnualSaving:      Round2(annualFixed - annualIndexed),
	}
}

// Round2 rounds to the cent.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
