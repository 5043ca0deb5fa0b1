package report

import (
	"context"
	"fmt"
	"time"

	"github.com/cepro/solarmonitor/billing"
	"github.com/cepro/solarmonitor/energy"
	"github.com/cepro/solarmonitor/telemetry"
	timeutils "github.com/cepro/solarmonitor/time_utils"
)

// Economics values the plant's output for today and the month so far. Money is in EUR rounded to the cent, energy in
// kWh rounded to one decimal place.
type Economics struct {
	SavingsToday            float64 // self-consumed energy at the effective rate
	SelfConsumptionKWhToday float64
	InjectionIncomeToday    float64
	ExportKWhToday          float64
	TotalBenefitToday       float64
	ImportedKWhToday        float64
	ConsumedKWhToday        float64

	SavingsMonth         float64
	InjectionIncomeMonth float64
	MonthlyBenefit       float64

	// EffectiveCostKWh is what each kWh consumed today cost once solar is accounted for, in EUR/kWh.
	EffectiveCostKWh float64

	CO2AvoidedKgToday float64
	CO2AvoidedKgMonth float64
}

func (r *Reporter) Economics(ctx context.Context, now time.Time) (Economics, error) {
	cfg, err := r.rates.Get()
	if err != nil {
		return Economics{}, fmt.Errorf("get rates: %w", err)
	}
	rate := cfg.Energy.EffectiveRate
	injection := cfg.Injection.Price

	today, err := r.reconciler.Balance(ctx, timeutils.Since(timeutils.StartOfDay(now), now))
	if err != nil {
		return Economics{}, fmt.Errorf("balance today: %w", err)
	}
	month, err := r.reconciler.Balance(ctx, timeutils.Since(timeutils.StartOfMonth(now), now))
	if err != nil {
		return Economics{}, fmt.Errorf("balance month: %w", err)
	}

	e := Economics{
		SavingsToday:            billing.Round2(today.SelfConsumption * rate),
		SelfConsumptionKWhToday: round(today.SelfConsumption, 1),
		InjectionIncomeToday:    billing.Round2(today.Export * injection),
		ExportKWhToday:          round(today.Export, 1),
		ImportedKWhToday:        round(today.Import, 1),
		ConsumedKWhToday:        round(today.Consumption, 1),

		SavingsMonth:         billing.Round2(month.SelfConsumption * rate),
		InjectionIncomeMonth: billing.Round2(month.Export * injection),

		CO2AvoidedKgToday: round(today.Generation*r.settings.CO2FactorKgPerKWh, 1),
		CO2AvoidedKgMonth: round(month.Generation*r.settings.CO2FactorKgPerKWh, 1),
	}
	e.TotalBenefitToday = billing.Round2(e.SavingsToday + e.InjectionIncomeToday)
	e.MonthlyBenefit = billing.Round2(e.SavingsMonth + e.InjectionIncomeMonth)
	if today.Consumption > 0 {
		e.EffectiveCostKWh = round(today.Import*rate/today.Consumption, 4)
	}
	return e, nil
}

// Energy is the live state of the plant plus today's power curves (W, one point per minute).
type Energy struct {
	PlantPowerW         float64
	GridFlowW           float64 // positive when importing
	ConsumptionW        float64 // never negative
	SelfConsumptionRate float64 // percent of today's generation
	YieldTodayKWh       float64

	Generation  []telemetry.Sample
	Grid        []telemetry.Sample
	Consumption []telemetry.Sample
}

func (r *Reporter) Energy(ctx context.Context, now time.Time) (Energy, error) {
	plant, err := r.latest(ctx, telemetry.MeasurementInverter, "", energy.FieldACPower, now)
	if err != nil {
		return Energy{}, err
	}
	grid, err := r.latest(ctx, telemetry.MeasurementMeter, telemetry.DeviceKsem, energy.FieldGridPower, now)
	if err != nil {
		return Energy{}, err
	}

	plantW := 0.0
	for _, w := range plant {
		plantW += w
	}
	gridW := grid[telemetry.DeviceKsem]

	today := timeutils.Since(timeutils.StartOfDay(now), now)
	balance, err := r.reconciler.Balance(ctx, today)
	if err != nil {
		return Energy{}, fmt.Errorf("balance today: %w", err)
	}

	generation, err := r.store.Query(ctx, telemetry.Query{
		Measurement: telemetry.MeasurementInverter,
		Field:       energy.FieldACPower,
		Period:      today,
		Window:      time.Minute,
		Fn:          telemetry.Mean,
	})
	if err != nil {
		return Energy{}, fmt.Errorf("query generation curve: %w", err)
	}
	gridCurve, err := r.store.Query(ctx, telemetry.Query{
		Measurement: telemetry.MeasurementMeter,
		Device:      telemetry.DeviceKsem,
		Field:       energy.FieldGridPower,
		Period:      today,
		Window:      time.Minute,
		Fn:          telemetry.Mean,
	})
	if err != nil {
		return Energy{}, fmt.Errorf("query grid curve: %w", err)
	}
	generationCurve := telemetry.SumByTime(generation)

	return Energy{
		PlantPowerW:         round(plantW, 0),
		GridFlowW:           round(gridW, 0),
		ConsumptionW:        round(max(energy.LiveConsumption(plantW, gridW), 0), 0),
		SelfConsumptionRate: balance.SelfConsumptionRate(),
		YieldTodayKWh:       round(balance.Generation, 1),
		Generation:          generationCurve,
		Grid:                gridCurve,
		Consumption:         consumptionCurve(generationCurve, gridCurve),
	}, nil
}

// consumptionCurve adds generation and grid flow at every minute present in either curve.
func consumptionCurve(generation, grid []telemetry.Sample) []telemetry.Sample {
	combined := make([]telemetry.Sample, 0, len(generation)+len(grid))
	for _, s := range generation {
		combined = append(combined, telemetry.Sample{Time: s.Time, Value: s.Value})
	}
	for _, s := range grid {
		combined = append(combined, telemetry.Sample{Time: s.Time, Value: s.Value})
	}
	curve := telemetry.SumByTime(combined)
	for i := range curve {
		curve[i].Value = round(curve[i].Value, 2)
	}
	return curve
}
