package energy

import (
	"context"
	"fmt"
	"time"

	"github.com/cepro/solarmonitor/telemetry"
	timeutils "github.com/cepro/solarmonitor/time_utils"
)

// Field names of the stored series that the reconciler reads.
const (
	FieldACPower      = "ac_power_total"
	FieldImportEnergy = "energy_import_total"
	FieldExportEnergy = "energy_export_total"
	FieldGridPower    = "active_power_total"
)

// Reconciler derives energy totals from the time-series store. It holds no state of its own and is safe for concurrent
// use.
type Reconciler struct {
	store telemetry.Querier
}

func NewReconciler(store telemetry.Querier) *Reconciler {
	return &Reconciler{store: store}
}

// GenerationKWh returns the energy produced by all inverters over the period.
func (r *Reconciler) GenerationKWh(ctx context.Context, period timeutils.Period) (float64, error) {
	samples, err := r.store.Query(ctx, telemetry.Query{
		Measurement: telemetry.MeasurementInverter,
		Field:       FieldACPower,
		Period:      period,
	})
	if err != nil {
		return 0, fmt.Errorf("query inverter power: %w", err)
	}
	return GenerationKWh(samples), nil
}

// HourlyImports returns the plausible hourly import deltas over the period, labelled by the start of each hour.
func (r *Reconciler) HourlyImports(ctx context.Context, period timeutils.Period) ([]telemetry.Sample, error) {
	return r.hourlyDeltas(ctx, FieldImportEnergy, period)
}

// HourlyExports returns the plausible hourly export deltas over the period, labelled by the start of each hour.
func (r *Reconciler) HourlyExports(ctx context.Context, period timeutils.Period) ([]telemetry.Sample, error) {
	return r.hourlyDeltas(ctx, FieldExportEnergy, period)
}

func (r *Reconciler) hourlyDeltas(ctx context.Context, field string, period timeutils.Period) ([]telemetry.Sample, error) {
	deltas, err := r.store.Query(ctx, telemetry.Query{
		Measurement: telemetry.MeasurementMeter,
		Device:      telemetry.DeviceKsem,
		Field:       field,
		Period:      period,
		Window:      time.Hour,
		Fn:          telemetry.Spread,
	})
	if err != nil {
		return nil, fmt.Errorf("query hourly %s: %w", field, err)
	}
	return ValidDeltas(deltas), nil
}

// Balance reconciles generation, import and export over the period.
func (r *Reconciler) Balance(ctx context.Context, period timeutils.Period) (Balance, error) {
	generation, err := r.GenerationKWh(ctx, period)
	if err != nil {
		return Balance{}, err
	}
	imports, err := r.HourlyImports(ctx, period)
	if err != nil {
		return Balance{}, err
	}
	exports, err := r.HourlyExports(ctx, period)
	if err != nil {
		return Balance{}, err
	}
	return NewBalance(generation, CounterKWh(imports), CounterKWh(exports)), nil
}
