package report

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cepro/solarmonitor/energy"
	"github.com/cepro/solarmonitor/telemetry"
	"github.com/mitchellh/mapstructure"
)

// Inverter operating states.
const (
	StatusOff      = 0
	StatusIdle     = 1
	StatusStarting = 2
	StatusMPP      = 3
	StatusDerated  = 4
	StatusError    = 5
)

var statusText = map[int]string{
	StatusOff:      "Off",
	StatusIdle:     "Idle",
	StatusStarting: "Starting",
	StatusMPP:      "MPP (producing)",
	StatusDerated:  "Derated",
	StatusError:    "Error",
}

// StatusText describes an inverter status code.
func StatusText(status int) string {
	text, ok := statusText[status]
	if !ok {
		return fmt.Sprintf("Unknown (%d)", status)
	}
	return text
}

type InverterState struct {
	Status   int
	Text     string
	PowerW   float64
	PowerPct float64 // of rated power
}

type Phase struct {
	Voltage float64
	Current float64
	Power   float64
}

// Inverters is the live state of each inverter and of the grid connection.
type Inverters struct {
	Devices     map[string]InverterState
	FrequencyHz float64
	Phases      map[string]Phase // by "l1", "l2", "l3"
}

type inverterValues struct {
	Status float64 `mapstructure:"status"`
	Power  float64 `mapstructure:"ac_power_total"`
}

type meterValues struct {
	Frequency float64 `mapstructure:"frequency"`
	VoltageL1 float64 `mapstructure:"voltage_l1"`
	VoltageL2 float64 `mapstructure:"voltage_l2"`
	VoltageL3 float64 `mapstructure:"voltage_l3"`
	CurrentL1 float64 `mapstructure:"current_l1"`
	CurrentL2 float64 `mapstructure:"current_l2"`
	CurrentL3 float64 `mapstructure:"current_l3"`
	PowerL1   float64 `mapstructure:"active_power_l1"`
	PowerL2   float64 `mapstructure:"active_power_l2"`
	PowerL3   float64 `mapstructure:"active_power_l3"`
}

var meterFields = []string{
	"frequency",
	"voltage_l1", "voltage_l2", "voltage_l3",
	"current_l1", "current_l2", "current_l3",
	"active_power_l1", "active_power_l2", "active_power_l3",
}

// Inverters reports every inverter that has a rated power configured. Values not seen within the last few minutes
// read as zero.
func (r *Reporter) Inverters(ctx context.Context, now time.Time) (Inverters, error) {
	devices := make([]string, 0, len(r.settings.RatedPowerW))
	for device := range r.settings.RatedPowerW {
		devices = append(devices, device)
	}
	slices.Sort(devices)

	out := Inverters{
		Devices: make(map[string]InverterState, len(devices)),
	}

	for _, device := range devices {
		values, err := r.latestValues(ctx, telemetry.MeasurementInverter, device, []string{"status", energy.FieldACPower}, now)
		if err != nil {
			return Inverters{}, err
		}
		var inverter inverterValues
		err = mapstructure.Decode(values, &inverter)
		if err != nil {
			return Inverters{}, fmt.Errorf("decode %s values: %w", device, err)
		}
		out.Devices[device] = inverterState(inverter, r.settings.RatedPowerW[device])
	}

	values, err := r.latestValues(ctx, telemetry.MeasurementMeter, telemetry.DeviceKsem, meterFields, now)
	if err != nil {
		return Inverters{}, err
	}
	var meter meterValues
	err = mapstructure.Decode(values, &meter)
	if err != nil {
		return Inverters{}, fmt.Errorf("decode meter values: %w", err)
	}

	out.FrequencyHz = round(meter.Frequency, 2)
	out.Phases = map[string]Phase{
		"l1": newPhase(meter.VoltageL1, meter.CurrentL1, meter.PowerL1),
		"l2": newPhase(meter.VoltageL2, meter.CurrentL2, meter.PowerL2),
		"l3": newPhase(meter.VoltageL3, meter.CurrentL3, meter.PowerL3),
	}
	return out, nil
}

// inverterState derives the displayed state. Some inverters report status 0 while producing, so production overrides
// an "off" status.
func inverterState(v inverterValues, ratedW float64) InverterState {
	status := int(v.Status)
	if status == StatusOff && v.Power > 0 {
		status = StatusMPP
	}
	pct := 0.0
	if ratedW > 0 {
		pct = round(v.Power/ratedW*100, 1)
	}
	return InverterState{
		Status:   status,
		Text:     StatusText(status),
		PowerW:   round(v.Power, 0),
		PowerPct: pct,
	}
}

func newPhase(voltage, current, power float64) Phase {
	return Phase{
		Voltage: round(voltage, 1),
		Current: round(current, 1),
		Power:   round(power, 0),
	}
}

// latestValues collects the last value of each field of a single device into a map keyed by field name.
func (r *Reporter) latestValues(ctx context.Context, measurement, device string, fields []string, now time.Time) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		latest, err := r.latest(ctx, measurement, device, field, now)
		if err != nil {
			return nil, err
		}
		if v, ok := latest[device]; ok {
			values[field] = v
		}
	}
	return values, nil
}
