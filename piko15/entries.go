package piko15

import (
	"fmt"

	"github.com/cepro/solarmonitor/telemetry"
)

// entry maps a dxs id to the field it is stored under.
type entry struct {
	ID    int
	Field string
	Kind  telemetry.Kind
}

var entries = []entry{
	{67109120, "ac_power_total", telemetry.Float},
	{33556736, "dc_power_total", telemetry.Float},
	{33555203, "dc_power_string1", telemetry.Float},
	{33555459, "dc_power_string2", telemetry.Float},
	{33555715, "dc_power_string3", telemetry.Float},
	{33555202, "dc_voltage_string1", telemetry.Float},
	{33555458, "dc_voltage_string2", telemetry.Float},
	{33555714, "dc_voltage_string3", telemetry.Float},
	{33555201, "dc_current_string1", telemetry.Float},
	{33555457, "dc_current_string2", telemetry.Float},
	{33555713, "dc_current_string3", telemetry.Float},
	{67109379, "ac_power_l1", telemetry.Float},
	{67109635, "ac_power_l2", telemetry.Float},
	{67109891, "ac_power_l3", telemetry.Float},
	{67109378, "ac_voltage_l1", telemetry.Float},
	{67109634, "ac_voltage_l2", telemetry.Float},
	{67109890, "ac_voltage_l3", telemetry.Float},
	{67110400, "grid_frequency", telemetry.Float},
	{251658753, "yield_total", telemetry.Float},
	{251658754, "yield_daily", telemetry.Float},
	{251658496, "operating_hours", telemetry.Float},
	{16780032, "status", telemetry.Enum},
	{251659010, "home_consumption_daily", telemetry.Float},
	{251659266, "self_consumption_daily", telemetry.Float},
	{251659278, "self_consumption_rate_daily", telemetry.Float},
}

// entriesByID is built, and the table checked, when the package loads.
var entriesByID = mustIndexEntries(entries)

func mustIndexEntries(entries []entry) map[int]entry {
	index, err := indexEntries(entries)
	if err != nil {
		panic(err)
	}
	return index
}

func indexEntries(entries []entry) (map[int]entry, error) {
	index := make(map[int]entry, len(entries))
	fields := make(map[string]bool, len(entries))
	for _, e := range entries {
		if _, exists := index[e.ID]; exists {
			return nil, fmt.Errorf("duplicate dxs id %d", e.ID)
		}
		if fields[e.Field] {
			return nil, fmt.Errorf("duplicate field '%s'", e.Field)
		}
		index[e.ID] = e
		fields[e.Field] = true
	}
	return index, nil
}
