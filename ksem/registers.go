package ksem

import "github.com/cepro/solarmonitor/modbusaccess"

// model203Length is the number of registers read per poll: the SunSpec model 203 (three phase wye meter) data
// registers from total current up to and including the energy scale factor.
const model203Length = 53

// Offsets of the scale factor registers from the start of the model 203 data.
const (
	offsetCurrentSF     = 4
	offsetVoltageSF     = 13
	offsetFrequencySF   = 15
	offsetPowerSF       = 20
	offsetPowerFactorSF = 35
	offsetEnergySF      = 52
)

// model203Block returns the register block for a model 203 whose data (the register after ID and L) starts at `base`.
func model203Block(base uint16) modbusaccess.RegisterBlock {

	scaled := func(offset uint16, dataType modbusaccess.Type, sf string) modbusaccess.Register {
		return modbusaccess.Register{StartAddr: base + offset, DataType: dataType, ScaleFactor: sf}
	}

	registers := map[string]modbusaccess.Register{
		"current_total": scaled(0, modbusaccess.SunspecInt16Type, "A_SF"),
		"current_l1":    scaled(1, modbusaccess.SunspecInt16Type, "A_SF"),
		"current_l2":    scaled(2, modbusaccess.SunspecInt16Type, "A_SF"),
		"current_l3":    scaled(3, modbusaccess.SunspecInt16Type, "A_SF"),

		"voltage_ln": scaled(5, modbusaccess.SunspecInt16Type, "V_SF"),
		"voltage_l1": scaled(6, modbusaccess.SunspecInt16Type, "V_SF"),
		"voltage_l2": scaled(7, modbusaccess.SunspecInt16Type, "V_SF"),
		"voltage_l3": scaled(8, modbusaccess.SunspecInt16Type, "V_SF"),
		"voltage_ll": scaled(9, modbusaccess.SunspecInt16Type, "V_SF"),

		"frequency": scaled(14, modbusaccess.SunspecInt16Type, "Hz_SF"),

		// positive when importing from the grid
		"active_power_total": scaled(16, modbusaccess.SunspecInt16Type, "W_SF"),
		"active_power_l1":    scaled(17, modbusaccess.SunspecInt16Type, "W_SF"),
		"active_power_l2":    scaled(18, modbusaccess.SunspecInt16Type, "W_SF"),
		"active_power_l3":    scaled(19, modbusaccess.SunspecInt16Type, "W_SF"),
	}

	powerFactor := scaled(31, modbusaccess.SunspecInt16Type, "PF_SF")
	powerFactor.ScalingFunc = modbusaccess.RatioFromPercent
	registers["power_factor"] = powerFactor

	exported := scaled(36, modbusaccess.SunspecUint32Type, "TotWh_SF")
	exported.ScalingFunc = modbusaccess.KiloFromBase
	registers["energy_export_total"] = exported

	imported := scaled(44, modbusaccess.SunspecUint32Type, "TotWh_SF")
	imported.ScalingFunc = modbusaccess.KiloFromBase
	registers["energy_import_total"] = imported

	return modbusaccess.RegisterBlock{
		Name:         "Model203",
		StartAddr:    base,
		NumRegisters: model203Length,
		Registers:    registers,
		ScaleFactors: map[string]uint16{
			"A_SF":     base + offsetCurrentSF,
			"V_SF":     base + offsetVoltageSF,
			"Hz_SF":    base + offsetFrequencySF,
			"W_SF":     base + offsetPowerSF,
			"PF_SF":    base + offsetPowerFactorSF,
			"TotWh_SF": base + offsetEnergySF,
		},
	}
}
