package pikoci

import "github.com/cepro/solarmonitor/modbusaccess"

// floatRegisters are the proprietary float32 holding registers, each read on its own.
var floatRegisters = map[string]modbusaccess.Register{
	"dc_power_total":     {StartAddr: 100, DataType: modbusaccess.Float32Type},
	"grid_frequency":     {StartAddr: 152, DataType: modbusaccess.Float32Type},
	"ac_current_l1":      {StartAddr: 154, DataType: modbusaccess.Float32Type},
	"ac_power_l1":        {StartAddr: 156, DataType: modbusaccess.Float32Type},
	"ac_voltage_l1":      {StartAddr: 158, DataType: modbusaccess.Float32Type},
	"ac_current_l2":      {StartAddr: 160, DataType: modbusaccess.Float32Type},
	"ac_power_l2":        {StartAddr: 162, DataType: modbusaccess.Float32Type},
	"ac_voltage_l2":      {StartAddr: 164, DataType: modbusaccess.Float32Type},
	"ac_current_l3":      {StartAddr: 166, DataType: modbusaccess.Float32Type},
	"ac_power_l3":        {StartAddr: 168, DataType: modbusaccess.Float32Type},
	"ac_voltage_l3":      {StartAddr: 170, DataType: modbusaccess.Float32Type},
	"ac_power_total":     {StartAddr: 172, DataType: modbusaccess.Float32Type},
	"dc_voltage_string1": {StartAddr: 266, DataType: modbusaccess.Float32Type},
	"dc_current_string1": {StartAddr: 268, DataType: modbusaccess.Float32Type},
	"dc_power_string1":   {StartAddr: 270, DataType: modbusaccess.Float32Type},
	"dc_voltage_string2": {StartAddr: 276, DataType: modbusaccess.Float32Type},
	"dc_current_string2": {StartAddr: 278, DataType: modbusaccess.Float32Type},
	"dc_power_string2":   {StartAddr: 280, DataType: modbusaccess.Float32Type},
	"dc_voltage_string3": {StartAddr: 286, DataType: modbusaccess.Float32Type},
	"dc_current_string3": {StartAddr: 288, DataType: modbusaccess.Float32Type},
	"dc_power_string3":   {StartAddr: 290, DataType: modbusaccess.Float32Type},
	"dc_voltage_string4": {StartAddr: 296, DataType: modbusaccess.Float32Type},
	"dc_current_string4": {StartAddr: 298, DataType: modbusaccess.Float32Type},
	"dc_power_string4":   {StartAddr: 300, DataType: modbusaccess.Float32Type},
}

var statusRegister = modbusaccess.Register{StartAddr: 56, DataType: modbusaccess.EnumType}

// lifetimeEnergyBlock is the SunSpec inverter model's lifetime AC energy (acc32 in Wh) and its scale factor.
var lifetimeEnergyBlock = modbusaccess.RegisterBlock{
	Name:         "LifetimeEnergy",
	StartAddr:    40092,
	NumRegisters: 3,
	Registers: map[string]modbusaccess.Register{
		"yield_total": {
			StartAddr:   40092,
			DataType:    modbusaccess.SunspecUint32Type,
			ScaleFactor: "WH_SF",
			ScalingFunc: modbusaccess.KiloFromBase,
		},
	},
	ScaleFactors: map[string]uint16{
		"WH_SF": 40094,
	},
}
