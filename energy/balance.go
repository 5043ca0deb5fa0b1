package energy

import "math"

// Balance is a self-consistent account of the energy flows over a range, in kWh.
//
// Generation = SelfConsumption + Export and Consumption = SelfConsumption + Import hold by construction.
type Balance struct {
	Generation      float64
	Import          float64
	Export          float64
	SelfConsumption float64
	Consumption     float64
}

// NewBalance reconciles independently measured generation, import and export. When the sources disagree such that
// export exceeds generation, self-consumption is clamped to zero and generation is raised to match the export.
func NewBalance(generation, imported, exported float64) Balance {
	self := max(generation-exported, 0)
	return Balance{
		Generation:      self + exported,
		Import:          imported,
		Export:          exported,
		SelfConsumption: self,
		Consumption:     self + imported,
	}
}

// SelfConsumptionRate is the percentage of generation consumed on site, rounded to one decimal place. It is zero when
// nothing was generated.
func (b Balance) SelfConsumptionRate() float64 {
	if b.Generation <= 0 {
		return 0
	}
	return math.Round(b.SelfConsumption/b.Generation*1000) / 10
}
