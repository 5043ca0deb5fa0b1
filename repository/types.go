package repository

import (
	"time"

	"github.com/cepro/solarmonitor/billing"
	"github.com/cepro/solarmonitor/tariff"
	"github.com/google/uuid"
)

// StoredPoint is a single field value persisted to the SQLite database. It also tracks whether the value has been
// replicated upstream.
type StoredPoint struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	Measurement        string    `gorm:"index:idx_series,priority:1"`
	Field              string    `gorm:"index:idx_series,priority:2"`
	Device             string    `gorm:"index:idx_series,priority:3"`
	Time               time.Time `gorm:"index:idx_series,priority:4"` // always UTC
	Value              float64
	UploadAttemptCount uint `gorm:"index"`
	Uploaded           bool `gorm:"index"`
}

// StoredOffer is a supplier offer kept for the comparison report.
type StoredOffer struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	Kind        string
	EnergyRates tariff.FlatRates `gorm:"serializer:json"`
	Margin      float64
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func newStoredOffer(offer billing.Offer) StoredOffer {
	return StoredOffer{
		ID:          offer.ID,
		Name:        offer.Name,
		Kind:        string(offer.Kind),
		EnergyRates: offer.EnergyRates,
		Margin:      offer.Margin,
		Notes:       offer.Notes,
	}
}

// Offer converts back to the billing representation.
func (s StoredOffer) Offer() billing.Offer {
	return billing.Offer{
		ID:          s.ID,
		Name:        s.Name,
		Kind:        billing.OfferKind(s.Kind),
		EnergyRates: s.EnergyRates,
		Margin:      s.Margin,
		Notes:       s.Notes,
	}
}
