package repository

import (
	"errors"
	"fmt"

	"github.com/cepro/solarmonitor/billing"
	"github.com/google/uuid"
)

// ErrOfferNotFound is returned when an offer id does not exist.
var ErrOfferNotFound = errors.New("offer not found")

func (r *Repository) ListOffers() ([]billing.Offer, error) {
	var stored []StoredOffer
	result := r.db.Order("created_at asc").Find(&stored)
	if result.Error != nil {
		return nil, fmt.Errorf("list offers: %w", result.Error)
	}

	offers := make([]billing.Offer, 0, len(stored))
	for _, s := range stored {
		offers = append(offers, s.Offer())
	}
	return offers, nil
}

// AddOffer stores a new offer, assigning a short id if it has none.
func (r *Repository) AddOffer(offer billing.Offer) (billing.Offer, error) {
	if err := offer.Validate(); err != nil {
		return billing.Offer{}, err
	}
	if offer.ID == "" {
		offer.ID = uuid.New().String()[:8]
	}

	result := r.db.Create(newStoredOffer(offer))
	if result.Error != nil {
		return billing.Offer{}, fmt.Errorf("add offer: %w", result.Error)
	}
	return offer, nil
}

// UpdateOffer replaces the offer with the given id. The id itself never changes.
func (r *Repository) UpdateOffer(id string, offer billing.Offer) (billing.Offer, error) {
	offer.ID = id
	if err := offer.Validate(); err != nil {
		return billing.Offer{}, err
	}

	stored := newStoredOffer(offer)
	result := r.db.Model(&StoredOffer{ID: id}).
		Select("Name", "Kind", "EnergyRates", "Margin", "Notes").
		Updates(&stored)
	if result.Error != nil {
		return billing.Offer{}, fmt.Errorf("update offer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return billing.Offer{}, fmt.Errorf("update offer '%s': %w", id, ErrOfferNotFound)
	}
	return offer, nil
}

// DeleteOffer removes the offer with the given id.
func (r *Repository) DeleteOffer(id string) error {
	result := r.db.Delete(&StoredOffer{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete offer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete offer '%s': %w", id, ErrOfferNotFound)
	}
	return nil
}
