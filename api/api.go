package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cepro/solarmonitor/billing"
	"github.com/cepro/solarmonitor/rates"
	"github.com/cepro/solarmonitor/report"
	"github.com/cepro/solarmonitor/repository"
)

const (
	ViewsPath  = "/api/v1/views/"
	OffersPath = "/api/v1/offers"
	RatesPath  = "/api/v1/rates"

	reloadSuffix = "/reload"
	maxBodyBytes = 1 << 20
)

// Register adds every handler to the mux.
func Register(mux *http.ServeMux, reporter *report.Reporter, offers OfferStore, ratesStore *rates.Store) {
	views := NewViewsHandler(reporter)
	offersHandler := NewOffersHandler(offers)
	ratesHandler := NewRatesHandler(ratesStore)

	mux.Handle(ViewsPath, views)
	mux.Handle(OffersPath, offersHandler)
	mux.Handle(OffersPath+"/", offersHandler)
	mux.Handle(RatesPath, ratesHandler)
	mux.Handle(RatesPath+reloadSuffix, ratesHandler)
}

// ViewsHandler serves the report views as JSON.
type ViewsHandler struct {
	reporter *report.Reporter
	now      func() time.Time
}

func NewViewsHandler(reporter *report.Reporter) *ViewsHandler {
	return &ViewsHandler{reporter: reporter, now: time.Now}
}

// ServeHTTP handles GET /api/v1/views/{economics,energy,market,bill,inverters,comparison,historic}. The historic view
// takes a `range` query parameter, 7d by default.
func (h *ViewsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	now := h.now()

	var view any
	var err error
	switch strings.TrimPrefix(r.URL.Path, ViewsPath) {
	case "economics":
		view, err = h.reporter.Economics(ctx, now)
	case "energy":
		view, err = h.reporter.Energy(ctx, now)
	case "market":
		view, err = h.reporter.Market(ctx, now)
	case "bill":
		view, err = h.reporter.Bill(ctx, now)
	case "inverters":
		view, err = h.reporter.Inverters(ctx, now)
	case "comparison":
		view, err = h.reporter.Comparison(ctx, now)
	case "historic":
		view, err = h.historic(ctx, r, now)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ViewsHandler) historic(ctx context.Context, r *http.Request, now time.Time) (any, error) {
	name := r.URL.Query().Get("range")
	if name == "" {
		name = string(report.Range7d)
	}
	rng, err := report.ParseRange(name)
	if err != nil {
		return nil, badRequest{err}
	}
	return h.reporter.Historic(ctx, now, rng)
}

// OfferStore persists supplier offers.
type OfferStore interface {
	ListOffers() ([]billing.Offer, error)
	AddOffer(offer billing.Offer) (billing.Offer, error)
	UpdateOffer(id string, offer billing.Offer) (billing.Offer, error)
	DeleteOffer(id string) error
}

// OffersHandler manages the supplier offers that the comparison view prices.
type OffersHandler struct {
	store OfferStore
}

func NewOffersHandler(store OfferStore) *OffersHandler {
	return &OffersHandler{store: store}
}

// ServeHTTP handles GET and POST on /api/v1/offers, and PUT and DELETE on /api/v1/offers/{id}.
func (h *OffersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, OffersPath), "/")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			offers, err := h.store.ListOffers()
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, offers)
		case http.MethodPost:
			offer, ok := decodeOffer(w, r)
			if !ok {
				return
			}
			added, err := h.store.AddOffer(offer)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, added)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodPut:
		offer, ok := decodeOffer(w, r)
		if !ok {
			return
		}
		updated, err := h.store.UpdateOffer(id, offer)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := h.store.DeleteOffer(id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// decodeOffer reads and validates an offer from the request body, answering the request itself when it cannot.
func decodeOffer(w http.ResponseWriter, r *http.Request) (billing.Offer, bool) {
	var offer billing.Offer
	if err := decodeBody(w, r, &offer); err != nil {
		writeError(w, err)
		return billing.Offer{}, false
	}
	if err := offer.Validate(); err != nil {
		writeError(w, badRequest{err})
		return billing.Offer{}, false
	}
	return offer, true
}

// RatesHandler reads and replaces the rate configuration.
type RatesHandler struct {
	store *rates.Store
}

func NewRatesHandler(store *rates.Store) *RatesHandler {
	return &RatesHandler{store: store}
}

// ServeHTTP handles GET and PUT on /api/v1/rates, and POST on /api/v1/rates/reload to pick up a file edited by hand.
func (h *RatesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, reloadSuffix) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.store.Invalidate()
		h.writeCurrent(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.writeCurrent(w)
	case http.MethodPut:
		var cfg rates.Config
		if err := decodeBody(w, r, &cfg); err != nil {
			writeError(w, err)
			return
		}
		check := cfg.Clone()
		check.Normalize()
		if err := check.Validate(); err != nil {
			writeError(w, badRequest{err})
			return
		}
		saved, err := h.store.Save(cfg)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *RatesHandler) writeCurrent(w http.ResponseWriter) {
	cfg, err := h.store.Get()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// badRequest marks an error caused by the request rather than the server.
type badRequest struct {
	err error
}

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return badRequest{err}
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrOfferNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, rates.ErrIncomplete):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("Failed to serve request", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
