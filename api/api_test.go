package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cepro/solarmonitor/billing"
	"github.com/cepro/solarmonitor/rates"
	"github.com/cepro/solarmonitor/report"
	"github.com/cepro/solarmonitor/repository"
	"github.com/cepro/solarmonitor/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	mux        *http.ServeMux
	repo       *repository.Repository
	ratesStore *rates.Store
	ratesPath  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	repo, err := repository.New(filepath.Join(dir, "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ratesPath := filepath.Join(dir, "pricing.json")
	ratesStore := rates.NewStore(ratesPath)
	reporter := report.New(repo, ratesStore, repo, report.Settings{
		RatedPowerW:       map[string]float64{telemetry.DevicePiko15: 15_000},
		CO2FactorKgPerKWh: 0.170,
	})

	mux := http.NewServeMux()
	Register(mux, reporter, repo, ratesStore)
	return fixture{mux: mux, repo: repo, ratesStore: ratesStore, ratesPath: ratesPath}
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestViews(t *testing.T) {
	f := newFixture(t)

	type subTest struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}

	subTests := []subTest{
		{"Economics", http.MethodGet, "/api/v1/views/economics", http.StatusOK},
		{"Energy", http.MethodGet, "/api/v1/views/energy", http.StatusOK},
		{"Inverters", http.MethodGet, "/api/v1/views/inverters", http.StatusOK},
		{"Comparison without indexed tariff", http.MethodGet, "/api/v1/views/comparison", http.StatusOK},
		{"Market without indexed tariff", http.MethodGet, "/api/v1/views/market", http.StatusConflict},
		{"Bill without indexed tariff", http.MethodGet, "/api/v1/views/bill", http.StatusConflict},
		{"Historic without indexed tariff", http.MethodGet, "/api/v1/views/historic?range=30d", http.StatusConflict},
		{"Unknown range", http.MethodGet, "/api/v1/views/historic?range=2w", http.StatusBadRequest},
		{"Unknown view", http.MethodGet, "/api/v1/views/weather", http.StatusNotFound},
		{"Wrong method", http.MethodPost, "/api/v1/views/economics", http.StatusMethodNotAllowed},
	}

	for _, st := range subTests {
		t.Run(st.name, func(t *testing.T) {
			rec := f.do(st.method, st.path, "")
			assert.Equal(t, st.expectedStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestInvertersView(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	require.NoError(t, f.repo.WritePoint(context.Background(), telemetry.Point{
		Measurement: telemetry.MeasurementInverter,
		Device:      telemetry.DevicePiko15,
		Time:        now.Add(-time.Minute),
		Fields:      map[string]float64{"status": 3, "ac_power_total": 7500},
	}))

	rec := f.do(http.MethodGet, "/api/v1/views/inverters", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var inverters report.Inverters
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inverters))
	state := inverters.Devices[telemetry.DevicePiko15]
	assert.Equal(t, "MPP (producing)", state.Text)
	assert.Equal(t, 7500.0, state.PowerW)
	assert.Equal(t, 50.0, state.PowerPct)
}

func TestOffers(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/offers", `{"name": "Indexed", "kind": "indexed", "margin_eur_kwh": 0.01}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added billing.Offer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	require.NotEmpty(t, added.ID)

	rec = f.do(http.MethodPut, "/api/v1/offers/"+added.ID, `{"name": "Indexed plus", "kind": "indexed", "margin_eur_kwh": 0.02}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	offers, err := f.repo.ListOffers()
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "Indexed plus", offers[0].Name)
	assert.Equal(t, 0.02, offers[0].Margin)

	rec = f.do(http.MethodGet, "/api/v1/offers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []billing.Offer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, added.ID, listed[0].ID)
	assert.Equal(t, "Indexed plus", listed[0].Name)

	rec = f.do(http.MethodDelete, "/api/v1/offers/"+added.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	offers, err = f.repo.ListOffers()
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestOffersErrors(t *testing.T) {
	f := newFixture(t)

	type subTest struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
	}

	subTests := []subTest{
		{"No name", http.MethodPost, "/api/v1/offers", `{"kind": "indexed"}`, http.StatusBadRequest},
		{"Fixed offer without rates", http.MethodPost, "/api/v1/offers", `{"name": "Fixed", "kind": "fixed"}`, http.StatusBadRequest},
		{"Not json", http.MethodPost, "/api/v1/offers", `{"name": `, http.StatusBadRequest},
		{"Unknown field", http.MethodPost, "/api/v1/offers", `{"name": "A", "kind": "indexed", "price": 1}`, http.StatusBadRequest},
		{"Update missing", http.MethodPut, "/api/v1/offers/missing", `{"name": "A", "kind": "indexed"}`, http.StatusNotFound},
		{"Delete missing", http.MethodDelete, "/api/v1/offers/missing", "", http.StatusNotFound},
		{"Delete collection", http.MethodDelete, "/api/v1/offers", "", http.StatusMethodNotAllowed},
		{"Post to an offer", http.MethodPost, "/api/v1/offers/abc", `{}`, http.StatusMethodNotAllowed},
	}

	for _, st := range subTests {
		t.Run(st.name, func(t *testing.T) {
			rec := f.do(st.method, st.path, st.body)
			assert.Equal(t, st.expectedStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestRates(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/rates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var current rates.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.Equal(t, rates.DefaultEffectiveRate, current.Energy.EffectiveRate)

	rec = f.do(http.MethodPut, "/api/v1/rates", `{"energy": {"rates_eur_kwh": {"P1": 0.30, "P2": 0.24, "P3": 0.18, "P4": 0.12, "P5": 0.06, "P6": 0.00}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved rates.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.InDelta(t, 0.15, saved.Energy.EffectiveRate, 1e-12)

	_, err := os.Stat(f.ratesPath)
	assert.NoError(t, err, "rates are persisted")

	rec = f.do(http.MethodPut, "/api/v1/rates", `{"taxes": {"iva_pct": 121}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodPut, "/api/v1/rates", `{"energy": {"rate": 1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	cfg, err := f.ratesStore.Get()
	require.NoError(t, err)
	assert.InDelta(t, 0.15, cfg.Energy.EffectiveRate, 1e-12, "rejected writes leave the rates alone")

	// a hand edit is only picked up after a reload
	require.NoError(t, os.WriteFile(f.ratesPath, []byte(`{"energy": {"effective_rate_eur_kwh": 0.2}}`), 0o644))
	cfg, err = f.ratesStore.Get()
	require.NoError(t, err)
	assert.InDelta(t, 0.15, cfg.Energy.EffectiveRate, 1e-12)

	rec = f.do(http.MethodGet, "/api/v1/rates/reload", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/rates/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.Equal(t, 0.2, current.Energy.EffectiveRate)

	rec = f.do(http.MethodDelete, "/api/v1/rates", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
