package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cepro/solarmonitor/billing"
	"github.com/cepro/solarmonitor/energy"
	"github.com/cepro/solarmonitor/omie"
	"github.com/cepro/solarmonitor/rates"
	"github.com/cepro/solarmonitor/telemetry"
	timeutils "github.com/cepro/solarmonitor/time_utils"
)

const (
	billFileName  = "bill-projection.pdf"
	chartFileName = "indexed-rates.png"

	// JSON snapshots of the views, without extension
	billSnapshot       = "bill-projection"
	marketSnapshot     = "market"
	economicsSnapshot  = "economics"
	energySnapshot     = "energy"
	invertersSnapshot  = "inverters"
	comparisonSnapshot = "comparison"
	historicSnapshot   = "historic-"

	// values older than this are treated as missing by the live views
	liveWindow = 5 * time.Minute
)

// OfferLister provides the supplier offers to compare.
type OfferLister interface {
	ListOffers() ([]billing.Offer, error)
}

// Settings holds the plant constants that the reports need.
type Settings struct {
	Dir               string             // where Run renders files
	RatedPowerW       map[string]float64 // by inverter device tag
	CO2FactorKgPerKWh float64
}

// Reporter builds the dashboard views from the time-series store and the rate configuration.
type Reporter struct {
	store      telemetry.Querier
	reconciler *energy.Reconciler
	rates      *rates.Store
	offers     OfferLister
	settings   Settings

	logger *slog.Logger
	now    func() time.Time
}

func New(store telemetry.Querier, ratesStore *rates.Store, offers OfferLister, settings Settings) *Reporter {
	return &Reporter{
		store:      store,
		reconciler: energy.NewReconciler(store),
		rates:      ratesStore,
		offers:     offers,
		settings:   settings,
		logger:     slog.Default().With("component", "report"),
		now:        time.Now,
	}
}

// Run renders the report files every `interval` until the context is cancelled.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := r.Render(ctx)
		if err != nil {
			r.logger.Error("Failed to render reports", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Render writes the bill projection PDF, today's indexed rate chart and a JSON snapshot of every view into the
// configured directory. A view that fails is logged in the returned error and does not stop the others.
func (r *Reporter) Render(ctx context.Context) error {
	now := r.now()

	err := os.MkdirAll(r.settings.Dir, 0o755)
	if err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	projection, err := r.Bill(ctx, now)
	add(r.snapshot(billSnapshot, projection, err))
	if err == nil {
		title := fmt.Sprintf("Bill projection %s", now.In(timeutils.TariffZone).Format("2006-01"))
		add(writeFile(filepath.Join(r.settings.Dir, billFileName), func(f *os.File) error {
			return billing.WritePDF(f, title, projection)
		}))
	}

	market, err := r.Market(ctx, now)
	add(r.snapshot(marketSnapshot, market, err))
	if err == nil && len(market.IndexedHourly) > 0 {
		title := fmt.Sprintf("Indexed rate %s", now.In(timeutils.TariffZone).Format("2006-01-02"))
		add(writeFile(filepath.Join(r.settings.Dir, chartFileName), func(f *os.File) error {
			return WriteIndexedRateChart(f, title, market.IndexedHourly, market.FlatRate)
		}))
	}

	economics, err := r.Economics(ctx, now)
	add(r.snapshot(economicsSnapshot, economics, err))

	live, err := r.Energy(ctx, now)
	add(r.snapshot(energySnapshot, live, err))

	inverters, err := r.Inverters(ctx, now)
	add(r.snapshot(invertersSnapshot, inverters, err))

	comparison, err := r.Comparison(ctx, now)
	add(r.snapshot(comparisonSnapshot, comparison, err))

	for _, rng := range Ranges {
		historic, err := r.Historic(ctx, now, rng)
		add(r.snapshot(historicSnapshot+string(rng), historic, err))
	}

	if len(errs) == 0 {
		r.logger.Info("Rendered reports", "dir", r.settings.Dir)
	}
	return errors.Join(errs...)
}

// snapshot writes `view` as `<name>.json`, unless building the view failed.
func (r *Reporter) snapshot(name string, view any, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return writeFile(filepath.Join(r.settings.Dir, name+".json"), func(f *os.File) error {
		encoder := json.NewEncoder(f)
		encoder.SetIndent("", "  ")
		return encoder.Encode(view)
	})
}

// writeFile renders into a temporary file and renames it into place so readers never see a partial file.
func writeFile(path string, render func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	err = render(tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// latest returns the last value of `field` for every device of the measurement seen within the live window.
func (r *Reporter) latest(ctx context.Context, measurement, device, field string, now time.Time) (map[string]float64, error) {
	samples, err := r.store.Query(ctx, telemetry.Query{
		Measurement: measurement,
		Device:      device,
		Field:       field,
		Period:      timeutils.Period{Start: now.Add(-liveWindow), End: now},
		Fn:          telemetry.Last,
	})
	if err != nil {
		return nil, fmt.Errorf("query latest %s: %w", field, err)
	}
	out := make(map[string]float64, len(samples))
	for _, s := range samples {
		out[s.Device] = s.Value
	}
	return out, nil
}

// hourlyPrices returns the mean day-ahead price (EUR/kWh) of every hour in the period.
func (r *Reporter) hourlyPrices(ctx context.Context, period timeutils.Period) ([]telemetry.Sample, error) {
	prices, err := r.store.Query(ctx, telemetry.Query{
		Measurement: telemetry.MeasurementPrices,
		Device:      telemetry.DeviceOmie,
		Field:       omie.FieldPriceEURkWh,
		Period:      period,
		Window:      time.Hour,
		Fn:          telemetry.Mean,
	})
	if err != nil {
		return nil, fmt.Errorf("query hourly prices: %w", err)
	}
	return prices, nil
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
