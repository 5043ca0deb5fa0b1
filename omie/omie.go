package omie

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cepro/solarmonitor/metrics"
	"github.com/cepro/solarmonitor/telemetry"
	timeutils "github.com/cepro/solarmonitor/time_utils"
	"github.com/go-resty/resty/v2"
)

// DefaultURLTemplate is the OMIE marginal price file; YYYYMMDD is replaced by the date.
const DefaultURLTemplate = "https://www.omie.es/es/file-download?parents%5B0%5D=marginalpdbc&filename=marginalpdbc_YYYYMMDD.1"

const (
	FieldPriceEURMWh = "price_eur_mwh"
	FieldPriceEURkWh = "price_eur_kwh"
)

// Client fetches day-ahead prices and writes each published day to the time-series store once.
type Client struct {
	client      *resty.Client
	urlTemplate string
	store       telemetry.Writer

	lock    sync.RWMutex
	written map[int64]bool // days already written to the store, by the Unix time of their start

	logger *slog.Logger
	now    func() time.Time
}

func New(urlTemplate string, timeout time.Duration, store telemetry.Writer) *Client {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &Client{
		client:      resty.New().SetTimeout(timeout),
		urlTemplate: urlTemplate,
		store:       store,
		written:     make(map[int64]bool),
		logger:      slog.Default().With("device", telemetry.DeviceOmie),
		now:         time.Now,
	}
}

// Run fetches today's and tomorrow's prices immediately and then every `interval` until the context is cancelled.
func (c *Client) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Update(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Update(ctx)
		}
	}
}

// Update fetches and stores each of today's and tomorrow's prices that have not yet been stored.
func (c *Client) Update(ctx context.Context) {
	today := timeutils.StartOfDay(c.now())
	c.forgetBefore(today.AddDate(0, 0, -1))

	for _, day := range []time.Time{today, today.AddDate(0, 0, 1)} {
		key := day.Format(time.DateOnly)

		c.lock.RLock()
		done := c.written[day.Unix()]
		c.lock.RUnlock()
		if done {
			continue
		}

		prices, err := c.FetchDay(ctx, day)
		if err != nil {
			metrics.IncPriceFetch(metrics.ResultError)
			c.logger.Error("Failed to fetch day-ahead prices", "date", key, "error", err)
			continue
		}
		if prices == nil {
			c.logger.Debug("Day-ahead prices not yet published", "date", key)
			continue
		}
		metrics.IncPriceFetch(metrics.ResultOK)

		if err := c.writePrices(ctx, prices); err != nil {
			c.logger.Error("Failed to store day-ahead prices", "date", key, "error", err)
			continue
		}

		c.lock.Lock()
		c.written[day.Unix()] = true
		c.lock.Unlock()

		c.logger.Info("Stored day-ahead prices", "date", key, "hours", len(prices))
	}
}

// forgetBefore drops the record of days written before `day`, which are never fetched again.
func (c *Client) forgetBefore(day time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for start := range c.written {
		if start < day.Unix() {
			delete(c.written, start)
		}
	}
}

// FetchDay downloads the prices for the given day. A day that is not yet published returns nil prices and no error.
func (c *Client) FetchDay(ctx context.Context, day time.Time) ([]HourlyPrice, error) {
	url := strings.ReplaceAll(c.urlTemplate, "YYYYMMDD", day.In(timeutils.TariffZone).Format("20060102"))

	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("get prices: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	prices, err := parseDay(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("parse prices: %w", err)
	}
	if len(prices) == 0 {
		// a body without price rows is treated like a 404
		return nil, nil
	}
	return prices, nil
}

func (c *Client) writePrices(ctx context.Context, prices []HourlyPrice) error {
	for _, price := range prices {
		err := c.store.WritePoint(ctx, telemetry.Point{
			Measurement: telemetry.MeasurementPrices,
			Device:      telemetry.DeviceOmie,
			Time:        price.Hour,
			Fields: map[string]float64{
				FieldPriceEURMWh: price.EURMWh,
				FieldPriceEURkWh: price.EURkWh(),
			},
		})
		if err != nil {
			return fmt.Errorf("write price for %s: %w", price.Hour, err)
		}
	}
	return nil
}
