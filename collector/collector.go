package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cepro/solarmonitor/metrics"
	"github.com/cepro/solarmonitor/telemetry"
)

// Reader takes one reading of a device. An error wrapping telemetry.ErrUnreachable means the device could not be
// contacted; any other error with a reachable record means some values could not be decoded.
type Reader interface {
	Device() string
	Read(ctx context.Context) (telemetry.Record, error)
}

// Result is the outcome of polling one device.
type Result struct {
	Device string
	Record telemetry.Record
	Err    error
	Stored bool
}

// Collector polls each device in turn and writes the readings to the store.
type Collector struct {
	readers []Reader
	store   telemetry.Writer
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a collector that gives each device at most `timeout` per poll.
func New(store telemetry.Writer, timeout time.Duration, readers ...Reader) *Collector {
	return &Collector{
		readers: readers,
		store:   store,
		timeout: timeout,
		logger:  slog.Default().With("component", "collector"),
	}
}

// Run polls every `interval` until the context is cancelled. A failed poll is only retried at the next tick.
func (c *Collector) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.PollOnce(ctx)
		}
	}
}

// PollOnce reads every device once. A device that fails only affects its own result.
func (c *Collector) PollOnce(ctx context.Context) []Result {
	results := make([]Result, 0, len(c.readers))
	for _, reader := range c.readers {
		if ctx.Err() != nil {
			break
		}
		results = append(results, c.poll(ctx, reader))
	}
	return results
}

func (c *Collector) poll(ctx context.Context, reader Reader) Result {
	device := reader.Device()
	logger := c.logger.With("device", device)

	readCtx, cancel := context.WithTimeout(ctx, c.timeout)
	start := time.Now()
	record, err := reader.Read(readCtx)
	duration := time.Since(start)
	cancel()

	result := Result{Device: device, Record: record, Err: err}

	switch {
	case errors.Is(err, telemetry.ErrUnreachable):
		metrics.ObserveDevicePoll(device, metrics.ResultUnreachable, duration)
		logger.Debug("Device unreachable", "error", err)
		return result
	case err != nil:
		metrics.ObserveDevicePoll(device, metrics.ResultError, duration)
		decodeErrs := countDecodeErrors(err)
		metrics.AddDecodeErrors(device, decodeErrs)
		logger.Error("Failed to decode device reading", "decode_errors", decodeErrs, "error", err)
		if !record.Reachable {
			return result
		}
	default:
		metrics.ObserveDevicePoll(device, metrics.ResultOK, duration)
	}

	point := record.Point()
	if len(point.Fields) == 0 {
		logger.Debug("Reading has no values to store")
		return result
	}
	if err := c.store.WritePoint(ctx, point); err != nil {
		logger.Error("Failed to store reading", "error", err)
		return result
	}
	result.Stored = true
	return result
}

// countDecodeErrors counts the *telemetry.DecodeError values in an error tree.
func countDecodeErrors(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		count := 0
		for _, e := range joined.Unwrap() {
			count += countDecodeErrors(e)
		}
		return count
	}
	var decodeErr *telemetry.DecodeError
	if errors.As(err, &decodeErr) {
		return 1
	}
	return 0
}
