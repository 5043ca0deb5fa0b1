package dataplatform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cepro/solarmonitor/metrics"
	"github.com/cepro/solarmonitor/repository"
	"github.com/cepro/solarmonitor/supabase"
)

// uploadChunkLimit defines how many points we upload in one supabase HTTP request
const uploadChunkLimit = 100

// PointSource is the local buffer that points are replicated from.
type PointSource interface {
	PendingPoints(limit int, fresh bool) ([]repository.StoredPoint, error)
	MarkUploaded(points []repository.StoredPoint) error
	IncrementUploadAttemptCount(points []repository.StoredPoint) error
}

// Uploader sends points upstream.
type Uploader interface {
	UploadPoints(ctx context.Context, points []supabase.Point) error
}

// DataPlatform replicates the points stored in the local repository to Supabase. Points that fail to upload have
// their attempt count bumped and are retried after newer points have been sent.
type DataPlatform struct {
	source   PointSource
	uploader Uploader
	logger   *slog.Logger
}

func New(source PointSource, uploader Uploader) *DataPlatform {
	return &DataPlatform{
		source:   source,
		uploader: uploader,
		logger:   slog.Default().With("component", "data_platform"),
	}
}

// Run uploads pending points every `interval` until the context is cancelled.
func (d *DataPlatform) Run(ctx context.Context, interval time.Duration) {

	uploadTicker := time.NewTicker(interval)
	defer uploadTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-uploadTicker.C:
			d.UploadOnce(ctx)
		}
	}
}

// UploadOnce makes one attempt at uploading a chunk of fresh points followed by a chunk of previously failed points.
func (d *DataPlatform) UploadOnce(ctx context.Context) {

	// first attempt to upload any new points that have not been seen before
	fresh, err := d.source.PendingPoints(uploadChunkLimit, true)
	if err != nil {
		d.logger.Error("Failed to query fresh points", "error", err)
	} else if len(fresh) > 0 {
		err = d.handlePoints(ctx, fresh)
		if err != nil {
			d.logger.Error("Failed to upload fresh points", "error", err)
		}
	}

	// then attempt to upload any old points that have already failed an upload at least once
	old, err := d.source.PendingPoints(uploadChunkLimit, false)
	if err != nil {
		d.logger.Error("Failed to query old points", "error", err)
	} else if len(old) > 0 {
		err = d.handlePoints(ctx, old)
		if err != nil {
			d.logger.Error("Failed to upload old points", "error", err)
		}
	}
}

// handlePoints attempts to upload the given points. If successful they are marked as uploaded, otherwise their
// 'upload attempt count' is incremented and they are left for another time.
func (d *DataPlatform) handlePoints(ctx context.Context, points []repository.StoredPoint) error {

	uploadErr := d.uploader.UploadPoints(ctx, convertPoints(points))
	if uploadErr != nil {
		metrics.ObservePointsUploaded(metrics.ResultError, len(points))
		uploadErr := fmt.Errorf("upload failed: %w", uploadErr)
		errInc := d.source.IncrementUploadAttemptCount(points)
		if errInc != nil {
			return fmt.Errorf("%w: increment upload attempt count: %w", uploadErr, errInc)
		}
		return uploadErr
	}
	metrics.ObservePointsUploaded(metrics.ResultOK, len(points))

	err := d.source.MarkUploaded(points)
	if err != nil {
		// the points will be uploaded again, which the upstream table rejects by primary key
		return fmt.Errorf("mark %d points uploaded: %w", len(points), err)
	}

	d.logger.Info("Uploaded points", "count", len(points))
	return nil
}

func convertPoints(points []repository.StoredPoint) []supabase.Point {
	converted := make([]supabase.Point, 0, len(points))
	for _, p := range points {
		converted = append(converted, supabase.Point{
			ID:          p.ID,
			Time:        p.Time,
			Measurement: p.Measurement,
			Device:      p.Device,
			Field:       p.Field,
			Value:       p.Value,
		})
	}
	return converted
}
