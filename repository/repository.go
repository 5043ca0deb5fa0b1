package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/cepro/solarmonitor/telemetry"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repository is the local time-series store (sqlite). Points are kept after they are uploaded to Supabase so that the
// reports can query them.
type Repository struct {
	db *gorm.DB
}

func New(path string) (*Repository, error) {

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Migrate the schema
	err = db.AutoMigrate(&StoredPoint{}, &StoredOffer{})
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Repository{
		db: db,
	}, nil
}

// Close releases the underlying database connection.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WritePoint stores every field of the point as its own row.
func (r *Repository) WritePoint(ctx context.Context, p telemetry.Point) error {
	if len(p.Fields) == 0 {
		return nil
	}

	rows := make([]StoredPoint, 0, len(p.Fields))
	for field, value := range p.Fields {
		rows = append(rows, StoredPoint{
			ID:          uuid.New(),
			Measurement: p.Measurement,
			Field:       field,
			Device:      p.Device,
			Time:        p.Time.UTC(),
			Value:       value,
		})
	}

	result := r.db.WithContext(ctx).Create(&rows)
	if result.Error != nil {
		return fmt.Errorf("insert %s points: %w", p.Measurement, result.Error)
	}
	return nil
}

// Query returns the samples matching `q`, ordered by device and then time. Windowed aggregation is done in Go using
// the tariff clock so that buckets line up with tariff days.
func (r *Repository) Query(ctx context.Context, q telemetry.Query) ([]telemetry.Sample, error) {
	query := r.db.WithContext(ctx).
		Model(&StoredPoint{}).
		Where("measurement = ? AND field = ?", q.Measurement, q.Field).
		Where("time >= ? AND time < ?", q.Period.Start.UTC(), q.Period.End.UTC()).
		Order("device asc, time asc")
	if q.Device != "" {
		query = query.Where("device = ?", q.Device)
	}

	var rows []StoredPoint
	result := query.Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("query %s.%s: %w", q.Measurement, q.Field, result.Error)
	}

	samples := make([]telemetry.Sample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, telemetry.Sample{Device: row.Device, Time: row.Time.UTC(), Value: row.Value})
	}

	if q.Fn == "" {
		return samples, nil
	}
	return aggregate(samples, q)
}

func aggregate(samples []telemetry.Sample, q telemetry.Query) ([]telemetry.Sample, error) {
	byDevice := telemetry.ByDevice(samples)
	devices := make([]string, 0, len(byDevice))
	for device := range byDevice {
		devices = append(devices, device)
	}
	slices.Sort(devices)

	var out []telemetry.Sample
	for _, device := range devices {
		deviceSamples := byDevice[device]

		if q.Window > 0 {
			windowed, err := telemetry.Window(deviceSamples, q.Window, q.Fn)
			if err != nil {
				return nil, err
			}
			out = append(out, windowed...)
			continue
		}

		values := make([]float64, 0, len(deviceSamples))
		for _, s := range deviceSamples {
			values = append(values, s.Value)
		}
		v, err := telemetry.Aggregate(q.Fn, values)
		if err != nil {
			return nil, err
		}
		out = append(out, telemetry.Sample{Device: device, Time: q.Period.Start, Value: v})
	}
	return out, nil
}

// PendingPoints returns points that have not yet been uploaded. When `fresh` is true only points that have never been
// attempted are returned, otherwise only those that have failed at least once.
func (r *Repository) PendingPoints(limit int, fresh bool) ([]StoredPoint, error) {
	var points []StoredPoint

	query := r.db.Limit(limit).Where("uploaded = ?", false).Order("upload_attempt_count asc, time desc")
	if fresh {
		query = query.Where("upload_attempt_count = ?", 0)
	} else {
		query = query.Where("upload_attempt_count > ?", 0)
	}
	result := query.Find(&points)
	if result.Error != nil {
		return nil, result.Error
	}
	return points, nil
}

// MarkUploaded flags the points as replicated so they are not uploaded again.
func (r *Repository) MarkUploaded(points []StoredPoint) error {
	if len(points) == 0 {
		return nil
	}
	result := r.db.Model(&StoredPoint{}).Where("id IN ?", pointIDs(points)).UpdateColumn("uploaded", true)
	return result.Error
}

func (r *Repository) IncrementUploadAttemptCount(points []StoredPoint) error {
	if len(points) == 0 {
		return nil
	}
	result := r.db.Model(&StoredPoint{}).Where("id IN ?", pointIDs(points)).UpdateColumn("upload_attempt_count", gorm.Expr("upload_attempt_count + ?", 1))
	return result.Error
}

func pointIDs(points []StoredPoint) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(points))
	for _, p := range points {
		ids = append(ids, p.ID)
	}
	return ids
}

