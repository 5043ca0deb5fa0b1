package piko15

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/cepro/solarmonitor/telemetry"
	"github.com/go-resty/resty/v2"
)

const (
	dxsPath = "/api/dxs.json"

	// maxURLLength keeps each request within what the inverter's web server accepts.
	maxURLLength = 2000
)

type dxsResponse struct {
	Entries []dxsEntry `json:"dxsEntries"`
}

type dxsEntry struct {
	ID    int `json:"dxsId"`
	Value any `json:"value"`
}

// Reader polls a Kostal PIKO 15 inverter through the dxs.json endpoint of its web interface.
type Reader struct {
	client *resty.Client
	chunks [][]int
	logger *slog.Logger
	now    func() time.Time
}

// New returns a reader for the inverter at `baseURL`, e.g. "http://192.168.1.20".
func New(baseURL string, timeout time.Duration) *Reader {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}

	return &Reader{
		client: client,
		chunks: chunkIDs(baseURL+dxsPath, ids, maxURLLength),
		logger: slog.Default().With("device", telemetry.DevicePiko15, "url", baseURL),
		now:    time.Now,
	}
}

// Device returns the tag under which this inverter's records are stored.
func (r *Reader) Device() string {
	return telemetry.DevicePiko15
}

// Read requests every known dxs entry and merges the responses into one record.
//
// A transport failure makes the whole record unreachable. Values that do not match their field's kind are left out of
// the record and reported as joined *telemetry.DecodeError values alongside the record.
func (r *Reader) Read(ctx context.Context) (telemetry.Record, error) {
	t := r.now()
	record := telemetry.NewRecord(telemetry.MeasurementInverter, telemetry.DevicePiko15, t)

	var decodeErrs []error
	for _, chunk := range r.chunks {
		dxsEntries, err := r.request(ctx, chunk)
		if err != nil {
			if errors.Is(err, telemetry.ErrUnreachable) {
				return telemetry.Unreachable(telemetry.MeasurementInverter, telemetry.DevicePiko15, t), err
			}
			decodeErrs = append(decodeErrs, err)
			continue
		}

		for _, dxs := range dxsEntries {
			e, known := entriesByID[dxs.ID]
			if !known {
				r.logger.Debug("Ignoring unknown dxs entry", "dxs_id", dxs.ID)
				continue
			}
			field, err := decodeValue(e, dxs.Value)
			if err != nil {
				decodeErrs = append(decodeErrs, err)
				continue
			}
			record.Set(e.Field, field)
		}
	}

	return record, errors.Join(decodeErrs...)
}

// request fetches one chunk of dxs ids.
func (r *Reader) request(ctx context.Context, ids []int) ([]dxsEntry, error) {
	params := url.Values{}
	for _, id := range ids {
		params.Add("dxsEntries", strconv.Itoa(id))
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(dxsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: get dxs entries: %w", telemetry.ErrUnreachable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: unexpected status code: %d", telemetry.ErrUnreachable, resp.StatusCode())
	}

	// the inverter answered, so an unparseable body is a decode error
	parsed := dxsResponse{}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, &telemetry.DecodeError{Device: telemetry.DevicePiko15, Field: "dxsEntries", Raw: string(resp.Body()), Reason: err.Error()}
	}
	return parsed.Entries, nil
}

// decodeValue checks a JSON value against the entry's kind. A null value is reported as absent.
func decodeValue(e entry, raw any) (telemetry.Field, error) {
	if raw == nil {
		return telemetry.AbsentField(e.Kind), nil
	}

	v, ok := raw.(float64)
	if !ok {
		return telemetry.Field{}, &telemetry.DecodeError{Device: telemetry.DevicePiko15, Field: e.Field, Raw: raw, Reason: "not a number"}
	}

	switch e.Kind {
	case telemetry.Integer, telemetry.Enum:
		if v != math.Trunc(v) {
			return telemetry.Field{}, &telemetry.DecodeError{Device: telemetry.DevicePiko15, Field: e.Field, Raw: raw, Reason: fmt.Sprintf("%s value is not integral", e.Kind)}
		}
	}
	return telemetry.Field{Kind: e.Kind, Value: &v}, nil
}

// chunkIDs splits the ids so that each request URL, built as `base?dxsEntries=a&dxsEntries=b...`, is no longer than
// `limit` bytes. Every chunk holds at least one id.
func chunkIDs(base string, ids []int, limit int) [][]int {
	var chunks [][]int
	var current []int
	length := len(base)

	for _, id := range ids {
		param := len("dxsEntries=") + len(strconv.Itoa(id)) + 1 // '?' or '&'
		if len(current) > 0 && length+param > limit {
			chunks = append(chunks, current)
			current = nil
			length = len(base)
		}
		current = append(current, id)
		length += param
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
