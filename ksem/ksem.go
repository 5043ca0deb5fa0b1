package ksem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cepro/solarmonitor/modbusaccess"
	"github.com/cepro/solarmonitor/telemetry"
	"github.com/grid-x/modbus"
)

const (
	DefaultPort     = 502
	DefaultBaseAddr = 40072
)

// Reader polls a Kostal KSEM smart meter through its SunSpec model 203 registers.
//
// All values, including their scale factors, come from a single block read so that a value is never combined with the
// scale factor of a different poll.
type Reader struct {
	client  modbusaccess.RegisterReader
	handler *modbus.TCPClientHandler // nil when the client was supplied by the caller
	block   modbusaccess.RegisterBlock
	logger  *slog.Logger
	now     func() time.Time
}

// New returns a reader for the meter at `host` ("address:port"). The connection is made lazily on the first read.
func New(host string, unitID byte, baseAddr uint16, timeout time.Duration) *Reader {
	handler := modbus.NewTCPClientHandler(host)
	handler.Timeout = timeout
	handler.SlaveID = unitID

	reader := NewWithClient(modbus.NewClient(handler), baseAddr)
	reader.handler = handler
	reader.logger = reader.logger.With("host", host)
	return reader
}

// NewWithClient returns a reader using an existing register client.
func NewWithClient(client modbusaccess.RegisterReader, baseAddr uint16) *Reader {
	return &Reader{
		client: client,
		block:  model203Block(baseAddr),
		logger: slog.Default().With("device", telemetry.DeviceKsem),
		now:    time.Now,
	}
}

// Device returns the tag under which this meter's records are stored.
func (r *Reader) Device() string {
	return telemetry.DeviceKsem
}

// Read takes one reading of the meter. Any failure to read the block means the meter is treated as unreachable.
func (r *Reader) Read(ctx context.Context) (telemetry.Record, error) {
	t := r.now()

	if err := ctx.Err(); err != nil {
		return telemetry.Unreachable(telemetry.MeasurementMeter, telemetry.DeviceKsem, t), fmt.Errorf("%w: %w", telemetry.ErrUnreachable, err)
	}

	words, err := modbusaccess.ReadBlock(r.client, r.block.StartAddr, r.block.NumRegisters)
	if err != nil {
		if r.handler != nil {
			// start from a fresh connection next time
			r.handler.Close()
		}
		return telemetry.Unreachable(telemetry.MeasurementMeter, telemetry.DeviceKsem, t), fmt.Errorf("%w: %w", telemetry.ErrUnreachable, err)
	}

	fields, err := modbusaccess.DecodeBlock(r.block, words)
	if err != nil {
		return telemetry.Unreachable(telemetry.MeasurementMeter, telemetry.DeviceKsem, t), fmt.Errorf("decode model 203: %w", err)
	}

	record := telemetry.NewRecord(telemetry.MeasurementMeter, telemetry.DeviceKsem, t)
	for name, field := range fields {
		record.Set(name, field)
	}
	return record, nil
}

// Close drops the meter connection.
func (r *Reader) Close() error {
	if r.handler == nil {
		return nil
	}
	return r.handler.Close()
}
