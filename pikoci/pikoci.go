package pikoci

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cepro/solarmonitor/modbusaccess"
	"github.com/cepro/solarmonitor/telemetry"
)

const (
	DefaultPort = 1502

	// maxPlausibleYieldKWh rejects the lifetime energy the inverter reports while it is shutting down or off.
	maxPlausibleYieldKWh = 500_000
)

// Reader polls a Kostal PIKO CI inverter over Modbus TCP using its proprietary float32 register map.
type Reader struct {
	client modbusaccess.RegisterReader
	logger *slog.Logger
	now    func() time.Time
}

func New(client modbusaccess.RegisterReader) *Reader {
	return &Reader{
		client: client,
		logger: slog.Default().With("device", telemetry.DevicePikoCI50),
		now:    time.Now,
	}
}

// Device returns the tag under which this inverter's records are stored.
func (r *Reader) Device() string {
	return telemetry.DevicePikoCI50
}

// Read takes one reading of the inverter. Registers that fail individually are left out of the record. If the
// inverter cannot be contacted at all an unreachable record is returned with an error wrapping
// telemetry.ErrUnreachable.
func (r *Reader) Read(ctx context.Context) (telemetry.Record, error) {
	t := r.now()
	record := telemetry.NewRecord(telemetry.MeasurementInverter, telemetry.DevicePikoCI50, t)

	var lastErr error
	read := func(name string, register modbusaccess.Register) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", telemetry.ErrUnreachable, err)
		}
		field, err := modbusaccess.PollRegister(r.client, register)
		if err != nil {
			if errors.Is(err, telemetry.ErrUnreachable) {
				return err
			}
			r.logger.Debug("Failed to read register", "field", name, "register", register.StartAddr, "error", err)
			lastErr = err
			return nil
		}
		record.Set(name, field)
		return nil
	}

	err := read("status", statusRegister)
	for name, register := range floatRegisters {
		if err != nil {
			break
		}
		err = read(name, register)
	}
	if err != nil {
		return telemetry.Unreachable(telemetry.MeasurementInverter, telemetry.DevicePikoCI50, t), err
	}

	yield, err := r.readLifetimeEnergy()
	if err != nil {
		if errors.Is(err, telemetry.ErrUnreachable) {
			return telemetry.Unreachable(telemetry.MeasurementInverter, telemetry.DevicePikoCI50, t), err
		}
		lastErr = err
	} else if yield.Present() {
		record.Set("yield_total", yield)
	}

	if len(record.Fields) == 0 {
		return telemetry.Unreachable(telemetry.MeasurementInverter, telemetry.DevicePikoCI50, t),
			fmt.Errorf("%w: no register could be read: %w", telemetry.ErrUnreachable, lastErr)
	}

	return record, nil
}

// readLifetimeEnergy returns the SunSpec lifetime energy in kWh, or an absent field when the inverter reports the
// not-implemented value or an implausible total.
func (r *Reader) readLifetimeEnergy() (telemetry.Field, error) {
	fields, err := modbusaccess.PollBlock(r.client, lifetimeEnergyBlock)
	if err != nil {
		return telemetry.Field{}, fmt.Errorf("read lifetime energy: %w", err)
	}

	yield := fields["yield_total"]
	if yield.Present() && *yield.Value > maxPlausibleYieldKWh {
		r.logger.Debug("Discarding implausible lifetime energy", "kwh", *yield.Value)
		return telemetry.AbsentField(telemetry.Float), nil
	}
	return yield, nil
}
