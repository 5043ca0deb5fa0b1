package telemetry

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Measurement names and device tags used in the time-series store.
const (
	MeasurementInverter = "piko"
	MeasurementMeter    = "ksem"
	MeasurementPrices   = "omie_prices"

	DevicePiko15   = "piko_15"
	DevicePikoCI50 = "piko_ci_50"
	DeviceKsem     = "ksem"
	DeviceOmie     = "omie"
)

// ErrUnreachable is wrapped by readers whenever the device could not be contacted. This is expected overnight, when the
// inverters stop answering, and is distinct from a device that answered with something we could not decode.
var ErrUnreachable = errors.New("device unreachable")

// Kind is the semantic type of a decoded field.
type Kind int

const (
	Float Kind = iota
	Integer
	Enum
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case Integer:
		return "integer"
	case Enum:
		return "enum"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field is a decoded value. A nil Value means the device reported the value as not available.
type Field struct {
	Kind  Kind
	Value *float64
}

// Present returns true if the field carries a value.
func (f Field) Present() bool {
	return f.Value != nil
}

// FloatField returns a present float field.
func FloatField(v float64) Field {
	return Field{Kind: Float, Value: &v}
}

// AbsentField returns a field of the given kind without a value.
func AbsentField(kind Kind) Field {
	return Field{Kind: kind}
}

// OptionalField returns a field with the given value, or an absent field if `ok` is false.
func OptionalField(kind Kind, v float64, ok bool) Field {
	if !ok {
		return AbsentField(kind)
	}
	return Field{Kind: kind, Value: &v}
}

// Record holds one poll of one device.
type Record struct {
	ID          uuid.UUID
	Measurement string
	Device      string
	Time        time.Time
	Fields      map[string]Field
	Reachable   bool
}

// NewRecord returns an empty, reachable record for the given device.
func NewRecord(measurement, device string, t time.Time) Record {
	return Record{
		ID:          uuid.New(),
		Measurement: measurement,
		Device:      device,
		Time:        t,
		Fields:      make(map[string]Field),
		Reachable:   true,
	}
}

// Unreachable returns a record that marks the device as not answering at time `t`.
func Unreachable(measurement, device string, t time.Time) Record {
	return Record{
		ID:          uuid.New(),
		Measurement: measurement,
		Device:      device,
		Time:        t,
		Fields:      map[string]Field{},
		Reachable:   false,
	}
}

// Set stores a field, replacing any previous value with the same name.
func (r *Record) Set(name string, field Field) {
	r.Fields[name] = field
}

// Point converts the record into a storable point. Absent and non-finite fields are dropped.
func (r Record) Point() Point {
	fields := make(map[string]float64, len(r.Fields))
	for name, field := range r.Fields {
		if !field.Present() || math.IsNaN(*field.Value) || math.IsInf(*field.Value, 0) {
			continue
		}
		fields[name] = *field.Value
	}
	return Point{
		Measurement: r.Measurement,
		Device:      r.Device,
		Time:        r.Time,
		Fields:      fields,
	}
}

// DecodeError is returned when a device reports a value whose encoding does not match the field's declared kind.
type DecodeError struct {
	Device string
	Field  string
	Raw    any
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s field '%s' from %v: %s", e.Device, e.Field, e.Raw, e.Reason)
}
