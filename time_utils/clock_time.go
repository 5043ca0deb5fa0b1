package timeutils

import "time"

// ClockTime represents a time of day in the given locale, without a date.
// An Hour of 24 denotes the midnight that ends the day.
type ClockTime struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// OnDate returns a time with the given clock time on the given date
func (c ClockTime) OnDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, c.Hour, c.Minute, 0, 0, c.Location)
}

func (c ClockTime) sinceMidnight() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute
}

// ClockTimePeriod represents a period of time that is defined by local clock time, without any date information, e.g. "10am to 2pm".
// Periods that cross midnight are not supported: use two periods instead.
type ClockTimePeriod struct {
	Start ClockTime
	End   ClockTime
}

// Between is shorthand for a ClockTimePeriod on whole hours in the given location.
func Between(startHour, endHour int, location *time.Location) ClockTimePeriod {
	return ClockTimePeriod{
		Start: ClockTime{Hour: startHour, Location: location},
		End:   ClockTime{Hour: endHour, Location: location},
	}
}

// AbsolutePeriod returns the equivilent `Period` for the given `ClockTimePeriod`, using `t` as the reference time
// that must be within the `ClockTimePeriod`. If `t` is outside of it then `ok` is returned as false.
//
// The start is inclusive and the end exclusive, so "10am to 2pm" contains 10:00 but not 14:00.
func (p ClockTimePeriod) AbsolutePeriod(t time.Time) (Period, bool) {
	if p.End.sinceMidnight() <= p.Start.sinceMidnight() {
		return Period{}, false
	}

	// `t` must be in the period's location, otherwise the date can be wrong near midnight
	t = t.In(p.Start.Location)
	year, month, day := t.Date()

	period := Period{
		Start: p.Start.OnDate(year, month, day),
		End:   p.End.OnDate(year, month, day),
	}
	if !period.Contains(t) {
		return Period{}, false
	}
	return period, true
}

// Contains returns true if the given t is contained in the ClockTimePeriod
func (p ClockTimePeriod) Contains(t time.Time) bool {
	_, contains := p.AbsolutePeriod(t)
	return contains
}
