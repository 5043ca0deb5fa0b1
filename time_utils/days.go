package timeutils

import (
	"fmt"
	"time"
)

// These constants define the names of days and are used within the `Days` struct.
const (
	AllDaysName      = "all"
	WeekdayDaysName  = "weekdays"
	WeekendDaysName  = "weekends"
	SaturdayDaysName = "saturday"
	SundayDaysName   = "sunday"
)

// Days specifies which days to apply some configuration to.
type Days struct {
	Name     string         // e.g. "weekdays", "saturday" or "all"
	Location *time.Location // the instant "2024-04-06T23:30:00Z" is a Saturday in UTC but a Sunday in UTC+1
}

// IsOnDay returns true if the given time is on one of the days that is specified by `d`.
func (d Days) IsOnDay(t time.Time) bool {
	weekday := t.In(d.Location).Weekday()

	switch d.Name {
	case AllDaysName:
		return true
	case WeekdayDaysName:
		return weekday != time.Saturday && weekday != time.Sunday
	case WeekendDaysName:
		return weekday == time.Saturday || weekday == time.Sunday
	case SaturdayDaysName:
		return weekday == time.Saturday
	case SundayDaysName:
		return weekday == time.Sunday
	default:
		panic(fmt.Sprintf("Unknown day specification: '%s'", d.Name))
	}
}

// DayedPeriod gives a period of clock time on particular days, e.g. "10am to 2pm on weekdays".
type DayedPeriod struct {
	ClockTimePeriod
	Days Days
}

// AbsolutePeriod returns the `Period` that `t` falls into, or false if `t` is on the wrong day or at the wrong time of day.
func (d DayedPeriod) AbsolutePeriod(t time.Time) (Period, bool) {
	if !d.Days.IsOnDay(t) {
		return Period{}, false
	}
	return d.ClockTimePeriod.AbsolutePeriod(t)
}

// Contains returns true if the given t is contained in the DayedPeriod
func (d DayedPeriod) Contains(t time.Time) bool {
	_, contains := d.AbsolutePeriod(t)
	return contains
}
