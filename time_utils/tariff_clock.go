package timeutils

import "time"

// TariffZone is the clock that tariff periods, days and months are evaluated in. It is a fixed UTC+1 offset all year
// round: daylight saving time is deliberately not applied.
var TariffZone = time.FixedZone("UTC+1", 60*60)

// Floor rounds `t` down to a multiple of `d` measured on the tariff clock, so that hour and day buckets start at local
// midnight rather than UTC midnight. The result is expressed in TariffZone.
func Floor(t time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return t.In(TariffZone)
	}
	_, offset := t.In(TariffZone).Zone()
	shift := time.Duration(offset) * time.Second
	return t.Add(shift).Truncate(d).Add(-shift).In(TariffZone)
}

// FloorHour returns the start of the tariff-clock hour containing `t`.
func FloorHour(t time.Time) time.Time {
	return Floor(t, time.Hour)
}

// StartOfDay returns local midnight of the tariff-clock day containing `t`.
func StartOfDay(t time.Time) time.Time {
	t = t.In(TariffZone)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, TariffZone)
}

// StartOfMonth returns local midnight on the first day of the tariff-clock month containing `t`.
func StartOfMonth(t time.Time) time.Time {
	t = t.In(TariffZone)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, TariffZone)
}

// DaysInMonth returns the number of days in the tariff-clock month containing `t`.
func DaysInMonth(t time.Time) int {
	start := StartOfMonth(t)
	return start.AddDate(0, 1, -1).Day()
}
