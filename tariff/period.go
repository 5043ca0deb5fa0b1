package tariff

import (
	"fmt"
	"time"

	timeutils "github.com/cepro/solarmonitor/time_utils"
)

// Period is one of the six 3.0TD time-of-use periods.
type Period string

const (
	P1 Period = "P1"
	P2 Period = "P2"
	P3 Period = "P3"
	P4 Period = "P4"
	P5 Period = "P5"
	P6 Period = "P6"
)

// Periods lists every period, most expensive first.
var Periods = []Period{P1, P2, P3, P4, P5, P6}

// ParsePeriod returns the period named by `s`, e.g. "P3".
func ParsePeriod(s string) (Period, error) {
	for _, p := range Periods {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown tariff period '%s'", s)
}

type scheduledPeriod struct {
	timeutils.DayedPeriod
	Period Period
}

func on(days string, startHour, endHour int, period Period) scheduledPeriod {
	return scheduledPeriod{
		DayedPeriod: timeutils.DayedPeriod{
			ClockTimePeriod: timeutils.Between(startHour, endHour, timeutils.TariffZone),
			Days:            timeutils.Days{Name: days, Location: timeutils.TariffZone},
		},
		Period: period,
	}
}

// schedule covers every hour of the week exactly once.
var schedule = []scheduledPeriod{
	on(timeutils.SundayDaysName, 0, 24, P6),

	on(timeutils.SaturdayDaysName, 0, 8, P5),
	on(timeutils.SaturdayDaysName, 8, 18, P4),
	on(timeutils.SaturdayDaysName, 18, 24, P5),

	on(timeutils.WeekdayDaysName, 0, 8, P5),
	on(timeutils.WeekdayDaysName, 8, 10, P2),
	on(timeutils.WeekdayDaysName, 10, 14, P1),
	on(timeutils.WeekdayDaysName, 14, 18, P2),
	on(timeutils.WeekdayDaysName, 18, 22, P3),
	on(timeutils.WeekdayDaysName, 22, 24, P5),
}

// Classify returns the tariff period that `t` falls in, evaluated on the fixed UTC+1 tariff clock.
func Classify(t time.Time) Period {
	for _, sp := range schedule {
		if sp.Contains(t) {
			return sp.Period
		}
	}
	// unreachable while the schedule covers the whole week
	panic(fmt.Sprintf("no tariff period for %s", t))
}
