package omie

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	timeutils "github.com/cepro/solarmonitor/time_utils"
)

// HourlyPrice is the day-ahead marginal price for the hour starting at Hour.
type HourlyPrice struct {
	Hour   time.Time
	EURMWh float64
}

// EURkWh returns the price in EUR/kWh.
func (p HourlyPrice) EURkWh() float64 {
	return p.EURMWh / 1000
}

type periodPrice struct {
	date   time.Time
	period int
	price  float64
}

// parseDay reads a marginalpdbc file. Data rows are "year;month;day;period;price[;price];" and any other line (the
// header and the trailing '*') is skipped. When two zones are published the last column, Spain, is used. Files with
// more than 25 periods are quarter-hourly and are averaged to hourly prices.
func parseDay(content []byte) ([]HourlyPrice, error) {
	var rows []periodPrice
	maxPeriod := 0

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for lineNum := 1; scanner.Scan(); lineNum++ {
		row, ok, err := parseRow(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if !ok {
			continue
		}
		rows = append(rows, row)
		maxPeriod = max(maxPeriod, row.period)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan prices: %w", err)
	}

	periodsPerHour := 1
	if maxPeriod > 25 {
		periodsPerHour = 4
	}

	var prices []HourlyPrice
	totals := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, row := range rows {
		hour := row.date.Add(time.Duration((row.period-1)/periodsPerHour) * time.Hour)
		key := hour.Unix()
		if _, seen := counts[key]; !seen {
			prices = append(prices, HourlyPrice{Hour: hour})
		}
		totals[key] += row.price
		counts[key]++
	}
	for i := range prices {
		key := prices[i].Hour.Unix()
		prices[i].EURMWh = totals[key] / float64(counts[key])
	}
	return prices, nil
}

// parseRow returns false for lines that are not price rows.
func parseRow(line string) (periodPrice, bool, error) {
	cols := strings.Split(strings.TrimSpace(line), ";")
	for len(cols) > 0 && strings.TrimSpace(cols[len(cols)-1]) == "" {
		cols = cols[:len(cols)-1]
	}
	if len(cols) < 5 {
		return periodPrice{}, false, nil
	}

	year, err := strconv.Atoi(strings.TrimSpace(cols[0]))
	if err != nil || year < 2000 {
		return periodPrice{}, false, nil
	}
	month, err := strconv.Atoi(strings.TrimSpace(cols[1]))
	if err != nil {
		return periodPrice{}, false, fmt.Errorf("parse month '%s': %w", cols[1], err)
	}
	day, err := strconv.Atoi(strings.TrimSpace(cols[2]))
	if err != nil {
		return periodPrice{}, false, fmt.Errorf("parse day '%s': %w", cols[2], err)
	}
	period, err := strconv.Atoi(strings.TrimSpace(cols[3]))
	if err != nil || period < 1 || period > 100 {
		return periodPrice{}, false, fmt.Errorf("invalid period '%s'", cols[3])
	}

	var price float64
	found := false
	for i := len(cols) - 1; i >= 4; i-- {
		price, err = strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(cols[i]), ",", "."), 64)
		if err == nil {
			found = true
			break
		}
	}
	if !found {
		return periodPrice{}, false, fmt.Errorf("no price in '%s'", line)
	}

	return periodPrice{
		date:   time.Date(year, time.Month(month), day, 0, 0, 0, 0, timeutils.TariffZone),
		period: period,
		price:  price,
	}, true, nil
}
