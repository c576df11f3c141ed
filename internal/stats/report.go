// Package stats contains usage statistics and reporting.
package stats

import (
	"context"
	"time"

	"github.com/verte-zerg/fanpanel/internal/model"
	"github.com/verte-zerg/fanpanel/internal/usage"
)

// Source provides recorded days in ascending order.
type Source interface {
	Days(ctx context.Context) ([]model.DayUsage, error)
}

// Report contains precomputed data for usage rendering.
type Report struct {
	Days       []model.DayUsage
	Total      int
	ActiveDays int
	Peak       model.DayUsage
	Trend      []float64
}

// BuildReport loads recorded days and fills the gaps between the first
// recorded day and today with zero-minute days.
func BuildReport(ctx context.Context, src Source, cfg model.HistoryConfig, now time.Time) (Report, error) {
	recorded, err := src.Days(ctx)
	if err != nil {
		return Report{}, err
	}
	if len(recorded) == 0 {
		return Report{}, nil
	}

	today := startOfDay(now)
	first := recorded[0].Day
	if cfg.Since != nil && startOfDay(*cfg.Since).After(first) {
		first = startOfDay(*cfg.Since)
	}
	if cfg.Last > 0 {
		if lastStart := today.AddDate(0, 0, -(cfg.Last - 1)); lastStart.After(first) {
			first = lastStart
		}
	}
	end := today
	if last := recorded[len(recorded)-1].Day; last.After(end) {
		end = last
	}

	byKey := make(map[string]int, len(recorded))
	for _, d := range recorded {
		byKey[d.Key] = d.Minutes
	}
	var report Report
	for day := first; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := usage.DayKey(day)
		d := model.DayUsage{Day: day, Key: key, Minutes: byKey[key]}
		report.Days = append(report.Days, d)
		report.Total += d.Minutes
		if d.Minutes > 0 {
			report.ActiveDays++
		}
		if d.Minutes > report.Peak.Minutes {
			report.Peak = d
		}
	}
	report.Trend = MovingAverage(minutesOf(report.Days), cfg.Window)
	return report, nil
}

func minutesOf(days []model.DayUsage) []float64 {
	values := make([]float64, len(days))
	for i, d := range days {
		values[i] = float64(d.Minutes)
	}
	return values
}

func startOfDay(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}
