package stats

import (
	"fmt"
	"io"
	"math"

	"github.com/verte-zerg/fanpanel/internal/format"
)

// sparkLevels index 0 is reserved for days without usage.
var sparkLevels = []rune(" ▁▂▃▄▅▆▇█")

// MovingAverage returns the trailing mean of values over window days. Early
// entries average the days available so far.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	prefix := make([]float64, len(values)+1)
	for i, v := range values {
		prefix[i+1] = prefix[i] + v
	}
	out := make([]float64, len(values))
	for i := range values {
		from := i + 1 - window
		if from < 0 {
			from = 0
		}
		out[i] = (prefix[i+1] - prefix[from]) / float64(i+1-from)
	}
	return out
}

// Sparkline renders minutes per day scaled from zero to the largest value.
// Any non-zero day gets at least the lowest bar.
func Sparkline(values []float64) string {
	peak := 0.0
	for _, v := range values {
		peak = math.Max(peak, v)
	}
	out := make([]rune, len(values))
	top := len(sparkLevels) - 1
	for i, v := range values {
		if v <= 0 || peak == 0 {
			out[i] = sparkLevels[0]
			continue
		}
		level := int(math.Ceil(v / peak * float64(top)))
		out[i] = sparkLevels[min(max(level, 1), top)]
	}
	return string(out)
}

// RenderSummary prints totals for the report.
func RenderSummary(w io.Writer, r Report) error {
	if len(r.Days) == 0 {
		_, err := fmt.Fprintln(w, "No usage recorded.")
		return err
	}
	avg := float64(r.Total) / float64(len(r.Days))
	lines := []string{
		"Summary",
		fmt.Sprintf("Days: %d (%d active)", len(r.Days), r.ActiveDays),
		fmt.Sprintf("Total: %s", format.Minutes(r.Total)),
		fmt.Sprintf("Avg per day: %s", format.Minutes(int(math.Round(avg)))),
	}
	if r.Peak.Minutes > 0 {
		lines = append(lines, fmt.Sprintf("Peak: %s on %s", format.Minutes(r.Peak.Minutes), r.Peak.Key))
	}
	if len(r.Trend) > 1 {
		lines = append(lines, "Trend: "+Sparkline(r.Trend))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderDayTable prints one row per day, newest first.
func RenderDayTable(w io.Writer, r Report) error {
	if len(r.Days) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Per-Day"); err != nil {
		return err
	}
	cols := []column{{title: "Day"}, {title: "Weekday"}, {title: "Minutes", right: true}, {title: "On time", right: true}}
	rows := make([][]string, 0, len(r.Days))
	for i := len(r.Days) - 1; i >= 0; i-- {
		d := r.Days[i]
		rows = append(rows, []string{
			d.Key,
			d.Day.Weekday().String()[:3],
			fmt.Sprintf("%d", d.Minutes),
			format.Minutes(d.Minutes),
		})
	}
	for _, line := range renderTable(cols, rows) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
