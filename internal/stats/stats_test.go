package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/verte-zerg/fanpanel/internal/model"
)

func sampleReport() Report {
	days := []model.DayUsage{
		{Day: day(1), Key: "2026-03-01", Minutes: 20},
		{Day: day(2), Key: "2026-03-02", Minutes: 0},
		{Day: day(3), Key: "2026-03-03", Minutes: 130},
	}
	return Report{Days: days, Total: 150, ActiveDays: 2, Peak: days[2], Trend: []float64{20, 10, 50}}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMovingAverageWindowOfOne(t *testing.T) {
	got := MovingAverage([]float64{5, 0, 7}, 0)
	if len(got) != 3 || got[0] != 5 || got[1] != 0 || got[2] != 7 {
		t.Fatalf("expected values unchanged, got %v", got)
	}
}

func TestSparklineScalesFromZero(t *testing.T) {
	if got := Sparkline([]float64{0, 1, 80, 40}); got != " ▁█▄" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{0, 0}); got != "  " {
		t.Fatalf("unexpected idle sparkline %q", got)
	}
	if Sparkline(nil) != "" {
		t.Fatalf("expected empty sparkline")
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, sampleReport()); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Days: 3 (2 active)", "Total: 2h 30m", "Avg per day: 50m", "Peak: 2h 10m on 2026-03-03", "Trend: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}

	buf.Reset()
	if err := RenderSummary(&buf, Report{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "No usage recorded.\n" {
		t.Fatalf("unexpected empty summary %q", buf.String())
	}
}

func TestRenderDayTableNewestFirst(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderDayTable(&buf, sampleReport()); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(buf.String(), "\n")
	if !strings.HasPrefix(lines[2], "2026-03-03") || !strings.HasPrefix(lines[4], "2026-03-01") {
		t.Fatalf("unexpected order %q", lines)
	}
}

func TestRenderBars(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderBars(&buf, sampleReport(), 40, false); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(buf.String(), "\n")
	width := BarWidthFor(40, len("2026-03-01")+3+2)
	if got := strings.Count(lines[3], barChar); got != width {
		t.Fatalf("expected peak bar of %d, got %d in %q", width, got, lines[3])
	}
	if strings.Contains(lines[2], barChar) {
		t.Fatalf("expected empty bar for idle day, got %q", lines[2])
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected no color codes")
	}
}
