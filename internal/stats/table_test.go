package stats

import (
	"strings"
	"testing"
)

func TestRenderTableAlignsColumns(t *testing.T) {
	cols := []column{{title: "Day"}, {title: "Minutes", right: true}, {title: "On time", right: true}}
	rows := [][]string{
		{"2026-03-04", "125", "2h 05m"},
		{"today", "5"},
	}

	lines := renderTable(cols, rows)
	want := []string{
		"Day" + strings.Repeat(" ", 9) + "Minutes  On time",
		"2026-03-04      125   2h 05m",
		"today" + strings.Repeat(" ", 13) + "5",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestRenderTableCountsWideRunes(t *testing.T) {
	lines := renderTable([]column{{title: "Name"}, {title: "Min", right: true}}, [][]string{{"風扇", "3"}})
	if lines[1] != "風扇    3" {
		t.Fatalf("unexpected row %q", lines[1])
	}
}
