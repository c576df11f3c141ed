package stats

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	barChar             = "█"
	minBarWidth         = 10
	terminalWidthBackup = 80
	colorBar            = "\x1b[36m"
	colorReset          = "\x1b[0m"
)

// RenderBars prints a horizontal bar per day scaled to the busiest day.
// A non-positive totalWidth uses the terminal width.
func RenderBars(w io.Writer, r Report, totalWidth int, forceColor bool) error {
	if len(r.Days) == 0 || r.Peak.Minutes == 0 {
		return nil
	}
	if totalWidth <= 0 {
		totalWidth = terminalWidth()
	}
	label := len(r.Days[0].Key)
	value := len(fmt.Sprintf("%d", r.Peak.Minutes))
	width := BarWidthFor(totalWidth, label+value+2)
	color := shouldUseColor(w, forceColor)

	if _, err := fmt.Fprintln(w, "Daily Minutes"); err != nil {
		return err
	}
	for _, d := range r.Days {
		n := d.Minutes * width / r.Peak.Minutes
		if d.Minutes > 0 && n == 0 {
			n = 1
		}
		bar := strings.Repeat(barChar, n)
		if color && n > 0 {
			bar = colorBar + bar + colorReset
		}
		if _, err := fmt.Fprintf(w, "%s %*d %s\n", d.Key, value, d.Minutes, bar); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// BarWidthFor computes the bar area left after the row labels.
func BarWidthFor(totalWidth, labelWidth int) int {
	width := totalWidth - labelWidth - 1
	if width < minBarWidth {
		width = minBarWidth
	}
	return width
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
