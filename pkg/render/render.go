// Package render draws reports as terminal tables and horizontal bar charts.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	Primary = lipgloss.Color("#101F38")
	Accent  = lipgloss.Color("#8BC34A")
	Warning = lipgloss.Color("#E0A526")
	Muted   = lipgloss.Color("#8A94A6")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(Accent).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	issueStyle  = lipgloss.NewStyle().Foreground(Warning)
	mutedStyle  = lipgloss.NewStyle().Foreground(Muted)
	barStyle    = lipgloss.NewStyle().Foreground(Accent)
)

// Title writes a section heading.
func Title(w io.Writer, s string) {
	fmt.Fprintln(w, titleStyle.Render(s))
}

// Issue writes a degraded-section notice.
func Issue(w io.Writer, s string) {
	fmt.Fprintln(w, issueStyle.Render("⚠ "+s))
}

// Note writes a muted line.
func Note(w io.Writer, s string) {
	fmt.Fprintln(w, mutedStyle.Render(s))
}

// Table writes a bordered table.
func Table(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Muted)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

// Bar is one bar of a chart.
type Bar struct {
	Label string
	Value float64
}

// Bars writes a horizontal bar chart scaled to width cells.
func Bars(w io.Writer, bars []Bar, width int) {
	if len(bars) == 0 {
		return
	}
	if width <= 0 {
		width = 40
	}
	maxVal, labelW := 0.0, 0
	for _, b := range bars {
		if b.Value > maxVal {
			maxVal = b.Value
		}
		if n := lipgloss.Width(b.Label); n > labelW {
			labelW = n
		}
	}
	for _, b := range bars {
		n := 0
		if maxVal > 0 {
			n = int(b.Value / maxVal * float64(width))
		}
		if n == 0 && b.Value > 0 {
			n = 1
		}
		label := b.Label + strings.Repeat(" ", labelW-lipgloss.Width(b.Label))
		fmt.Fprintf(w, "%s │%s %s\n", label, barStyle.Render(strings.Repeat("█", n)), formatNumber(b.Value))
	}
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
