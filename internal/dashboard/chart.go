package dashboard

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"gpsdxo-mon/internal/series"
)

// Dataset is one plotted series.
type Dataset struct {
	Name    string
	Samples []series.Sample
	Marker  rune
	Style   lipgloss.Style
}

// Chart plots datasets on a width x height character grid. The x axis runs
// from From to To; points outside [Lo, Hi] are not drawn.
type Chart struct {
	Title    string
	From, To time.Time
	Lo, Hi   float64
	Sets     []Dataset
}

// Plot returns the grid rows, top row first. Later datasets draw over
// earlier ones.
func (c Chart) Plot(width, height int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}
	grid := make([][]string, height)
	for y := range grid {
		grid[y] = make([]string, width)
		for x := range grid[y] {
			grid[y][x] = " "
		}
	}

	span := c.To.Sub(c.From)
	rng := c.Hi - c.Lo
	if span > 0 && rng > 0 {
		for _, set := range c.Sets {
			mark := set.Style.Render(string(set.Marker))
			for _, s := range set.Samples {
				if s.Time.Before(c.From) || s.Time.After(c.To) {
					continue
				}
				if s.Value < c.Lo || s.Value > c.Hi {
					continue
				}
				x := int(float64(s.Time.Sub(c.From)) / float64(span) * float64(width-1))
				y := int((s.Value - c.Lo) / rng * float64(height-1))
				grid[height-1-y][x] = mark
			}
		}
	}

	rows := make([]string, height)
	for y := range grid {
		rows[y] = strings.Join(grid[y], "")
	}
	return rows
}

// Render draws the chart inside a bordered box of the given outer size,
// with the title, y bounds and a legend.
func (c Chart) Render(width, height int, box lipgloss.Style) string {
	innerW := width - box.GetHorizontalFrameSize()
	innerH := height - box.GetVerticalFrameSize()
	if innerW < 10 || innerH < 3 {
		return box.Render(c.Title)
	}

	hiLabel := formatBound(c.Hi)
	loLabel := formatBound(c.Lo)
	labelW := max(len(hiLabel), len(loLabel))
	plotW := innerW - labelW - 1
	plotH := innerH - 1
	if plotW < 1 {
		plotW = 1
		labelW = 0
	}

	var b strings.Builder
	b.WriteString(c.header(innerW))
	for i, row := range c.Plot(plotW, plotH) {
		b.WriteString("\n")
		label := ""
		switch i {
		case 0:
			label = hiLabel
		case plotH - 1:
			label = loLabel
		}
		if labelW > 0 {
			b.WriteString(padLeft(label, labelW))
			b.WriteString("│")
		}
		b.WriteString(row)
	}
	return box.Width(innerW).Render(b.String())
}

func (c Chart) header(width int) string {
	parts := []string{titleStyle.Render(c.Title)}
	if len(c.Sets) > 1 {
		for _, s := range c.Sets {
			parts = append(parts, s.Style.Render(string(s.Marker)+" "+s.Name))
		}
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(strings.Join(parts, "  "))
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func padLeft(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return strings.Repeat(" ", w-len(s)) + s
}
