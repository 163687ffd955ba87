package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Dialog is a card drawn centred over the current view.
type Dialog struct {
	Title  string
	Body   string
	Footer string
}

func (d Dialog) card() string {
	parts := []string{lipgloss.NewStyle().Bold(true).Render(d.Title), "", d.Body}
	if d.Footer != "" {
		parts = append(parts, "", lipgloss.NewStyle().Faint(true).Render(d.Footer))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 2).
		Render(strings.Join(parts, "\n"))
}

// Overlay composites the dialog over base. Columns of base outside the card
// stay visible.
func (d Dialog) Overlay(base string, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	under := canvas(base, width, height)
	over := canvas(lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, d.card()), width, height)
	out := make([]string, height)
	for i := range out {
		b, o := under[i], over[i]
		start, end, ok := inkBounds(o, width)
		if !ok {
			out[i] = b
			continue
		}
		left := ansi.Truncate(b, start, "")
		mid := ansi.Truncate(skipColumns(o, start), end-start, "")
		out[i] = fit(left+mid+skipColumns(b, end), width)
	}
	return strings.Join(out, "\n")
}

// inkBounds finds the first and last non-blank columns of a line.
func inkBounds(line string, width int) (start, end int, ok bool) {
	plain := ansi.Strip(ansi.Truncate(line, width, ""))
	trimmed := strings.TrimRight(plain, " ")
	start = len(trimmed) - len(strings.TrimLeft(trimmed, " "))
	end = ansi.StringWidth(trimmed)
	return start, end, start < end
}

func canvas(s string, width, height int) []string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i := range lines {
		lines[i] = fit(lines[i], width)
	}
	return lines
}

func skipColumns(s string, cols int) string {
	if cols <= 0 {
		return s
	}
	return strings.TrimPrefix(s, ansi.Truncate(s, cols, ""))
}

// fit truncates or right-pads s to exactly width cells.
func fit(s string, width int) string {
	s = ansi.Truncate(s, width, "")
	if w := ansi.StringWidth(s); w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}
