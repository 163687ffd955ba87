package widgets

import "github.com/charmbracelet/lipgloss"

// Panel is a titled, bordered region of a tab.
type Panel struct {
	Title   string
	Content string
	Active  bool
}

func (p Panel) Render(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	border := lipgloss.RoundedBorder()
	style := lipgloss.NewStyle().Border(border).Padding(0, 1).Width(width - 2).Height(max(1, height-2))
	if p.Active {
		style = style.BorderForeground(lipgloss.Color("12"))
	}
	title := lipgloss.NewStyle().Bold(true).Render(p.Title)
	return style.Render(title + "\n" + p.Content)
}
