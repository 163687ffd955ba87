package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/jask/rlaconsole/internal/service"
	"github.com/jask/rlaconsole/internal/task"
	"github.com/jask/rlaconsole/internal/widgets"
)

const (
	colorText    lipgloss.Color = "#cdd6f4"
	colorMuted   lipgloss.Color = "#7f849c"
	colorSurface lipgloss.Color = "#313244"
	colorAccent  lipgloss.Color = "#f5c2e7"
	colorFocus   lipgloss.Color = "#b4befe"
	colorSuccess lipgloss.Color = "#a6e3a1"
	colorError   lipgloss.Color = "#f38ba8"
	colorWarning lipgloss.Color = "#f9e2af"
)

var (
	titleStyle     = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	tabStyle       = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	activeTabStyle = lipgloss.NewStyle().Foreground(colorText).Background(colorSurface).Bold(true).Padding(0, 1)
	mutedStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	selectedStyle  = lipgloss.NewStyle().Foreground(colorFocus).Bold(true)
	successStyle   = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(colorError)
	warnStyle      = lipgloss.NewStyle().Foreground(colorWarning)
	spinnerStyle   = lipgloss.NewStyle().Foreground(colorAccent)
	statusStyle    = lipgloss.NewStyle().Foreground(colorText).Background(colorSurface)
	statusErrStyle = lipgloss.NewStyle().Foreground(colorError).Background(colorSurface).Bold(true)
)

func (a *App) View() string {
	w, h := a.width, a.height
	if w <= 0 {
		w = 80
	}
	if h <= 0 {
		h = 24
	}

	header := a.renderTabs()
	footer := a.help.View(tabHelp{keys: a.keys, tab: a.tab})
	status := a.renderStatus(w)
	bodyH := max(3, h-lipgloss.Height(header)-lipgloss.Height(footer)-1)

	var content string
	switch a.tab {
	case tabSetup:
		content = a.renderSetup()
	case tabRounds:
		content = a.renderRounds()
	case tabLogin:
		content = a.renderLogin()
	default:
		content = a.renderActivity()
	}
	body := widgets.Panel{Title: a.tab.String(), Content: content, Active: true}.Render(w, bodyH)
	if a.dialog.open {
		body = a.renderDialog().Overlay(body, w, bodyH)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, status, footer)
}

func (a *App) renderTabs() string {
	parts := []string{titleStyle.Render("rlaconsole")}
	for t := tab(0); t < tabCount; t++ {
		label := fmt.Sprintf("%d %s", t+1, t)
		if t == a.tab {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

func (a *App) renderStatus(width int) string {
	msg := strings.TrimSpace(a.status)
	style := statusStyle
	switch {
	case msg == "":
		msg = "Ready"
	case a.statusErr:
		style = statusErrStyle
		msg += "  (x to dismiss)"
	}
	line := ansi.Truncate(strings.ReplaceAll(msg, "\n", " "), width, "…")
	if pad := width - ansi.StringWidth(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	return style.Render(line)
}

func (a *App) gateLabel(st service.Stage) string {
	switch st.State {
	case service.GateLive:
		return successStyle.Render("live")
	case service.GateProcessing:
		return a.spinner.View() + warnStyle.Render(" processing")
	default:
		return mutedStyle.Render("locked")
	}
}

func (a *App) renderSetup() string {
	var b strings.Builder
	for i, st := range a.stage.Stages {
		cursor := "  "
		title := st.Title
		if i == a.stageSel {
			cursor = "> "
			title = selectedStyle.Render(title)
		}
		current := ""
		if st.ID == a.stage.Current {
			current = mutedStyle.Render("  (current)")
		}
		fmt.Fprintf(&b, "%s%d. %-28s %s%s\n", cursor, i+1, title, a.gateLabel(st), current)
	}
	b.WriteString("\n")
	b.WriteString(a.renderRoster(a.stage.Roster))
	if a.stage.TaskErr != nil {
		b.WriteString("\n" + errorStyle.Render(a.stage.TaskErr.Error()))
	}
	return b.String()
}

func (a *App) renderRoster(t *task.BackgroundTask) string {
	switch t.Status() {
	case task.Pending:
		if t == nil {
			return mutedStyle.Render("No jurisdictions file uploaded.")
		}
		return mutedStyle.Render("Jurisdictions file queued for processing.")
	case task.Running:
		return "Jurisdictions file processing, started " + humanize.Time(*t.StartedAt) + "."
	case task.Complete:
		return "Jurisdictions file processed " + humanize.Time(*t.CompletedAt) + "."
	default:
		return errorStyle.Render("Jurisdictions file could not be processed.")
	}
}

func (a *App) renderRounds() string {
	s := a.rounds
	var b strings.Builder
	label := s.State.Label()
	if s.Round != nil {
		label = fmt.Sprintf("Round %d: %s", s.Round.RoundNum, label)
	}
	b.WriteString(titleStyle.Render(label) + "\n\n")

	switch s.State {
	case service.NotStarted:
		b.WriteString(mutedStyle.Render("Press s to start the first round."))
	case service.DrawingSample:
		b.WriteString(a.spinner.View() + " Drawing the sample, started " + humanize.Time(s.Round.StartedAt) + ".")
	case service.DrawFailed:
		if s.DrawErr != nil {
			b.WriteString(errorStyle.Render(s.DrawErr.Message) + "\n")
		}
		b.WriteString(mutedStyle.Render("Press s to draw the sample again."))
	default:
		p := s.Progress
		fmt.Fprintf(&b, "%s\n%s of %s %s\n", a.progress.ViewAs(p.Fraction()),
			humanize.Comma(int64(p.Completed)), humanize.Comma(int64(p.Total)), s.Mode)
		if s.ProgressErr != nil {
			b.WriteString(warnStyle.Render("Progress may be stale: "+s.ProgressErr.Error()) + "\n")
		}
		if s.State == service.RoundCompleteNeedsAnother {
			b.WriteString("\n" + mutedStyle.Render("Press s to start the next round."))
		}
	}
	if a.roundsErr != nil {
		b.WriteString("\n\n" + errorStyle.Render(a.roundsErr.Error()))
	}
	return b.String()
}

func (a *App) renderLogin() string {
	s := a.login
	if !s.Enabled {
		return mutedStyle.Render("Tally entry accounts are off. Press t to turn them on.")
	}
	var b strings.Builder
	b.WriteString("Share this link with tally entry agents:\n")
	b.WriteString(titleStyle.Render(s.ShareLink) + "\n\n")

	pending := s.Pending()
	if len(pending) == 0 {
		b.WriteString(mutedStyle.Render("Waiting for login requests…") + "\n")
	}
	dup := map[string]string{}
	for _, d := range s.Duplicates {
		dup[d.PendingID] = d.OtherID
	}
	for i, r := range pending {
		cursor := "  "
		names := r.MemberNames()
		if i == a.loginSel {
			cursor = "> "
			names = selectedStyle.Render(names)
		}
		line := cursor + names
		if _, ok := dup[r.TallyEntryUserID]; ok {
			line += warnStyle.Render("  possible duplicate sign-in")
		}
		if r.InlineError != "" {
			line += "  " + errorStyle.Render(r.InlineError)
		}
		b.WriteString(line + "\n")
	}

	confirmed := 0
	for _, r := range s.Requests {
		if r.Confirmed() {
			confirmed++
		}
	}
	if confirmed > 0 {
		fmt.Fprintf(&b, "\n%s\n", mutedStyle.Render(fmt.Sprintf("%d confirmed", confirmed)))
	}
	return b.String()
}

func (a *App) renderActivity() string {
	if len(a.activity) == 0 {
		return mutedStyle.Render("No activity yet.")
	}
	var b strings.Builder
	for _, e := range a.activity {
		what := strings.ReplaceAll(e.Kind, "_", " ")
		if e.Detail != "" {
			what += ": " + e.Detail
		}
		fmt.Fprintf(&b, "%-16s %s\n", mutedStyle.Render(humanize.Time(e.CreatedAt)), what)
	}
	return b.String()
}

func (a *App) renderDialog() widgets.Dialog {
	d := a.dialog
	if d.confirmed {
		return widgets.Dialog{Title: "Confirm login", Body: d.names + "\n\n" + successStyle.Render("Login Confirmed")}
	}
	body := d.names + "\n\nEnter the code shown to the agent:\n\n" + d.input.View()
	footer := "enter confirm · esc cancel"
	if d.busy {
		footer = "checking…"
	}
	return widgets.Dialog{Title: "Confirm login", Body: body, Footer: footer}
}
