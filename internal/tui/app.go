package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/database/repository"
	"github.com/jask/rlaconsole/internal/service"
	"github.com/jask/rlaconsole/internal/widgets"
)

type tab int

const (
	tabSetup tab = iota
	tabRounds
	tabLogin
	tabActivity
	tabCount
)

func (t tab) String() string {
	switch t {
	case tabSetup:
		return "Setup"
	case tabRounds:
		return "Rounds"
	case tabLogin:
		return "Tally entry"
	default:
		return "Activity"
	}
}

// Options wires the coordinators into the App.
type Options struct {
	ElectionID       string
	Stage            *service.StageGate
	Rounds           *service.RoundTracker
	Login            *service.LoginCoordinator
	Journal          *service.Journal
	Bus              *Bus
	ConfirmedDismiss time.Duration
}

// loginDialog is the confirm-code modal for one login request.
type loginDialog struct {
	open      bool
	userID    string
	names     string
	input     widgets.CodeInput
	busy      bool
	confirmed bool
}

// App ties together views.
type App struct {
	ctx  context.Context
	opts Options
	keys keyMap
	help help.Model

	tab    tab
	width  int
	height int

	stage      service.StageSnapshot
	stageErr   error
	stageSel   int
	rounds     service.RoundSnapshot
	roundsErr  error
	login      service.LoginSnapshot
	loginSel   int
	activity   []repository.Activity
	status     string
	statusErr  bool
	dialog     loginDialog
	spinner    spinner.Model
	progress   progress.Model
}

func New(ctx context.Context, opts Options) *App {
	if opts.ConfirmedDismiss <= 0 {
		opts.ConfirmedDismiss = 1500 * time.Millisecond
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return &App{
		ctx:      ctx,
		opts:     opts,
		keys:     defaultKeys(),
		help:     help.New(),
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		stage:    opts.Stage.Snapshot(),
		rounds:   opts.Rounds.Snapshot(),
		login:    opts.Login.Snapshot(),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.opts.Bus.wait(),
		a.spinner.Tick,
		a.run(a.opts.Stage.Refresh),
		a.run(a.opts.Rounds.Refresh),
		a.run(a.opts.Login.Start),
		a.loadActivity(),
	)
}

// run executes a coordinator call off the update loop. Snapshots arrive over
// the bus; only the error comes back here.
func (a *App) run(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return errorMsg(fn(a.ctx))
	}
}

func (a *App) loadActivity() tea.Cmd {
	return func() tea.Msg {
		list, err := a.opts.Journal.Recent(a.ctx, a.opts.ElectionID, 50)
		if err != nil {
			return errorMsg(err)
		}
		return activityMsg(list)
	}
}

// mutate runs fn, then reports done and reloads the activity log.
func (a *App) mutate(fn func(context.Context) error, done string) tea.Cmd {
	return tea.Sequence(func() tea.Msg {
		if err := fn(a.ctx); err != nil {
			return errorMsg(err)
		}
		return statusMsg{Text: done}
	}, a.loadActivity())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		a.help.Width = m.Width
		a.progress.Width = max(10, min(60, m.Width-20))
		return a, nil
	case tea.KeyMsg:
		if a.dialog.open {
			return a.handleDialogKey(m)
		}
		return a.handleKey(m)
	case stageMsg:
		if m.Err != nil {
			a.stageErr = m.Err
			return a, tea.Batch(a.notify(m.Err), a.opts.Bus.wait())
		}
		a.stage, a.stageErr = m.Value, nil
		a.stageSel = clamp(a.stageSel, len(a.stage.Stages))
		return a, a.opts.Bus.wait()
	case roundMsg:
		if m.Err != nil {
			a.roundsErr = m.Err
			return a, tea.Batch(a.notify(m.Err), a.opts.Bus.wait())
		}
		a.rounds, a.roundsErr = m.Value, nil
		return a, a.opts.Bus.wait()
	case loginMsg:
		if m.Err != nil {
			return a, tea.Batch(a.notify(m.Err), a.opts.Bus.wait())
		}
		a.login = m.Value
		a.loginSel = clamp(a.loginSel, len(a.login.Pending()))
		return a, a.opts.Bus.wait()
	case activityMsg:
		a.activity = []repository.Activity(m)
	case statusMsg:
		a.status, a.statusErr = m.Text, m.IsErr
	case confirmResultMsg:
		return a, a.handleConfirmResult(m)
	case dismissConfirmedMsg:
		if a.dialog.open && a.dialog.confirmed && a.dialog.userID == m.UserID {
			a.dialog = loginDialog{}
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(m)
		return a, cmd
	case progress.FrameMsg:
		pm, cmd := a.progress.Update(m)
		a.progress = pm.(progress.Model)
		return a, cmd
	}
	return a, nil
}

func (a *App) notify(err error) tea.Cmd {
	return func() tea.Msg { return errorMsg(err) }
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := a.keys
	switch {
	case key.Matches(m, k.Quit):
		return a, tea.Quit
	case key.Matches(m, k.NextTab):
		a.tab = (a.tab + 1) % tabCount
		return a, nil
	case key.Matches(m, k.PrevTab):
		a.tab = (a.tab + tabCount - 1) % tabCount
		return a, nil
	case key.Matches(m, k.Dismiss):
		a.status, a.statusErr = "", false
		return a, nil
	case key.Matches(m, k.ShowHelp):
		a.help.ShowAll = !a.help.ShowAll
		return a, nil
	}

	switch a.tab {
	case tabSetup:
		return a, a.handleSetupKey(m)
	case tabRounds:
		return a, a.handleRoundsKey(m)
	case tabLogin:
		return a, a.handleLoginKey(m)
	default:
		if key.Matches(m, k.Refresh) {
			return a, a.loadActivity()
		}
	}
	return a, nil
}

func (a *App) handleSetupKey(m tea.KeyMsg) tea.Cmd {
	k := a.keys
	switch {
	case key.Matches(m, k.Up):
		a.stageSel = clamp(a.stageSel-1, len(a.stage.Stages))
	case key.Matches(m, k.Down):
		a.stageSel = clamp(a.stageSel+1, len(a.stage.Stages))
	case key.Matches(m, k.Refresh):
		return a.run(a.opts.Stage.Refresh)
	case key.Matches(m, k.Select), key.Matches(m, k.Force):
		if len(a.stage.Stages) == 0 {
			return nil
		}
		st := a.stage.Stages[a.stageSel]
		force := key.Matches(m, k.Force)
		if st.State != service.GateLive {
			return statusCmd(st.Title + " is " + st.State.String())
		}
		return func() tea.Msg {
			moved, err := st.Activate(a.ctx, force)
			if err != nil {
				return errorMsg(err)
			}
			if !moved {
				return statusMsg{Text: "stayed on the current stage"}
			}
			return nil
		}
	}
	return nil
}

func (a *App) handleRoundsKey(m tea.KeyMsg) tea.Cmd {
	k := a.keys
	switch {
	case key.Matches(m, k.Start):
		return a.mutate(a.opts.Rounds.StartRound, "round started")
	case key.Matches(m, k.Undo):
		return a.mutate(a.opts.Rounds.UndoRoundStart, "round start undone")
	case key.Matches(m, k.Refresh):
		return a.run(a.opts.Rounds.Refresh)
	}
	return nil
}

func (a *App) handleLoginKey(m tea.KeyMsg) tea.Cmd {
	k := a.keys
	pending := a.login.Pending()
	switch {
	case key.Matches(m, k.TurnOn):
		if a.login.Enabled {
			return statusCmd("tally entry accounts are already on")
		}
		return a.mutate(a.opts.Login.TurnOnAccounts, "tally entry accounts turned on")
	case key.Matches(m, k.Up):
		a.loginSel = clamp(a.loginSel-1, len(pending))
	case key.Matches(m, k.Down):
		a.loginSel = clamp(a.loginSel+1, len(pending))
	case key.Matches(m, k.Refresh):
		return a.run(a.opts.Login.Refresh)
	case key.Matches(m, k.Select):
		if len(pending) == 0 {
			return nil
		}
		r := pending[a.loginSel]
		in := widgets.NewCodeInput(a.opts.Login.CodeLength())
		in.Err = r.InlineError
		a.dialog = loginDialog{open: true, userID: r.TallyEntryUserID, names: r.MemberNames(), input: in}
	case key.Matches(m, k.Reject):
		if len(pending) == 0 {
			return nil
		}
		r := pending[a.loginSel]
		return a.mutate(r.Reject, "login request from "+r.MemberNames()+" rejected")
	}
	return nil
}

func (a *App) handleDialogKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := &a.dialog
	if d.confirmed {
		// the success state closes itself
		return a, nil
	}
	switch {
	case m.Type == tea.KeyCtrlC:
		return a, tea.Quit
	case key.Matches(m, a.keys.Close):
		if !d.busy {
			a.dialog = loginDialog{}
		}
		return a, nil
	case key.Matches(m, a.keys.Select):
		if d.busy || !d.input.Complete() {
			return a, nil
		}
		d.busy = true
		userID, code := d.userID, d.input.Value()
		return a, func() tea.Msg {
			return confirmResultMsg{UserID: userID, Err: a.opts.Login.Confirm(a.ctx, userID, code)}
		}
	}
	if !d.busy {
		d.input, _ = d.input.Update(m)
	}
	return a, nil
}

func (a *App) handleConfirmResult(m confirmResultMsg) tea.Cmd {
	d := &a.dialog
	if !d.open || d.userID != m.UserID {
		return nil
	}
	d.busy = false
	if m.Err == nil {
		d.confirmed = true
		d.input.Err = ""
		userID := m.UserID
		return tea.Batch(
			tea.Tick(a.opts.ConfirmedDismiss, func(time.Time) tea.Msg { return dismissConfirmedMsg{UserID: userID} }),
			a.loadActivity(),
		)
	}
	if msg, ok := api.ValidationMessage(m.Err); ok {
		d.input.Err = msg
		d.input.Reset()
		return nil
	}
	// transport failures keep the typed digits so the admin can retry
	return a.notify(m.Err)
}

func clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
