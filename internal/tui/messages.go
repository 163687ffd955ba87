package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/database/repository"
	"github.com/jask/rlaconsole/internal/service"
)

type stageMsg api.Result[service.StageSnapshot]
type roundMsg api.Result[service.RoundSnapshot]
type loginMsg api.Result[service.LoginSnapshot]

type activityMsg []repository.Activity

type statusMsg struct {
	Text  string
	IsErr bool
}

type confirmResultMsg struct {
	UserID string
	Err    error
}

type dismissConfirmedMsg struct {
	UserID string
}

// Bus carries coordinator snapshots into the Bubble Tea loop. Coordinators
// publish from their own goroutines; the program drains the bus with one
// blocking command at a time.
type Bus struct {
	ch  chan tea.Msg
	ctx context.Context
}

func NewBus(ctx context.Context) *Bus {
	return &Bus{ch: make(chan tea.Msg, 64), ctx: ctx}
}

func (b *Bus) send(m tea.Msg) {
	select {
	case b.ch <- m:
	case <-b.ctx.Done():
	}
}

// StageSink, RoundSink and LoginSink are the OnChange callbacks for the
// three coordinators.
func (b *Bus) StageSink(r api.Result[service.StageSnapshot]) { b.send(stageMsg(r)) }
func (b *Bus) RoundSink(r api.Result[service.RoundSnapshot]) { b.send(roundMsg(r)) }
func (b *Bus) LoginSink(r api.Result[service.LoginSnapshot]) { b.send(loginMsg(r)) }

func (b *Bus) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case m := <-b.ch:
			return m
		case <-b.ctx.Done():
			return nil
		}
	}
}

func statusCmd(text string) tea.Cmd {
	return func() tea.Msg { return statusMsg{Text: text} }
}

func errorMsg(err error) tea.Msg {
	if err == nil {
		return nil
	}
	return statusMsg{Text: err.Error(), IsErr: true}
}
