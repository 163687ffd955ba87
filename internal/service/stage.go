package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/database/repository"
	"github.com/jask/rlaconsole/internal/poll"
	"github.com/jask/rlaconsole/internal/task"
)

// StageID identifies one step of the audit setup wizard.
type StageID string

const (
	StageParticipants          StageID = "participants"
	StageTargetContests        StageID = "target-contests"
	StageOpportunisticContests StageID = "opportunistic-contests"
	StageSettings              StageID = "settings"
	StageReview                StageID = "review"
)

var stageTitles = map[StageID]string{
	StageParticipants:          "Participants",
	StageTargetContests:        "Target Contests",
	StageOpportunisticContests: "Opportunistic Contests",
	StageSettings:              "Audit Settings",
	StageReview:                "Review & Launch",
}

func (id StageID) Title() string { return stageTitles[id] }

// StageIDsFor lists the wizard steps for an audit type. Batch comparison
// audits have no opportunistic contests.
func StageIDsFor(t api.AuditType) []StageID {
	if t == api.BatchComparison {
		return []StageID{StageParticipants, StageTargetContests, StageSettings, StageReview}
	}
	return []StageID{StageParticipants, StageTargetContests, StageOpportunisticContests, StageSettings, StageReview}
}

func isContestStage(id StageID) bool {
	return id == StageTargetContests || id == StageOpportunisticContests
}

// GateState is the accessibility of a stage.
type GateState int

const (
	GateLocked GateState = iota
	GateLive
	GateProcessing
)

func (g GateState) String() string {
	switch g {
	case GateLive:
		return "live"
	case GateProcessing:
		return "processing"
	default:
		return "locked"
	}
}

// GateFromTask maps the roster task onto a gate. A queued task that has not
// started yet counts as processing.
func GateFromTask(t *task.BackgroundTask) GateState {
	if t == nil {
		return GateLocked
	}
	switch t.Status() {
	case task.Complete:
		return GateLive
	case task.Errored:
		return GateLocked
	default:
		return GateProcessing
	}
}

// CombineGates is locked if any input is locked, else processing if any is
// processing, else live.
func CombineGates(states ...GateState) GateState {
	out := GateLive
	for _, s := range states {
		switch s {
		case GateLocked:
			return GateLocked
		case GateProcessing:
			out = GateProcessing
		}
	}
	return out
}

// Stage is a read-only descriptor handed to the views. Activate is bound to
// the engine that produced it.
type Stage struct {
	ID    StageID
	Title string
	State GateState

	gate *StageGate
}

// Activate navigates to the stage. See StageGate.Activate.
func (s Stage) Activate(ctx context.Context, force bool) (bool, error) {
	if s.gate == nil {
		return false, nil
	}
	return s.gate.Activate(ctx, s.ID, force)
}

type StageSnapshot struct {
	Stages  []Stage
	Current StageID
	Roster  *task.BackgroundTask
	// TaskErr is set when roster processing failed on the server.
	TaskErr *api.TerminalTaskError
}

type StageGateConfig struct {
	Tasks      api.TaskReader
	ElectionID string
	AuditType  api.AuditType
	Poll       poll.Options
	Log        logrus.FieldLogger
	Journal    *Journal
	OnChange   func(api.Result[StageSnapshot])
}

// StageGate derives the wizard gates from the jurisdictions roster task and
// keeps one poll loop running while the roster is being processed.
type StageGate struct {
	tasks    api.TaskReader
	ref      api.ResourceRef
	ids      []StageID
	opts     poll.Options
	log      logrus.FieldLogger
	journal  *Journal
	onChange func(api.Result[StageSnapshot])
	guard    func(from, to StageID) bool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	roster  *task.BackgroundTask
	states  map[StageID]GateState
	current StageID
	loop    *poll.Handle
	loopGen int
	closed  bool
}

func NewStageGate(cfg StageGateConfig) *StageGate {
	ctx, cancel := context.WithCancel(context.Background())
	g := &StageGate{
		tasks:    cfg.Tasks,
		ref:      api.ResourceRef{ElectionID: cfg.ElectionID, Kind: api.JurisdictionsFile},
		ids:      StageIDsFor(cfg.AuditType),
		opts:     cfg.Poll,
		log:      loggerOrDiscard(cfg.Log).WithField("election", cfg.ElectionID),
		journal:  cfg.Journal,
		onChange: cfg.OnChange,
		ctx:      ctx,
		cancel:   cancel,
		current:  StageParticipants,
	}
	g.states = g.derive(nil)
	return g
}

// WithUnsavedChangesGuard installs the check consulted by a non-forced
// Activate before leaving the current stage. Returning false keeps the user
// where they are.
func (g *StageGate) WithUnsavedChangesGuard(fn func(from, to StageID) bool) *StageGate {
	g.mu.Lock()
	g.guard = fn
	g.mu.Unlock()
	return g
}

func (g *StageGate) derive(roster *task.BackgroundTask) map[StageID]GateState {
	contest := GateFromTask(roster)
	states := make(map[StageID]GateState, len(g.ids))
	var contests []GateState
	for _, id := range g.ids {
		if isContestStage(id) {
			states[id] = contest
			contests = append(contests, contest)
		}
	}
	combined := CombineGates(contests...)
	for _, id := range g.ids {
		switch {
		case id == StageParticipants:
			states[id] = GateLive
		case !isContestStage(id):
			states[id] = combined
		}
	}
	return states
}

// Refresh fetches the roster task, recomputes every gate and starts a poll
// loop if processing is underway and no loop is running.
func (g *StageGate) Refresh(ctx context.Context) error {
	t, err := g.tasks.GetTaskStatus(ctx, g.ref)
	if err != nil {
		err = api.Transient("get roster status", err)
		g.log.WithError(err).Warn("refresh stages")
		g.publish(api.Failure[StageSnapshot](err))
		return err
	}
	g.apply(ctx, t)
	g.ensurePolling()
	return nil
}

func (g *StageGate) apply(ctx context.Context, t *task.BackgroundTask) {
	g.mu.Lock()
	prev := GateFromTask(g.roster)
	g.roster = t.Clone()
	g.states = g.derive(g.roster)
	snap := g.snapshotLocked()
	g.mu.Unlock()

	next := GateFromTask(t)
	if prev == GateProcessing && next != GateProcessing {
		kind, detail := repository.KindRosterProcessed, ""
		if t == nil || t.Status() == task.Errored {
			kind, detail = repository.KindRosterFailed, t.ErrorText()
		}
		g.log.WithField("status", t.Status()).Info("roster processing finished")
		g.journal.Record(ctx, repository.Activity{ElectionID: g.ref.ElectionID, Kind: kind, Subject: string(g.ref.Kind), Detail: detail})
	}
	g.publish(api.Success(snap))
}

func (g *StageGate) ensurePolling() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || GateFromTask(g.roster) != GateProcessing {
		return
	}
	if g.loop.Running() {
		return
	}
	g.loopGen++
	gen := g.loopGen
	g.log.Debug("roster processing, polling")
	g.loop = poll.Start(g.ctx, func(ctx context.Context) (bool, error) {
		t, err := g.tasks.GetTaskStatus(ctx, g.ref)
		if err != nil {
			return false, api.Transient("get roster status", err)
		}
		g.apply(ctx, t)
		return GateFromTask(t) != GateProcessing, nil
	}, func() {
		g.loopFinished(gen)
	}, func(err error) {
		g.loopFinished(gen)
		// the gates keep their last state; the next Refresh starts a new loop
		g.log.WithError(err).Warn("roster poll stopped")
		g.publish(api.Failure[StageSnapshot](err))
	}, g.opts)
}

func (g *StageGate) loopFinished(gen int) {
	g.mu.Lock()
	if g.loopGen == gen {
		g.loop = nil
	}
	g.mu.Unlock()
}

// Activate moves the current-stage pointer to id. It does nothing unless the
// stage is live. Without force the unsaved-changes guard may veto the move.
// The gates are refreshed first; the pointer moves even if that refresh
// fails, and the refresh error is returned alongside.
func (g *StageGate) Activate(ctx context.Context, id StageID, force bool) (bool, error) {
	g.mu.Lock()
	state, ok := g.states[id]
	from, guard := g.current, g.guard
	g.mu.Unlock()

	if !ok || state != GateLive {
		return false, nil
	}
	if !force && guard != nil && from != id && !guard(from, id) {
		return false, nil
	}

	err := g.Refresh(ctx)

	g.mu.Lock()
	g.current = id
	snap := g.snapshotLocked()
	g.mu.Unlock()
	g.log.WithField("stage", id).Debug("stage activated")
	g.publish(api.Success(snap))
	return true, err
}

// Stages returns the current ordered descriptors.
func (g *StageGate) Stages() []Stage {
	return g.Snapshot().Stages
}

func (g *StageGate) Snapshot() StageSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *StageGate) snapshotLocked() StageSnapshot {
	snap := StageSnapshot{Current: g.current, Roster: g.roster.Clone()}
	for _, id := range g.ids {
		snap.Stages = append(snap.Stages, Stage{ID: id, Title: id.Title(), State: g.states[id], gate: g})
	}
	if g.roster.Status() == task.Errored {
		snap.TaskErr = &api.TerminalTaskError{Kind: g.ref.Kind, Message: g.roster.ErrorText()}
	}
	return snap
}

// Polling reports whether a roster poll loop is active.
func (g *StageGate) Polling() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loop.Running()
}

func (g *StageGate) publish(r api.Result[StageSnapshot]) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if !closed && g.onChange != nil {
		g.onChange(r)
	}
}

// Close stops the poll loop and waits for it. The engine publishes nothing
// afterwards.
func (g *StageGate) Close() {
	g.mu.Lock()
	g.closed = true
	h := g.loop
	g.mu.Unlock()
	g.cancel()
	h.Stop()
}
