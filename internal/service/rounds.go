package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/database/repository"
	"github.com/jask/rlaconsole/internal/poll"
	"github.com/jask/rlaconsole/internal/task"
)

// RoundState is the derived lifecycle state of the latest round.
type RoundState string

const (
	NotStarted                RoundState = "NOT_STARTED"
	DrawingSample             RoundState = "DRAWING_SAMPLE"
	DrawFailed                RoundState = "DRAW_FAILED"
	InProgress                RoundState = "IN_PROGRESS"
	RoundCompleteNeedsAnother RoundState = "ROUND_COMPLETE_NEEDS_ANOTHER"
	AuditComplete             RoundState = "AUDIT_COMPLETE"
)

// Active reports whether a round is drawing or being audited.
func (s RoundState) Active() bool {
	return s == DrawingSample || s == InProgress
}

func (s RoundState) Label() string {
	switch s {
	case NotStarted:
		return "Not started"
	case DrawingSample:
		return "Drawing sample"
	case DrawFailed:
		return "Sample draw failed"
	case InProgress:
		return "In progress"
	case RoundCompleteNeedsAnother:
		return "Round complete, another round needed"
	case AuditComplete:
		return "Audit complete"
	}
	return string(s)
}

var (
	ErrRoundActive   = errors.New("a round is already in progress")
	ErrAuditComplete = errors.New("the audit is complete")
	ErrNothingToUndo = errors.New("no round start to undo")
)

// LastRound returns the latest round, or nil.
func LastRound(rounds []api.Round) *api.Round {
	if len(rounds) == 0 {
		return nil
	}
	r := rounds[len(rounds)-1]
	return &r
}

// DeriveRoundState looks only at the last round.
func DeriveRoundState(rounds []api.Round) RoundState {
	r := LastRound(rounds)
	switch {
	case r == nil:
		return NotStarted
	case r.IsAuditComplete:
		return AuditComplete
	case r.EndedAt != nil:
		return RoundCompleteNeedsAnother
	}
	switch r.DrawSampleTask.Status() {
	case task.Errored:
		return DrawFailed
	case task.Complete:
		return InProgress
	default:
		return DrawingSample
	}
}

type RoundSnapshot struct {
	State    RoundState
	Round    *api.Round
	Progress Progress
	Mode     ProgressMode
	// DrawErr carries the server's message when the sample draw failed.
	DrawErr *api.TerminalTaskError
	// ProgressErr is set when the progress reads failed. State and Round are
	// still current; Progress is the last good count for the same round.
	ProgressErr error
}

// RoundsAPI is what the tracker needs from the data-access layer.
type RoundsAPI interface {
	api.RoundReader
	api.RoundWriter
	api.ProgressReader
}

type RoundTrackerConfig struct {
	API             RoundsAPI
	ElectionID      string
	JurisdictionIDs []string
	Mode            ProgressMode
	Poll            poll.Options
	Log             logrus.FieldLogger
	Journal         *Journal
	OnChange        func(api.Result[RoundSnapshot])
}

// RoundTracker derives the round lifecycle and progress, polling while the
// sample is being drawn.
type RoundTracker struct {
	api          RoundsAPI
	electionID   string
	jurisdiction []string
	mode         ProgressMode
	opts         poll.Options
	log          logrus.FieldLogger
	journal      *Journal
	onChange     func(api.Result[RoundSnapshot])

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	last    RoundSnapshot
	loop    *poll.Handle
	loopGen int
	closed  bool
}

func NewRoundTracker(cfg RoundTrackerConfig) *RoundTracker {
	ctx, cancel := context.WithCancel(context.Background())
	mode := cfg.Mode
	if mode == nil {
		mode = OnlineBallotEntry{}
	}
	return &RoundTracker{
		api:          cfg.API,
		electionID:   cfg.ElectionID,
		jurisdiction: cfg.JurisdictionIDs,
		mode:         mode,
		opts:         cfg.Poll,
		log:          loggerOrDiscard(cfg.Log).WithField("election", cfg.ElectionID),
		journal:      cfg.Journal,
		onChange:     cfg.OnChange,
		ctx:          ctx,
		cancel:       cancel,
		last:         RoundSnapshot{State: NotStarted, Mode: mode},
	}
}

// load derives the round state from the rounds list alone. Only a failed
// GetRounds is an error; a failed progress read is carried on the snapshot.
func (t *RoundTracker) load(ctx context.Context) (RoundSnapshot, error) {
	rounds, err := t.api.GetRounds(ctx, t.electionID)
	if err != nil {
		return RoundSnapshot{}, api.Transient("get rounds", err)
	}
	snap := RoundSnapshot{State: DeriveRoundState(rounds), Round: LastRound(rounds), Mode: t.mode}
	switch snap.State {
	case DrawFailed:
		snap.DrawErr = &api.TerminalTaskError{Message: snap.Round.DrawSampleTask.ErrorText()}
	case InProgress, RoundCompleteNeedsAnother, AuditComplete:
		if len(t.jurisdiction) == 0 {
			break
		}
		p, err := SumProgress(ctx, t.api, t.mode, t.electionID, t.jurisdiction, snap.Round.ID)
		if err != nil {
			snap.ProgressErr = err
			t.mu.Lock()
			if prev := t.last.Round; prev != nil && prev.ID == snap.Round.ID {
				snap.Progress = t.last.Progress
			}
			t.mu.Unlock()
			break
		}
		snap.Progress = p
	}
	return snap, nil
}

func (t *RoundTracker) store(snap RoundSnapshot) {
	t.mu.Lock()
	prev := t.last.State
	t.last = snap
	t.mu.Unlock()
	if prev != snap.State {
		t.log.WithField("state", snap.State).Info("round state changed")
	}
	if snap.ProgressErr != nil {
		t.log.WithError(snap.ProgressErr).Warn("read round progress")
	}
	t.publish(api.Success(snap))
}

// Refresh re-derives the round state and starts polling if the sample is
// still being drawn. A failed progress read is returned after the new state
// has been stored.
func (t *RoundTracker) Refresh(ctx context.Context) error {
	snap, err := t.load(ctx)
	if err != nil {
		t.log.WithError(err).Warn("refresh rounds")
		t.publish(api.Failure[RoundSnapshot](err))
		return err
	}
	t.store(snap)
	t.ensurePolling()
	return snap.ProgressErr
}

func (t *RoundTracker) ensurePolling() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.last.State != DrawingSample || t.loop.Running() {
		return
	}
	t.loopGen++
	gen := t.loopGen
	t.loop = poll.Start(t.ctx, func(ctx context.Context) (bool, error) {
		snap, err := t.load(ctx)
		if err != nil {
			return false, err
		}
		t.store(snap)
		return snap.State != DrawingSample, nil
	}, func() {
		t.loopFinished(gen)
	}, func(err error) {
		t.loopFinished(gen)
		t.log.WithError(err).Warn("draw poll stopped")
		t.publish(api.Failure[RoundSnapshot](err))
	}, t.opts)
}

func (t *RoundTracker) loopFinished(gen int) {
	t.mu.Lock()
	if t.loopGen == gen {
		t.loop = nil
	}
	t.mu.Unlock()
}

// StartRound creates the next round. A round whose draw failed is replaced
// with a fresh attempt at the same round number.
func (t *RoundTracker) StartRound(ctx context.Context) error {
	rounds, err := t.api.GetRounds(ctx, t.electionID)
	if err != nil {
		return api.Transient("get rounds", err)
	}
	state := DeriveRoundState(rounds)
	switch {
	case state.Active():
		return ErrRoundActive
	case state == AuditComplete:
		return ErrAuditComplete
	}
	next := 1
	var entries []repository.Activity
	if last := LastRound(rounds); last != nil {
		next = last.RoundNum + 1
		if state == DrawFailed {
			if err := t.api.DeleteRound(ctx, t.electionID, last.ID); err != nil {
				return errors.Wrap(err, "remove failed round")
			}
			next = last.RoundNum
			entries = append(entries, repository.Activity{
				ElectionID: t.electionID, Kind: repository.KindRoundUndone,
				Subject: strconv.Itoa(last.RoundNum), Detail: last.DrawSampleTask.ErrorText(),
			})
		}
	}
	if err := t.api.CreateRound(ctx, t.electionID, api.CreateRoundRequest{RoundNum: next}); err != nil {
		return errors.Wrap(err, "create round")
	}
	t.log.WithField("round", next).Info("round started")
	entries = append(entries, repository.Activity{ElectionID: t.electionID, Kind: repository.KindRoundStarted, Subject: strconv.Itoa(next)})
	t.journal.Record(ctx, entries...)
	return t.Refresh(ctx)
}

// UndoRoundStart deletes the latest round as long as it has not ended.
func (t *RoundTracker) UndoRoundStart(ctx context.Context) error {
	rounds, err := t.api.GetRounds(ctx, t.electionID)
	if err != nil {
		return api.Transient("get rounds", err)
	}
	last := LastRound(rounds)
	if last == nil || last.EndedAt != nil || last.IsAuditComplete {
		return ErrNothingToUndo
	}
	if err := t.api.DeleteRound(ctx, t.electionID, last.ID); err != nil {
		return errors.Wrap(err, "delete round")
	}
	t.log.WithField("round", last.RoundNum).Info("round start undone")
	t.journal.Record(ctx, repository.Activity{ElectionID: t.electionID, Kind: repository.KindRoundUndone, Subject: strconv.Itoa(last.RoundNum)})
	return t.Refresh(ctx)
}

func (t *RoundTracker) Snapshot() RoundSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Polling reports whether a draw poll loop is active.
func (t *RoundTracker) Polling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loop.Running()
}

func (t *RoundTracker) publish(r api.Result[RoundSnapshot]) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if !closed && t.onChange != nil {
		t.onChange(r)
	}
}

func (t *RoundTracker) Close() {
	t.mu.Lock()
	t.closed = true
	h := t.loop
	t.mu.Unlock()
	t.cancel()
	h.Stop()
}
