package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/api/mock_api"
	"github.com/jask/rlaconsole/internal/database/repository"
	"github.com/jask/rlaconsole/internal/poll"
	"github.com/jask/rlaconsole/internal/sandbox"
	"github.com/jask/rlaconsole/internal/task"
)

func round(num int, draw *task.BackgroundTask) api.Round {
	r := api.Round{ID: "r" + string(rune('0'+num)), RoundNum: num, StartedAt: at(num)}
	if draw != nil {
		r.DrawSampleTask = *draw
	}
	return r
}

func ended(r api.Round, complete bool) api.Round {
	ts := at(30)
	r.EndedAt = &ts
	r.IsAuditComplete = complete
	return r
}

func TestDeriveRoundState(t *testing.T) {
	tests := []struct {
		name   string
		rounds []api.Round
		want   RoundState
	}{
		{"no rounds", nil, NotStarted},
		{"draw queued", []api.Round{round(1, nil)}, DrawingSample},
		{"drawing", []api.Round{round(1, runningTask())}, DrawingSample},
		{"draw failed", []api.Round{round(1, erroredTask("Not enough ballots"))}, DrawFailed},
		{"in progress", []api.Round{round(1, completeTask())}, InProgress},
		{"ended", []api.Round{ended(round(1, completeTask()), false)}, RoundCompleteNeedsAnother},
		{"audit complete", []api.Round{ended(round(1, completeTask()), true)}, AuditComplete},
		{"only the last round counts", []api.Round{ended(round(1, completeTask()), false), round(2, runningTask())}, DrawingSample},
		{"completion wins over draw state", []api.Round{ended(round(1, erroredTask("x")), true)}, AuditComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DeriveRoundState(tt.rounds))
		})
	}
	require.True(t, DrawingSample.Active())
	require.True(t, InProgress.Active())
	require.False(t, DrawFailed.Active())
	require.Equal(t, "Drawing sample", DrawingSample.Label())
}

func TestSelectProgressMode(t *testing.T) {
	require.Equal(t, BatchTallyEntry{}, SelectProgressMode(api.BatchComparison, true))
	require.Equal(t, BatchTallyEntry{}, SelectProgressMode(api.BatchComparison, false))
	require.Equal(t, OnlineBallotEntry{}, SelectProgressMode(api.BallotPolling, true))
	require.Equal(t, OfflineBallotEntry{}, SelectProgressMode(api.BallotPolling, false))
	require.Equal(t, OnlineBallotEntry{}, SelectProgressMode(api.Hybrid, true))
}

func TestCountProgressReadsOnlyItsMode(t *testing.T) {
	ctx := context.Background()

	t.Run("online", func(t *testing.T) {
		m := mock_api.NewMockAPI(gomock.NewController(t))
		m.EXPECT().GetAuditBoards(gomock.Any(), "e1", "j1", "r1").Return([]api.AuditBoard{
			{ID: "b1", NumSampledBallots: 10, NumAuditedBallots: 4},
			{ID: "b2", NumSampledBallots: 5, NumAuditedBallots: 5},
		}, nil)
		p, err := CountProgress(ctx, m, OnlineBallotEntry{}, "e1", "j1", "r1")
		require.NoError(t, err)
		require.Equal(t, Progress{Completed: 9, Total: 15}, p)
	})

	t.Run("offline", func(t *testing.T) {
		m := mock_api.NewMockAPI(gomock.NewController(t))
		m.EXPECT().GetOfflineResults(gomock.Any(), "e1", "j1", "r1").Return(api.OfflineResults{Submitted: true}, nil)
		p, err := CountProgress(ctx, m, OfflineBallotEntry{}, "e1", "j1", "r1")
		require.NoError(t, err)
		require.Equal(t, Progress{Completed: 1, Total: 1}, p)
	})

	t.Run("batch", func(t *testing.T) {
		m := mock_api.NewMockAPI(gomock.NewController(t))
		m.EXPECT().GetBatches(gomock.Any(), "e1", "j1", "r1").Return([]api.Batch{
			{ID: "a", ResultTallySheets: []api.TallySheet{{Name: "Tally Sheet #1"}}},
			{ID: "b"},
			{ID: "c", ResultTallySheets: []api.TallySheet{{Name: "Tally Sheet #1"}, {Name: "Tally Sheet #2"}}},
		}, nil)
		p, err := CountProgress(ctx, m, BatchTallyEntry{}, "e1", "j1", "r1")
		require.NoError(t, err)
		require.Equal(t, Progress{Completed: 2, Total: 3}, p)
		require.InDelta(t, 0.667, p.Fraction(), 0.001)
	})

	t.Run("fetch failure", func(t *testing.T) {
		m := mock_api.NewMockAPI(gomock.NewController(t))
		m.EXPECT().GetBatches(gomock.Any(), "e1", "j1", "r1").Return(nil, errors.New("connection reset"))
		_, err := CountProgress(ctx, m, BatchTallyEntry{}, "e1", "j1", "r1")
		require.True(t, api.IsTransient(err))
	})
}

func TestSumProgressAddsJurisdictions(t *testing.T) {
	m := mock_api.NewMockAPI(gomock.NewController(t))
	m.EXPECT().GetOfflineResults(gomock.Any(), "e1", "j1", "r1").Return(api.OfflineResults{Submitted: true}, nil)
	m.EXPECT().GetOfflineResults(gomock.Any(), "e1", "j2", "r1").Return(api.OfflineResults{}, nil)
	m.EXPECT().GetOfflineResults(gomock.Any(), "e1", "j3", "r1").Return(api.OfflineResults{Submitted: true}, nil)

	p, err := SumProgress(context.Background(), m, OfflineBallotEntry{}, "e1", []string{"j1", "j2", "j3"}, "r1")
	require.NoError(t, err)
	require.Equal(t, Progress{Completed: 2, Total: 3}, p)
	require.Equal(t, 0.0, Progress{}.Fraction())
}

func newTracker(t *testing.T, store *sandbox.Store, fc clockwork.FakeClock, j *Journal, rec *recorder[RoundSnapshot]) *RoundTracker {
	t.Helper()
	tr := NewRoundTracker(RoundTrackerConfig{
		API:             store,
		ElectionID:      "election-1",
		JurisdictionIDs: []string{"jurisdiction-1", "jurisdiction-2"},
		Mode:            OnlineBallotEntry{},
		Poll:            poll.Options{Interval: time.Second, Timeout: time.Minute, Clock: fc},
		Journal:         j,
		OnChange:        rec.record,
	})
	t.Cleanup(tr.Close)
	return tr
}

func TestRoundTrackerLifecycle(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := newSandboxStore(t, fc, sandbox.DefaultScenario())
	journal := newTestJournal(t)
	rec := &recorder[RoundSnapshot]{}
	tr := newTracker(t, store, fc, journal, rec)

	require.NoError(t, tr.Refresh(ctx))
	require.Equal(t, NotStarted, tr.Snapshot().State)
	require.False(t, tr.Polling())

	require.NoError(t, tr.StartRound(ctx))
	snap := tr.Snapshot()
	require.Equal(t, DrawingSample, snap.State)
	require.Equal(t, 1, snap.Round.RoundNum)
	require.True(t, tr.Polling())
	require.ErrorIs(t, tr.StartRound(ctx), ErrRoundActive)

	tick(t, fc, 5*time.Second)
	require.Eventually(t, func() bool { return !tr.Polling() }, 2*time.Second, 5*time.Millisecond)
	snap = tr.Snapshot()
	require.Equal(t, InProgress, snap.State)
	require.Equal(t, Progress{Completed: 0, Total: 55}, snap.Progress)
	require.ErrorIs(t, tr.StartRound(ctx), ErrRoundActive)

	require.NoError(t, store.RecordAudited("election-1", "jurisdiction-1", snap.Round.ID, 0, 20))
	require.NoError(t, store.RecordAudited("election-1", "jurisdiction-2", snap.Round.ID, 0, 5))
	require.NoError(t, tr.Refresh(ctx))
	require.Equal(t, Progress{Completed: 25, Total: 55}, tr.Snapshot().Progress)

	require.NoError(t, store.EndRound("election-1", false))
	require.NoError(t, tr.Refresh(ctx))
	require.Equal(t, RoundCompleteNeedsAnother, tr.Snapshot().State)
	require.ErrorIs(t, tr.UndoRoundStart(ctx), ErrNothingToUndo)

	require.NoError(t, tr.StartRound(ctx))
	require.Equal(t, 2, tr.Snapshot().Round.RoundNum)
	// let the draw poll settle into its sleep before undoing
	fc.BlockUntil(1)
	require.NoError(t, tr.UndoRoundStart(ctx))
	require.Equal(t, RoundCompleteNeedsAnother, tr.Snapshot().State)
	require.Equal(t, 1, tr.Snapshot().Round.RoundNum)

	entries, err := journal.Recent(ctx, "election-1", 10)
	require.NoError(t, err)
	var kinds []string
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	require.ElementsMatch(t, []string{repository.KindRoundStarted, repository.KindRoundStarted, repository.KindRoundUndone}, kinds)
	require.Empty(t, rec.errs())
}

func TestRoundTrackerAuditComplete(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := newSandboxStore(t, fc, sandbox.DefaultScenario())
	tr := newTracker(t, store, fc, nil, &recorder[RoundSnapshot]{})

	require.NoError(t, store.CreateRound(ctx, "election-1", api.CreateRoundRequest{RoundNum: 1}))
	fc.Advance(5 * time.Second)
	require.NoError(t, store.EndRound("election-1", true))

	require.NoError(t, tr.Refresh(ctx))
	require.Equal(t, AuditComplete, tr.Snapshot().State)
	require.False(t, tr.Polling())
	require.ErrorIs(t, tr.StartRound(ctx), ErrAuditComplete)
	require.ErrorIs(t, tr.UndoRoundStart(ctx), ErrNothingToUndo)
}

func TestStartRoundReplacesFailedDraw(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	sc := sandbox.DefaultScenario()
	sc.Elections[0].DrawError = "Not enough ballots in manifest"
	store := newSandboxStore(t, fc, sc)
	rec := &recorder[RoundSnapshot]{}
	journal := newTestJournal(t)
	tr := newTracker(t, store, fc, journal, rec)

	require.NoError(t, tr.StartRound(ctx))
	first := tr.Snapshot().Round.ID
	tick(t, fc, 5*time.Second)
	require.Eventually(t, func() bool { return !tr.Polling() }, 2*time.Second, 5*time.Millisecond)

	snap := tr.Snapshot()
	require.Equal(t, DrawFailed, snap.State)
	require.NotNil(t, snap.DrawErr)
	require.Equal(t, "Not enough ballots in manifest", snap.DrawErr.Message)

	require.NoError(t, tr.StartRound(ctx))
	snap = tr.Snapshot()
	require.Equal(t, DrawingSample, snap.State)
	require.Equal(t, 1, snap.Round.RoundNum)
	require.NotEqual(t, first, snap.Round.ID)

	rounds, err := store.GetRounds(ctx, "election-1")
	require.NoError(t, err)
	require.Len(t, rounds, 1)

	entries, err := journal.Recent(ctx, "election-1", 10)
	require.NoError(t, err)
	var kinds []string
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
		if e.Kind == repository.KindRoundUndone {
			require.Equal(t, "1", e.Subject)
			require.Equal(t, "Not enough ballots in manifest", e.Detail)
		}
	}
	require.ElementsMatch(t, []string{repository.KindRoundStarted, repository.KindRoundUndone, repository.KindRoundStarted}, kinds)
}

func TestRoundTrackerSurfacesFetchErrors(t *testing.T) {
	m := mock_api.NewMockAPI(gomock.NewController(t))
	m.EXPECT().GetRounds(gomock.Any(), "e1").Return(nil, errors.New("dial tcp: connection refused"))
	rec := &recorder[RoundSnapshot]{}
	tr := NewRoundTracker(RoundTrackerConfig{API: m, ElectionID: "e1", OnChange: rec.record})
	defer tr.Close()

	err := tr.Refresh(context.Background())
	require.True(t, api.IsTransient(err))
	require.Len(t, rec.errs(), 1)
	require.Equal(t, NotStarted, tr.Snapshot().State)
}

func TestDrawCompletesWhileProgressReadFails(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	var drawn atomic.Bool
	m := mock_api.NewMockAPI(gomock.NewController(t))
	m.EXPECT().GetRounds(gomock.Any(), "e1").DoAndReturn(func(context.Context, string) ([]api.Round, error) {
		if drawn.Load() {
			return []api.Round{round(1, completeTask())}, nil
		}
		return []api.Round{round(1, runningTask())}, nil
	}).AnyTimes()
	m.EXPECT().GetAuditBoards(gomock.Any(), "e1", "j1", "r1").Return(nil, errors.New("audit boards 503")).AnyTimes()

	rec := &recorder[RoundSnapshot]{}
	tr := NewRoundTracker(RoundTrackerConfig{
		API:             m,
		ElectionID:      "e1",
		JurisdictionIDs: []string{"j1"},
		Poll:            poll.Options{Interval: time.Second, Timeout: time.Minute, Clock: fc},
		OnChange:        rec.record,
	})
	defer tr.Close()

	require.NoError(t, tr.Refresh(ctx))
	require.Equal(t, DrawingSample, tr.Snapshot().State)
	require.True(t, tr.Polling())

	fc.BlockUntil(1)
	drawn.Store(true)
	fc.Advance(time.Second)

	require.Eventually(t, func() bool { return !tr.Polling() }, 2*time.Second, 5*time.Millisecond)
	snap := tr.Snapshot()
	require.Equal(t, InProgress, snap.State)
	require.Equal(t, "r1", snap.Round.ID)
	require.True(t, api.IsTransient(snap.ProgressErr))
	require.Equal(t, Progress{}, snap.Progress)
	require.Empty(t, rec.errs())

	// a manual refresh reports the failed read but keeps the derived state
	err := tr.Refresh(ctx)
	require.ErrorContains(t, err, "audit boards 503")
	require.Equal(t, InProgress, tr.Snapshot().State)
	require.False(t, tr.Polling())
}
