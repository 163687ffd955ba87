package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/task"
)

func newTestStore(t *testing.T, fc clockwork.Clock) *Store {
	t.Helper()
	n := 0
	s := NewStore(Config{
		Clock:          fc,
		RosterDuration: 2 * time.Second,
		DrawDuration:   5 * time.Second,
		NewID: func() string {
			n++
			return "id-" + string(rune('a'+n-1))
		},
		NewPassphrase: func() string { return "fixed-test-passphrase" },
		NewCode:       func() string { return "123" },
	})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadScenarioFormats(t *testing.T) {
	sc, err := LoadScenario("testdata/scenario.toml")
	require.NoError(t, err)
	require.Len(t, sc.Elections, 1)
	e := sc.Elections[0]
	require.Equal(t, "BATCH_COMPARISON", e.AuditType)
	require.NotNil(t, e.Roster)
	require.Len(t, e.Jurisdictions, 2)
	require.Equal(t, 4, e.Jurisdictions[0].Batches)
	require.Equal(t, "fixed-test-passphrase", e.Jurisdictions[1].Passphrase)

	sc, err = LoadScenario("testdata/scenario.yaml")
	require.NoError(t, err)
	require.Len(t, sc.Elections, 1)
	require.Equal(t, "Not enough ballots in manifest", sc.Elections[0].DrawError)
	require.Nil(t, sc.Elections[0].Roster)
	require.Equal(t, 10, sc.Elections[0].Jurisdictions[0].BallotsPerBoard)

	_, err = LoadScenario("testdata/missing.json")
	require.Error(t, err)
}

func TestRosterJobCompletesLazily(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	s := newTestStore(t, fc)
	require.NoError(t, s.Load(DefaultScenario()))

	ref := api.ResourceRef{ElectionID: "election-1", Kind: api.JurisdictionsFile}
	tk, err := s.GetTaskStatus(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, task.Running, tk.Status())

	fc.Advance(2 * time.Second)
	tk, err = s.GetTaskStatus(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, task.Complete, tk.Status())

	require.NoError(t, s.UploadRoster("election-1", "Invalid CSV header"))
	fc.Advance(3 * time.Second)
	tk, err = s.GetTaskStatus(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, task.Errored, tk.Status())
	require.Equal(t, "Invalid CSV header", tk.ErrorText())

	manifest, err := s.GetTaskStatus(ctx, api.ResourceRef{ElectionID: "election-1", JurisdictionID: "jurisdiction-1", Kind: api.BallotManifest})
	require.NoError(t, err)
	require.Nil(t, manifest)

	_, err = s.GetTaskStatus(ctx, api.ResourceRef{ElectionID: "nope", Kind: api.JurisdictionsFile})
	require.ErrorIs(t, err, api.ErrNotFound)
}

func TestRoundLifecycle(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	s := newTestStore(t, fc)
	require.NoError(t, s.Load(DefaultScenario()))

	err := s.CreateRound(ctx, "election-1", api.CreateRoundRequest{RoundNum: 2})
	require.True(t, api.IsValidation(err))

	require.NoError(t, s.CreateRound(ctx, "election-1", api.CreateRoundRequest{RoundNum: 1}))
	require.True(t, api.IsValidation(s.CreateRound(ctx, "election-1", api.CreateRoundRequest{RoundNum: 2})))

	rounds, err := s.GetRounds(ctx, "election-1")
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	require.Equal(t, task.Running, rounds[0].DrawSampleTask.Status())

	fc.Advance(5 * time.Second)
	rounds, err = s.GetRounds(ctx, "election-1")
	require.NoError(t, err)
	require.Equal(t, task.Complete, rounds[0].DrawSampleTask.Status())
	require.True(t, fc.Now().Equal(*rounds[0].DrawSampleTask.CompletedAt))

	boards, err := s.GetAuditBoards(ctx, "election-1", "jurisdiction-1", rounds[0].ID)
	require.NoError(t, err)
	require.Len(t, boards, 2)
	require.NoError(t, s.RecordAudited("election-1", "jurisdiction-1", rounds[0].ID, 0, 50))
	boards, err = s.GetAuditBoards(ctx, "election-1", "jurisdiction-1", rounds[0].ID)
	require.NoError(t, err)
	require.Equal(t, 20, boards[0].NumAuditedBallots)

	require.NoError(t, s.EndRound("election-1", false))
	require.True(t, api.IsValidation(s.DeleteRound(ctx, "election-1", rounds[0].ID)))
	require.NoError(t, s.CreateRound(ctx, "election-1", api.CreateRoundRequest{RoundNum: 2}))

	rounds, err = s.GetRounds(ctx, "election-1")
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	require.NoError(t, s.DeleteRound(ctx, "election-1", rounds[1].ID))
	require.ErrorIs(t, s.DeleteRound(ctx, "election-1", "missing"), api.ErrNotFound)
}

func TestLoginRequests(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, clockwork.NewFakeClock())
	require.NoError(t, s.Load(DefaultScenario()))

	st, err := s.GetTallyEntryAccountStatus(ctx, "election-1", "jurisdiction-1")
	require.NoError(t, err)
	require.False(t, st.Enabled())

	_, _, err = s.RequestLogin("fixed-test-passphrase", []api.Member{{Name: "John Doe"}})
	require.ErrorIs(t, err, api.ErrNotFound)

	require.NoError(t, s.TurnOnTallyEntryAccounts(ctx, "election-1", "jurisdiction-1"))
	u1, code, err := s.RequestLogin("fixed-test-passphrase", []api.Member{{Name: "John Doe"}})
	require.NoError(t, err)
	require.Equal(t, "123", code)
	u2, _, err := s.RequestLogin("fixed-test-passphrase", []api.Member{{Name: "Jane Roe"}})
	require.NoError(t, err)

	err = s.ConfirmLogin(ctx, "election-1", "jurisdiction-1", api.ConfirmLoginRequest{TallyEntryUserID: u1, LoginCode: "456"})
	msg, ok := api.ValidationMessage(err)
	require.True(t, ok)
	require.Equal(t, "Invalid code, please try again.", msg)

	require.NoError(t, s.ConfirmLogin(ctx, "election-1", "jurisdiction-1", api.ConfirmLoginRequest{TallyEntryUserID: u1, LoginCode: "123"}))
	require.True(t, api.IsValidation(s.RejectLogin(ctx, "election-1", "jurisdiction-1", api.RejectLoginRequest{TallyEntryUserID: u1})))
	require.NoError(t, s.RejectLogin(ctx, "election-1", "jurisdiction-1", api.RejectLoginRequest{TallyEntryUserID: u2}))

	st, err = s.GetTallyEntryAccountStatus(ctx, "election-1", "jurisdiction-1")
	require.NoError(t, err)
	require.Equal(t, "fixed-test-passphrase", *st.Passphrase)
	require.Len(t, st.LoginRequests, 1)
	require.Equal(t, u1, st.LoginRequests[0].TallyEntryUserID)
	require.True(t, st.LoginRequests[0].Confirmed())
}

func TestClosedStore(t *testing.T) {
	s := newTestStore(t, clockwork.NewFakeClock())
	require.NoError(t, s.Load(DefaultScenario()))
	require.NoError(t, s.Close())

	_, err := s.GetRounds(context.Background(), "election-1")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, s.Load(DefaultScenario()), ErrClosed)
}

func TestRandomGenerators(t *testing.T) {
	code := randomCode()
	require.Len(t, code, 3)
	require.Regexp(t, `^\d{3}$`, code)
	require.Regexp(t, `^[a-z]+(-[a-z]+){3}$`, randomPassphrase())
}
