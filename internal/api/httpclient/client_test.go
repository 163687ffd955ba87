package httpclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/api/httpclient"
	"github.com/jask/rlaconsole/internal/sandbox"
	"github.com/jask/rlaconsole/internal/task"
)

func newSandbox(t *testing.T) (*sandbox.Store, *httpclient.Client, *httptest.Server, clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	store := sandbox.NewStore(sandbox.Config{
		Clock:         fc,
		NewPassphrase: func() string { return "fixed-test-passphrase" },
		NewCode:       func() string { return "123" },
	})
	require.NoError(t, store.Load(sandbox.DefaultScenario()))
	srv := httptest.NewServer(sandbox.NewServer(store, nil))
	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})
	c, err := httpclient.New(srv.URL+"/", httpclient.WithTimeout(2*time.Second))
	require.NoError(t, err)
	return store, c, srv, fc
}

func TestRoundTripThroughSandbox(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, c, _, fc := newSandbox(t)

	roster, err := c.GetTaskStatus(ctx, api.ResourceRef{ElectionID: "election-1", Kind: api.JurisdictionsFile})
	require.NoError(t, err)
	require.Equal(t, task.Running, roster.Status())

	manifest, err := c.GetTaskStatus(ctx, api.ResourceRef{ElectionID: "election-1", JurisdictionID: "jurisdiction-1", Kind: api.BallotManifest})
	require.NoError(t, err)
	require.Nil(t, manifest)

	require.NoError(t, c.CreateRound(ctx, "election-1", api.CreateRoundRequest{RoundNum: 1}))
	rounds, err := c.GetRounds(ctx, "election-1")
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	require.Equal(t, task.Running, rounds[0].DrawSampleTask.Status())

	fc.Advance(10 * time.Second)
	rounds, err = c.GetRounds(ctx, "election-1")
	require.NoError(t, err)
	require.Equal(t, task.Complete, rounds[0].DrawSampleTask.Status())

	boards, err := c.GetAuditBoards(ctx, "election-1", "jurisdiction-1", rounds[0].ID)
	require.NoError(t, err)
	require.Len(t, boards, 2)
	batches, err := c.GetBatches(ctx, "election-1", "jurisdiction-1", rounds[0].ID)
	require.NoError(t, err)
	require.Empty(t, batches)
	res, err := c.GetOfflineResults(ctx, "election-1", "jurisdiction-1", rounds[0].ID)
	require.NoError(t, err)
	require.False(t, res.Submitted)

	require.NoError(t, c.DeleteRound(ctx, "election-1", rounds[0].ID))
	rounds, err = c.GetRounds(ctx, "election-1")
	require.NoError(t, err)
	require.Empty(t, rounds)
}

func TestTallyEntryOverHTTP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, c, srv, _ := newSandbox(t)

	require.NoError(t, c.TurnOnTallyEntryAccounts(ctx, "election-1", "jurisdiction-1"))

	body, _ := json.Marshal(sandbox.LoginBody{Passphrase: "fixed-test-passphrase", Members: []api.Member{{Name: "John Doe"}}})
	resp, err := http.Post(srv.URL+"/auth/tallyentry", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var login sandbox.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	require.Equal(t, "123", login.LoginCode)

	st, err := c.GetTallyEntryAccountStatus(ctx, "election-1", "jurisdiction-1")
	require.NoError(t, err)
	require.Equal(t, "fixed-test-passphrase", *st.Passphrase)
	require.Len(t, st.LoginRequests, 1)

	err = c.ConfirmLogin(ctx, "election-1", "jurisdiction-1", api.ConfirmLoginRequest{TallyEntryUserID: login.TallyEntryUserID, LoginCode: "456"})
	msg, ok := api.ValidationMessage(err)
	require.True(t, ok)
	require.Equal(t, "Invalid code, please try again.", msg)

	require.NoError(t, c.ConfirmLogin(ctx, "election-1", "jurisdiction-1", api.ConfirmLoginRequest{TallyEntryUserID: login.TallyEntryUserID, LoginCode: "123"}))
	st, err = c.GetTallyEntryAccountStatus(ctx, "election-1", "jurisdiction-1")
	require.NoError(t, err)
	require.NotNil(t, st.LoginRequests[0].LoginConfirmedAt)

	err = c.RejectLogin(ctx, "election-1", "jurisdiction-1", api.RejectLoginRequest{TallyEntryUserID: "missing"})
	require.ErrorIs(t, err, api.ErrNotFound)
}

func TestErrorMapping(t *testing.T) {
	ctx := context.Background()
	var status atomic.Int32
	status.Store(http.StatusInternalServerError)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"errors":[{"errorType":"Conflict","message":"Audit already started"}]}`))
	}))
	defer srv.Close()
	c, err := httpclient.New(srv.URL)
	require.NoError(t, err)

	_, err = c.GetRounds(ctx, "e1")
	require.True(t, api.IsTransient(err))

	status.Store(http.StatusConflict)
	err = c.CreateRound(ctx, "e1", api.CreateRoundRequest{RoundNum: 1})
	msg, ok := api.ValidationMessage(err)
	require.True(t, ok)
	require.Equal(t, "Audit already started", msg)

	srv.Close()
	_, err = c.GetRounds(ctx, "e1")
	require.True(t, api.IsTransient(err))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := httpclient.New("not a url")
	require.Error(t, err)
}
