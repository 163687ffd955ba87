package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/database/repository"
	"github.com/jask/rlaconsole/internal/poll"
)

// InvalidCodeMessage is shown beside the code input after a mismatch.
const InvalidCodeMessage = "Invalid code, please try again."

// DefaultCodeLength is the number of digits in a login code.
const DefaultCodeLength = 3

// ShareLink renders the link agents open to sign in with the passphrase.
func ShareLink(origin, passphrase string) string {
	return strings.TrimRight(origin, "/") + "/tallyentry/" + passphrase
}

// LoginRequestView is a login request plus the admin's actions on it.
type LoginRequestView struct {
	api.LoginRequest
	// InlineError is the last validation failure for this request only.
	InlineError string

	coord *LoginCoordinator
}

func (v LoginRequestView) Confirm(ctx context.Context, code string) error {
	return v.coord.Confirm(ctx, v.TallyEntryUserID, code)
}

func (v LoginRequestView) Reject(ctx context.Context) error {
	return v.coord.Reject(ctx, v.TallyEntryUserID)
}

// MemberNames joins the names of the people present at sign-in.
func (v LoginRequestView) MemberNames() string {
	names := make([]string, 0, len(v.Members))
	for _, m := range v.Members {
		names = append(names, m.Name)
	}
	return strings.Join(names, ", ")
}

type LoginSnapshot struct {
	Enabled    bool
	Passphrase string
	ShareLink  string
	Requests   []LoginRequestView
	Duplicates []DuplicatePair
}

// Pending returns the requests still awaiting confirmation.
func (s LoginSnapshot) Pending() []LoginRequestView {
	var out []LoginRequestView
	for _, r := range s.Requests {
		if !r.Confirmed() {
			out = append(out, r)
		}
	}
	return out
}

type LoginCoordinatorConfig struct {
	API            api.TallyEntry
	ElectionID     string
	JurisdictionID string
	Origin         string
	CodeLength     int
	Poll           poll.Options
	Log            logrus.FieldLogger
	Journal        *Journal
	OnChange       func(api.Result[LoginSnapshot])
}

// LoginCoordinator runs the tally entry login handshake for one jurisdiction.
type LoginCoordinator struct {
	api            api.TallyEntry
	electionID     string
	jurisdictionID string
	origin         string
	codeLength     int
	opts           poll.Options
	log            logrus.FieldLogger
	journal        *Journal
	onChange       func(api.Result[LoginSnapshot])

	ctx    context.Context
	cancel context.CancelFunc
	sf     singleflight.Group
	seq    atomic.Uint64

	mu      sync.Mutex
	status  api.TallyEntryAccountStatus
	applied uint64
	inline  map[string]string
	loop    *poll.Handle
	closed  bool
}

func NewLoginCoordinator(cfg LoginCoordinatorConfig) *LoginCoordinator {
	ctx, cancel := context.WithCancel(context.Background())
	n := cfg.CodeLength
	if n <= 0 {
		n = DefaultCodeLength
	}
	return &LoginCoordinator{
		api:            cfg.API,
		electionID:     cfg.ElectionID,
		jurisdictionID: cfg.JurisdictionID,
		origin:         cfg.Origin,
		codeLength:     n,
		opts:           cfg.Poll,
		log:            loggerOrDiscard(cfg.Log).WithFields(logrus.Fields{"election": cfg.ElectionID, "jurisdiction": cfg.JurisdictionID}),
		journal:        cfg.Journal,
		onChange:       cfg.OnChange,
		ctx:            ctx,
		cancel:         cancel,
		inline:         map[string]string{},
	}
}

// CodeLength is the number of digits Confirm expects.
func (c *LoginCoordinator) CodeLength() int { return c.codeLength }

// Start loads the account status and, once accounts are on, keeps it fresh
// with a repeat poll.
func (c *LoginCoordinator) Start(ctx context.Context) error {
	err := c.Refresh(ctx)
	c.ensurePolling()
	return err
}

// TurnOnAccounts mints the passphrase and starts watching for sign-ins.
func (c *LoginCoordinator) TurnOnAccounts(ctx context.Context) error {
	if err := c.api.TurnOnTallyEntryAccounts(ctx, c.electionID, c.jurisdictionID); err != nil {
		return errors.Wrap(err, "turn on tally entry accounts")
	}
	c.log.Info("tally entry accounts turned on")
	c.journal.Record(ctx, repository.Activity{ElectionID: c.electionID, JurisdictionID: c.jurisdictionID, Kind: repository.KindAccountsEnabled})
	c.sf.Forget("status")
	err := c.Refresh(ctx)
	c.ensurePolling()
	return err
}

type fetchedStatus struct {
	status api.TallyEntryAccountStatus
	seq    uint64
}

// Refresh fetches the latest status. Concurrent refreshes share one request,
// and a response older than one already applied is dropped.
func (c *LoginCoordinator) Refresh(ctx context.Context) error {
	v, err, _ := c.sf.Do("status", func() (interface{}, error) {
		seq := c.seq.Add(1)
		st, err := c.api.GetTallyEntryAccountStatus(ctx, c.electionID, c.jurisdictionID)
		return fetchedStatus{status: st, seq: seq}, err
	})
	if err != nil {
		err = api.Transient("get tally entry status", err)
		c.publish(api.Failure[LoginSnapshot](err))
		return err
	}
	got := v.(fetchedStatus)

	c.mu.Lock()
	if got.seq < c.applied {
		c.mu.Unlock()
		return nil
	}
	c.applied = got.seq
	c.status = got.status
	present := make(map[string]bool, len(got.status.LoginRequests))
	for _, r := range got.status.LoginRequests {
		present[r.TallyEntryUserID] = true
	}
	for id := range c.inline {
		if !present[id] {
			delete(c.inline, id)
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(api.Success(snap))
	return nil
}

// refreshNow skips any in-flight poll request, which may predate a mutation.
func (c *LoginCoordinator) refreshNow(ctx context.Context, what string) {
	c.sf.Forget("status")
	if err := c.Refresh(ctx); err != nil {
		c.log.WithError(err).Warn("refresh after " + what)
	}
}

func (c *LoginCoordinator) ensurePolling() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.status.Enabled() || c.loop.Running() {
		return
	}
	c.log.Debug("watching login requests")
	c.loop = poll.Repeat(c.ctx, c.Refresh, func(err error) {
		c.log.WithError(err).Debug("login poll tick failed")
	}, c.opts)
}

// Confirm checks code against the request identified by userID. A code of
// the wrong shape never reaches the server. A mismatch is recorded as that
// request's inline error and leaves every request unchanged.
func (c *LoginCoordinator) Confirm(ctx context.Context, userID, code string) error {
	if len(code) != c.codeLength || !allDigits(code) {
		return &api.ValidationError{Message: fmt.Sprintf("Enter all %d digits of the code.", c.codeLength)}
	}
	err := c.api.ConfirmLogin(ctx, c.electionID, c.jurisdictionID, api.ConfirmLoginRequest{TallyEntryUserID: userID, LoginCode: code})
	if err != nil {
		if msg, ok := api.ValidationMessage(err); ok {
			if msg == "" {
				msg = InvalidCodeMessage
			}
			c.setInline(userID, msg)
			c.log.WithField("user", userID).Info("login code rejected")
			return &api.ValidationError{Message: msg}
		}
		return errors.Wrap(err, "confirm login")
	}

	c.log.WithField("user", userID).Info("login confirmed")
	c.clearInline(userID)
	c.journal.Record(ctx, repository.Activity{
		ElectionID: c.electionID, JurisdictionID: c.jurisdictionID,
		Kind: repository.KindLoginConfirmed, Subject: userID, Detail: c.memberNames(userID),
	})
	c.refreshNow(ctx, "confirm")
	return nil
}

// Reject removes the request identified by userID.
func (c *LoginCoordinator) Reject(ctx context.Context, userID string) error {
	names := c.memberNames(userID)
	if err := c.api.RejectLogin(ctx, c.electionID, c.jurisdictionID, api.RejectLoginRequest{TallyEntryUserID: userID}); err != nil {
		return errors.Wrap(err, "reject login")
	}
	c.log.WithField("user", userID).Info("login rejected")
	c.clearInline(userID)
	c.journal.Record(ctx, repository.Activity{
		ElectionID: c.electionID, JurisdictionID: c.jurisdictionID,
		Kind: repository.KindLoginRejected, Subject: userID, Detail: names,
	})
	c.refreshNow(ctx, "reject")
	return nil
}

func (c *LoginCoordinator) setInline(userID, msg string) {
	c.mu.Lock()
	c.inline[userID] = msg
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(api.Success(snap))
}

func (c *LoginCoordinator) clearInline(userID string) {
	c.mu.Lock()
	delete(c.inline, userID)
	c.mu.Unlock()
}

func (c *LoginCoordinator) memberNames(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.status.LoginRequests {
		if r.TallyEntryUserID == userID {
			return LoginRequestView{LoginRequest: r}.MemberNames()
		}
	}
	return ""
}

func (c *LoginCoordinator) Snapshot() LoginSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *LoginCoordinator) snapshotLocked() LoginSnapshot {
	snap := LoginSnapshot{Enabled: c.status.Enabled()}
	if snap.Enabled {
		snap.Passphrase = *c.status.Passphrase
		snap.ShareLink = ShareLink(c.origin, snap.Passphrase)
	}
	for _, r := range c.status.LoginRequests {
		snap.Requests = append(snap.Requests, LoginRequestView{LoginRequest: r, InlineError: c.inline[r.TallyEntryUserID], coord: c})
	}
	snap.Duplicates = PossibleDuplicates(c.status.LoginRequests, DuplicateThreshold)
	return snap
}

// Polling reports whether the repeat poll is running.
func (c *LoginCoordinator) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loop.Running()
}

func (c *LoginCoordinator) publish(r api.Result[LoginSnapshot]) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed && c.onChange != nil {
		c.onChange(r)
	}
}

func (c *LoginCoordinator) Close() {
	c.mu.Lock()
	c.closed = true
	h := c.loop
	c.mu.Unlock()
	c.cancel()
	h.Stop()
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
