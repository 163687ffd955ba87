// Package sandbox is an in-memory audit server. It implements api.API
// directly and can be served over HTTP, so the client runs end to end
// without the real server.
package sandbox

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jask/rlaconsole/internal/api"
	"github.com/jask/rlaconsole/internal/task"
)

const invalidCodeMessage = "Invalid code, please try again."

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("sandbox closed")

type Config struct {
	Clock          clockwork.Clock
	RosterDuration time.Duration
	DrawDuration   time.Duration
	NewID          func() string
	NewPassphrase  func() string
	NewCode        func() string
	Log            logrus.FieldLogger
}

// job is a background task that finishes duration after it started.
type job struct {
	startedAt time.Time
	duration  time.Duration
	failWith  string
}

func (j *job) snapshot(now time.Time) *task.BackgroundTask {
	if j == nil {
		return nil
	}
	t := task.Started(j.startedAt)
	end := j.startedAt.Add(j.duration)
	if now.Before(end) {
		return t
	}
	t.CompletedAt = &end
	if j.failWith != "" {
		msg := j.failWith
		t.Error = &msg
	}
	return t
}

type round struct {
	api.Round
	draw *job
}

type loginRequest struct {
	api.LoginRequest
	code string
}

type progressArtifacts struct {
	boards  []api.AuditBoard
	batches []api.Batch
	offline api.OfflineResults
}

type jurisdiction struct {
	id         string
	name       string
	template   JurisdictionFixture
	uploads    map[api.ResourceKind]*job
	passphrase *string
	requests   []*loginRequest
	progress   map[string]*progressArtifacts // by round id
}

type election struct {
	id            string
	auditType     api.AuditType
	roster        *job
	drawFailWith  string
	rounds        []*round
	jurisdictions map[string]*jurisdiction
}

// Store owns every election, keyed electionID then jurisdictionID.
type Store struct {
	cfg Config
	log logrus.FieldLogger

	mu        sync.Mutex
	elections map[string]*election
	closed    bool
}

func NewStore(cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.RosterDuration <= 0 {
		cfg.RosterDuration = 3 * time.Second
	}
	if cfg.DrawDuration <= 0 {
		cfg.DrawDuration = 5 * time.Second
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.NewPassphrase == nil {
		cfg.NewPassphrase = randomPassphrase
	}
	if cfg.NewCode == nil {
		cfg.NewCode = randomCode
	}
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Store{cfg: cfg, log: log, elections: map[string]*election{}}
}

// Load adds the elections of a scenario, replacing any with the same id.
func (s *Store) Load(sc Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	now := s.cfg.Clock.Now()
	for _, ef := range sc.Elections {
		if ef.ID == "" {
			return errors.New("scenario election without id")
		}
		at := api.AuditType(ef.AuditType)
		if at == "" {
			at = api.BallotPolling
		}
		if !at.Valid() {
			return errors.Errorf("election %s: unknown audit type %q", ef.ID, ef.AuditType)
		}
		e := &election{id: ef.ID, auditType: at, drawFailWith: ef.DrawError, jurisdictions: map[string]*jurisdiction{}}
		if ef.Roster != nil {
			e.roster = &job{startedAt: now, duration: s.cfg.RosterDuration, failWith: ef.Roster.Error}
		}
		for _, jf := range ef.Jurisdictions {
			if jf.ID == "" {
				return errors.Errorf("election %s: jurisdiction without id", ef.ID)
			}
			j := &jurisdiction{id: jf.ID, name: jf.Name, template: jf, uploads: map[api.ResourceKind]*job{}, progress: map[string]*progressArtifacts{}}
			if jf.Passphrase != "" {
				p := jf.Passphrase
				j.passphrase = &p
			}
			e.jurisdictions[jf.ID] = j
		}
		s.elections[ef.ID] = e
		s.log.WithFields(logrus.Fields{"election": ef.ID, "jurisdictions": len(ef.Jurisdictions)}).Info("election loaded")
	}
	return nil
}

// Close drops all state. Later calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.elections = nil
	return nil
}

func (s *Store) electionLocked(id string) (*election, error) {
	if s.closed {
		return nil, ErrClosed
	}
	e, ok := s.elections[id]
	if !ok {
		return nil, errors.Wrapf(api.ErrNotFound, "election %s", id)
	}
	return e, nil
}

func (s *Store) jurisdictionLocked(electionID, jurisdictionID string) (*election, *jurisdiction, error) {
	e, err := s.electionLocked(electionID)
	if err != nil {
		return nil, nil, err
	}
	j, ok := e.jurisdictions[jurisdictionID]
	if !ok {
		return nil, nil, errors.Wrapf(api.ErrNotFound, "jurisdiction %s", jurisdictionID)
	}
	return e, j, nil
}

// UploadRoster starts processing a new jurisdictions file. A non-empty
// failWith makes processing fail with that message.
func (s *Store) UploadRoster(electionID, failWith string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.electionLocked(electionID)
	if err != nil {
		return err
	}
	e.roster = &job{startedAt: s.cfg.Clock.Now(), duration: s.cfg.RosterDuration, failWith: failWith}
	return nil
}

// UploadFile starts processing a jurisdiction-level file.
func (s *Store) UploadFile(ref api.ResourceRef, failWith string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, j, err := s.jurisdictionLocked(ref.ElectionID, ref.JurisdictionID)
	if err != nil {
		return err
	}
	j.uploads[ref.Kind] = &job{startedAt: s.cfg.Clock.Now(), duration: s.cfg.RosterDuration, failWith: failWith}
	return nil
}

func (s *Store) GetTaskStatus(ctx context.Context, ref api.ResourceRef) (*task.BackgroundTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.cfg.Clock.Now()
	if ref.Kind == api.JurisdictionsFile {
		e, err := s.electionLocked(ref.ElectionID)
		if err != nil {
			return nil, err
		}
		return e.roster.snapshot(now), nil
	}
	_, j, err := s.jurisdictionLocked(ref.ElectionID, ref.JurisdictionID)
	if err != nil {
		return nil, err
	}
	return j.uploads[ref.Kind].snapshot(now), nil
}

func (s *Store) GetRounds(ctx context.Context, electionID string) ([]api.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.electionLocked(electionID)
	if err != nil {
		return nil, err
	}
	now := s.cfg.Clock.Now()
	out := make([]api.Round, 0, len(e.rounds))
	for _, r := range e.rounds {
		cp := r.Round
		cp.DrawSampleTask = *r.draw.snapshot(now)
		out = append(out, cp)
	}
	return out, nil
}

func (s *Store) CreateRound(ctx context.Context, electionID string, req api.CreateRoundRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.electionLocked(electionID)
	if err != nil {
		return err
	}
	if n := len(e.rounds); n > 0 && e.rounds[n-1].EndedAt == nil {
		return &api.ValidationError{Message: "The current round is still in progress."}
	}
	if want := len(e.rounds) + 1; req.RoundNum != want {
		return &api.ValidationError{Message: fmt.Sprintf("The next round should be round number %d.", want)}
	}
	now := s.cfg.Clock.Now()
	r := &round{
		Round: api.Round{ID: s.cfg.NewID(), RoundNum: req.RoundNum, StartedAt: now},
		draw:  &job{startedAt: now, duration: s.cfg.DrawDuration, failWith: e.drawFailWith},
	}
	e.rounds = append(e.rounds, r)
	for _, j := range e.jurisdictions {
		j.progress[r.ID] = s.seedArtifacts(j)
	}
	s.log.WithFields(logrus.Fields{"election": electionID, "round": req.RoundNum}).Info("round created")
	return nil
}

func (s *Store) seedArtifacts(j *jurisdiction) *progressArtifacts {
	a := &progressArtifacts{}
	for i := 0; i < j.template.AuditBoards; i++ {
		a.boards = append(a.boards, api.AuditBoard{
			ID:                s.cfg.NewID(),
			Name:              fmt.Sprintf("Audit Board #%d", i+1),
			NumSampledBallots: j.template.BallotsPerBoard,
		})
	}
	for i := 0; i < j.template.Batches; i++ {
		a.batches = append(a.batches, api.Batch{ID: s.cfg.NewID(), Name: fmt.Sprintf("Batch %d", i+1)})
	}
	return a
}

// DeleteRound removes the latest round if it has not ended.
func (s *Store) DeleteRound(ctx context.Context, electionID, roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.electionLocked(electionID)
	if err != nil {
		return err
	}
	n := len(e.rounds)
	if n == 0 || e.rounds[n-1].ID != roundID {
		return errors.Wrapf(api.ErrNotFound, "round %s", roundID)
	}
	if e.rounds[n-1].EndedAt != nil {
		return &api.ValidationError{Message: "Cannot undo a round that has ended."}
	}
	e.rounds = e.rounds[:n-1]
	for _, j := range e.jurisdictions {
		delete(j.progress, roundID)
	}
	return nil
}

// EndRound marks the latest round ended, optionally completing the audit.
func (s *Store) EndRound(electionID string, auditComplete bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.electionLocked(electionID)
	if err != nil {
		return err
	}
	n := len(e.rounds)
	if n == 0 {
		return errors.Wrap(api.ErrNotFound, "no rounds")
	}
	now := s.cfg.Clock.Now()
	e.rounds[n-1].EndedAt = &now
	e.rounds[n-1].IsAuditComplete = auditComplete
	return nil
}

func (s *Store) artifactsLocked(electionID, jurisdictionID, roundID string) (*progressArtifacts, error) {
	_, j, err := s.jurisdictionLocked(electionID, jurisdictionID)
	if err != nil {
		return nil, err
	}
	a, ok := j.progress[roundID]
	if !ok {
		return nil, errors.Wrapf(api.ErrNotFound, "round %s", roundID)
	}
	return a, nil
}

func (s *Store) GetAuditBoards(ctx context.Context, electionID, jurisdictionID, roundID string) ([]api.AuditBoard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.artifactsLocked(electionID, jurisdictionID, roundID)
	if err != nil {
		return nil, err
	}
	return append([]api.AuditBoard(nil), a.boards...), nil
}

func (s *Store) GetBatches(ctx context.Context, electionID, jurisdictionID, roundID string) ([]api.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.artifactsLocked(electionID, jurisdictionID, roundID)
	if err != nil {
		return nil, err
	}
	out := make([]api.Batch, len(a.batches))
	for i, b := range a.batches {
		b.ResultTallySheets = append([]api.TallySheet(nil), b.ResultTallySheets...)
		out[i] = b
	}
	return out, nil
}

func (s *Store) GetOfflineResults(ctx context.Context, electionID, jurisdictionID, roundID string) (api.OfflineResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.artifactsLocked(electionID, jurisdictionID, roundID)
	if err != nil {
		return api.OfflineResults{}, err
	}
	return a.offline, nil
}

// RecordAudited sets the audited ballot count of one audit board.
func (s *Store) RecordAudited(electionID, jurisdictionID, roundID string, board, audited int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.artifactsLocked(electionID, jurisdictionID, roundID)
	if err != nil {
		return err
	}
	if board < 0 || board >= len(a.boards) {
		return errors.Wrapf(api.ErrNotFound, "audit board %d", board)
	}
	if audited > a.boards[board].NumSampledBallots {
		audited = a.boards[board].NumSampledBallots
	}
	a.boards[board].NumAuditedBallots = audited
	return nil
}

// RecordTallySheet attaches a result tally sheet to one batch.
func (s *Store) RecordTallySheet(electionID, jurisdictionID, roundID string, batch int, sheet api.TallySheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.artifactsLocked(electionID, jurisdictionID, roundID)
	if err != nil {
		return err
	}
	if batch < 0 || batch >= len(a.batches) {
		return errors.Wrapf(api.ErrNotFound, "batch %d", batch)
	}
	a.batches[batch].ResultTallySheets = append(a.batches[batch].ResultTallySheets, sheet)
	return nil
}

// SubmitOfflineResults marks a jurisdiction's hand-entered results submitted.
func (s *Store) SubmitOfflineResults(electionID, jurisdictionID, roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.artifactsLocked(electionID, jurisdictionID, roundID)
	if err != nil {
		return err
	}
	a.offline.Submitted = true
	return nil
}

func (s *Store) GetTallyEntryAccountStatus(ctx context.Context, electionID, jurisdictionID string) (api.TallyEntryAccountStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, j, err := s.jurisdictionLocked(electionID, jurisdictionID)
	if err != nil {
		return api.TallyEntryAccountStatus{}, err
	}
	st := api.TallyEntryAccountStatus{LoginRequests: []api.LoginRequest{}}
	if j.passphrase != nil {
		p := *j.passphrase
		st.Passphrase = &p
	}
	for _, r := range j.requests {
		lr := r.LoginRequest
		lr.Members = append([]api.Member(nil), r.Members...)
		if r.LoginConfirmedAt != nil {
			ts := *r.LoginConfirmedAt
			lr.LoginConfirmedAt = &ts
		}
		st.LoginRequests = append(st.LoginRequests, lr)
	}
	return st, nil
}

// TurnOnTallyEntryAccounts mints a passphrase once. Later calls keep it.
func (s *Store) TurnOnTallyEntryAccounts(ctx context.Context, electionID, jurisdictionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, j, err := s.jurisdictionLocked(electionID, jurisdictionID)
	if err != nil {
		return err
	}
	if j.passphrase == nil {
		p := s.cfg.NewPassphrase()
		j.passphrase = &p
		s.log.WithFields(logrus.Fields{"election": electionID, "jurisdiction": jurisdictionID}).Info("tally entry accounts on")
	}
	return nil
}

// RequestLogin is what an agent does after opening the share link. It
// returns the new user id and the code the agent reads out to the admin.
func (s *Store) RequestLogin(passphrase string, members []api.Member) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", "", ErrClosed
	}
	if len(members) == 0 {
		return "", "", &api.ValidationError{Message: "At least one member is required."}
	}
	for _, e := range s.elections {
		for _, j := range e.jurisdictions {
			if j.passphrase == nil || *j.passphrase != passphrase {
				continue
			}
			r := &loginRequest{
				LoginRequest: api.LoginRequest{TallyEntryUserID: s.cfg.NewID(), Members: append([]api.Member(nil), members...)},
				code:         s.cfg.NewCode(),
			}
			j.requests = append(j.requests, r)
			s.log.WithFields(logrus.Fields{"election": e.id, "jurisdiction": j.id, "user": r.TallyEntryUserID}).Info("login requested")
			return r.TallyEntryUserID, r.code, nil
		}
	}
	return "", "", errors.Wrap(api.ErrNotFound, "passphrase")
}

func (j *jurisdiction) request(userID string) (int, *loginRequest) {
	for i, r := range j.requests {
		if r.TallyEntryUserID == userID {
			return i, r
		}
	}
	return -1, nil
}

func (s *Store) ConfirmLogin(ctx context.Context, electionID, jurisdictionID string, req api.ConfirmLoginRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, j, err := s.jurisdictionLocked(electionID, jurisdictionID)
	if err != nil {
		return err
	}
	_, r := j.request(req.TallyEntryUserID)
	if r == nil {
		return errors.Wrapf(api.ErrNotFound, "login request %s", req.TallyEntryUserID)
	}
	if r.LoginConfirmedAt != nil {
		return &api.ValidationError{Message: "Login already confirmed."}
	}
	if r.code != req.LoginCode {
		return &api.ValidationError{Message: invalidCodeMessage}
	}
	now := s.cfg.Clock.Now()
	r.LoginConfirmedAt = &now
	return nil
}

func (s *Store) RejectLogin(ctx context.Context, electionID, jurisdictionID string, req api.RejectLoginRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, j, err := s.jurisdictionLocked(electionID, jurisdictionID)
	if err != nil {
		return err
	}
	i, r := j.request(req.TallyEntryUserID)
	if r == nil {
		return errors.Wrapf(api.ErrNotFound, "login request %s", req.TallyEntryUserID)
	}
	if r.LoginConfirmedAt != nil {
		return &api.ValidationError{Message: "Cannot reject a confirmed login."}
	}
	j.requests = append(j.requests[:i], j.requests[i+1:]...)
	return nil
}

var passphraseWords = []string{
	"amber", "birch", "cedar", "delta", "ember", "fjord", "grove", "harbor",
	"indigo", "juniper", "kestrel", "lumen", "maple", "nectar", "orchid", "prairie",
	"quartz", "raven", "sierra", "tundra", "umber", "violet", "willow", "zephyr",
}

func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func randomPassphrase() string {
	out := ""
	for i := 0; i < 4; i++ {
		if i > 0 {
			out += "-"
		}
		out += passphraseWords[randomIndex(len(passphraseWords))]
	}
	return out
}

func randomCode() string {
	return fmt.Sprintf("%03d", randomIndex(1000))
}

var _ api.API = (*Store)(nil)
