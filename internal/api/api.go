// Package api defines the typed data-access contract between the coordinators
// and whatever transport reaches the audit server.
package api

//go:generate mockgen -destination=mock_api/mock_api.go -package=mock_api github.com/jask/rlaconsole/internal/api API

import (
	"context"
	"time"

	"github.com/jask/rlaconsole/internal/task"
)

// AuditType is the audit math the election was configured with.
type AuditType string

const (
	BallotPolling    AuditType = "BALLOT_POLLING"
	BatchComparison  AuditType = "BATCH_COMPARISON"
	BallotComparison AuditType = "BALLOT_COMPARISON"
	Hybrid           AuditType = "HYBRID"
)

// Valid reports whether t is one of the known audit types.
func (t AuditType) Valid() bool {
	switch t {
	case BallotPolling, BatchComparison, BallotComparison, Hybrid:
		return true
	}
	return false
}

// ResourceKind names an uploaded file whose processing is tracked as a task.
type ResourceKind string

const (
	JurisdictionsFile ResourceKind = "jurisdictions-file"
	BallotManifest    ResourceKind = "ballot-manifest"
	BatchTallies      ResourceKind = "batch-tallies"
)

// ResourceRef identifies one background task. JurisdictionID is empty for
// election-level resources such as the jurisdictions roster.
type ResourceRef struct {
	ElectionID     string
	JurisdictionID string
	Kind           ResourceKind
}

type Round struct {
	ID                 string              `json:"id"`
	RoundNum           int                 `json:"roundNum"`
	StartedAt          time.Time           `json:"startedAt"`
	EndedAt            *time.Time          `json:"endedAt"`
	IsAuditComplete    bool                `json:"isAuditComplete"`
	NeedsFullHandTally bool                `json:"needsFullHandTally"`
	IsFullHandTally    bool                `json:"isFullHandTally"`
	DrawSampleTask     task.BackgroundTask `json:"drawSampleTask"`
}

type Member struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

type LoginRequest struct {
	TallyEntryUserID string     `json:"tallyEntryUserId"`
	Members          []Member   `json:"members"`
	LoginConfirmedAt *time.Time `json:"loginConfirmedAt"`
}

// Confirmed reports whether an admin has accepted the request.
func (r LoginRequest) Confirmed() bool { return r.LoginConfirmedAt != nil }

type TallyEntryAccountStatus struct {
	Passphrase    *string        `json:"passphrase"`
	LoginRequests []LoginRequest `json:"loginRequests"`
}

// Enabled reports whether tally entry accounts have been turned on.
func (s TallyEntryAccountStatus) Enabled() bool { return s.Passphrase != nil && *s.Passphrase != "" }

type AuditBoard struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	NumSampledBallots int    `json:"numSampledBallots"`
	NumAuditedBallots int    `json:"numAuditedBallots"`
}

type TallySheet struct {
	Name    string         `json:"name"`
	Results map[string]int `json:"results"`
}

type Batch struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	ResultTallySheets []TallySheet `json:"resultTallySheets"`
}

// OfflineResults is the jurisdiction-level record of hand-entered results.
type OfflineResults struct {
	Submitted bool `json:"submitted"`
}

type CreateRoundRequest struct {
	RoundNum int `json:"roundNum"`
}

type ConfirmLoginRequest struct {
	TallyEntryUserID string `json:"tallyEntryUserId"`
	LoginCode        string `json:"loginCode"`
}

type RejectLoginRequest struct {
	TallyEntryUserID string `json:"tallyEntryUserId"`
}

// TaskReader fetches the processing task of an uploaded resource. A nil task
// with a nil error means nothing has been uploaded yet.
type TaskReader interface {
	GetTaskStatus(ctx context.Context, ref ResourceRef) (*task.BackgroundTask, error)
}

// RoundReader lists the rounds of an election ordered by round number.
type RoundReader interface {
	GetRounds(ctx context.Context, electionID string) ([]Round, error)
}

type RoundWriter interface {
	CreateRound(ctx context.Context, electionID string, req CreateRoundRequest) error
	DeleteRound(ctx context.Context, electionID, roundID string) error
}

// ProgressReader fetches the per-jurisdiction artifacts progress is counted from.
type ProgressReader interface {
	GetAuditBoards(ctx context.Context, electionID, jurisdictionID, roundID string) ([]AuditBoard, error)
	GetBatches(ctx context.Context, electionID, jurisdictionID, roundID string) ([]Batch, error)
	GetOfflineResults(ctx context.Context, electionID, jurisdictionID, roundID string) (OfflineResults, error)
}

type TallyEntry interface {
	GetTallyEntryAccountStatus(ctx context.Context, electionID, jurisdictionID string) (TallyEntryAccountStatus, error)
	TurnOnTallyEntryAccounts(ctx context.Context, electionID, jurisdictionID string) error
	ConfirmLogin(ctx context.Context, electionID, jurisdictionID string, req ConfirmLoginRequest) error
	RejectLogin(ctx context.Context, electionID, jurisdictionID string, req RejectLoginRequest) error
}

// API is the full data-access surface.
type API interface {
	TaskReader
	RoundReader
	RoundWriter
	ProgressReader
	TallyEntry
}
