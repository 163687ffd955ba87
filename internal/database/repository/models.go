package repository

import "time"

// Activity kinds recorded by the coordinators.
const (
	KindLoginConfirmed  = "login_confirmed"
	KindLoginRejected   = "login_rejected"
	KindAccountsEnabled = "accounts_enabled"
	KindRoundStarted    = "round_started"
	KindRoundUndone     = "round_undone"
	KindRosterProcessed = "roster_processed"
	KindRosterFailed    = "roster_failed"
)

// Activity represents an activity journal row.
type Activity struct {
	ID             string
	ElectionID     string
	JurisdictionID string
	Kind           string
	Subject        string
	Detail         string
	CreatedAt      time.Time
}
