package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jask/rlaconsole/internal/database"
)

// ActivityRepo is the append-only activity journal.
type ActivityRepo struct{ db *sql.DB }

func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{db: db} }

// Insert stores entries in one transaction. Missing ids are generated and
// a zero CreatedAt is stamped with database.Now.
func (r *ActivityRepo) Insert(ctx context.Context, entries ...*Activity) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, a := range entries {
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			if a.CreatedAt.IsZero() {
				a.CreatedAt = database.Now()
			}
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO activity(id, election_id, jurisdiction_id, kind, subject, detail, created_at)
			VALUES(?, ?, ?, ?, ?, ?, ?)
			`, a.ID, a.ElectionID, a.JurisdictionID, a.Kind, a.Subject, a.Detail, a.CreatedAt.UTC()); err != nil {
				return errors.Wrapf(err, "insert %s", a.Kind)
			}
		}
		return nil
	})
}

// ListRecent returns up to limit entries for an election, newest first.
func (r *ActivityRepo) ListRecent(ctx context.Context, electionID string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, election_id, jurisdiction_id, kind, subject, detail, created_at FROM activity WHERE election_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, electionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.ElectionID, &a.JurisdictionID, &a.Kind, &a.Subject, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
