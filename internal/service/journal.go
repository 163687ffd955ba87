package service

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/jask/rlaconsole/internal/database/repository"
)

// Journal records coordination events in the activity log. A nil Journal
// discards everything, and write failures are only logged.
type Journal struct {
	Activity *repository.ActivityRepo
	Log      logrus.FieldLogger
	Clock    clockwork.Clock
}

// Record writes entries atomically. Without a Clock the repository stamps
// the time.
func (j *Journal) Record(ctx context.Context, entries ...repository.Activity) {
	if j == nil || j.Activity == nil || len(entries) == 0 {
		return
	}
	rows := make([]*repository.Activity, len(entries))
	for i := range entries {
		a := &entries[i]
		if a.CreatedAt.IsZero() && j.Clock != nil {
			a.CreatedAt = j.Clock.Now().UTC()
		}
		rows[i] = a
	}
	if err := j.Activity.Insert(ctx, rows...); err != nil && j.Log != nil {
		j.Log.WithError(err).WithField("kind", entries[0].Kind).Warn("record activity")
	}
}

// Recent lists the newest entries for an election.
func (j *Journal) Recent(ctx context.Context, electionID string, limit int) ([]repository.Activity, error) {
	if j == nil || j.Activity == nil {
		return nil, nil
	}
	return j.Activity.ListRecent(ctx, electionID, limit)
}
