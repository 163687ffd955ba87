package service

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jask/rlaconsole/internal/api"
)

// Progress is the uniform completed/total pair every audit mode reports.
type Progress struct {
	Completed int
	Total     int
}

func (p Progress) Add(q Progress) Progress {
	return Progress{Completed: p.Completed + q.Completed, Total: p.Total + q.Total}
}

// Fraction is Completed/Total, or 0 when there is nothing to count.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// ProgressMode selects which artifacts progress is counted from. Exactly one
// mode applies to an audit, so no unit is counted twice.
type ProgressMode interface {
	progressMode()
	String() string
}

// OnlineBallotEntry counts audited ballots over sampled ballots across the
// audit boards of the round.
type OnlineBallotEntry struct{}

// OfflineBallotEntry counts jurisdictions whose results have been submitted.
type OfflineBallotEntry struct{}

// BatchTallyEntry counts batches with at least one result tally sheet.
type BatchTallyEntry struct{}

func (OnlineBallotEntry) progressMode()  {}
func (OfflineBallotEntry) progressMode() {}
func (BatchTallyEntry) progressMode()    {}

func (OnlineBallotEntry) String() string  { return "ballots audited" }
func (OfflineBallotEntry) String() string { return "jurisdictions submitted" }
func (BatchTallyEntry) String() string    { return "batches tallied" }

// SelectProgressMode is the only place audit type decides how progress is
// counted.
func SelectProgressMode(t api.AuditType, onlineEntry bool) ProgressMode {
	if t == api.BatchComparison {
		return BatchTallyEntry{}
	}
	if onlineEntry {
		return OnlineBallotEntry{}
	}
	return OfflineBallotEntry{}
}

// CountProgress counts one jurisdiction's progress for a round.
func CountProgress(ctx context.Context, r api.ProgressReader, mode ProgressMode, electionID, jurisdictionID, roundID string) (Progress, error) {
	switch mode.(type) {
	case OnlineBallotEntry:
		boards, err := r.GetAuditBoards(ctx, electionID, jurisdictionID, roundID)
		if err != nil {
			return Progress{}, api.Transient("get audit boards", err)
		}
		var p Progress
		for _, b := range boards {
			p.Completed += b.NumAuditedBallots
			p.Total += b.NumSampledBallots
		}
		return p, nil
	case OfflineBallotEntry:
		res, err := r.GetOfflineResults(ctx, electionID, jurisdictionID, roundID)
		if err != nil {
			return Progress{}, api.Transient("get offline results", err)
		}
		p := Progress{Total: 1}
		if res.Submitted {
			p.Completed = 1
		}
		return p, nil
	case BatchTallyEntry:
		batches, err := r.GetBatches(ctx, electionID, jurisdictionID, roundID)
		if err != nil {
			return Progress{}, api.Transient("get batches", err)
		}
		p := Progress{Total: len(batches)}
		for _, b := range batches {
			if len(b.ResultTallySheets) > 0 {
				p.Completed++
			}
		}
		return p, nil
	default:
		return Progress{}, errors.Errorf("unknown progress mode %T", mode)
	}
}

// SumProgress counts every jurisdiction concurrently and adds the results.
func SumProgress(ctx context.Context, r api.ProgressReader, mode ProgressMode, electionID string, jurisdictionIDs []string, roundID string) (Progress, error) {
	parts := make([]Progress, len(jurisdictionIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, jid := range jurisdictionIDs {
		eg.Go(func() error {
			p, err := CountProgress(egCtx, r, mode, electionID, jid, roundID)
			if err != nil {
				return errors.Wrapf(err, "jurisdiction %s", jid)
			}
			parts[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Progress{}, err
	}
	var total Progress
	for _, p := range parts {
		total = total.Add(p)
	}
	return total, nil
}
