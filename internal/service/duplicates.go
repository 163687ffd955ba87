package service

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/jask/rlaconsole/internal/api"
)

// DuplicateThreshold is the similarity at which two sign-ins are flagged.
const DuplicateThreshold = 0.85

// DuplicatePair flags a pending request whose members look like the same
// people as another request.
type DuplicatePair struct {
	PendingID  string
	OtherID    string
	Similarity float64
}

// PossibleDuplicates compares every pending request against every other
// request. Each unordered pair is reported once.
func PossibleDuplicates(reqs []api.LoginRequest, threshold float64) []DuplicatePair {
	keys := make([]string, len(reqs))
	for i, r := range reqs {
		keys[i] = memberKey(r.Members)
	}
	var out []DuplicatePair
	for i := 0; i < len(reqs); i++ {
		for j := i + 1; j < len(reqs); j++ {
			a, b := reqs[i], reqs[j]
			if a.Confirmed() && b.Confirmed() {
				continue
			}
			sim := similarity(keys[i], keys[j])
			if sim < threshold {
				continue
			}
			// the pending one is the candidate for rejection
			if a.Confirmed() {
				a, b = b, a
			}
			out = append(out, DuplicatePair{PendingID: a.TallyEntryUserID, OtherID: b.TallyEntryUserID, Similarity: sim})
		}
	}
	return out
}

func memberKey(members []api.Member) string {
	names := make([]string, 0, len(members))
	for _, m := range members {
		n := strings.Join(strings.Fields(strings.ToLower(m.Name)), " ")
		if n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	maxlen := len(a)
	if len(b) > maxlen {
		maxlen = len(b)
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxlen)
}
