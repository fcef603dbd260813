// Package rank orders and filters link candidates for display.
//
// Rank is a pure function of its inputs: no hidden state, no clock, no
// randomness. Given the same candidates and options it always returns the
// same ordering, which makes the suggestion panel reproducible and the
// ranker independently testable.
//
// Sort key: predicted quality when a quality slice is supplied (the
// quality predictor's output), otherwise the candidate's confidence;
// descending. Ties break by similarity descending, then target id
// ascending, then source id ascending, so the order is total and
// deterministic.
package rank

import (
	"sort"

	"github.com/orneryd/bowline/pkg/rules"
)

// Options filters and truncates the ranked output.
type Options struct {
	// MaxN truncates the result. Zero or negative means unlimited.
	MaxN int

	// MinConfidence drops candidates whose confidence is below the bound.
	MinConfidence float64

	// AllowedMethods, when non-empty, drops candidates whose deriving
	// method is not listed.
	AllowedMethods []string
}

// Rank sorts and filters candidates.
//
// quality, when non-nil, must be aligned index-for-index with cands and
// supplies the primary sort key (predicted probability of acceptance).
// A nil quality slice ranks by confidence alone, which is exactly the
// degraded behavior when no quality predictor is active: callers never
// branch on predictor presence.
//
// The input slice is never mutated.
func Rank(cands []rules.LinkCandidate, quality []float64, opts Options) []rules.LinkCandidate {
	type ranked struct {
		cand rules.LinkCandidate
		key  float64
	}

	var allowed map[string]struct{}
	if len(opts.AllowedMethods) > 0 {
		allowed = make(map[string]struct{}, len(opts.AllowedMethods))
		for _, m := range opts.AllowedMethods {
			allowed[m] = struct{}{}
		}
	}

	keep := make([]ranked, 0, len(cands))
	for i, c := range cands {
		if c.Confidence < opts.MinConfidence {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[c.Method]; !ok {
				continue
			}
		}
		key := c.Confidence
		if quality != nil && i < len(quality) {
			key = quality[i]
		}
		keep = append(keep, ranked{cand: c, key: key})
	}

	sort.Slice(keep, func(i, j int) bool {
		a, b := keep[i], keep[j]
		if a.key != b.key {
			return a.key > b.key
		}
		if a.cand.Similarity != b.cand.Similarity {
			return a.cand.Similarity > b.cand.Similarity
		}
		if a.cand.ToID != b.cand.ToID {
			return a.cand.ToID < b.cand.ToID
		}
		return a.cand.FromID < b.cand.FromID
	})

	n := len(keep)
	if opts.MaxN > 0 && opts.MaxN < n {
		n = opts.MaxN
	}

	out := make([]rules.LinkCandidate, n)
	for i := 0; i < n; i++ {
		out[i] = keep[i].cand
	}
	return out
}
