// Package score blends raw similarity with secondary signals into a single
// confidence value and discrete quality level per link candidate.
//
// The base value is the candidate's raw similarity. Three multiplicative
// adjustments apply, with the result clamped to [0, 1]:
//
//   - Method reliability: methods with a track record in the feedback log
//     scale by 0.5 + acceptance rate, so a method users accept 90% of the
//     time boosts its candidates and one they reject most of the time
//     dampens them. Methods without enough history stay neutral (×1.0).
//   - Multiplicity: a pair derived by several independent methods is more
//     trustworthy than a single-method hit. The bonus saturates after five
//     corroborating methods.
//   - Chain completeness: an Activity→Pressure link whose pressure also
//     links onward to a consequence (or a Pressure→Consequence link fed by
//     an incoming activity) is structurally coherent and gets a boost over
//     isolated guesses.
//
// Level thresholds are a policy, not a law: the defaults are documented
// (very_high ≥ 0.85, high ≥ 0.70, medium ≥ 0.50, else low) and exposed as
// configuration.
package score

import (
	"fmt"

	"github.com/orneryd/bowline/pkg/feedback"
	"github.com/orneryd/bowline/pkg/rules"
)

// Config holds the scoring policy.
type Config struct {
	// Level thresholds, each the inclusive lower bound of its band.
	VeryHigh float64 // default 0.85
	High     float64 // default 0.70
	Medium   float64 // default 0.50

	// VeryLowCut is the exclusive upper bound of the very_low band.
	// The default of 0 means nothing maps to very_low; raising it carves
	// the band out of the bottom of low.
	VeryLowCut float64

	// MultiplicityBonus is the per-extra-method boost, saturating after
	// MultiplicitySaturation corroborating methods. Default 0.05.
	MultiplicityBonus      float64
	MultiplicitySaturation int // default 5

	// ChainBonus is the boost for candidates on a complete
	// Activity→Pressure→Consequence chain. Default 0.10.
	ChainBonus float64

	// MinMethodHistory is how many decided (accepted or rejected)
	// feedback records a method needs before its acceptance rate replaces
	// the neutral reliability factor. Default 5.
	MinMethodHistory int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		VeryHigh:               0.85,
		High:                   0.70,
		Medium:                 0.50,
		VeryLowCut:             0,
		MultiplicityBonus:      0.05,
		MultiplicitySaturation: 5,
		ChainBonus:             0.10,
		MinMethodHistory:       5,
	}
}

// Scorer computes confidence for link candidates.
//
// A Scorer is immutable after construction; build a new one when fresh
// feedback statistics should take effect.
type Scorer struct {
	cfg         Config
	reliability map[string]float64
}

// NewScorer validates the policy and captures per-method reliability from
// feedback statistics. stats may be nil (no feedback yet): every method is
// then neutral.
func NewScorer(cfg Config, stats *feedback.Stats) (*Scorer, error) {
	if cfg.MultiplicitySaturation <= 0 {
		cfg.MultiplicitySaturation = 5
	}
	if cfg.MinMethodHistory <= 0 {
		cfg.MinMethodHistory = 5
	}
	if !(cfg.VeryHigh >= cfg.High && cfg.High >= cfg.Medium && cfg.Medium >= cfg.VeryLowCut) {
		return nil, fmt.Errorf("score: level thresholds out of order: %+v", cfg)
	}
	if cfg.VeryHigh > 1 || cfg.VeryLowCut < 0 {
		return nil, fmt.Errorf("score: level thresholds outside [0,1]: %+v", cfg)
	}
	if cfg.MultiplicityBonus < 0 || cfg.ChainBonus < 0 {
		return nil, fmt.Errorf("score: negative bonus: %+v", cfg)
	}

	s := &Scorer{cfg: cfg, reliability: make(map[string]float64)}
	if stats != nil {
		for method, ms := range stats.PerMethod {
			if ms.Accepted+ms.Rejected >= cfg.MinMethodHistory {
				s.reliability[method] = 0.5 + ms.AcceptanceRate
			}
		}
	}
	return s, nil
}

// ScoreAll returns scored copies of the candidates, leaving the input
// untouched. Chain completeness is derived from the candidate set itself.
func (s *Scorer) ScoreAll(cands []rules.LinkCandidate) []rules.LinkCandidate {
	// Index the chain structure: which pressures link onward, and which
	// pressures are fed by an activity.
	pressureHasConsequence := make(map[string]struct{})
	pressureHasActivity := make(map[string]struct{})
	for _, c := range cands {
		switch c.Position {
		case rules.PressureConsequence:
			pressureHasConsequence[c.FromID] = struct{}{}
		case rules.ActivityPressure:
			pressureHasActivity[c.ToID] = struct{}{}
		}
	}

	out := make([]rules.LinkCandidate, len(cands))
	for i, c := range cands {
		onChain := false
		switch c.Position {
		case rules.ActivityPressure:
			_, onChain = pressureHasConsequence[c.ToID]
		case rules.PressureConsequence:
			_, onChain = pressureHasActivity[c.FromID]
		}
		c.Confidence = s.Score(c, onChain)
		c.Level = s.Level(c.Confidence)
		out[i] = c
	}
	return out
}

// Reliability returns the factor applied to candidates of the given
// method, 1.0 for methods without enough decided history. Deduplication
// uses it to keep the duplicate the scorer would rank highest.
func (s *Scorer) Reliability(method string) float64 {
	if factor, ok := s.reliability[method]; ok {
		return factor
	}
	return 1
}

// Score computes the blended confidence for one candidate. onChain tells
// the scorer whether the candidate sits on a complete causal chain; use
// ScoreAll to derive that from a full candidate set.
func (s *Scorer) Score(c rules.LinkCandidate, onChain bool) float64 {
	conf := c.Similarity

	if factor, ok := s.reliability[c.Method]; ok {
		conf *= factor
	}

	if c.Multiplicity > 1 {
		extra := c.Multiplicity - 1
		if extra > s.cfg.MultiplicitySaturation-1 {
			extra = s.cfg.MultiplicitySaturation - 1
		}
		conf *= 1 + s.cfg.MultiplicityBonus*float64(extra)
	}

	if onChain {
		conf *= 1 + s.cfg.ChainBonus
	}

	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// Level maps a confidence value to its discrete band.
func (s *Scorer) Level(conf float64) rules.ConfidenceLevel {
	switch {
	case conf >= s.cfg.VeryHigh:
		return rules.VeryHigh
	case conf >= s.cfg.High:
		return rules.High
	case conf >= s.cfg.Medium:
		return rules.Medium
	case conf < s.cfg.VeryLowCut:
		return rules.VeryLow
	default:
		return rules.Low
	}
}
