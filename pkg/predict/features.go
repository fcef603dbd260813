// Package predict learns to re-score link candidates from user feedback.
//
// The quality predictor is an optional component: the rest of the engine
// works identically with it absent. When enough accept/reject feedback has
// accrued, Train fits a small bagged ensemble of decision trees that maps
// a candidate's features to a probability of acceptance; Predict scores
// candidates with that model, or falls back to each candidate's existing
// confidence when no model is loaded, so callers never branch on model
// presence.
//
// Features per candidate: raw similarity, blended confidence, a one-hot
// of the method family, a one-hot of the bowtie position, token counts of
// the two labels, and the corroborating-method multiplicity. Feedback
// records do not carry labels or multiplicity, so those features are
// neutral at training time; they still let a loaded model discriminate at
// prediction time.
//
// Trees use gini-impurity splits at median thresholds, which handle the
// mix of one-hot and numeric features and the small sample sizes feedback
// logs start with. Tree count, depth and sample volume are all bounded so
// training time stays bounded too.
package predict

import (
	"strings"

	"github.com/orneryd/bowline/pkg/feedback"
	"github.com/orneryd/bowline/pkg/rules"
	"github.com/orneryd/bowline/pkg/similarity"
)

// methodFamilies are the recognized method-family one-hot slots. Theme
// methods ("keyword_fishing", "keyword_pollution", ...) collapse into one
// keyword family so the model generalizes across themes.
var methodFamilies = []string{"jaccard", "cosine", "embedding", "keyword", "causal_pattern"}

// featureNames documents the vector layout, index for index.
var featureNames = buildFeatureNames()

func buildFeatureNames() []string {
	names := []string{"similarity", "confidence"}
	for _, f := range methodFamilies {
		names = append(names, "method_"+f)
	}
	for _, p := range rules.Positions {
		names = append(names, "position_"+string(p))
	}
	names = append(names, "from_tokens", "to_tokens", "multiplicity")
	return names
}

// FeatureNames returns the documented feature vector layout.
func FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

// methodFamily collapses a method string to its family slot.
func methodFamily(method string) string {
	if strings.HasPrefix(method, "keyword_") {
		return "keyword"
	}
	return method
}

// example is the common shape candidates and feedback records reduce to
// before vectorization.
type example struct {
	similarity   float64
	confidence   float64
	method       string
	position     rules.BowtiePosition
	fromTokens   int
	toTokens     int
	multiplicity int
}

func (e example) vector() []float64 {
	vec := make([]float64, 0, len(featureNames))
	vec = append(vec, e.similarity, e.confidence)

	family := methodFamily(e.method)
	for _, f := range methodFamilies {
		if family == f {
			vec = append(vec, 1)
		} else {
			vec = append(vec, 0)
		}
	}
	for _, p := range rules.Positions {
		if e.position == p {
			vec = append(vec, 1)
		} else {
			vec = append(vec, 0)
		}
	}
	vec = append(vec, float64(e.fromTokens), float64(e.toTokens), float64(e.multiplicity))
	return vec
}

func exampleFromCandidate(c rules.LinkCandidate) example {
	return example{
		similarity:   c.Similarity,
		confidence:   c.Confidence,
		method:       c.Method,
		position:     c.Position,
		fromTokens:   len(similarity.Tokenize(c.FromName)),
		toTokens:     len(similarity.Tokenize(c.ToName)),
		multiplicity: c.Multiplicity,
	}
}

// exampleFromRecord maps a feedback record to the same shape. Records do
// not store label text or multiplicity; those slots stay neutral.
func exampleFromRecord(rec feedback.Record) example {
	pos, _ := rules.PositionFor(rec.FromType, rec.ToType)
	return example{
		similarity:   rec.Similarity,
		confidence:   rec.Confidence,
		method:       rec.Method,
		position:     pos,
		multiplicity: 1,
	}
}

// Features vectorizes one candidate. Exposed for diagnostics; Train and
// Predict use it internally.
func Features(c rules.LinkCandidate) []float64 {
	return exampleFromCandidate(c).vector()
}
