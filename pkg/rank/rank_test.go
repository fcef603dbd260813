package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/bowline/pkg/rules"
)

func cand(to string, confidence, similarity float64, method string) rules.LinkCandidate {
	return rules.LinkCandidate{
		FromID:     "A1",
		ToID:       to,
		Position:   rules.ActivityPressure,
		Similarity: similarity,
		Method:     method,
		Confidence: confidence,
	}
}

func TestRank_ByConfidence(t *testing.T) {
	cands := []rules.LinkCandidate{
		cand("P1", 0.6, 0.6, "jaccard"),
		cand("P2", 0.9, 0.9, "jaccard"),
		cand("P3", 0.3, 0.3, "jaccard"),
	}

	out := Rank(cands, nil, Options{})
	require.Len(t, out, 3)
	assert.Equal(t, "P2", out[0].ToID)
	assert.Equal(t, "P1", out[1].ToID)
	assert.Equal(t, "P3", out[2].ToID)
}

// Ranking determinism: equal confidences break by similarity, then to_id.
func TestRank_TieBreaks(t *testing.T) {
	t.Run("to_id breaks full ties", func(t *testing.T) {
		cands := []rules.LinkCandidate{
			cand("P9", 0.6, 0.6, "jaccard"),
			cand("P2", 0.9, 0.9, "jaccard"),
			cand("P1", 0.6, 0.6, "jaccard"),
		}

		out := Rank(cands, nil, Options{})
		require.Len(t, out, 3)
		assert.Equal(t, "P2", out[0].ToID)
		assert.Equal(t, "P1", out[1].ToID, "tie must break by to_id ascending")
		assert.Equal(t, "P9", out[2].ToID)
	})

	t.Run("similarity breaks confidence ties first", func(t *testing.T) {
		cands := []rules.LinkCandidate{
			cand("P1", 0.6, 0.4, "jaccard"),
			cand("P2", 0.6, 0.8, "jaccard"),
		}

		out := Rank(cands, nil, Options{})
		assert.Equal(t, "P2", out[0].ToID)
	})

	t.Run("repeated calls agree", func(t *testing.T) {
		cands := []rules.LinkCandidate{
			cand("P3", 0.6, 0.6, "jaccard"),
			cand("P1", 0.6, 0.6, "cosine"),
			cand("P2", 0.6, 0.6, "jaccard"),
		}
		first := Rank(cands, nil, Options{})
		second := Rank(cands, nil, Options{})
		assert.Equal(t, first, second)
	})
}

func TestRank_MinConfidence(t *testing.T) {
	cands := []rules.LinkCandidate{
		cand("P1", 0.8, 0.8, "jaccard"),
		cand("P2", 0.4, 0.4, "jaccard"),
	}

	out := Rank(cands, nil, Options{MinConfidence: 0.5})
	require.Len(t, out, 1)
	assert.Equal(t, "P1", out[0].ToID)
}

func TestRank_AllowedMethods(t *testing.T) {
	cands := []rules.LinkCandidate{
		cand("P1", 0.8, 0.8, "jaccard"),
		cand("P2", 0.9, 0.9, "keyword_fishing"),
	}

	t.Run("non-empty list filters", func(t *testing.T) {
		out := Rank(cands, nil, Options{AllowedMethods: []string{"jaccard"}})
		require.Len(t, out, 1)
		assert.Equal(t, "P1", out[0].ToID)
	})

	t.Run("empty list admits everything", func(t *testing.T) {
		out := Rank(cands, nil, Options{})
		assert.Len(t, out, 2)
	})
}

func TestRank_MaxN(t *testing.T) {
	cands := []rules.LinkCandidate{
		cand("P1", 0.5, 0.5, "jaccard"),
		cand("P2", 0.9, 0.9, "jaccard"),
		cand("P3", 0.7, 0.7, "jaccard"),
	}

	out := Rank(cands, nil, Options{MaxN: 2})
	require.Len(t, out, 2)
	assert.Equal(t, "P2", out[0].ToID)
	assert.Equal(t, "P3", out[1].ToID)
}

func TestRank_QualityOverridesConfidence(t *testing.T) {
	cands := []rules.LinkCandidate{
		cand("P1", 0.9, 0.9, "jaccard"), // high confidence, low predicted quality
		cand("P2", 0.5, 0.5, "jaccard"), // low confidence, high predicted quality
	}

	out := Rank(cands, []float64{0.2, 0.8}, Options{})
	require.Len(t, out, 2)
	assert.Equal(t, "P2", out[0].ToID)

	// min_confidence still applies to confidence, not predicted quality.
	out = Rank(cands, []float64{0.2, 0.8}, Options{MinConfidence: 0.6})
	require.Len(t, out, 1)
	assert.Equal(t, "P1", out[0].ToID)
}

// With no predictor the ordering equals ordering by confidence alone.
func TestRank_GracefulDegradation(t *testing.T) {
	cands := []rules.LinkCandidate{
		cand("P3", 0.3, 0.3, "jaccard"),
		cand("P1", 0.9, 0.9, "jaccard"),
		cand("P2", 0.6, 0.6, "jaccard"),
	}

	withNil := Rank(cands, nil, Options{})
	neutral := Rank(cands, []float64{0.3, 0.9, 0.6}, Options{})
	assert.Equal(t, withNil, neutral)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	cands := []rules.LinkCandidate{
		cand("P2", 0.5, 0.5, "jaccard"),
		cand("P1", 0.9, 0.9, "jaccard"),
	}

	_ = Rank(cands, nil, Options{})
	assert.Equal(t, "P2", cands[0].ToID, "input order must be preserved")
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil, nil, Options{MaxN: 10}))
}
