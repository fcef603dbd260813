package predict

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/bowline/pkg/feedback"
	"github.com/orneryd/bowline/pkg/rules"
	"github.com/orneryd/bowline/pkg/vocab"
)

// trainingLog builds a log with a clean learnable signal: embedding
// suggestions with high similarity get accepted, jaccard suggestions with
// low similarity get rejected.
func trainingLog(n int) []feedback.Record {
	var recs []feedback.Record
	for i := 0; i < n; i++ {
		recs = append(recs, feedback.Record{
			FromID: "A1", ToID: "P1",
			FromType: vocab.Activity, ToType: vocab.Pressure,
			Similarity: 0.8, Confidence: 0.8,
			Method: "embedding", Action: feedback.Accepted,
		})
		recs = append(recs, feedback.Record{
			FromID: "A2", ToID: "P2",
			FromType: vocab.Activity, ToType: vocab.Pressure,
			Similarity: 0.2, Confidence: 0.2,
			Method: "jaccard", Action: feedback.Rejected,
		})
	}
	return recs
}

func TestTrain_InsufficientData(t *testing.T) {
	_, err := Train(trainingLog(10), DefaultTrainConfig()) // 20 decided < 50
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestTrain_IgnoredRecordsCarryNoSignal(t *testing.T) {
	recs := trainingLog(10)
	for i := 0; i < 100; i++ {
		recs = append(recs, feedback.Record{
			FromType: vocab.Activity, ToType: vocab.Pressure,
			Method: "jaccard", Action: feedback.Ignored,
		})
	}
	_, err := Train(recs, DefaultTrainConfig())
	assert.True(t, errors.Is(err, ErrInsufficientData),
		"ignored records must not count toward min_samples")
}

func TestTrain_LearnsAcceptancePattern(t *testing.T) {
	m, err := Train(trainingLog(50), DefaultTrainConfig())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 100, m.SampleCount)
	assert.Greater(t, m.OOBAccuracy, 0.8,
		"a cleanly separable log should validate well out-of-bag")

	good := rules.LinkCandidate{
		FromName: "Commercial fishing", ToName: "Overfishing pressure",
		Position: rules.ActivityPressure,
		Similarity: 0.8, Confidence: 0.8, Method: "embedding", Multiplicity: 1,
	}
	bad := rules.LinkCandidate{
		FromName: "Coastal tourism", ToName: "Nutrient discharge",
		Position: rules.ActivityPressure,
		Similarity: 0.2, Confidence: 0.2, Method: "jaccard", Multiplicity: 1,
	}

	quality := Predict([]rules.LinkCandidate{good, bad}, m)
	require.Len(t, quality, 2)
	assert.Greater(t, quality[0], quality[1])
	for _, q := range quality {
		assert.GreaterOrEqual(t, q, 0.0)
		assert.LessOrEqual(t, q, 1.0)
	}
}

func TestTrain_Deterministic(t *testing.T) {
	recs := trainingLog(50)
	cfg := DefaultTrainConfig()

	m1, err := Train(recs, cfg)
	require.NoError(t, err)
	m2, err := Train(recs, cfg)
	require.NoError(t, err)

	cands := []rules.LinkCandidate{
		{FromName: "a b", ToName: "c d", Position: rules.ActivityPressure,
			Similarity: 0.5, Confidence: 0.5, Method: "embedding", Multiplicity: 2},
	}
	assert.Equal(t, Predict(cands, m1), Predict(cands, m2))
}

func TestPredict_NilModelFallsBackToConfidence(t *testing.T) {
	cands := []rules.LinkCandidate{
		{Confidence: 0.7},
		{Confidence: 0.3},
	}
	quality := Predict(cands, nil)
	assert.Equal(t, []float64{0.7, 0.3}, quality)
}

func TestModel_SaveLoadRoundTrip(t *testing.T) {
	m, err := Train(trainingLog(50), DefaultTrainConfig())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, m.Save(path))

	loaded, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, m.SampleCount, loaded.SampleCount)
	assert.Equal(t, m.FeatureNames, loaded.FeatureNames)

	cands := []rules.LinkCandidate{
		{FromName: "x", ToName: "y", Position: rules.ActivityPressure,
			Similarity: 0.8, Confidence: 0.8, Method: "embedding", Multiplicity: 1},
	}
	assert.Equal(t, Predict(cands, m), Predict(cands, loaded))
}

func TestLoadModel_MissingAndCorrupt(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadModel(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.json")
		require.NoError(t, os.WriteFile(path, []byte("not json{"), 0o644))
		_, err := LoadModel(path)
		assert.Error(t, err)
	})
}

func TestFeatures_LayoutMatchesNames(t *testing.T) {
	c := rules.LinkCandidate{
		FromName: "Commercial fishing", ToName: "Overfishing pressure",
		Position: rules.ActivityPressure,
		Similarity: 0.8, Confidence: 0.7, Method: "keyword_fishing", Multiplicity: 2,
	}
	vec := Features(c)
	names := FeatureNames()
	require.Len(t, vec, len(names))

	byName := make(map[string]float64, len(names))
	for i, name := range names {
		byName[name] = vec[i]
	}
	assert.Equal(t, 0.8, byName["similarity"])
	assert.Equal(t, 0.7, byName["confidence"])
	assert.Equal(t, 1.0, byName["method_keyword"], "theme methods collapse to the keyword family")
	assert.Equal(t, 0.0, byName["method_jaccard"])
	assert.Equal(t, 1.0, byName["position_activity_pressure"])
	assert.Equal(t, 2.0, byName["from_tokens"])
	assert.Equal(t, 2.0, byName["to_tokens"])
	assert.Equal(t, 2.0, byName["multiplicity"])
}
