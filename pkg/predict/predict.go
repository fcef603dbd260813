package predict

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/orneryd/bowline/pkg/feedback"
	"github.com/orneryd/bowline/pkg/rules"
)

// ErrInsufficientData signals that the feedback log does not yet hold
// enough decided records to train a model worth trusting.
var ErrInsufficientData = errors.New("predict: not enough decided feedback to train")

// TrainConfig bounds the training run.
type TrainConfig struct {
	// MinSamples is the minimum number of decided (accepted or rejected)
	// feedback records required. Default 50.
	MinSamples int

	// NumTrees is the ensemble size. Default 25.
	NumTrees int

	// MaxDepth bounds each tree. Default 8.
	MaxDepth int

	// MinLeaf is the minimum sample count per leaf. Default 2.
	MinLeaf int

	// SampleCap bounds the training set; when the log is larger the most
	// recent records win. Default 5000.
	SampleCap int

	// Seed makes training reproducible. Zero means 1.
	Seed int64
}

// DefaultTrainConfig returns the documented defaults.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		MinSamples: 50,
		NumTrees:   25,
		MaxDepth:   8,
		MinLeaf:    2,
		SampleCap:  5000,
		Seed:       1,
	}
}

func (c *TrainConfig) applyDefaults() {
	d := DefaultTrainConfig()
	if c.MinSamples <= 0 {
		c.MinSamples = d.MinSamples
	}
	if c.NumTrees <= 0 {
		c.NumTrees = d.NumTrees
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.MinLeaf <= 0 {
		c.MinLeaf = d.MinLeaf
	}
	if c.SampleCap <= 0 {
		c.SampleCap = d.SampleCap
	}
	if c.Seed == 0 {
		c.Seed = d.Seed
	}
}

// Model is a trained bagged-tree ensemble plus its provenance.
type Model struct {
	Version      int       `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	SampleCount  int       `json:"sample_count"`
	OOBAccuracy  float64   `json:"oob_accuracy"`
	FeatureNames []string  `json:"feature_names"`
	Trees        []*Node   `json:"trees"`
}

const modelVersion = 1

// Train fits an ensemble on the decided records in the feedback log.
// Accepted records label 1, rejected 0; ignored records carry no signal
// and are excluded. Returns ErrInsufficientData below MinSamples.
func Train(records []feedback.Record, cfg TrainConfig) (*Model, error) {
	cfg.applyDefaults()

	var decided []feedback.Record
	for _, rec := range records {
		if rec.Action == feedback.Accepted || rec.Action == feedback.Rejected {
			decided = append(decided, rec)
		}
	}
	if len(decided) < cfg.MinSamples {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(decided), cfg.MinSamples)
	}
	if len(decided) > cfg.SampleCap {
		decided = decided[len(decided)-cfg.SampleCap:]
	}

	features := make([][]float64, len(decided))
	labels := make([]float64, len(decided))
	for i, rec := range decided {
		features[i] = exampleFromRecord(rec).vector()
		if rec.Action == feedback.Accepted {
			labels[i] = 1
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	n := len(decided)

	trees := make([]*Node, cfg.NumTrees)
	// oobVotes[i] accumulates predictions from trees that never saw
	// sample i, the standard out-of-bag validation for bagged ensembles.
	oobSum := make([]float64, n)
	oobCount := make([]int, n)

	for t := 0; t < cfg.NumTrees; t++ {
		inBag := make([]bool, n)
		bagFeatures := make([][]float64, n)
		bagLabels := make([]float64, n)
		for i := 0; i < n; i++ {
			j := rng.Intn(n)
			inBag[j] = true
			bagFeatures[i] = features[j]
			bagLabels[i] = labels[j]
		}

		tree := buildTree(bagFeatures, bagLabels, 0, cfg.MaxDepth, cfg.MinLeaf, rng)
		trees[t] = tree

		for i := 0; i < n; i++ {
			if !inBag[i] {
				oobSum[i] += tree.predict(features[i])
				oobCount[i]++
			}
		}
	}

	correct, counted := 0, 0
	for i := 0; i < n; i++ {
		if oobCount[i] == 0 {
			continue
		}
		counted++
		predicted := oobSum[i] / float64(oobCount[i])
		if (predicted >= 0.5) == (labels[i] >= 0.5) {
			correct++
		}
	}
	accuracy := 0.0
	if counted > 0 {
		accuracy = float64(correct) / float64(counted)
	}

	m := &Model{
		Version:      modelVersion,
		TrainedAt:    time.Now().UTC(),
		SampleCount:  n,
		OOBAccuracy:  accuracy,
		FeatureNames: FeatureNames(),
		Trees:        trees,
	}
	log.Printf("predict: trained %d trees on %d samples, oob accuracy %.3f",
		len(trees), n, accuracy)
	return m, nil
}

// Predict scores candidates as acceptance probabilities in [0, 1].
//
// A nil model degrades to each candidate's confidence, so ranking with
// and without a predictor flows through the same code path.
func Predict(cands []rules.LinkCandidate, m *Model) []float64 {
	out := make([]float64, len(cands))
	if m == nil || len(m.Trees) == 0 {
		for i, c := range cands {
			out[i] = c.Confidence
		}
		return out
	}
	for i, c := range cands {
		vec := exampleFromCandidate(c).vector()
		var sum float64
		for _, tree := range m.Trees {
			sum += tree.predict(vec)
		}
		p := sum / float64(len(m.Trees))
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		out[i] = p
	}
	return out
}

// Save writes the model as JSON.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("predict: marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("predict: write model: %w", err)
	}
	return nil
}

// LoadModel reads a persisted model. A missing file is not an error
// condition worth failing startup over; callers treat (nil, err) as
// "run without a model".
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("predict: read model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("predict: parse model: %w", err)
	}
	if m.Version != modelVersion {
		return nil, fmt.Errorf("predict: unsupported model version %d", m.Version)
	}
	if len(m.Trees) == 0 {
		return nil, errors.New("predict: model has no trees")
	}
	return &m, nil
}
