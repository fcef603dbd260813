// Package bowline assembles the vocabulary linking engine.
//
// Engine wires the pipeline end to end: vocabulary snapshot, similarity
// engine with its cache, causal rule generator, confidence scorer fed by
// the feedback log, optional quality predictor, and the ranker. Callers
// interact with a small surface:
//
//	eng, err := bowline.Open(nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close()
//
//	if err := eng.LoadVocabulary("vocab.yaml"); err != nil {
//		log.Fatal(err)
//	}
//	suggestions, err := eng.GetSuggestions(ctx, nil)
//
// Optional components degrade, never break: a missing embedding lexicon
// drops the embedding method, a missing or corrupt quality model leaves
// ranking on confidence, a missing cache snapshot starts the cache cold.
// Open only fails on genuine misconfiguration.
package bowline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/orneryd/bowline/pkg/config"
	"github.com/orneryd/bowline/pkg/embed"
	"github.com/orneryd/bowline/pkg/feedback"
	"github.com/orneryd/bowline/pkg/predict"
	"github.com/orneryd/bowline/pkg/rank"
	"github.com/orneryd/bowline/pkg/rules"
	"github.com/orneryd/bowline/pkg/score"
	"github.com/orneryd/bowline/pkg/simcache"
	"github.com/orneryd/bowline/pkg/similarity"
	"github.com/orneryd/bowline/pkg/vocab"
)

// ErrNoVocabulary is returned by GetSuggestions before a vocabulary has
// been loaded.
var ErrNoVocabulary = errors.New("bowline: no vocabulary loaded")

// Engine is the assembled linking pipeline. Safe for concurrent use.
type Engine struct {
	cfg   *config.Config
	sim   *similarity.Engine
	cache *simcache.Cache
	gen   *rules.Generator
	store *feedback.Store
	cron  *cron.Cron

	mu     sync.RWMutex
	snap   *vocab.Snapshot
	scorer *score.Scorer
	model  *predict.Model
}

// Open assembles an engine from configuration. A nil cfg loads from the
// environment. The vocabulary is loaded separately with LoadVocabulary or
// SetVocabulary.
func Open(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.LoadFromEnv()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg}

	// Embedding lexicon is optional: without one the embedding method is
	// simply unavailable and the remaining methods carry the load.
	var lexicon *embed.Lexicon
	if cfg.Similarity.LexiconPath != "" {
		var err error
		lexicon, err = embed.LoadLexicon(cfg.Similarity.LexiconPath)
		if err != nil {
			log.Printf("bowline: lexicon %s unavailable, embedding similarity disabled: %v",
				cfg.Similarity.LexiconPath, err)
			lexicon = nil
		}
	}
	e.sim = similarity.NewEngine(lexicon)

	e.cache = simcache.New()
	if cfg.Cache.SnapshotPath != "" {
		if err := e.cache.LoadSnapshot(cfg.Cache.SnapshotPath); err != nil {
			log.Printf("bowline: cache snapshot not loaded, starting cold: %v", err)
		}
	}

	// Unknown method names were already rejected by Validate; the only
	// way a configured method can be unsupported here is embedding
	// without a lexicon, which degrades rather than fails.
	var methods []similarity.Method
	for _, name := range cfg.Similarity.Methods {
		m := similarity.Method(name)
		if e.sim.Supports(m) {
			methods = append(methods, m)
		} else {
			log.Printf("bowline: similarity method %q unavailable, skipping", name)
		}
	}

	gen, err := rules.NewGenerator(rules.Config{
		SimilarityThreshold:   cfg.Generation.Threshold,
		Methods:               methods,
		CausalPatternStrength: cfg.Generation.CausalStrength,
		ParallelThreshold:     cfg.Generation.ParallelThreshold,
		Workers:               cfg.Generation.Workers,
		// Duplicate derivations of a pair collapse to the one the
		// scorer ranks highest under current method reliability.
		MethodWeight: func(method string) float64 {
			e.mu.RLock()
			defer e.mu.RUnlock()
			if e.scorer == nil {
				return 1
			}
			return e.scorer.Reliability(method)
		},
	}, e.sim, e.cache)
	if err != nil {
		return nil, fmt.Errorf("bowline: %w", err)
	}
	e.gen = gen

	store, err := feedback.Open(feedback.Options{Dir: cfg.Feedback.Dir})
	if err != nil {
		return nil, fmt.Errorf("bowline: open feedback store: %w", err)
	}
	e.store = store

	if err := e.refreshScorer(); err != nil {
		store.Close()
		return nil, err
	}

	if cfg.Predictor.Enabled && cfg.Predictor.ModelPath != "" {
		model, err := predict.LoadModel(cfg.Predictor.ModelPath)
		if err != nil {
			log.Printf("bowline: quality model not loaded, ranking on confidence: %v", err)
		} else {
			e.model = model
			log.Printf("bowline: quality model loaded (%d trees, trained %s)",
				len(model.Trees), model.TrainedAt.Format("2006-01-02"))
		}
	}

	if cfg.Predictor.Enabled && cfg.Predictor.RetrainSchedule != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.Predictor.RetrainSchedule, func() {
			if _, err := e.TrainQualityModel(); err != nil {
				log.Printf("bowline: scheduled retrain skipped: %v", err)
			}
		})
		if err != nil {
			log.Printf("bowline: invalid retrain schedule %q, periodic retraining disabled: %v",
				cfg.Predictor.RetrainSchedule, err)
		} else {
			c.Start()
			e.cron = c
		}
	}

	return e, nil
}

// Close stops background work, persists the cache snapshot when
// configured, and closes the feedback store.
func (e *Engine) Close() error {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}

	var firstErr error
	if e.cfg.Cache.SnapshotPath != "" {
		if err := e.cache.SaveSnapshot(e.cfg.Cache.SnapshotPath); err != nil {
			log.Printf("bowline: cache snapshot not saved: %v", err)
			firstErr = err
		}
	}
	if err := e.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// LoadVocabulary reads a YAML vocabulary file and makes it the active
// snapshot.
func (e *Engine) LoadVocabulary(path string) error {
	snap, err := vocab.LoadFile(path)
	if err != nil {
		return err
	}
	e.SetVocabulary(snap)
	return nil
}

// SetVocabulary swaps the active snapshot. Suggestions already being
// generated finish against the snapshot they started with.
func (e *Engine) SetVocabulary(snap *vocab.Snapshot) {
	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()
}

// Vocabulary returns the active snapshot, or nil before one is loaded.
func (e *Engine) Vocabulary() *vocab.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// GetSuggestions runs the full pipeline and returns ranked candidates
// grouped by bowtie position. selected, when non-empty, restricts
// generation to pairs touching at least one of the given item ids.
func (e *Engine) GetSuggestions(ctx context.Context, selected []string) (map[rules.BowtiePosition][]rules.LinkCandidate, error) {
	e.mu.RLock()
	snap, scorer, model := e.snap, e.scorer, e.model
	e.mu.RUnlock()

	if snap == nil {
		return nil, ErrNoVocabulary
	}

	cands, err := e.gen.Generate(ctx, snap, selected)
	if err != nil {
		return nil, err
	}
	scored := scorer.ScoreAll(cands)

	var quality []float64
	if model != nil {
		quality = predict.Predict(scored, model)
	}

	// Rank within each position so every side of the bowtie gets its own
	// top-N rather than one side crowding out the others.
	byPos := make(map[rules.BowtiePosition][]rules.LinkCandidate, len(rules.Positions))
	qualityByPos := make(map[rules.BowtiePosition][]float64, len(rules.Positions))
	for i, c := range scored {
		byPos[c.Position] = append(byPos[c.Position], c)
		if quality != nil {
			qualityByPos[c.Position] = append(qualityByPos[c.Position], quality[i])
		}
	}

	opts := rank.Options{
		MaxN:           e.cfg.Ranking.MaxSuggestions,
		MinConfidence:  e.cfg.Ranking.MinConfidence,
		AllowedMethods: e.cfg.Ranking.AllowedMethods,
	}
	out := make(map[rules.BowtiePosition][]rules.LinkCandidate, len(byPos))
	for pos, group := range byPos {
		out[pos] = rank.Rank(group, qualityByPos[pos], opts)
	}
	return out, nil
}

// RecordFeedback appends a user decision to the log and refreshes the
// scorer so method reliability reflects it immediately.
func (e *Engine) RecordFeedback(rec feedback.Record) error {
	if err := e.store.Append(rec); err != nil {
		return err
	}
	return e.refreshScorer()
}

// TrainQualityModel trains a fresh quality model from the feedback log,
// persists it when a model path is configured, and activates it.
//
// Returns predict.ErrInsufficientData (wrapped) while the log is too
// small; the engine keeps ranking on confidence in that case.
func (e *Engine) TrainQualityModel() (*predict.Model, error) {
	records, err := e.store.All()
	if err != nil {
		return nil, err
	}

	tcfg := predict.DefaultTrainConfig()
	if e.cfg.Predictor.MinSamples > 0 {
		tcfg.MinSamples = e.cfg.Predictor.MinSamples
	}
	model, err := predict.Train(records, tcfg)
	if err != nil {
		return nil, err
	}

	if e.cfg.Predictor.ModelPath != "" {
		if err := model.Save(e.cfg.Predictor.ModelPath); err != nil {
			log.Printf("bowline: trained model not persisted: %v", err)
		}
	}

	e.mu.Lock()
	e.model = model
	e.mu.Unlock()
	return model, nil
}

// CacheStats reports similarity cache effectiveness.
func (e *Engine) CacheStats() simcache.Stats {
	return e.cache.Stats()
}

// FeedbackStats summarizes the feedback log.
func (e *Engine) FeedbackStats() (feedback.Stats, error) {
	return e.store.Stats()
}

// refreshScorer rebuilds the scorer from current feedback statistics.
func (e *Engine) refreshScorer() error {
	stats, err := e.store.Stats()
	if err != nil {
		return fmt.Errorf("bowline: feedback stats: %w", err)
	}

	scfg := score.DefaultConfig()
	scfg.VeryHigh = e.cfg.Scoring.VeryHigh
	scfg.High = e.cfg.Scoring.High
	scfg.Medium = e.cfg.Scoring.Medium
	scfg.VeryLowCut = e.cfg.Scoring.VeryLowCut
	scfg.ChainBonus = e.cfg.Scoring.ChainBonus
	if e.cfg.Scoring.MinMethodHistory > 0 {
		scfg.MinMethodHistory = e.cfg.Scoring.MinMethodHistory
	}
	scorer, err := score.NewScorer(scfg, &stats)
	if err != nil {
		return fmt.Errorf("bowline: %w", err)
	}

	e.mu.Lock()
	e.scorer = scorer
	e.mu.Unlock()
	return nil
}
