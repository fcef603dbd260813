// Package config handles engine configuration via environment variables
// and an optional YAML file.
//
// All variables are prefixed with BOWLINE_. Configuration is loaded with
// LoadFromEnv(), optionally overlaid from a YAML file with LoadFile(),
// and validated with Validate() before use.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// Environment Variables:
//
//   - BOWLINE_VOCAB_PATH="./vocab.yaml"
//   - BOWLINE_LEXICON_PATH="./lexicon.vec"
//   - BOWLINE_SIMILARITY_THRESHOLD=0.3
//   - BOWLINE_SIMILARITY_METHODS="jaccard,cosine,embedding"
//   - BOWLINE_ALLOWED_METHODS="keyword_fishing,causal_pattern"
//   - BOWLINE_FEEDBACK_DIR="./data/feedback"
//   - BOWLINE_MODEL_PATH="./data/model.json"
//   - BOWLINE_RETRAIN_SCHEDULE="@daily"
//   - BOWLINE_CACHE_SNAPSHOT="./data/simcache.json"
//
// For a complete list, see the Config struct field documentation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/bowline/pkg/similarity"
)

// Config holds all engine configuration.
//
// Configuration is organized into logical sections mirroring the engine's
// pipeline: vocabulary input, similarity, candidate generation, scoring,
// ranking, feedback storage, and the quality predictor.
type Config struct {
	Vocab      VocabConfig      `yaml:"vocab"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Generation GenerationConfig `yaml:"generation"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Ranking    RankingConfig    `yaml:"ranking"`
	Feedback   FeedbackConfig   `yaml:"feedback"`
	Predictor  PredictorConfig  `yaml:"predictor"`
	Cache      CacheConfig      `yaml:"cache"`
}

// VocabConfig points at the vocabulary source.
type VocabConfig struct {
	// Path to the YAML vocabulary file.
	Path string `yaml:"path"`
}

// SimilarityConfig holds similarity engine settings.
type SimilarityConfig struct {
	// LexiconPath is the word2vec text-format lexicon backing the
	// embedding method. Empty disables embedding similarity.
	LexiconPath string `yaml:"lexicon_path"`
	// Methods enabled for candidate generation.
	Methods []string `yaml:"methods"`
}

// GenerationConfig holds candidate generation settings.
type GenerationConfig struct {
	// Threshold is the minimum similarity for threshold-derived candidates.
	Threshold float64 `yaml:"threshold"`
	// CausalStrength is the fixed strength of causal-pattern candidates.
	CausalStrength float64 `yaml:"causal_strength"`
	// ParallelThreshold is the vocabulary size at which generation fans
	// out to a worker pool.
	ParallelThreshold int `yaml:"parallel_threshold"`
	// Workers bounds the pool. Zero means NumCPU-1.
	Workers int `yaml:"workers"`
}

// ScoringConfig holds confidence scoring policy.
type ScoringConfig struct {
	VeryHigh         float64 `yaml:"very_high"`
	High             float64 `yaml:"high"`
	Medium           float64 `yaml:"medium"`
	VeryLowCut       float64 `yaml:"very_low_cut"`
	ChainBonus       float64 `yaml:"chain_bonus"`
	MinMethodHistory int     `yaml:"min_method_history"`
}

// RankingConfig holds default ranking options.
type RankingConfig struct {
	MaxSuggestions int     `yaml:"max_suggestions"`
	MinConfidence  float64 `yaml:"min_confidence"`
	// AllowedMethods, when non-empty, restricts suggestions to candidates
	// derived by the listed methods (including theme methods such as
	// "keyword_fishing" and "causal_pattern"). Empty admits everything.
	AllowedMethods []string `yaml:"allowed_methods"`
}

// FeedbackConfig holds feedback store settings.
type FeedbackConfig struct {
	// Dir is the Badger directory. Empty means in-memory (tests, demos).
	Dir string `yaml:"dir"`
}

// PredictorConfig holds quality predictor settings.
type PredictorConfig struct {
	// Enabled turns the predictor on.
	Enabled bool `yaml:"enabled"`
	// ModelPath is where the trained model is persisted.
	ModelPath string `yaml:"model_path"`
	// MinSamples below which training refuses to run.
	MinSamples int `yaml:"min_samples"`
	// RetrainSchedule is a cron expression (robfig/cron syntax, "@daily"
	// style descriptors included). Empty disables periodic retraining.
	RetrainSchedule string `yaml:"retrain_schedule"`
}

// CacheConfig holds similarity cache settings.
type CacheConfig struct {
	// SnapshotPath is where the cache is persisted between runs.
	// Empty disables snapshots.
	SnapshotPath string `yaml:"snapshot_path"`
}

// LoadFromEnv creates a Config from environment variables, with documented
// defaults for everything unset.
func LoadFromEnv() *Config {
	cfg := &Config{}

	cfg.Vocab.Path = getEnv("BOWLINE_VOCAB_PATH", "./vocab.yaml")

	cfg.Similarity.LexiconPath = getEnv("BOWLINE_LEXICON_PATH", "")
	cfg.Similarity.Methods = getEnvStringSlice("BOWLINE_SIMILARITY_METHODS",
		[]string{"jaccard", "cosine", "embedding"})

	cfg.Generation.Threshold = getEnvFloat("BOWLINE_SIMILARITY_THRESHOLD", 0.3)
	cfg.Generation.CausalStrength = getEnvFloat("BOWLINE_CAUSAL_STRENGTH", 0.45)
	cfg.Generation.ParallelThreshold = getEnvInt("BOWLINE_PARALLEL_THRESHOLD", 100)
	cfg.Generation.Workers = getEnvInt("BOWLINE_WORKERS", 0)

	cfg.Scoring.VeryHigh = getEnvFloat("BOWLINE_LEVEL_VERY_HIGH", 0.85)
	cfg.Scoring.High = getEnvFloat("BOWLINE_LEVEL_HIGH", 0.70)
	cfg.Scoring.Medium = getEnvFloat("BOWLINE_LEVEL_MEDIUM", 0.50)
	cfg.Scoring.VeryLowCut = getEnvFloat("BOWLINE_LEVEL_VERY_LOW_CUT", 0)
	cfg.Scoring.ChainBonus = getEnvFloat("BOWLINE_CHAIN_BONUS", 0.10)
	cfg.Scoring.MinMethodHistory = getEnvInt("BOWLINE_MIN_METHOD_HISTORY", 5)

	cfg.Ranking.MaxSuggestions = getEnvInt("BOWLINE_MAX_SUGGESTIONS", 50)
	cfg.Ranking.MinConfidence = getEnvFloat("BOWLINE_MIN_CONFIDENCE", 0)
	cfg.Ranking.AllowedMethods = getEnvStringSlice("BOWLINE_ALLOWED_METHODS", nil)

	cfg.Feedback.Dir = getEnv("BOWLINE_FEEDBACK_DIR", "")

	cfg.Predictor.Enabled = getEnvBool("BOWLINE_PREDICTOR_ENABLED", false)
	cfg.Predictor.ModelPath = getEnv("BOWLINE_MODEL_PATH", "")
	cfg.Predictor.MinSamples = getEnvInt("BOWLINE_PREDICTOR_MIN_SAMPLES", 50)
	cfg.Predictor.RetrainSchedule = getEnv("BOWLINE_RETRAIN_SCHEDULE", "")

	cfg.Cache.SnapshotPath = getEnv("BOWLINE_CACHE_SNAPSHOT", "")

	return cfg
}

// LoadFile overlays a YAML configuration file onto cfg. File values win
// over environment values for every key the file sets.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for logical errors and invalid
// values. Call it after LoadFromEnv() and before using the Config.
func (c *Config) Validate() error {
	if c.Generation.Threshold < 0 || c.Generation.Threshold > 1 {
		return fmt.Errorf("config: similarity threshold %v outside [0,1]", c.Generation.Threshold)
	}
	if c.Generation.CausalStrength < 0 || c.Generation.CausalStrength > 1 {
		return fmt.Errorf("config: causal strength %v outside [0,1]", c.Generation.CausalStrength)
	}
	if len(c.Similarity.Methods) == 0 {
		return fmt.Errorf("config: no similarity methods enabled")
	}
	// An unrecognized method name is the caller's bug and fails fast
	// here. Whether a known method is usable (embedding needs a loaded
	// lexicon) is resolved at engine startup instead.
	for _, m := range c.Similarity.Methods {
		switch similarity.Method(m) {
		case similarity.Jaccard, similarity.Cosine, similarity.Embedding:
		default:
			return fmt.Errorf("config: unknown similarity method %q", m)
		}
	}
	if !(c.Scoring.VeryHigh >= c.Scoring.High && c.Scoring.High >= c.Scoring.Medium) {
		return fmt.Errorf("config: confidence level thresholds out of order")
	}
	if c.Ranking.MinConfidence < 0 || c.Ranking.MinConfidence > 1 {
		return fmt.Errorf("config: min confidence %v outside [0,1]", c.Ranking.MinConfidence)
	}
	if c.Predictor.Enabled && c.Predictor.MinSamples <= 0 {
		return fmt.Errorf("config: predictor min samples must be positive")
	}
	return nil
}

// String returns a representation safe for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Vocab: %s, Methods: %v, Threshold: %.2f, Feedback: %s, Predictor: %v}",
		c.Vocab.Path, c.Similarity.Methods, c.Generation.Threshold,
		orMemory(c.Feedback.Dir), c.Predictor.Enabled,
	)
}

func orMemory(dir string) string {
	if dir == "" {
		return "in-memory"
	}
	return dir
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultVal
}
