package rules

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/orneryd/bowline/pkg/simcache"
	"github.com/orneryd/bowline/pkg/similarity"
	"github.com/orneryd/bowline/pkg/vocab"
)

// Config tunes candidate generation.
//
// The similarity threshold and strengths are documented defaults, not
// derived constants; hosting applications may expose them as settings.
type Config struct {
	// SimilarityThreshold is the minimum similarity for a
	// similarity-derived candidate. Default 0.3.
	SimilarityThreshold float64

	// Methods restricts which similarity methods run. Nil means every
	// method the engine has available.
	Methods []similarity.Method

	// CausalPatternStrength is the similarity assigned to candidates
	// derived from causal text patterns. Default 0.45.
	CausalPatternStrength float64

	// Themes overrides the built-in keyword theme table. Nil uses
	// DefaultThemes.
	Themes []Theme

	// ParallelThreshold is the vocabulary size below which generation
	// stays single-threaded; coordination overhead beats the win on
	// small inputs. Default 100.
	ParallelThreshold int

	// Workers is the fan-out width for full-vocabulary generation.
	// Default max(1, NumCPU-1).
	Workers int

	// MethodWeight, when non-nil, weights a derivation's raw similarity
	// by its method while duplicates of one (from, to) pair are
	// collapsed, so the surviving derivation is the one the confidence
	// scorer would rank highest. Nil weighs all methods equally.
	MethodWeight func(method string) float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold:   0.3,
		CausalPatternStrength: 0.45,
		ParallelThreshold:     100,
		Workers:               maxInt(1, runtime.NumCPU()-1),
	}
}

// Generator produces link candidates for a vocabulary snapshot.
//
// A Generator is a pure transform over its inputs plus the similarity
// cache; it holds no per-run state and is safe for concurrent use.
type Generator struct {
	cfg     Config
	sim     *similarity.Engine
	cache   *simcache.Cache
	methods []similarity.Method
	themes  []Theme
}

// NewGenerator validates the configuration and builds a generator.
//
// Invalid thresholds or unavailable methods fail fast here: they are the
// caller's bug, and checking once at construction keeps the per-call path
// free of capability checks.
func NewGenerator(cfg Config, sim *similarity.Engine, cache *simcache.Cache) (*Generator, error) {
	if sim == nil {
		return nil, fmt.Errorf("rules: similarity engine is required")
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("rules: similarity threshold %v outside [0,1]", cfg.SimilarityThreshold)
	}
	if cfg.CausalPatternStrength == 0 {
		cfg.CausalPatternStrength = 0.45
	}
	if cfg.CausalPatternStrength < 0 || cfg.CausalPatternStrength > 1 {
		return nil, fmt.Errorf("rules: causal pattern strength %v outside [0,1]", cfg.CausalPatternStrength)
	}
	if cfg.ParallelThreshold <= 0 {
		cfg.ParallelThreshold = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = maxInt(1, runtime.NumCPU()-1)
	}

	methods := cfg.Methods
	if methods == nil {
		methods = sim.Available()
	} else {
		for _, m := range methods {
			if !sim.Supports(m) {
				return nil, fmt.Errorf("rules: %w: %s", similarity.ErrUnknownMethod, m)
			}
		}
	}

	themes := cfg.Themes
	if themes == nil {
		themes = DefaultThemes()
	}

	if cache == nil {
		cache = simcache.New()
	}

	return &Generator{
		cfg:     cfg,
		sim:     sim,
		cache:   cache,
		methods: methods,
		themes:  themes,
	}, nil
}

// task is one unit of fan-out work: a single source item against all its
// allowed targets for one bowtie position.
type task struct {
	from     vocab.Item
	targets  []vocab.Item
	position BowtiePosition
}

// Generate produces the deduplicated candidate set for a snapshot.
//
// selected optionally restricts generation to the neighborhood of the
// ids the user has already chosen: a pair is considered only when at
// least one endpoint is selected. An empty selection means the whole
// vocabulary.
//
// The result honors the allowed-pair table exhaustively, contains no
// self-loops, and at most one candidate per (from, to) pair: the one
// with the strongest weighted signal (see Config.MethodWeight), its
// Multiplicity recording how many distinct methods corroborated the
// pair.
func (g *Generator) Generate(ctx context.Context, snap *vocab.Snapshot, selected []string) ([]LinkCandidate, error) {
	tasks := g.buildTasks(snap)

	var selectedSet map[string]struct{}
	if len(selected) > 0 {
		selectedSet = make(map[string]struct{}, len(selected))
		for _, id := range selected {
			selectedSet[id] = struct{}{}
		}
	}

	var raw []LinkCandidate
	if snap.Len() < g.cfg.ParallelThreshold || g.cfg.Workers == 1 {
		for _, t := range tasks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			raw = append(raw, g.runTask(t, selectedSet)...)
		}
	} else {
		chunks, err := g.runParallel(ctx, tasks, selectedSet)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			raw = append(raw, c...)
		}
	}

	return g.dedupe(raw), nil
}

// buildTasks expands the allowed-pair table into per-source-item work.
//
// This is the pre-filter: only type pairs from the table are ever
// enumerated, so forbidden directions and same-type pairs cost nothing.
// Controls are classified once here; a control matching neither keyword
// list produces no tasks at all.
func (g *Generator) buildTasks(snap *vocab.Snapshot) []task {
	activities := snap.ByType(vocab.Activity)
	pressures := snap.ByType(vocab.Pressure)
	consequences := snap.ByType(vocab.Consequence)

	var tasks []task
	for _, a := range activities {
		tasks = append(tasks, task{from: a, targets: pressures, position: ActivityPressure})
	}
	for _, p := range pressures {
		tasks = append(tasks, task{from: p, targets: consequences, position: PressureConsequence})
	}
	for _, ctrl := range snap.ByType(vocab.Control) {
		category, ok := ClassifyControl(ctrl)
		if !ok {
			continue
		}
		switch category {
		case CategoryPreventive:
			tasks = append(tasks,
				task{from: ctrl, targets: activities, position: PreventiveControl},
				task{from: ctrl, targets: pressures, position: PreventiveControl})
		case CategoryProtective:
			tasks = append(tasks, task{from: ctrl, targets: consequences, position: ProtectiveControl})
		}
	}
	return tasks
}

// runParallel fans tasks out over a bounded worker group. Each chunk
// collects into its own slice, so no locking is needed and concatenation
// in chunk order keeps output deterministic.
func (g *Generator) runParallel(ctx context.Context, tasks []task, selected map[string]struct{}) ([][]LinkCandidate, error) {
	workers := g.cfg.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (len(tasks) + workers - 1) / workers
	var chunks [][]task
	for start := 0; start < len(tasks); start += chunkSize {
		end := start + chunkSize
		if end > len(tasks) {
			end = len(tasks)
		}
		chunks = append(chunks, tasks[start:end])
	}

	results := make([][]LinkCandidate, len(chunks))
	grp, ctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		grp.Go(func() error {
			var out []LinkCandidate
			for _, t := range chunk {
				if err := ctx.Err(); err != nil {
					return err
				}
				out = append(out, g.runTask(t, selected)...)
			}
			results[i] = out
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runTask generates all raw candidates from one source item to its
// allowed targets.
func (g *Generator) runTask(t task, selected map[string]struct{}) []LinkCandidate {
	fromLabel := normalizeLabel(t.from.Name)
	fromThemes := matchThemes(fromLabel, g.themes)
	causalFrom := t.position == ActivityPressure || t.position == PressureConsequence

	var out []LinkCandidate
	for _, to := range t.targets {
		if to.ID == t.from.ID {
			continue
		}
		if selected != nil {
			_, fromSel := selected[t.from.ID]
			_, toSel := selected[to.ID]
			if !fromSel && !toSel {
				continue
			}
		}

		toLabel := normalizeLabel(to.Name)

		// Signal source 1: shared keyword themes.
		for _, th := range fromThemes {
			if matchesAny(toLabel, th.Keywords) > 0 {
				out = append(out, g.candidate(t, to, th.Strength, "keyword_"+th.Name))
			}
		}

		// Signal source 2: similarity above threshold, per method.
		for _, m := range g.methods {
			score := g.cache.GetOrCompute(t.from.Name, to.Name, string(m), func(a, b string) float64 {
				s, _ := g.sim.Compute(a, b, m)
				return s
			})
			if score >= g.cfg.SimilarityThreshold {
				out = append(out, g.candidate(t, to, score, string(m)))
			}
		}

		// Signal source 3: causal wording chained to outcome wording.
		// Controls do not participate; the pattern describes the
		// Activity→Pressure→Consequence chain.
		if causalFrom && hasCausalPattern(fromLabel, toLabel) {
			out = append(out, g.candidate(t, to, g.cfg.CausalPatternStrength, "causal_pattern"))
		}
	}
	return out
}

func (g *Generator) candidate(t task, to vocab.Item, score float64, method string) LinkCandidate {
	return LinkCandidate{
		FromID:     t.from.ID,
		FromName:   t.from.Name,
		FromType:   t.from.Type,
		ToID:       to.ID,
		ToName:     to.Name,
		ToType:     to.Type,
		Position:   t.position,
		Similarity: score,
		Method:     method,
	}
}

// dedupe collapses duplicates of one (from, to) pair, keeping the
// candidate whose weighted signal the scorer would rank highest, and
// recording the number of distinct deriving methods as Multiplicity.
// First-seen order of pairs is preserved so generation output stays
// deterministic.
//
// The weight matters when method reliabilities diverge: a method users
// keep rejecting can derive a pair with high raw similarity yet score
// below a well-accepted method's weaker derivation, and the accepted
// derivation must be the one that survives.
func (g *Generator) dedupe(raw []LinkCandidate) []LinkCandidate {
	if len(raw) == 0 {
		return nil
	}

	weighted := func(c LinkCandidate) float64 {
		if g.cfg.MethodWeight == nil {
			return c.Similarity
		}
		return c.Similarity * g.cfg.MethodWeight(c.Method)
	}

	type slot struct {
		index   int
		methods map[string]struct{}
	}

	out := make([]LinkCandidate, 0, len(raw))
	slots := make(map[string]*slot, len(raw))

	for _, c := range raw {
		key := c.FromID + "\x00" + c.ToID
		s, ok := slots[key]
		if !ok {
			out = append(out, c)
			slots[key] = &slot{
				index:   len(out) - 1,
				methods: map[string]struct{}{c.Method: {}},
			}
			continue
		}
		s.methods[c.Method] = struct{}{}
		if weighted(c) > weighted(out[s.index]) {
			out[s.index] = c
		}
	}

	for _, s := range slots {
		out[s.index].Multiplicity = len(s.methods)
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
