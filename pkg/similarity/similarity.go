// Package similarity computes normalized text similarity between
// vocabulary labels.
//
// Three interchangeable methods are supported:
//   - Jaccard: token-set overlap, |A∩B| / |A∪B|
//   - Cosine: cosine over term-frequency vectors of the two labels
//   - Embedding: cosine over mean-pooled pre-trained word vectors
//
// All methods return a score in [0, 1], are pure and deterministic for a
// given input pair, and are symmetric: similarity(a, b) == similarity(b, a).
// Unknown words never cause an error; out-of-vocabulary tokens simply
// contribute zero signal.
//
// Method availability is resolved once at engine construction, not checked
// per call. The embedding method is only selectable when a word-vector
// lexicon has been loaded; without one the engine degrades to the two
// lexical methods.
//
// Example:
//
//	eng := similarity.NewEngine(nil) // lexical methods only
//	score, err := eng.Compute("commercial fishing", "overfishing pressure", similarity.Jaccard)
//
//	lex, _ := embed.LoadLexicon("vectors.txt")
//	eng = similarity.NewEngine(lex) // all three methods
package similarity

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/orneryd/bowline/pkg/embed"
)

// Method identifies a similarity computation method.
type Method string

const (
	// Jaccard is token-set overlap: |A∩B| / |A∪B|.
	Jaccard Method = "jaccard"

	// Cosine is cosine similarity over term-frequency vectors.
	Cosine Method = "cosine"

	// Embedding is cosine similarity over mean-pooled word vectors.
	// Requires a loaded lexicon.
	Embedding Method = "embedding"
)

// ErrUnknownMethod is returned when a caller requests a method that does
// not exist or is not available in this engine. This is the caller's bug:
// available methods are fixed at engine construction.
var ErrUnknownMethod = errors.New("unknown similarity method")

// Tokenize normalizes a label into lowercase tokens: punctuation is
// stripped, text is split on whitespace. Shared by every method so that
// all methods see the same token stream.
func Tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}

// Engine computes similarities using a fixed set of available methods.
//
// An Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	lexicon *embed.Lexicon
	methods []Method
}

// NewEngine creates a similarity engine.
//
// lexicon may be nil; the embedding method is then unavailable and
// Available() reports only the lexical methods. This is the degraded-
// capability path: absence of the optional artifact restricts the method
// set once, here, rather than erroring per call.
func NewEngine(lexicon *embed.Lexicon) *Engine {
	methods := []Method{Jaccard, Cosine}
	if lexicon != nil {
		methods = append(methods, Embedding)
	}
	return &Engine{lexicon: lexicon, methods: methods}
}

// Available returns the methods this engine can compute.
func (e *Engine) Available() []Method {
	out := make([]Method, len(e.methods))
	copy(out, e.methods)
	return out
}

// Supports reports whether the engine can compute the given method.
func (e *Engine) Supports(m Method) bool {
	for _, have := range e.methods {
		if have == m {
			return true
		}
	}
	return false
}

// Compute returns the similarity of two labels in [0, 1].
//
// Returns ErrUnknownMethod for a method that is not available; no other
// error condition exists, degenerate inputs score 0.
func (e *Engine) Compute(a, b string, m Method) (float64, error) {
	switch m {
	case Jaccard:
		return jaccardTokens(Tokenize(a), Tokenize(b)), nil
	case Cosine:
		return cosineTerms(Tokenize(a), Tokenize(b)), nil
	case Embedding:
		if e.lexicon == nil {
			return 0, fmt.Errorf("%w: %s (no lexicon loaded)", ErrUnknownMethod, m)
		}
		return embeddingCosine(e.lexicon, Tokenize(a), Tokenize(b)), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownMethod, m)
	}
}

// jaccardTokens computes |A∩B| / |A∪B| over token sets.
// Two empty sets score 0, not 1: two blank labels carry no evidence of
// relatedness.
func jaccardTokens(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// cosineTerms computes cosine similarity over term-frequency vectors built
// on the union vocabulary of the two token lists. Either vector being zero
// is the degenerate case and scores 0.
func cosineTerms(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	freqA := make(map[string]float64, len(a))
	for _, t := range a {
		freqA[t]++
	}
	freqB := make(map[string]float64, len(b))
	for _, t := range b {
		freqB[t]++
	}

	var dot, normA, normB float64
	for t, fa := range freqA {
		normA += fa * fa
		if fb, ok := freqB[t]; ok {
			dot += fa * fb
		}
	}
	for _, fb := range freqB {
		normB += fb * fb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// embeddingCosine mean-pools token vectors for each label and takes the
// cosine of the two means. Word-vector cosine can be slightly negative;
// negative values clamp to 0 since anticorrelated labels are simply
// unrelated for linking purposes.
func embeddingCosine(lex *embed.Lexicon, a, b []string) float64 {
	va := lex.EmbedTokens(a)
	vb := lex.EmbedTokens(b)
	score := embed.Cosine(va, vb)
	if score < 0 {
		return 0
	}
	return score
}
