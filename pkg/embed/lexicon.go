// Package embed provides pre-trained word vectors for the embedding
// similarity method.
//
// Bowline does not call an embedding service. The embedding method is an
// optional capability backed by a word-vector lexicon supplied as an
// external artifact: a plain-text file in the word2vec text format, one
// word per line followed by its vector components.
//
// A text label is embedded by mean-pooling the vectors of its tokens.
// Out-of-vocabulary tokens contribute no signal. When no lexicon is loaded
// the embedding method is simply unavailable and the similarity engine
// degrades to the lexical methods.
//
// Example:
//
//	lex, err := embed.LoadLexicon("vectors.txt")
//	if err != nil {
//		// proceed without the embedding method
//	}
//
//	a := lex.EmbedText("commercial fishing")
//	b := lex.EmbedText("overfishing pressure")
//	fmt.Printf("cosine: %.3f\n", embed.Cosine(a, b))
package embed

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Lexicon maps lowercase words to their embedding vectors.
//
// A Lexicon is immutable after loading and safe for concurrent readers.
type Lexicon struct {
	vectors    map[string][]float32
	dimensions int
}

// LoadLexicon reads a word-vector file in word2vec text format.
//
// Each line is "word v1 v2 ... vN". An optional first line holding just
// "count dimensions" (the word2vec header) is skipped. All vectors must
// share one dimensionality.
func LoadLexicon(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lexicon: %w", err)
	}
	defer f.Close()
	return ReadLexicon(f)
}

// ReadLexicon parses word vectors from a reader. See LoadLexicon.
func ReadLexicon(r io.Reader) (*Lexicon, error) {
	lex := &Lexicon{vectors: make(map[string][]float32)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		// word2vec header: "<count> <dims>"
		if line == 1 && len(fields) == 2 {
			if _, err := strconv.Atoi(fields[0]); err == nil {
				continue
			}
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("lexicon line %d: no vector components", line)
		}

		word := strings.ToLower(fields[0])
		vec := make([]float32, len(fields)-1)
		for i, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, fmt.Errorf("lexicon line %d: bad component %q: %w", line, s, err)
			}
			vec[i] = float32(v)
		}

		if lex.dimensions == 0 {
			lex.dimensions = len(vec)
		} else if len(vec) != lex.dimensions {
			return nil, fmt.Errorf("lexicon line %d: dimension mismatch (%d, want %d)",
				line, len(vec), lex.dimensions)
		}
		lex.vectors[word] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	if len(lex.vectors) == 0 {
		return nil, fmt.Errorf("lexicon contains no vectors")
	}
	return lex, nil
}

// NewLexicon builds a lexicon from an in-memory vector map.
// All vectors must share one dimensionality. Used by tests and callers
// that obtain vectors from somewhere other than a file.
func NewLexicon(vectors map[string][]float32) (*Lexicon, error) {
	lex := &Lexicon{vectors: make(map[string][]float32, len(vectors))}
	for word, vec := range vectors {
		if lex.dimensions == 0 {
			lex.dimensions = len(vec)
		} else if len(vec) != lex.dimensions {
			return nil, fmt.Errorf("vector for %q has dimension %d, want %d",
				word, len(vec), lex.dimensions)
		}
		lex.vectors[strings.ToLower(word)] = vec
	}
	if len(lex.vectors) == 0 {
		return nil, fmt.Errorf("lexicon contains no vectors")
	}
	return lex, nil
}

// Dimensions returns the vector dimensionality.
func (l *Lexicon) Dimensions() int {
	return l.dimensions
}

// Len returns the number of words in the lexicon.
func (l *Lexicon) Len() int {
	return len(l.vectors)
}

// Vector returns the vector for a word, or false if the word is
// out of vocabulary. Lookup is case-insensitive.
func (l *Lexicon) Vector(word string) ([]float32, bool) {
	vec, ok := l.vectors[strings.ToLower(word)]
	return vec, ok
}

// EmbedTokens mean-pools the vectors of the given tokens.
//
// Out-of-vocabulary tokens are skipped. Returns nil when no token is in
// vocabulary; callers treat a nil vector as zero signal, never an error.
func (l *Lexicon) EmbedTokens(tokens []string) []float32 {
	sum := make([]float32, l.dimensions)
	n := 0
	for _, tok := range tokens {
		vec, ok := l.vectors[strings.ToLower(tok)]
		if !ok {
			continue
		}
		for i, v := range vec {
			sum[i] += v
		}
		n++
	}
	if n == 0 {
		return nil
	}
	inv := 1.0 / float32(n)
	for i := range sum {
		sum[i] *= inv
	}
	return sum
}

// EmbedText tokenizes text on whitespace and mean-pools the token vectors.
func (l *Lexicon) EmbedText(text string) []float32 {
	return l.EmbedTokens(strings.Fields(strings.ToLower(text)))
}

// Cosine returns the cosine similarity of two vectors in [-1, 1].
//
// A nil or zero vector yields 0 (the degenerate case is no signal,
// not an error).
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
