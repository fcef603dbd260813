package embed

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLexicon(t *testing.T) {
	t.Run("plain format", func(t *testing.T) {
		lex, err := ReadLexicon(strings.NewReader(
			"fish 1.0 0.0\nocean 0.0 1.0\n"))
		require.NoError(t, err)

		assert.Equal(t, 2, lex.Len())
		assert.Equal(t, 2, lex.Dimensions())

		vec, ok := lex.Vector("fish")
		require.True(t, ok)
		assert.Equal(t, []float32{1.0, 0.0}, vec)
	})

	t.Run("word2vec header skipped", func(t *testing.T) {
		lex, err := ReadLexicon(strings.NewReader(
			"2 3\nfish 1 0 0\nocean 0 1 0\n"))
		require.NoError(t, err)
		assert.Equal(t, 2, lex.Len())
		assert.Equal(t, 3, lex.Dimensions())
	})

	t.Run("case-insensitive lookup", func(t *testing.T) {
		lex, err := ReadLexicon(strings.NewReader("Fish 1 0\n"))
		require.NoError(t, err)

		_, ok := lex.Vector("FISH")
		assert.True(t, ok)
	})

	t.Run("dimension mismatch rejected", func(t *testing.T) {
		_, err := ReadLexicon(strings.NewReader("fish 1 0\nocean 1 0 0\n"))
		assert.Error(t, err)
	})

	t.Run("bad component rejected", func(t *testing.T) {
		_, err := ReadLexicon(strings.NewReader("fish one two\n"))
		assert.Error(t, err)
	})

	t.Run("empty lexicon rejected", func(t *testing.T) {
		_, err := ReadLexicon(strings.NewReader(""))
		assert.Error(t, err)
	})
}

func TestEmbedText(t *testing.T) {
	lex, err := NewLexicon(map[string][]float32{
		"fish":  {1, 0},
		"quota": {0, 1},
	})
	require.NoError(t, err)

	t.Run("mean pooling", func(t *testing.T) {
		vec := lex.EmbedText("fish quota")
		require.NotNil(t, vec)
		assert.InDelta(t, 0.5, vec[0], 1e-6)
		assert.InDelta(t, 0.5, vec[1], 1e-6)
	})

	t.Run("OOV tokens are zero signal", func(t *testing.T) {
		vec := lex.EmbedText("fish asteroid")
		require.NotNil(t, vec)
		// Only "fish" contributes.
		assert.InDelta(t, 1.0, vec[0], 1e-6)
		assert.InDelta(t, 0.0, vec[1], 1e-6)
	})

	t.Run("all OOV yields nil", func(t *testing.T) {
		assert.Nil(t, lex.EmbedText("asteroid impact"))
	})
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{2, 0}

	assert.InDelta(t, 0.0, Cosine(a, b), 1e-9)
	assert.InDelta(t, 1.0, Cosine(a, c), 1e-9)
	assert.InDelta(t, Cosine(a, b), Cosine(b, a), 1e-12, "cosine must be symmetric")

	t.Run("degenerate inputs", func(t *testing.T) {
		assert.Zero(t, Cosine(nil, a))
		assert.Zero(t, Cosine(a, nil))
		assert.Zero(t, Cosine([]float32{0, 0}, a))
		assert.Zero(t, Cosine([]float32{1, 2, 3}, a))
	})

	t.Run("opposite vectors", func(t *testing.T) {
		d := []float32{-1, 0}
		assert.InDelta(t, -1.0, Cosine(a, d), 1e-9)
		assert.False(t, math.IsNaN(Cosine(a, d)))
	})
}
