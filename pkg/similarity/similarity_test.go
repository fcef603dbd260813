package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/bowline/pkg/embed"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Commercial fishing", []string{"commercial", "fishing"}},
		{"Oil-spill (cleanup)!", []string{"oil", "spill", "cleanup"}},
		{"  ", nil},
		{"", nil},
		{"CO2 emissions", []string{"co2", "emissions"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Tokenize(tt.in), "Tokenize(%q)", tt.in)
	}
}

func TestJaccard(t *testing.T) {
	eng := NewEngine(nil)

	t.Run("identical labels", func(t *testing.T) {
		s, err := eng.Compute("commercial fishing", "commercial fishing", Jaccard)
		require.NoError(t, err)
		assert.Equal(t, 1.0, s)
	})

	t.Run("partial overlap", func(t *testing.T) {
		// {commercial, fishing} vs {fishing, pressure}: 1 common, 3 union.
		s, err := eng.Compute("commercial fishing", "fishing pressure", Jaccard)
		require.NoError(t, err)
		assert.InDelta(t, 1.0/3.0, s, 1e-9)
	})

	t.Run("no overlap", func(t *testing.T) {
		s, err := eng.Compute("oil spill", "tourism growth", Jaccard)
		require.NoError(t, err)
		assert.Zero(t, s)
	})

	t.Run("both empty score zero", func(t *testing.T) {
		s, err := eng.Compute("", "", Jaccard)
		require.NoError(t, err)
		assert.Zero(t, s)
	})

	t.Run("punctuation and case ignored", func(t *testing.T) {
		s, err := eng.Compute("Over-Fishing!", "over fishing", Jaccard)
		require.NoError(t, err)
		assert.Equal(t, 1.0, s)
	})
}

func TestCosine(t *testing.T) {
	eng := NewEngine(nil)

	t.Run("identical labels", func(t *testing.T) {
		s, err := eng.Compute("fishing quota", "fishing quota", Cosine)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, s, 1e-9)
	})

	t.Run("repeated terms weigh in", func(t *testing.T) {
		a, err := eng.Compute("fishing fishing quota", "fishing quota", Cosine)
		require.NoError(t, err)
		b, err := eng.Compute("fishing quota", "fishing quota", Cosine)
		require.NoError(t, err)
		assert.Less(t, a, b)
		assert.Greater(t, a, 0.0)
	})

	t.Run("empty input is degenerate", func(t *testing.T) {
		s, err := eng.Compute("", "fishing", Cosine)
		require.NoError(t, err)
		assert.Zero(t, s)
	})
}

func TestEmbeddingMethod(t *testing.T) {
	lex, err := embed.NewLexicon(map[string][]float32{
		"fishing": {1, 0},
		"angling": {0.9, 0.1},
		"tourism": {0, 1},
	})
	require.NoError(t, err)

	t.Run("unavailable without lexicon", func(t *testing.T) {
		eng := NewEngine(nil)
		assert.False(t, eng.Supports(Embedding))
		assert.Equal(t, []Method{Jaccard, Cosine}, eng.Available())

		_, err := eng.Compute("a", "b", Embedding)
		assert.ErrorIs(t, err, ErrUnknownMethod)
	})

	t.Run("available with lexicon", func(t *testing.T) {
		eng := NewEngine(lex)
		assert.True(t, eng.Supports(Embedding))

		near, err := eng.Compute("fishing", "angling", Embedding)
		require.NoError(t, err)
		far, err := eng.Compute("fishing", "tourism", Embedding)
		require.NoError(t, err)

		assert.Greater(t, near, far)
		assert.GreaterOrEqual(t, far, 0.0)
		assert.LessOrEqual(t, near, 1.0)
	})

	t.Run("all OOV scores zero", func(t *testing.T) {
		eng := NewEngine(lex)
		s, err := eng.Compute("asteroid impact", "fishing", Embedding)
		require.NoError(t, err)
		assert.Zero(t, s)
	})
}

// Symmetry must hold for every method over arbitrary inputs.
func TestSymmetry(t *testing.T) {
	lex, err := embed.NewLexicon(map[string][]float32{
		"fishing":  {1, 0},
		"pressure": {0.5, 0.5},
		"quota":    {0, 1},
	})
	require.NoError(t, err)
	eng := NewEngine(lex)

	pairs := [][2]string{
		{"commercial fishing", "overfishing pressure"},
		{"fishing quota", "quota fishing extra"},
		{"", "something"},
		{"oil spill cleanup", "habitat loss"},
	}

	for _, m := range eng.Available() {
		for _, p := range pairs {
			ab, err := eng.Compute(p[0], p[1], m)
			require.NoError(t, err)
			ba, err := eng.Compute(p[1], p[0], m)
			require.NoError(t, err)
			assert.Equal(t, ab, ba, "method %s not symmetric for %q / %q", m, p[0], p[1])
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, 1.0)
		}
	}
}

func TestUnknownMethod(t *testing.T) {
	eng := NewEngine(nil)
	_, err := eng.Compute("a", "b", Method("levenshtein"))
	assert.ErrorIs(t, err, ErrUnknownMethod)
}
