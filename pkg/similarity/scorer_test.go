package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	scorer := NewScorer()

	t.Run("IdenticalStrings", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.Levenshtein("acme", "acme"))
	})

	t.Run("EmptyStrings", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.Levenshtein("", ""))
		assert.Equal(t, 0.0, scorer.Levenshtein("acme", ""))
	})

	t.Run("SingleEdit", func(t *testing.T) {
		assert.InDelta(t, 0.75, scorer.Levenshtein("acme", "acma"), 0.001)
	})

	t.Run("Distance", func(t *testing.T) {
		assert.Equal(t, 3, scorer.LevenshteinDistance("kitten", "sitting"))
	})
}

func TestJaroWinkler(t *testing.T) {
	scorer := NewScorer()

	t.Run("IdenticalStrings", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.JaroWinkler("martha", "martha"))
	})

	t.Run("SimilarStrings", func(t *testing.T) {
		score := scorer.JaroWinkler("martha", "marhta")
		assert.Greater(t, score, 0.9)
		assert.Less(t, score, 1.0)
	})

	t.Run("DissimilarStrings", func(t *testing.T) {
		assert.Less(t, scorer.JaroWinkler("abc", "xyz"), 0.1)
	})
}

func TestTokenJaccard(t *testing.T) {
	scorer := NewScorer()

	t.Run("SharedTokens", func(t *testing.T) {
		assert.InDelta(t, 1.0/3.0, scorer.TokenJaccard("acme inc", "acme incorporated"), 0.001)
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.TokenJaccard("Acme Inc", "acme inc"))
	})

	t.Run("NoOverlap", func(t *testing.T) {
		assert.Equal(t, 0.0, scorer.TokenJaccard("acme", "globex"))
	})
}

func TestQGramJaccard(t *testing.T) {
	scorer := NewScorer()

	t.Run("IdenticalStrings", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.QGramJaccard("linkage", "linkage", 3))
	})

	t.Run("ShortStrings_WholeStringGram", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.QGramJaccard("ab", "ab", 3))
		assert.Equal(t, 0.0, scorer.QGramJaccard("ab", "cd", 3))
	})

	t.Run("PartialOverlap", func(t *testing.T) {
		score := scorer.QGramJaccard("johnson", "johnsen", 3)
		assert.Greater(t, score, 0.0)
		assert.Less(t, score, 1.0)
	})
}

func TestSoundex(t *testing.T) {
	scorer := NewScorer()

	t.Run("ClassicEncodings", func(t *testing.T) {
		assert.Equal(t, "R163", scorer.Soundex("Robert"))
		assert.Equal(t, "R163", scorer.Soundex("Rupert"))
	})

	t.Run("Match", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.SoundexMatch("Robert", "Rupert"))
		assert.Equal(t, 0.0, scorer.SoundexMatch("Robert", "Smith"))
		assert.Equal(t, 0.0, scorer.SoundexMatch("", "Smith"))
	})
}

func TestLexicalFeatures(t *testing.T) {
	scorer := NewScorer()

	features := scorer.LexicalFeatures("Acme Inc", "Acme Incorporated")

	for _, name := range []string{FeatureLevenshtein, FeatureJaroWinkler, FeatureTokenJaccard, FeatureQGramJaccard, FeatureSoundexMatch} {
		value, ok := features[name]
		assert.True(t, ok, "missing feature %s", name)
		assert.GreaterOrEqual(t, value, 0.0)
		assert.LessOrEqual(t, value, 1.0)
	}
}
