package cutoff

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func confirmedMatch(a string) *models.CandidatePair {
	return &models.CandidatePair{
		A:           a,
		B:           a + "-b",
		Label:       models.LabelMatch,
		Probability: 0.9,
	}
}

func confirmedNonMatch(a string) *models.CandidatePair {
	return &models.CandidatePair{
		A:           a,
		B:           a + "-b",
		Label:       models.LabelNonMatch,
		Probability: 0.4,
	}
}

func unlabeled(a string, p float64) *models.CandidatePair {
	return &models.CandidatePair{
		A:           a,
		B:           a + "-b",
		Label:       models.LabelUnknown,
		Probability: p,
	}
}

func TestSelect(t *testing.T) {
	t.Run("UndefinedWithoutConfirmedMatches", func(t *testing.T) {
		pairs := []*models.CandidatePair{
			unlabeled("x", 0.8),
			unlabeled("y", 0.3),
			confirmedNonMatch("z"),
		}

		result := Select(pairs)
		assert.True(t, result.Undefined)
	})

	t.Run("UndefinedOnEmptyUniverse", func(t *testing.T) {
		assert.True(t, Select(nil).Undefined)
	})

	t.Run("SeparatedProbabilities_CutoffBetweenClusters", func(t *testing.T) {
		pairs := []*models.CandidatePair{
			confirmedMatch("m"),
			unlabeled("a", 0.95),
			unlabeled("b", 0.9),
			unlabeled("c", 0.1),
			unlabeled("d", 0.05),
		}

		result := Select(pairs)
		require.False(t, result.Undefined)
		assert.Greater(t, result.Cutoff, 0.1)
		assert.LessOrEqual(t, result.Cutoff, 0.9)
	})

	t.Run("BeatsBoundaryThresholds", func(t *testing.T) {
		pairs := []*models.CandidatePair{
			confirmedMatch("m"),
			unlabeled("a", 0.9),
			unlabeled("b", 0.8),
			unlabeled("c", 0.2),
			unlabeled("d", 0.1),
		}

		result := Select(pairs)
		require.False(t, result.Undefined)

		confirmed := 1.0
		probs := []float64{0.9, 0.8, 0.2, 0.1}
		atZero := evaluate(0, confirmed, probs)
		atOne := evaluate(1, confirmed, probs)
		assert.GreaterOrEqual(t, result.ExpectedF1, atZero.ExpectedF1)
		assert.GreaterOrEqual(t, result.ExpectedF1, atOne.ExpectedF1)
	})

	t.Run("ConfirmedNonMatchesNeverCount", func(t *testing.T) {
		base := []*models.CandidatePair{
			confirmedMatch("m"),
			unlabeled("a", 0.7),
			unlabeled("b", 0.2),
		}
		withNonMatches := append([]*models.CandidatePair{
			confirmedNonMatch("n1"),
			confirmedNonMatch("n2"),
		}, base...)

		assert.Equal(t, Select(base), Select(withNonMatches))
	})

	t.Run("Idempotent", func(t *testing.T) {
		pairs := []*models.CandidatePair{
			confirmedMatch("m"),
			unlabeled("a", 0.6),
			unlabeled("b", 0.6),
			unlabeled("c", 0.3),
		}

		first := Select(pairs)
		second := Select(pairs)
		assert.Equal(t, first, second)
	})

	t.Run("NeverNaN", func(t *testing.T) {
		cases := [][]*models.CandidatePair{
			{confirmedMatch("m")},
			{confirmedMatch("m"), unlabeled("a", 0)},
			{confirmedMatch("m"), unlabeled("a", 1)},
			{confirmedMatch("m"), unlabeled("a", 0), unlabeled("b", 1)},
		}

		for _, pairs := range cases {
			result := Select(pairs)
			require.False(t, result.Undefined)
			assert.False(t, math.IsNaN(result.ExpectedF1))
			assert.False(t, math.IsNaN(result.Precision))
			assert.False(t, math.IsNaN(result.Recall))
		}
	})

	t.Run("TiesResolveToLowestCutoff", func(t *testing.T) {
		// With only confirmed matches every candidate threshold yields the
		// same perfect F1, so the lowest candidate wins.
		result := Select([]*models.CandidatePair{confirmedMatch("m")})
		require.False(t, result.Undefined)
		assert.Equal(t, 0.0, result.Cutoff)
		assert.Equal(t, 1.0, result.ExpectedF1)
	})
}
