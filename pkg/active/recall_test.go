package active

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/labelstore"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/oracle"
)

func uncertainPair(a, b string, probability float64) *models.CandidatePair {
	pair := scoredPair(a, b, probability)
	pair.Probability = probability
	return pair
}

func TestRecallSearch(t *testing.T) {
	t.Run("QueriesOrphanCandidatesOnly", func(t *testing.T) {
		matched := uncertainPair("resolved", "resolved corp", 0.9)
		matched.Label = models.LabelMatch

		table := newTable(
			matched,
			uncertainPair("resolved", "other", 0.3),
			uncertainPair("orphan", "orphan inc", 0.4),
			uncertainPair("orphan", "stranger", 0.2),
		)

		orc := &scriptedOracle{answer: func(pair oracle.Pair) models.Label {
			if pair.B == "orphan inc" {
				return models.LabelMatch
			}
			return models.LabelNonMatch
		}}
		store := labelstore.NewStore()
		search := NewRecallSearch(testLogger(), orc, store, Config{BatchSize: 10, Seed: 1})

		require.NoError(t, search.Run(context.Background(), table, 0.8))

		for _, q := range orc.queries {
			assert.Equal(t, "orphan", q.A)
		}
		assert.Equal(t, 2, search.OracleQueries())

		found, _ := table.Get(models.PairKey{A: "orphan", B: "orphan inc"})
		assert.Equal(t, models.LabelMatch, found.Label)
		assert.Equal(t, models.LabelSourceRecallSearch, found.Source)
	})

	t.Run("ItemsAboveEstimateAreNotOrphans", func(t *testing.T) {
		table := newTable(
			uncertainPair("confident", "confident corp", 0.95),
			uncertainPair("confident", "other", 0.2),
		)
		orc := &scriptedOracle{answer: bySimilarity}
		store := labelstore.NewStore()
		search := NewRecallSearch(testLogger(), orc, store, Config{BatchSize: 10, Seed: 1})

		require.NoError(t, search.Run(context.Background(), table, 0.8))
		assert.Empty(t, orc.queries)
		assert.Equal(t, 0, search.Rounds())
	})

	t.Run("LabelCapStopsSearch", func(t *testing.T) {
		table := newTable(uncertainPair("orphan", "candidate", 0.4))
		orc := &scriptedOracle{answer: bySimilarity}
		store := labelstore.NewStore()
		store.Insert(models.PairKey{A: "prior", B: "label"}, models.FeatureVector{}, models.LabelMatch, models.LabelSourceActiveLearning)

		search := NewRecallSearch(testLogger(), orc, store, Config{BatchSize: 10, LabelCap: 1, Seed: 1})

		require.NoError(t, search.Run(context.Background(), table, 0.8))
		assert.Empty(t, orc.queries)
	})

	t.Run("UnknownAnswersTerminateWithoutRequery", func(t *testing.T) {
		table := newTable(uncertainPair("orphan", "ambiguous", 0.5))
		orc := &scriptedOracle{answer: func(oracle.Pair) models.Label {
			return models.LabelUnknown
		}}
		store := labelstore.NewStore()
		search := NewRecallSearch(testLogger(), orc, store, Config{BatchSize: 10, Seed: 1})

		require.NoError(t, search.Run(context.Background(), table, 0.8))
		assert.Equal(t, 1, search.Rounds())
		assert.Equal(t, 1, orc.timesQueried("orphan", "ambiguous"))

		pair, _ := table.Get(models.PairKey{A: "orphan", B: "ambiguous"})
		assert.Equal(t, models.LabelUnknown, pair.Label)
	})

	t.Run("CertainProbabilitiesCarryNoWeight", func(t *testing.T) {
		table := newTable(uncertainPair("orphan", "written off", 0))
		orc := &scriptedOracle{answer: bySimilarity}
		store := labelstore.NewStore()
		search := NewRecallSearch(testLogger(), orc, store, Config{BatchSize: 10, Seed: 1})

		require.NoError(t, search.Run(context.Background(), table, 0.8))
		assert.Empty(t, orc.queries)
	})
}
