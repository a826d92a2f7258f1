package labelstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestStore(t *testing.T) {
	key := models.PairKey{A: "Acme Inc", B: "Acme Incorporated"}
	features := models.FeatureVector{"levenshtein_similarity": 0.6}

	t.Run("InsertAndGet", func(t *testing.T) {
		store := NewStore()
		store.Insert(key, features, models.LabelMatch, models.LabelSourceInitialSample)

		row, ok := store.Get(key)
		require.True(t, ok)
		assert.Equal(t, models.LabelMatch, row.Label)
		assert.Equal(t, models.LabelSourceInitialSample, row.Source)
		assert.True(t, store.Has(key))
		assert.Equal(t, 1, store.Len())
	})

	t.Run("DuplicateInsert_LastWriteWins", func(t *testing.T) {
		store := NewStore()
		store.Insert(key, features, models.LabelUnknown, models.LabelSourceInitialSample)
		store.Insert(key, features, models.LabelMatch, models.LabelSourceActiveLearning)

		row, _ := store.Get(key)
		assert.Equal(t, models.LabelMatch, row.Label)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("VersionBumpsOnEveryInsert", func(t *testing.T) {
		store := NewStore()
		assert.Equal(t, 0, store.Version())

		store.Insert(key, features, models.LabelUnknown, models.LabelSourceInitialSample)
		store.Insert(key, features, models.LabelMatch, models.LabelSourceActiveLearning)
		assert.Equal(t, 2, store.Version())
	})

	t.Run("ConfirmedCount_ExcludesUnknown", func(t *testing.T) {
		store := NewStore()
		store.Insert(models.PairKey{A: "a", B: "b"}, features, models.LabelMatch, models.LabelSourceActiveLearning)
		store.Insert(models.PairKey{A: "c", B: "d"}, features, models.LabelNonMatch, models.LabelSourceActiveLearning)
		store.Insert(models.PairKey{A: "e", B: "f"}, features, models.LabelUnknown, models.LabelSourceActiveLearning)

		assert.Equal(t, 2, store.ConfirmedCount())
		assert.Equal(t, 3, store.Len())
	})

	t.Run("RowsPreserveInsertionOrder", func(t *testing.T) {
		store := NewStore()
		store.Insert(models.PairKey{A: "z", B: "z"}, features, models.LabelMatch, models.LabelSourceExact)
		store.Insert(models.PairKey{A: "a", B: "b"}, features, models.LabelNonMatch, models.LabelSourceActiveLearning)

		rows := store.Rows()
		require.Len(t, rows, 2)
		assert.Equal(t, "z", rows[0].Key.A)
		assert.Equal(t, "a", rows[1].Key.A)
	})

	t.Run("TrainingRows_ExcludesExactAndUnknown", func(t *testing.T) {
		store := NewStore()
		store.Insert(models.PairKey{A: "same", B: "same"}, features, models.LabelMatch, models.LabelSourceExact)
		store.Insert(models.PairKey{A: "a", B: "b"}, features, models.LabelMatch, models.LabelSourceInitialSample)
		store.Insert(models.PairKey{A: "c", B: "d"}, features, models.LabelUnknown, models.LabelSourceActiveLearning)
		store.Insert(models.PairKey{A: "e", B: "f"}, features, models.LabelNonMatch, models.LabelSourceCache)

		rows := store.TrainingRows()
		require.Len(t, rows, 2)
		assert.Equal(t, "a", rows[0].Key.A)
		assert.Equal(t, "e", rows[1].Key.A)
	})
}
