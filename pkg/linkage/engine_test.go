package linkage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/blocking"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/oracle"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// keywordProvider embeds each item onto one of two axes depending on whether
// it contains the keyword, so same-keyword pairs get cosine similarity 1 and
// cross-keyword pairs get 0.
type keywordProvider struct {
	keyword string
	calls   int
}

func (p *keywordProvider) Embed(_ context.Context, items []string) ([][]float64, error) {
	p.calls++
	vectors := make([][]float64, len(items))
	for i, item := range items {
		if strings.Contains(strings.ToLower(item), p.keyword) {
			vectors[i] = []float64{1, 0}
		} else {
			vectors[i] = []float64{0, 1}
		}
	}
	return vectors, nil
}

// keywordOracle answers yes when both items agree on containing the keyword.
type keywordOracle struct {
	keyword string
	calls   int
}

func (o *keywordOracle) LabelPairs(_ context.Context, pairs []oracle.Pair, _ string, _ string) ([]models.Label, error) {
	o.calls += len(pairs)
	labels := make([]models.Label, len(pairs))
	for i, pair := range pairs {
		inA := strings.Contains(strings.ToLower(pair.A), o.keyword)
		inB := strings.Contains(strings.ToLower(pair.B), o.keyword)
		if inA == inB {
			labels[i] = models.LabelMatch
		} else {
			labels[i] = models.LabelNonMatch
		}
	}
	return labels, nil
}

// failingOracle trips any test that reaches the oracle when it should not.
type failingOracle struct{}

func (failingOracle) LabelPairs(context.Context, []oracle.Pair, string, string) ([]models.Label, error) {
	return nil, errors.New("oracle must not be called")
}

type memoryCache struct {
	labels map[models.PairKey]models.Label
	saved  []models.OracleLabel
}

func (c *memoryCache) Fetch(_ context.Context, _, _ string, keys []models.PairKey) (map[models.PairKey]models.Label, error) {
	found := make(map[models.PairKey]models.Label)
	for _, key := range keys {
		if label, ok := c.labels[key]; ok {
			found[key] = label
		}
	}
	return found, nil
}

func (c *memoryCache) Save(_ context.Context, _, _ string, labels []models.OracleLabel) error {
	c.saved = append(c.saved, labels...)
	return nil
}

func namedRows(names ...string) []map[string]any {
	rows := make([]map[string]any, len(names))
	for i, name := range names {
		rows[i] = map[string]any{"name": name}
	}
	return rows
}

func TestEngineRun(t *testing.T) {
	t.Run("ExactMatches_SkipOracleEntirely", func(t *testing.T) {
		engine := NewEngine(testLogger(), &keywordProvider{keyword: "acme"}, failingOracle{}, nil, Config{Seed: 1})

		result, err := engine.Run(context.Background(), "tenant-1", models.LinkageSpec{
			DatasetA:   namedRows("Acme Inc"),
			DatasetB:   namedRows("Acme Inc"),
			JoinField:  "name",
			RecordType: "company",
		})
		require.NoError(t, err)

		assert.True(t, result.Stats.Converged)
		assert.Equal(t, 1, result.Stats.ExactMatches)
		assert.Equal(t, 0, result.Stats.OracleCalls)
		assert.False(t, result.CutoffUndefined)

		require.Len(t, result.Rows, 1)
		row := result.Rows[0]
		assert.Equal(t, models.LabelMatch, row.Label)
		assert.Equal(t, models.LabelSourceExact, row.LabelSource)
		require.NotNil(t, row.MatchProbability)
		assert.Equal(t, 1.0, *row.MatchProbability)
	})

	t.Run("DuplicateSourceRows_ExpandAndShareProbability", func(t *testing.T) {
		engine := NewEngine(testLogger(), &keywordProvider{keyword: "acme"}, failingOracle{}, nil, Config{Seed: 1})

		result, err := engine.Run(context.Background(), "tenant-1", models.LinkageSpec{
			DatasetA:   namedRows("Acme Inc", "Acme Inc"),
			DatasetB:   namedRows("Acme Inc"),
			JoinField:  "name",
			RecordType: "company",
		})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Stats.LabeledPairs)
		require.Len(t, result.Rows, 2)
		for _, row := range result.Rows {
			require.NotNil(t, row.MatchProbability)
			assert.Equal(t, 1.0, *row.MatchProbability)
			assert.NotNil(t, row.BRow)
		}
	})

	t.Run("ActiveLearning_LinksTheRightPairs", func(t *testing.T) {
		provider := &keywordProvider{keyword: "biden"}
		orc := &keywordOracle{keyword: "biden"}
		engine := NewEngine(testLogger(), provider, orc, nil, Config{Seed: 1})

		result, err := engine.Run(context.Background(), "tenant-1", models.LinkageSpec{
			DatasetA:   namedRows("Joe Biden", "Donald Trump"),
			DatasetB:   namedRows("Joseph Robinette Biden", "Donald J. Trump"),
			JoinField:  "name",
			RecordType: "person",
		})
		require.NoError(t, err)

		assert.False(t, result.CutoffUndefined)
		assert.Greater(t, result.Stats.OracleCalls, 0)

		require.Len(t, result.Rows, 2)
		linked := make(map[string]string)
		for _, row := range result.Rows {
			require.NotNil(t, row.BRow)
			require.NotNil(t, row.MatchProbability)
			assert.Equal(t, 1.0, *row.MatchProbability)
			linked[row.ItemA] = row.ItemB
		}
		assert.Equal(t, "Joseph Robinette Biden", linked["Joe Biden"])
		assert.Equal(t, "Donald J. Trump", linked["Donald Trump"])
	})

	t.Run("UnmatchedARows_EmittedWithoutBSide", func(t *testing.T) {
		provider := &keywordProvider{keyword: "biden"}
		orc := &keywordOracle{keyword: "biden"}
		engine := NewEngine(testLogger(), provider, orc, nil, Config{Seed: 1})

		result, err := engine.Run(context.Background(), "tenant-1", models.LinkageSpec{
			DatasetA:   namedRows("Joe Biden", "Barack Obama"),
			DatasetB:   namedRows("Joseph Robinette Biden"),
			JoinField:  "name",
			RecordType: "person",
		})
		require.NoError(t, err)

		require.Len(t, result.Rows, 2)
		byItem := make(map[string]models.LinkedRow)
		for _, row := range result.Rows {
			byItem[row.ItemA] = row
		}

		assert.NotNil(t, byItem["Joe Biden"].BRow)
		assert.Nil(t, byItem["Barack Obama"].BRow)
		assert.Nil(t, byItem["Barack Obama"].MatchProbability)
	})

	t.Run("ReturnAllPairs_BypassesCutoffFilter", func(t *testing.T) {
		provider := &keywordProvider{keyword: "biden"}
		orc := &keywordOracle{keyword: "biden"}
		engine := NewEngine(testLogger(), provider, orc, nil, Config{Seed: 1})

		result, err := engine.Run(context.Background(), "tenant-1", models.LinkageSpec{
			DatasetA:       namedRows("Joe Biden", "Donald Trump"),
			DatasetB:       namedRows("Joseph Robinette Biden", "Donald J. Trump"),
			JoinField:      "name",
			RecordType:     "person",
			ReturnAllPairs: true,
		})
		require.NoError(t, err)

		require.Len(t, result.Rows, 4)
		nonMatches := 0
		for _, row := range result.Rows {
			if row.Label == models.LabelNonMatch {
				nonMatches++
				require.NotNil(t, row.MatchProbability)
				assert.Equal(t, 0.0, *row.MatchProbability)
			}
		}
		assert.Equal(t, 2, nonMatches)
	})

	t.Run("ZeroBlockOverlap_FailsBeforeEmbedding", func(t *testing.T) {
		provider := &keywordProvider{keyword: "acme"}
		engine := NewEngine(testLogger(), provider, failingOracle{}, nil, Config{Seed: 1})

		_, err := engine.Run(context.Background(), "tenant-1", models.LinkageSpec{
			DatasetA:       []map[string]any{{"name": "Acme Inc", "state": "CA"}},
			DatasetB:       []map[string]any{{"name": "Acme Incorporated", "state": "NY"}},
			JoinField:      "name",
			BlockingFields: []string{"state"},
			RecordType:     "company",
		})
		assert.ErrorIs(t, err, blocking.ErrNoBlockOverlap)
		assert.Equal(t, 0, provider.calls)
	})

	t.Run("UnknownNormalizer_FailsBeforeAnyRemoteCall", func(t *testing.T) {
		provider := &keywordProvider{keyword: "acme"}
		engine := NewEngine(testLogger(), provider, failingOracle{}, nil, Config{Seed: 1})

		_, err := engine.Run(context.Background(), "tenant-1", models.LinkageSpec{
			DatasetA:    namedRows("Acme Inc"),
			DatasetB:    namedRows("Acme Incorporated"),
			JoinField:   "name",
			RecordType:  "company",
			Normalizers: []string{"reverse"},
		})
		assert.ErrorIs(t, err, ErrUnknownNormalizer)
		assert.Equal(t, 0, provider.calls)
	})

	t.Run("CachedLabels_ReplaceOracleCalls", func(t *testing.T) {
		cache := &memoryCache{labels: map[models.PairKey]models.Label{
			{A: "Acme Inc", B: "Acme Incorporated"}: models.LabelMatch,
		}}
		engine := NewEngine(testLogger(), &keywordProvider{keyword: "acme"}, failingOracle{}, cache, Config{Seed: 1})

		result, err := engine.Run(context.Background(), "tenant-1", models.LinkageSpec{
			DatasetA:   namedRows("Acme Inc"),
			DatasetB:   namedRows("Acme Incorporated"),
			JoinField:  "name",
			RecordType: "company",
		})
		require.NoError(t, err)

		assert.Equal(t, 0, result.Stats.OracleCalls)
		assert.Equal(t, 1, result.Stats.LabeledPairs)
		require.Len(t, result.Rows, 1)
		assert.Equal(t, models.LabelSourceCache, result.Rows[0].LabelSource)

		// Cache-sourced labels are not written back.
		assert.Empty(t, cache.saved)
	})

	t.Run("FreshOracleLabels_PersistedToCache", func(t *testing.T) {
		cache := &memoryCache{labels: map[models.PairKey]models.Label{}}
		orc := &keywordOracle{keyword: "biden"}
		engine := NewEngine(testLogger(), &keywordProvider{keyword: "biden"}, orc, cache, Config{Seed: 1})

		_, err := engine.Run(context.Background(), "tenant-1", models.LinkageSpec{
			DatasetA:   namedRows("Joe Biden", "Donald Trump"),
			DatasetB:   namedRows("Joseph Robinette Biden", "Donald J. Trump"),
			JoinField:  "name",
			RecordType: "person",
		})
		require.NoError(t, err)

		require.NotEmpty(t, cache.saved)
		for _, saved := range cache.saved {
			assert.Equal(t, "tenant-1", saved.TenantID)
			assert.Equal(t, "person", saved.RecordType)
			assert.True(t, saved.Label.Confirmed())
		}
	})
}
