// Package similarity builds the pairwise numeric features the classifier
// scores: embedding cosine similarity plus lexical distance metrics.
package similarity

import (
	"context"
	"sort"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/fern/pkg/embeddings"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// PairTable is the deduplicated candidate pair universe. Pairs that appear
// in multiple blocks hold one feature row and one probability; the blocks
// are tracked on the pair for the final join.
type PairTable struct {
	Pairs []*models.CandidatePair
	index map[models.PairKey]int
}

// NewPairTable creates an empty pair table.
func NewPairTable() *PairTable {
	return &PairTable{index: make(map[models.PairKey]int)}
}

// Get returns the pair for a key, if present.
func (t *PairTable) Get(key models.PairKey) (*models.CandidatePair, bool) {
	i, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return t.Pairs[i], true
}

// Len returns the number of logical pairs.
func (t *PairTable) Len() int {
	return len(t.Pairs)
}

// Add inserts a pair or merges block membership into the existing entry.
func (t *PairTable) Add(pair *models.CandidatePair) {
	key := pair.Key()
	if i, ok := t.index[key]; ok {
		existing := t.Pairs[i]
		for _, blockID := range pair.BlockIDs {
			if !containsString(existing.BlockIDs, blockID) {
				existing.BlockIDs = append(existing.BlockIDs, blockID)
			}
		}
		return
	}
	t.index[key] = len(t.Pairs)
	t.Pairs = append(t.Pairs, pair)
}

// Builder computes candidate pair features. The embedding provider is called
// exactly once per run, for the full distinct-item set, never per block.
type Builder struct {
	logger   ectologger.Logger
	provider embeddings.Provider
	scorer   *Scorer
}

// NewBuilder creates a new feature builder.
func NewBuilder(logger ectologger.Logger, provider embeddings.Provider) *Builder {
	return &Builder{
		logger:   logger,
		provider: provider,
		scorer:   NewScorer(),
	}
}

// BuildPairs embeds every distinct item once, then produces one feature row
// per (item_A, item_B) pair within each block. Identical string pairs that
// recur across blocks collapse to one logical pair.
func (b *Builder) BuildPairs(ctx context.Context, blocks []models.Block) (*PairTable, error) {
	ctx, span := tracing.StartSpan(ctx, "similarity.Builder.BuildPairs")
	defer span.End()

	items := distinctItems(blocks)
	if len(items) == 0 {
		return NewPairTable(), nil
	}

	vectors, err := b.provider.Embed(ctx, items)
	if err != nil {
		return nil, err
	}

	vectorByItem := make(map[string][]float64, len(items))
	for i, item := range items {
		vec := vectors[i]
		embeddings.Normalize(vec)
		vectorByItem[item] = vec
	}

	// Blocks are independent; compute their feature rows concurrently and
	// merge sequentially so deduplication stays race-free.
	blockPairs := make([][]*models.CandidatePair, len(blocks))
	g, _ := errgroup.WithContext(ctx)
	for i := range blocks {
		g.Go(func() error {
			blockPairs[i] = b.buildBlockPairs(blocks[i], vectorByItem)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := NewPairTable()
	for _, pairs := range blockPairs {
		for _, pair := range pairs {
			table.Add(pair)
		}
	}

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"distinct_items": len(items),
		"pair_count":     table.Len(),
		"block_count":    len(blocks),
	}).Debug("Built candidate pairs")

	return table, nil
}

// buildBlockPairs computes the dense similarity rows for one block's
// cross-product of A-items and B-items.
func (b *Builder) buildBlockPairs(block models.Block, vectorByItem map[string][]float64) []*models.CandidatePair {
	pairs := make([]*models.CandidatePair, 0, len(block.AItems)*len(block.BItems))

	for _, aItem := range block.AItems {
		aVec := vectorByItem[aItem.Value]
		for _, bItem := range block.BItems {
			features := b.scorer.LexicalFeatures(aItem.Value, bItem.Value)
			features[FeatureEmbeddingSimilarity] = dot(aVec, vectorByItem[bItem.Value])

			pairs = append(pairs, &models.CandidatePair{
				A:        aItem.Value,
				B:        bItem.Value,
				BlockIDs: []string{block.ID},
				Features: features,
				Label:    models.LabelUnknown,
			})
		}
	}

	return pairs
}

// distinctItems returns the sorted distinct item strings across both sides
// of all blocks.
func distinctItems(blocks []models.Block) []string {
	seen := make(map[string]struct{})
	for _, block := range blocks {
		for _, item := range block.AItems {
			seen[item.Value] = struct{}{}
		}
		for _, item := range block.BItems {
			seen[item.Value] = struct{}{}
		}
	}

	items := make([]string, 0, len(seen))
	for item := range seen {
		items = append(items, item)
	}
	sort.Strings(items)
	return items
}

func dot(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
