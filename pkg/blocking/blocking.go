// Package blocking partitions the two datasets into comparison blocks that
// agree exactly on the configured blocking keys.
package blocking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/extractor"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ErrNoBlockOverlap is returned when blocking keys are configured but no
// B-row falls into any block. This is a configuration error: the caller has
// chosen keys the two datasets do not share, and proceeding would silently
// link nothing.
var ErrNoBlockOverlap = errors.New("blocking keys produced no overlap between datasets")

// universalBlockID is used when no blocking keys are configured.
const universalBlockID = "all"

// Result holds the computed blocks plus the count of rows dropped for
// missing join or blocking values.
type Result struct {
	Blocks   []models.Block
	DroppedA int
	DroppedB int
}

// Filter builds blocks from raw dataset rows.
type Filter struct {
	logger    ectologger.Logger
	extractor *extractor.Extractor
}

// NewFilter creates a new blocking filter.
func NewFilter(logger ectologger.Logger) *Filter {
	return &Filter{
		logger:    logger,
		extractor: extractor.New(),
	}
}

// BuildBlocks returns one block per distinct blocking-key combination present
// in dataset A, each containing only the B-rows whose key values match
// exactly. Rows missing the join field or any blocking field are dropped
// with a warning before blocking begins.
func (f *Filter) BuildBlocks(
	ctx context.Context,
	datasetA, datasetB []map[string]any,
	joinField string,
	blockingFields []string,
	normalizerChain []string,
) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "blocking.Filter.BuildBlocks")
	defer span.End()

	log := f.logger.WithContext(ctx).WithFields(map[string]any{
		"join_field":      joinField,
		"blocking_fields": strings.Join(blockingFields, ","),
	})

	sideA, droppedA := f.collectSide(datasetA, joinField, blockingFields, normalizerChain)
	sideB, droppedB := f.collectSide(datasetB, joinField, blockingFields, normalizerChain)

	if droppedA > 0 || droppedB > 0 {
		log.WithFields(map[string]any{
			"dropped_a": droppedA,
			"dropped_b": droppedB,
		}).Warn("Dropped rows with missing join or blocking values")
	}

	blocks := make([]models.Block, 0, len(sideA.order))
	totalBItems := 0

	for _, blockKey := range sideA.order {
		block := models.Block{
			ID:     blockID(blockKey, blockingFields),
			Keys:   sideA.keyValues[blockKey],
			AItems: itemList(sideA.items[blockKey]),
		}
		if bItems, ok := sideB.items[blockKey]; ok {
			block.BItems = itemList(bItems)
			totalBItems += len(block.BItems)
		}
		blocks = append(blocks, block)
	}

	if len(blockingFields) > 0 && len(blocks) > 0 && totalBItems == 0 {
		return nil, ErrNoBlockOverlap
	}

	log.WithFields(map[string]any{"block_count": len(blocks)}).Debug("Built blocks")

	return &Result{
		Blocks:   blocks,
		DroppedA: droppedA,
		DroppedB: droppedB,
	}, nil
}

// sideIndex groups one dataset's items by block key.
type sideIndex struct {
	order     []string
	items     map[string]map[string][]int // blockKey -> itemValue -> row indexes
	keyValues map[string]map[string]string
}

func (f *Filter) collectSide(rows []map[string]any, joinField string, blockingFields []string, normalizerChain []string) (*sideIndex, int) {
	idx := &sideIndex{
		items:     make(map[string]map[string][]int),
		keyValues: make(map[string]map[string]string),
	}
	dropped := 0

	for i, row := range rows {
		value, err := f.extractor.ExtractString(row, joinField)
		if err != nil || value == nil || *value == "" {
			dropped++
			continue
		}
		if len(normalizerChain) > 0 {
			normalized := normalizers.ApplyChain(*value, normalizerChain...)
			if normalized == "" {
				dropped++
				continue
			}
			value = &normalized
		}

		keyValues, ok := f.extractBlockingValues(row, blockingFields)
		if !ok {
			dropped++
			continue
		}

		blockKey := compositeKey(keyValues, blockingFields)
		if _, seen := idx.items[blockKey]; !seen {
			idx.items[blockKey] = make(map[string][]int)
			idx.keyValues[blockKey] = keyValues
			idx.order = append(idx.order, blockKey)
		}
		idx.items[blockKey][*value] = append(idx.items[blockKey][*value], i)
	}

	return idx, dropped
}

func (f *Filter) extractBlockingValues(row map[string]any, blockingFields []string) (map[string]string, bool) {
	if len(blockingFields) == 0 {
		return nil, true
	}

	values := make(map[string]string, len(blockingFields))
	for _, field := range blockingFields {
		value, err := f.extractor.ExtractString(row, field)
		if err != nil || value == nil || *value == "" {
			return nil, false
		}
		values[field] = *value
	}
	return values, true
}

// compositeKey builds a deterministic block key from the blocking values.
func compositeKey(values map[string]string, blockingFields []string) string {
	if len(blockingFields) == 0 {
		return universalBlockID
	}

	parts := make([]string, 0, len(blockingFields))
	for _, field := range blockingFields {
		parts = append(parts, field+"="+values[field])
	}
	return strings.Join(parts, "|")
}

func blockID(blockKey string, blockingFields []string) string {
	if len(blockingFields) == 0 {
		return universalBlockID
	}
	return blockKey
}

// itemList converts the per-item row index map to a sorted item slice so
// block contents are deterministic.
func itemList(byValue map[string][]int) []models.Item {
	values := make([]string, 0, len(byValue))
	for v := range byValue {
		values = append(values, v)
	}
	sort.Strings(values)

	items := make([]models.Item, 0, len(values))
	for _, v := range values {
		items = append(items, models.Item{Value: v, RowIndexes: byValue[v]})
	}
	return items
}

// Describe returns a human-readable block summary for logs.
func Describe(block models.Block) string {
	return fmt.Sprintf("block %s: %d a-items, %d b-items", block.ID, len(block.AItems), len(block.BItems))
}
