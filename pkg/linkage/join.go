package linkage

import (
	"github.com/Ramsey-B/fern/pkg/cutoff"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/similarity"
)

// assembleRows joins accepted pairs back onto the source rows with left
// outer-join semantics: every A-row that survived blocking appears at least
// once, with nil B-side fields when nothing was accepted for its item.
//
// A pair is accepted when it carries a confirmed Match label, or no
// confirmed label and a probability at or above the selected cutoff.
// Confirmed non-matches are never accepted. Item values backed by several
// source rows expand to one output row per (A-row, B-row) combination, all
// sharing the pair's single probability.
func assembleRows(
	datasetA, datasetB []map[string]any,
	blocks []models.Block,
	table *similarity.PairTable,
	selection cutoff.Result,
) []models.LinkedRow {
	var rows []models.LinkedRow
	matchedARows := make(map[int]bool)

	for _, block := range blocks {
		for _, aItem := range block.AItems {
			for _, bItem := range block.BItems {
				pair, ok := table.Get(models.PairKey{A: aItem.Value, B: bItem.Value})
				if !ok || !accepted(pair, selection) {
					continue
				}

				rows = append(rows, expandPair(datasetA, datasetB, block.ID, aItem, bItem, pair)...)
				for _, aIdx := range aItem.RowIndexes {
					matchedARows[aIdx] = true
				}
			}
		}
	}

	rows = append(rows, unmatchedRows(datasetA, blocks, matchedARows)...)
	return rows
}

// allPairRows returns the entire scored candidate universe, one output row
// per source-row combination, bypassing the probability filter. Used for
// auditing a run.
func allPairRows(
	datasetA, datasetB []map[string]any,
	blocks []models.Block,
	table *similarity.PairTable,
) []models.LinkedRow {
	var rows []models.LinkedRow

	for _, block := range blocks {
		for _, aItem := range block.AItems {
			for _, bItem := range block.BItems {
				pair, ok := table.Get(models.PairKey{A: aItem.Value, B: bItem.Value})
				if !ok {
					continue
				}
				rows = append(rows, expandPair(datasetA, datasetB, block.ID, aItem, bItem, pair)...)
			}
		}
	}

	return rows
}

func accepted(pair *models.CandidatePair, selection cutoff.Result) bool {
	if pair.Label == models.LabelMatch {
		return true
	}
	if pair.Label == models.LabelNonMatch {
		return false
	}
	return !selection.Undefined && pair.Probability >= selection.Cutoff
}

func expandPair(
	datasetA, datasetB []map[string]any,
	blockID string,
	aItem, bItem models.Item,
	pair *models.CandidatePair,
) []models.LinkedRow {
	probability := pair.Probability
	rows := make([]models.LinkedRow, 0, len(aItem.RowIndexes)*len(bItem.RowIndexes))

	for _, aIdx := range aItem.RowIndexes {
		for _, bIdx := range bItem.RowIndexes {
			rows = append(rows, models.LinkedRow{
				ARow:             datasetA[aIdx],
				BRow:             datasetB[bIdx],
				ItemA:            aItem.Value,
				ItemB:            bItem.Value,
				BlockID:          blockID,
				MatchProbability: &probability,
				Label:            pair.Label,
				LabelSource:      pair.Source,
			})
		}
	}
	return rows
}

// unmatchedRows emits one bare row per A-row that produced candidates but
// had none accepted.
func unmatchedRows(datasetA []map[string]any, blocks []models.Block, matchedARows map[int]bool) []models.LinkedRow {
	seen := make(map[int]bool)
	var rows []models.LinkedRow

	for _, block := range blocks {
		for _, aItem := range block.AItems {
			for _, aIdx := range aItem.RowIndexes {
				if matchedARows[aIdx] || seen[aIdx] {
					continue
				}
				seen[aIdx] = true
				rows = append(rows, models.LinkedRow{
					ARow:    datasetA[aIdx],
					ItemA:   aItem.Value,
					BlockID: block.ID,
				})
			}
		}
	}
	return rows
}
