// Package models contains the shared domain types for record linkage.
package models

// Label is the match decision for a candidate pair.
type Label string

const (
	LabelMatch    Label = "match"
	LabelNonMatch Label = "non_match"
	LabelUnknown  Label = "unknown"
)

// Confirmed reports whether the label is a usable oracle or exact decision.
func (l Label) Confirmed() bool {
	return l == LabelMatch || l == LabelNonMatch
}

// LabelSource records which stage of the run produced a label.
type LabelSource string

const (
	LabelSourceExact          LabelSource = "exact"
	LabelSourceInitialSample  LabelSource = "initial_sample"
	LabelSourceActiveLearning LabelSource = "active_learning"
	LabelSourceRecallSearch   LabelSource = "recall_search"
	LabelSourceCache          LabelSource = "cache"
)

// Item is a distinct join-field value from one side of the two datasets,
// together with the source rows it originated from. One item string may
// correspond to multiple source rows.
type Item struct {
	Value      string `json:"value"`
	RowIndexes []int  `json:"row_indexes"`
}

// Block groups the A-items and B-items sharing identical values on all
// blocking keys. Items in different blocks are never compared.
type Block struct {
	ID     string            `json:"id"`
	Keys   map[string]string `json:"keys,omitempty"`
	AItems []Item            `json:"a_items"`
	BItems []Item            `json:"b_items"`
}

// PairKey identifies a candidate pair by its two item strings. Pairs that
// recur in multiple blocks collapse to one logical pair under this key.
type PairKey struct {
	A string
	B string
}

// FeatureVector maps feature names to values. The classifier decides which
// subset it trains on.
type FeatureVector map[string]float64

// CandidatePair is one logical (item_A, item_B) comparison with its feature
// vector, current match probability, and any confirmed label. BlockIDs tracks
// every block the pair appeared in; the probability is computed once.
type CandidatePair struct {
	A           string        `json:"a"`
	B           string        `json:"b"`
	BlockIDs    []string      `json:"block_ids"`
	Features    FeatureVector `json:"features"`
	Probability float64       `json:"probability"`
	Label       Label         `json:"label"`
	Source      LabelSource   `json:"source,omitempty"`
}

// Key returns the pair's identity key.
func (p *CandidatePair) Key() PairKey {
	return PairKey{A: p.A, B: p.B}
}

// LinkedRow is one row of the final joined output. BRow is nil for A-rows
// that found no accepted match (left outer join semantics).
type LinkedRow struct {
	ARow             map[string]any `json:"a_row"`
	BRow             map[string]any `json:"b_row,omitempty"`
	ItemA            string         `json:"item_a"`
	ItemB            string         `json:"item_b,omitempty"`
	BlockID          string         `json:"block_id,omitempty"`
	MatchProbability *float64       `json:"match_probability,omitempty"`
	Label            Label          `json:"label,omitempty"`
	LabelSource      LabelSource    `json:"label_source,omitempty"`
}

// RunStats summarizes a linkage run for reporting and events.
type RunStats struct {
	Blocks           int  `json:"blocks"`
	CandidatePairs   int  `json:"candidate_pairs"`
	ExactMatches     int  `json:"exact_matches"`
	OracleCalls      int  `json:"oracle_calls"`
	LabeledPairs     int  `json:"labeled_pairs"`
	RefineIterations int  `json:"refine_iterations"`
	RecallIterations int  `json:"recall_iterations"`
	Converged        bool `json:"converged"`
	DroppedRowsA     int  `json:"dropped_rows_a"`
	DroppedRowsB     int  `json:"dropped_rows_b"`
}

// LinkageResult is the assembled output of a run.
type LinkageResult struct {
	Rows            []LinkedRow `json:"rows"`
	Cutoff          *float64    `json:"cutoff,omitempty"`
	CutoffUndefined bool        `json:"cutoff_undefined"`
	Stats           RunStats    `json:"stats"`
}
