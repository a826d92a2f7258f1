// Package linkage orchestrates a full record linkage run: blocking, feature
// building, exact-match seeding, active learning, recall search, cutoff
// selection, and the final join.
package linkage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/active"
	"github.com/Ramsey-B/fern/pkg/blocking"
	"github.com/Ramsey-B/fern/pkg/classifier"
	"github.com/Ramsey-B/fern/pkg/cutoff"
	"github.com/Ramsey-B/fern/pkg/embeddings"
	"github.com/Ramsey-B/fern/pkg/labelstore"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/oracle"
	"github.com/Ramsey-B/fern/pkg/similarity"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ErrUnknownNormalizer is returned when a spec names a normalizer that is
// not registered. Surfaced before any remote call is made.
var ErrUnknownNormalizer = errors.New("unknown normalizer")

// LabelCache persists confirmed oracle decisions across runs so repeat
// linkages of the same record type do not pay for the same oracle calls
// twice. Implementations may be nil-safe no-ops.
type LabelCache interface {
	Fetch(ctx context.Context, tenantID, recordType string, keys []models.PairKey) (map[models.PairKey]models.Label, error)
	Save(ctx context.Context, tenantID, recordType string, labels []models.OracleLabel) error
}

// Config carries the engine's loop parameters.
type Config struct {
	BootstrapBudget int
	BatchSize       int
	Window          int
	Sigma           float64
	LabelCap        int
	Seed            int64
}

// Engine runs linkage jobs end to end.
type Engine struct {
	logger   ectologger.Logger
	provider embeddings.Provider
	oracle   oracle.Oracle
	cache    LabelCache
	filter   *blocking.Filter
	builder  *similarity.Builder
	config   Config
}

// NewEngine creates a linkage engine. cache may be nil to disable cross-run
// label reuse.
func NewEngine(logger ectologger.Logger, provider embeddings.Provider, orc oracle.Oracle, cache LabelCache, config Config) *Engine {
	return &Engine{
		logger:   logger,
		provider: provider,
		oracle:   orc,
		cache:    cache,
		filter:   blocking.NewFilter(logger),
		builder:  similarity.NewBuilder(logger, provider),
		config:   config,
	}
}

// Run executes one linkage spec. Configuration errors surface before any
// embedding or oracle call is made.
func (e *Engine) Run(ctx context.Context, tenantID string, spec models.LinkageSpec) (*models.LinkageResult, error) {
	ctx, span := tracing.StartSpan(ctx, "linkage.Engine.Run")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"record_type": spec.RecordType,
	})

	for _, name := range spec.Normalizers {
		if !normalizers.Known(name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNormalizer, name)
		}
	}

	blockResult, err := e.filter.BuildBlocks(ctx, spec.DatasetA, spec.DatasetB, spec.JoinField, spec.BlockingFields, spec.Normalizers)
	if err != nil {
		return nil, err
	}

	table, err := e.builder.BuildPairs(ctx, blockResult.Blocks)
	if err != nil {
		return nil, fmt.Errorf("building candidate pairs: %w", err)
	}

	store := labelstore.NewStore()
	exactMatches := seedExactMatches(table, store)

	if err := e.preloadCache(ctx, tenantID, spec.RecordType, table, store); err != nil {
		log.WithError(err).Warn("Label cache preload failed; continuing without cached labels")
	}

	stats := models.RunStats{
		Blocks:         len(blockResult.Blocks),
		CandidatePairs: table.Len(),
		ExactMatches:   exactMatches,
		DroppedRowsA:   blockResult.DroppedA,
		DroppedRowsB:   blockResult.DroppedB,
	}

	loopConfig := active.Config{
		BootstrapBudget: e.config.BootstrapBudget,
		BatchSize:       e.config.BatchSize,
		Window:          e.config.Window,
		Sigma:           e.config.Sigma,
		LabelBudget:     spec.LabelBudget,
		LabelCap:        e.config.LabelCap,
		RecordType:      spec.RecordType,
		Instructions:    spec.Instructions,
		Seed:            e.config.Seed,
	}

	if hasUnresolvedPairs(table, store) {
		model := classifier.New(classifier.Family(spec.ModelFamily))

		learner := active.NewLearner(e.logger, e.oracle, store, model, loopConfig)
		if err := learner.Run(ctx, table); err != nil {
			if errors.Is(err, active.ErrNoProgress) {
				log.Warn("Candidate pairs yielded a single label class; skipping refinement")
			} else {
				return nil, err
			}
		}
		stats.RefineIterations = learner.RanIterations()
		stats.OracleCalls += learner.OracleQueries()
		stats.Converged = learner.State() == active.StateConverged

		estimate := cutoff.Select(table.Pairs)
		recall := active.NewRecallSearch(e.logger, e.oracle, store, loopConfig)
		if err := recall.Run(ctx, table, recallEstimate(estimate)); err != nil {
			return nil, err
		}
		stats.RecallIterations = recall.Rounds()
		stats.OracleCalls += recall.OracleQueries()
	} else {
		stats.Converged = true
	}

	selection := cutoff.Select(table.Pairs)
	pinConfirmedProbabilities(table)
	stats.LabeledPairs = store.ConfirmedCount()

	if err := e.persistCache(ctx, tenantID, spec.RecordType, store); err != nil {
		log.WithError(err).Warn("Label cache persist failed")
	}

	result := &models.LinkageResult{
		CutoffUndefined: selection.Undefined,
		Stats:           stats,
	}
	if !selection.Undefined {
		c := selection.Cutoff
		result.Cutoff = &c
	}

	if spec.ReturnAllPairs {
		result.Rows = allPairRows(spec.DatasetA, spec.DatasetB, blockResult.Blocks, table)
	} else {
		result.Rows = assembleRows(spec.DatasetA, spec.DatasetB, blockResult.Blocks, table, selection)
	}

	log.WithFields(map[string]any{
		"rows":             len(result.Rows),
		"labeled_pairs":    stats.LabeledPairs,
		"oracle_calls":     stats.OracleCalls,
		"cutoff_undefined": selection.Undefined,
	}).Info("Linkage run complete")

	return result, nil
}

// seedExactMatches labels identical string pairs as matches by construction.
// They never reach the oracle and never enter the training rows.
func seedExactMatches(table *similarity.PairTable, store *labelstore.Store) int {
	count := 0
	for _, pair := range table.Pairs {
		if pair.A != pair.B {
			continue
		}
		pair.Label = models.LabelMatch
		pair.Source = models.LabelSourceExact
		pair.Probability = 1
		store.Insert(pair.Key(), pair.Features, models.LabelMatch, models.LabelSourceExact)
		count++
	}
	return count
}

// preloadCache copies previously confirmed oracle decisions into the store
// so this run's loops skip them.
func (e *Engine) preloadCache(ctx context.Context, tenantID, recordType string, table *similarity.PairTable, store *labelstore.Store) error {
	if e.cache == nil {
		return nil
	}

	var keys []models.PairKey
	for _, pair := range table.Pairs {
		if pair.Label == models.LabelUnknown {
			keys = append(keys, pair.Key())
		}
	}
	if len(keys) == 0 {
		return nil
	}

	cached, err := e.cache.Fetch(ctx, tenantID, recordType, keys)
	if err != nil {
		return err
	}

	for key, label := range cached {
		pair, ok := table.Get(key)
		if !ok || !label.Confirmed() {
			continue
		}
		pair.Label = label
		pair.Source = models.LabelSourceCache
		store.Insert(key, pair.Features, label, models.LabelSourceCache)
	}
	return nil
}

// persistCache saves this run's fresh oracle decisions for reuse.
func (e *Engine) persistCache(ctx context.Context, tenantID, recordType string, store *labelstore.Store) error {
	if e.cache == nil {
		return nil
	}

	var labels []models.OracleLabel
	for _, row := range store.Rows() {
		if !row.Label.Confirmed() {
			continue
		}
		if row.Source == models.LabelSourceExact || row.Source == models.LabelSourceCache {
			continue
		}
		labels = append(labels, models.OracleLabel{
			TenantID:   tenantID,
			RecordType: recordType,
			ItemA:      row.Key.A,
			ItemB:      row.Key.B,
			Label:      row.Label,
			Source:     string(row.Source),
		})
	}
	if len(labels) == 0 {
		return nil
	}
	return e.cache.Save(ctx, tenantID, recordType, labels)
}

func hasUnresolvedPairs(table *similarity.PairTable, store *labelstore.Store) bool {
	for _, pair := range table.Pairs {
		if pair.Label == models.LabelUnknown && !store.Has(pair.Key()) {
			return true
		}
	}
	return false
}

// recallEstimate picks the orphan threshold for recall search. With no
// confirmed matches every below-one probability counts as orphaned, which is
// exactly when recall needs to look hardest.
func recallEstimate(r cutoff.Result) float64 {
	if r.Undefined {
		return 1
	}
	return r.Cutoff
}

// pinConfirmedProbabilities overrides model scores with the confirmed label
// so reported probabilities agree with the decisions the run actually made.
func pinConfirmedProbabilities(table *similarity.PairTable) {
	for _, pair := range table.Pairs {
		switch pair.Label {
		case models.LabelMatch:
			pair.Probability = 1
		case models.LabelNonMatch:
			pair.Probability = 0
		}
	}
}
