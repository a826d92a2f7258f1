package active

import (
	"context"
	"math/rand"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/labelstore"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/oracle"
	"github.com/Ramsey-B/fern/pkg/similarity"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// RecallSearch hunts for matches the pair-centric refinement starved. It is
// item-centric: A-items with no confirmed match and no candidate above the
// cutoff estimate are orphans, and their uncertain candidates get a final
// round of oracle queries. The classifier is never refit here; only label
// counts change.
type RecallSearch struct {
	logger ectologger.Logger
	oracle oracle.Oracle
	store  *labelstore.Store
	config Config
	rng    *rand.Rand

	rounds        int
	oracleQueries int
}

// NewRecallSearch creates a recall search over the shared label store.
func NewRecallSearch(logger ectologger.Logger, orc oracle.Oracle, store *labelstore.Store, config Config) *RecallSearch {
	config = config.withDefaults()
	return &RecallSearch{
		logger: logger,
		oracle: orc,
		store:  store,
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed + 1)),
	}
}

// Run labels orphan candidates in weighted batches until no orphan
// candidates remain or the run-wide confirmed label cap is reached.
func (r *RecallSearch) Run(ctx context.Context, table *similarity.PairTable, cutoffEstimate float64) error {
	ctx, span := tracing.StartSpan(ctx, "active.RecallSearch.Run")
	defer span.End()

	log := r.logger.WithContext(ctx)

	for {
		if r.store.ConfirmedCount() >= r.config.LabelCap {
			log.WithFields(map[string]any{"labels": r.store.ConfirmedCount()}).Warn("Label cap reached during recall search")
			break
		}

		candidates, weights := r.orphanCandidates(table, cutoffEstimate)
		if len(candidates) == 0 || totalWeight(weights) == 0 {
			break
		}

		batch := weightedSample(r.rng, candidates, weights, r.config.BatchSize)
		if err := r.labelBatch(ctx, batch); err != nil {
			return err
		}
		r.rounds++
	}

	if r.rounds > 0 {
		log.WithFields(map[string]any{"rounds": r.rounds}).Info("Recall search complete")
	}
	return nil
}

// Rounds returns how many oracle batches the search issued.
func (r *RecallSearch) Rounds() int { return r.rounds }

// OracleQueries returns how many pairs were sent to the oracle.
func (r *RecallSearch) OracleQueries() int { return r.oracleQueries }

// orphanCandidates returns the unqueried Unknown candidates belonging to
// orphan A-items, with uncertainty weights. An A-item is an orphan when none
// of its candidates is a confirmed Match and its best candidate probability
// sits below the cutoff estimate.
func (r *RecallSearch) orphanCandidates(table *similarity.PairTable, cutoffEstimate float64) ([]*models.CandidatePair, []float64) {
	type itemState struct {
		hasMatch bool
		best     float64
	}

	states := make(map[string]*itemState)
	for _, pair := range table.Pairs {
		state, ok := states[pair.A]
		if !ok {
			state = &itemState{}
			states[pair.A] = state
		}
		if pair.Label == models.LabelMatch {
			state.hasMatch = true
		}
		if pair.Probability > state.best {
			state.best = pair.Probability
		}
	}

	var candidates []*models.CandidatePair
	var weights []float64
	for _, pair := range table.Pairs {
		state := states[pair.A]
		if state.hasMatch || state.best >= cutoffEstimate {
			continue
		}
		if pair.Label != models.LabelUnknown || r.store.Has(pair.Key()) {
			continue
		}
		candidates = append(candidates, pair)
		weights = append(weights, uncertaintyWeight(pair.Probability, r.config.Sigma))
	}
	return candidates, weights
}

func (r *RecallSearch) labelBatch(ctx context.Context, batch []*models.CandidatePair) error {
	pairs := make([]oracle.Pair, len(batch))
	for i, pair := range batch {
		pairs[i] = oracle.Pair{A: pair.A, B: pair.B}
	}

	labels, err := r.oracle.LabelPairs(ctx, pairs, r.config.RecordType, r.config.Instructions)
	if err != nil {
		return err
	}
	r.oracleQueries += len(pairs)

	for i, pair := range batch {
		label := labels[i]
		r.store.Insert(pair.Key(), pair.Features, label, models.LabelSourceRecallSearch)
		if label.Confirmed() {
			pair.Label = label
			pair.Source = models.LabelSourceRecallSearch
		}
	}
	return nil
}
