package active

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/classifier"
	"github.com/Ramsey-B/fern/pkg/labelstore"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/oracle"
	"github.com/Ramsey-B/fern/pkg/similarity"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// State is the learner's position in its lifecycle.
type State string

const (
	StateBootstrapping State = "bootstrapping"
	StateRefining      State = "refining"
	StateConverged     State = "converged"
)

const (
	defaultBootstrapBudget = 500
	defaultBatchSize       = 100
	defaultWindow          = 5
	defaultLabelBudget     = 2000
	defaultLabelCap        = 10000

	linearThreshold   = 0.01
	ensembleThreshold = 0.1
)

// ErrNoProgress is returned when the classifier cannot be fit even after
// widening the bootstrap sample over every remaining candidate.
var ErrNoProgress = errors.New("unable to collect two label classes from the candidate pairs")

// Config holds the loop parameters. Zero values fall back to the production
// defaults.
type Config struct {
	BootstrapBudget int
	BatchSize       int
	Window          int
	Sigma           float64
	LabelBudget     int
	LabelCap        int
	// Threshold overrides the family default stopping threshold when > 0.
	Threshold    float64
	RecordType   string
	Instructions string
	Seed         int64
}

func (c Config) withDefaults() Config {
	if c.BootstrapBudget <= 0 {
		c.BootstrapBudget = defaultBootstrapBudget
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	if c.Sigma <= 0 {
		c.Sigma = defaultSigma
	}
	if c.LabelBudget <= 0 {
		c.LabelBudget = defaultLabelBudget
	}
	if c.LabelCap <= 0 {
		c.LabelCap = defaultLabelCap
	}
	return c
}

// Learner runs the bootstrap and refine phases against the oracle. Each
// iteration is strictly sequential: sample, query, insert, refit, rescore.
type Learner struct {
	logger ectologger.Logger
	oracle oracle.Oracle
	store  *labelstore.Store
	model  classifier.Classifier
	config Config
	rng    *rand.Rand
	state  State

	ranIterations int
	oracleQueries int
}

// NewLearner creates a learner over the given label store and classifier.
func NewLearner(logger ectologger.Logger, orc oracle.Oracle, store *labelstore.Store, model classifier.Classifier, config Config) *Learner {
	config = config.withDefaults()
	return &Learner{
		logger: logger,
		oracle: orc,
		store:  store,
		model:  model,
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
		state:  StateBootstrapping,
	}
}

// State returns the learner's current lifecycle state.
func (l *Learner) State() State { return l.state }

// RanIterations returns how many refinement iterations actually executed.
func (l *Learner) RanIterations() int { return l.ranIterations }

// OracleQueries returns how many pairs were sent to the oracle.
func (l *Learner) OracleQueries() int { return l.oracleQueries }

// Iterations returns the refine-loop ceiling derived from the label budget.
// The loop always terminates within this bound even if the gradient never
// settles.
func (l *Learner) Iterations() int {
	return (l.config.LabelBudget + l.config.BatchSize - 1) / l.config.BatchSize
}

// Run executes bootstrap then refine until convergence, the iteration
// ceiling, or candidate exhaustion. On return every pair's Probability
// reflects the final fitted classifier.
func (l *Learner) Run(ctx context.Context, table *similarity.PairTable) error {
	ctx, span := tracing.StartSpan(ctx, "active.Learner.Run")
	defer span.End()

	if err := l.bootstrap(ctx, table); err != nil {
		return err
	}

	l.state = StateRefining
	if err := l.refine(ctx, table); err != nil {
		return err
	}

	l.state = StateConverged
	return nil
}

// bootstrap seeds the label store so the first fit sees both classes. Every
// A-item contributes its highest-similarity unlabeled candidate, then the
// remaining budget fills with the next most similar candidates overall.
func (l *Learner) bootstrap(ctx context.Context, table *similarity.PairTable) error {
	batch := l.stratifiedSample(table, l.config.BootstrapBudget)

	for {
		if len(batch) > 0 {
			if err := l.queryAndInsert(ctx, batch, models.LabelSourceInitialSample); err != nil {
				return err
			}
		}

		err := l.model.Fit(l.store.TrainingRows())
		if err == nil {
			break
		}
		if !errors.Is(err, classifier.ErrInsufficientLabels) {
			return fmt.Errorf("bootstrap fit: %w", err)
		}

		// One label class so far. Widen with the next similarity tier until
		// the oracle disagrees with itself or candidates run out.
		batch = l.stratifiedSample(table, l.config.BatchSize)
		if len(batch) == 0 {
			return ErrNoProgress
		}
	}

	l.rescore(table)
	l.logger.WithContext(ctx).WithFields(map[string]any{
		"labels": l.store.ConfirmedCount(),
	}).Info("Bootstrap complete")
	return nil
}

func (l *Learner) refine(ctx context.Context, table *similarity.PairTable) error {
	log := l.logger.WithContext(ctx)
	threshold := l.threshold()
	maxIterations := l.Iterations()
	window := make([]float64, 0, l.config.Window)

	for iteration := 0; iteration < maxIterations; iteration++ {
		l.ranIterations = iteration + 1
		if l.store.ConfirmedCount() >= l.config.LabelCap {
			log.WithFields(map[string]any{"labels": l.store.ConfirmedCount()}).Warn("Label cap reached during refinement")
			return nil
		}

		eligible, weights := l.eligiblePairs(table)
		if totalWeight(weights) == 0 {
			log.WithFields(map[string]any{"iteration": iteration}).Info("No uncertain pairs remain")
			return nil
		}

		batch := weightedSample(l.rng, eligible, weights, l.config.BatchSize)
		if err := l.queryAndInsert(ctx, batch, models.LabelSourceActiveLearning); err != nil {
			return err
		}

		if err := l.model.Fit(l.store.TrainingRows()); err != nil {
			if errors.Is(err, classifier.ErrInsufficientLabels) {
				continue
			}
			return fmt.Errorf("refit: %w", err)
		}

		gradient := l.rescoreWithGradient(table)

		window = append(window, gradient)
		if len(window) > l.config.Window {
			window = window[1:]
		}

		log.WithFields(map[string]any{
			"iteration": iteration,
			"gradient":  gradient,
			"labels":    l.store.ConfirmedCount(),
		}).Debug("Refinement iteration complete")

		if len(window) >= l.config.Window && mean(window) < threshold {
			log.WithFields(map[string]any{"iterations": iteration + 1}).Info("Classifier converged")
			return nil
		}
	}

	log.WithFields(map[string]any{"iterations": maxIterations}).Info("Refinement stopped at iteration ceiling")
	return nil
}

func (l *Learner) threshold() float64 {
	if l.config.Threshold > 0 {
		return l.config.Threshold
	}
	if l.model.Family() == classifier.FamilyEnsemble {
		return ensembleThreshold
	}
	return linearThreshold
}

// stratifiedSample picks each A-item's most similar unqueried candidate
// first, then fills the remaining budget with the next most similar
// candidates across all items.
func (l *Learner) stratifiedSample(table *similarity.PairTable, budget int) []*models.CandidatePair {
	byItem := make(map[string][]*models.CandidatePair)
	for _, pair := range table.Pairs {
		if l.queryable(pair) {
			byItem[pair.A] = append(byItem[pair.A], pair)
		}
	}

	items := make([]string, 0, len(byItem))
	for item, pairs := range byItem {
		sort.Slice(pairs, func(i, j int) bool {
			return pairs[i].Features[similarity.FeatureEmbeddingSimilarity] > pairs[j].Features[similarity.FeatureEmbeddingSimilarity]
		})
		items = append(items, item)
	}
	sort.Strings(items)

	var batch []*models.CandidatePair
	for rank := 0; len(batch) < budget; rank++ {
		added := false
		for _, item := range items {
			if rank >= len(byItem[item]) {
				continue
			}
			added = true
			batch = append(batch, byItem[item][rank])
			if len(batch) == budget {
				break
			}
		}
		if !added {
			break
		}
	}

	return batch
}

// eligiblePairs returns the still-unqueried Unknown pairs and their
// uncertainty weights.
func (l *Learner) eligiblePairs(table *similarity.PairTable) ([]*models.CandidatePair, []float64) {
	var pairs []*models.CandidatePair
	var weights []float64
	for _, pair := range table.Pairs {
		if !l.queryable(pair) {
			continue
		}
		pairs = append(pairs, pair)
		weights = append(weights, uncertaintyWeight(pair.Probability, l.config.Sigma))
	}
	return pairs, weights
}

func (l *Learner) queryable(pair *models.CandidatePair) bool {
	return pair.Label == models.LabelUnknown && !l.store.Has(pair.Key())
}

// queryAndInsert asks the oracle about a batch and records every answer,
// Unknown included, so pairs are never re-queried. Confirmed answers are
// reflected onto the pairs themselves.
func (l *Learner) queryAndInsert(ctx context.Context, batch []*models.CandidatePair, source models.LabelSource) error {
	pairs := make([]oracle.Pair, len(batch))
	for i, pair := range batch {
		pairs[i] = oracle.Pair{A: pair.A, B: pair.B}
	}

	labels, err := l.oracle.LabelPairs(ctx, pairs, l.config.RecordType, l.config.Instructions)
	if err != nil {
		return fmt.Errorf("oracle query: %w", err)
	}
	l.oracleQueries += len(pairs)

	for i, pair := range batch {
		label := labels[i]
		l.store.Insert(pair.Key(), pair.Features, label, source)
		if label.Confirmed() {
			pair.Label = label
			pair.Source = source
		}
	}
	return nil
}

// rescore recomputes every pair's probability from the current model.
func (l *Learner) rescore(table *similarity.PairTable) {
	for _, pair := range table.Pairs {
		pair.Probability = l.model.Predict(pair.Features)
	}
}

// rescoreWithGradient recomputes probabilities and returns the maximum
// absolute probability change. Tree ensembles measure the gradient over
// still-Unknown pairs only, since their predictions on already-labeled rows
// say nothing about remaining uncertainty.
func (l *Learner) rescoreWithGradient(table *similarity.PairTable) float64 {
	unknownOnly := l.model.Family() == classifier.FamilyEnsemble

	var gradient float64
	for _, pair := range table.Pairs {
		previous := pair.Probability
		pair.Probability = l.model.Predict(pair.Features)

		if unknownOnly && pair.Label != models.LabelUnknown {
			continue
		}
		if delta := math.Abs(pair.Probability - previous); delta > gradient {
			gradient = delta
		}
	}
	return gradient
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
