// Package active drives the oracle-in-the-loop labeling phases: the
// bootstrap/refine state machine and the item-centric recall search.
package active

import (
	"math"
	"math/rand"
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// defaultSigma is the standard deviation of the Gaussian uncertainty kernel.
const defaultSigma = 0.2

// uncertaintyWeight returns the Gaussian density, mean zero, evaluated at the
// logit of the pair's match probability. Weight peaks at probability 0.5 and
// decays toward zero as the model grows confident either way. Probabilities
// at exactly 0 or 1 get weight 0.
func uncertaintyWeight(probability, sigma float64) float64 {
	if probability <= 0 || probability >= 1 {
		return 0
	}

	logit := math.Log(probability / (1 - probability))
	return math.Exp(-logit*logit/(2*sigma*sigma)) / (sigma * math.Sqrt(2*math.Pi))
}

// weightedSample draws up to batchSize pairs without replacement, with
// probability proportional to weight. Pairs with zero weight are never drawn.
// Uses the exponential-key method: each candidate gets key rand^(1/w) and the
// top keys win.
func weightedSample(rng *rand.Rand, pairs []*models.CandidatePair, weights []float64, batchSize int) []*models.CandidatePair {
	type keyed struct {
		pair *models.CandidatePair
		key  float64
	}

	keys := make([]keyed, 0, len(pairs))
	for i, pair := range pairs {
		if weights[i] <= 0 {
			continue
		}
		keys = append(keys, keyed{pair: pair, key: math.Pow(rng.Float64(), 1/weights[i])})
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].key > keys[j].key })

	if batchSize > len(keys) {
		batchSize = len(keys)
	}
	batch := make([]*models.CandidatePair, batchSize)
	for i := range batch {
		batch[i] = keys[i].pair
	}
	return batch
}

// totalWeight sums a weight vector.
func totalWeight(weights []float64) float64 {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	return sum
}
