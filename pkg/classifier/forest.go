package classifier

import (
	"math"
	"math/rand"
	"sort"

	"github.com/Ramsey-B/fern/pkg/labelstore"
	"github.com/Ramsey-B/fern/pkg/models"
)

// ForestConfig tunes the tree ensemble.
type ForestConfig struct {
	Trees       int
	MaxDepth    int
	MinLeafSize int
	Seed        int64
}

// DefaultForestConfig returns the ensemble settings used in production.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:       50,
		MaxDepth:    6,
		MinLeafSize: 2,
		Seed:        1,
	}
}

// Forest is a random forest over the extended feature set. Trees are grown
// on bootstrap samples with per-split feature subsampling; Predict averages
// the leaf match fractions.
type Forest struct {
	config ForestConfig
	names  []string
	trees  []*treeNode
	fitted bool
}

// NewForest creates an unfitted forest.
func NewForest(config ForestConfig) *Forest {
	return &Forest{
		config: config,
		names:  extendedFeatures,
	}
}

func (f *Forest) Family() Family { return FamilyEnsemble }

func (f *Forest) FeatureNames() []string { return f.names }

// Fit rebuilds the full ensemble from the training rows. The RNG is seeded
// per fit so repeated fits on identical rows yield identical trees.
func (f *Forest) Fit(rows []labelstore.Row) error {
	if classCount(rows) < 2 {
		return ErrInsufficientLabels
	}

	x, y := featureMatrix(rows, f.names)
	rng := rand.New(rand.NewSource(f.config.Seed))
	subspace := int(math.Ceil(math.Sqrt(float64(len(f.names)))))

	f.trees = make([]*treeNode, f.config.Trees)
	for t := range f.trees {
		sampleIdx := make([]int, len(x))
		for i := range sampleIdx {
			sampleIdx[i] = rng.Intn(len(x))
		}
		f.trees[t] = growTree(x, y, sampleIdx, 0, f.config, subspace, rng)
	}

	f.fitted = true
	return nil
}

// Predict returns the mean leaf probability across the ensemble. An unfitted
// model returns 0.5.
func (f *Forest) Predict(features models.FeatureVector) float64 {
	if !f.fitted || len(f.trees) == 0 {
		return 0.5
	}

	xi := featureRow(features, f.names)
	var sum float64
	for _, tree := range f.trees {
		sum += tree.predict(xi)
	}
	return sum / float64(len(f.trees))
}

// treeNode is one node of a CART tree. Leaves carry the match fraction of
// the training rows that reached them.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	leaf      bool
	prob      float64
}

func (n *treeNode) predict(xi []float64) float64 {
	for !n.leaf {
		if xi[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.prob
}

func growTree(x [][]float64, y []float64, idx []int, depth int, cfg ForestConfig, subspace int, rng *rand.Rand) *treeNode {
	prob := meanLabel(y, idx)

	if depth >= cfg.MaxDepth || len(idx) < 2*cfg.MinLeafSize || prob == 0 || prob == 1 {
		return &treeNode{leaf: true, prob: prob}
	}

	feature, threshold, ok := bestSplit(x, y, idx, cfg.MinLeafSize, subspace, rng)
	if !ok {
		return &treeNode{leaf: true, prob: prob}
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      growTree(x, y, leftIdx, depth+1, cfg, subspace, rng),
		right:     growTree(x, y, rightIdx, depth+1, cfg, subspace, rng),
	}
}

// bestSplit scans a random feature subspace for the gini-optimal midpoint
// threshold that leaves at least minLeaf rows on each side.
func bestSplit(x [][]float64, y []float64, idx []int, minLeaf, subspace int, rng *rand.Rand) (int, float64, bool) {
	n := len(x[0])
	features := rng.Perm(n)[:subspace]

	bestGini := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	for _, j := range features {
		values := make([]float64, 0, len(idx))
		for _, i := range idx {
			values = append(values, x[i][j])
		}
		sort.Float64s(values)

		for k := 1; k < len(values); k++ {
			if values[k] == values[k-1] {
				continue
			}
			threshold := (values[k] + values[k-1]) / 2

			var leftCount, leftPos, rightCount, rightPos float64
			for _, i := range idx {
				if x[i][j] <= threshold {
					leftCount++
					leftPos += y[i]
				} else {
					rightCount++
					rightPos += y[i]
				}
			}
			if leftCount < float64(minLeaf) || rightCount < float64(minLeaf) {
				continue
			}

			gini := leftCount*giniImpurity(leftPos/leftCount) + rightCount*giniImpurity(rightPos/rightCount)
			if gini < bestGini {
				bestGini = gini
				bestFeature = j
				bestThreshold = threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func giniImpurity(p float64) float64 {
	return 2 * p * (1 - p)
}

func meanLabel(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0.5
	}
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}
