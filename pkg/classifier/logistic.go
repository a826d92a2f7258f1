package classifier

import (
	"math"

	"github.com/Ramsey-B/fern/pkg/labelstore"
	"github.com/Ramsey-B/fern/pkg/models"
)

// LogisticConfig tunes the gradient-descent fit of the linear model.
type LogisticConfig struct {
	LearningRate float64
	Iterations   int
	L2Penalty    float64
}

// DefaultLogisticConfig returns the fit settings used in production.
func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{
		LearningRate: 0.5,
		Iterations:   500,
		L2Penalty:    0.001,
	}
}

// Logistic is a logistic regression over the base feature set. Each Fit call
// retrains from scratch on the full training table; the model is small enough
// that warm starts buy nothing.
type Logistic struct {
	config  LogisticConfig
	names   []string
	weights []float64
	bias    float64
	means   []float64
	scales  []float64
	fitted  bool
}

// NewLogistic creates an unfitted logistic model.
func NewLogistic(config LogisticConfig) *Logistic {
	return &Logistic{
		config: config,
		names:  baseFeatures,
	}
}

func (l *Logistic) Family() Family { return FamilyLinear }

func (l *Logistic) FeatureNames() []string { return l.names }

// Fit trains the model with batch gradient descent on standardized features.
func (l *Logistic) Fit(rows []labelstore.Row) error {
	if classCount(rows) < 2 {
		return ErrInsufficientLabels
	}

	x, y := featureMatrix(rows, l.names)
	l.means, l.scales = standardize(x)

	n := len(l.names)
	l.weights = make([]float64, n)
	l.bias = 0

	for iter := 0; iter < l.config.Iterations; iter++ {
		gradW := make([]float64, n)
		gradB := 0.0

		for i, xi := range x {
			p := sigmoid(l.score(xi))
			residual := p - y[i]
			for j := range xi {
				gradW[j] += residual * xi[j]
			}
			gradB += residual
		}

		scale := l.config.LearningRate / float64(len(x))
		for j := range l.weights {
			l.weights[j] -= scale * (gradW[j] + l.config.L2Penalty*l.weights[j])
		}
		l.bias -= scale * gradB
	}

	l.fitted = true
	return nil
}

// Predict returns the match probability for a feature vector. An unfitted
// model returns 0.5.
func (l *Logistic) Predict(features models.FeatureVector) float64 {
	if !l.fitted {
		return 0.5
	}

	xi := featureRow(features, l.names)
	for j := range xi {
		xi[j] = (xi[j] - l.means[j]) / l.scales[j]
	}
	return sigmoid(l.score(xi))
}

func (l *Logistic) score(xi []float64) float64 {
	s := l.bias
	for j, w := range l.weights {
		s += w * xi[j]
	}
	return s
}

func sigmoid(z float64) float64 {
	if z > 35 {
		return 1
	}
	if z < -35 {
		return 0
	}
	return 1 / (1 + math.Exp(-z))
}

// standardize centers and scales each column in place, returning the fitted
// means and scales. Constant columns keep scale 1 so they zero out.
func standardize(x [][]float64) (means, scales []float64) {
	if len(x) == 0 {
		return nil, nil
	}

	n := len(x[0])
	means = make([]float64, n)
	scales = make([]float64, n)

	for j := 0; j < n; j++ {
		var sum float64
		for i := range x {
			sum += x[i][j]
		}
		means[j] = sum / float64(len(x))

		var variance float64
		for i := range x {
			d := x[i][j] - means[j]
			variance += d * d
		}
		scales[j] = math.Sqrt(variance / float64(len(x)))
		if scales[j] == 0 {
			scales[j] = 1
		}

		for i := range x {
			x[i][j] = (x[i][j] - means[j]) / scales[j]
		}
	}

	return means, scales
}
