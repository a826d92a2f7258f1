// Package classifier provides the pluggable binary probability models that
// score candidate pairs.
package classifier

import (
	"errors"

	"github.com/Ramsey-B/fern/pkg/labelstore"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/similarity"
)

// ErrInsufficientLabels is returned by Fit when the training rows contain
// fewer than two distinct label classes. The caller must seed more labels
// before fitting.
var ErrInsufficientLabels = errors.New("training rows must contain both match and non-match labels")

// Family identifies a classifier model family.
type Family string

const (
	FamilyLinear   Family = "linear"
	FamilyEnsemble Family = "ensemble"
)

// Classifier is a binary probability model over pair features. Fit replaces
// the previous model state entirely; Predict returns a match probability in
// [0,1] from the most recent fit.
type Classifier interface {
	Fit(rows []labelstore.Row) error
	Predict(features models.FeatureVector) float64
	Family() Family
	FeatureNames() []string
}

// New returns a fresh classifier of the requested family. The linear model
// scores the base feature set; the ensemble scores the extended lexical
// feature set.
func New(family Family) Classifier {
	switch family {
	case FamilyEnsemble:
		return NewForest(DefaultForestConfig())
	default:
		return NewLogistic(DefaultLogisticConfig())
	}
}

// featureMatrix extracts an ordered feature matrix and label vector from
// training rows.
func featureMatrix(rows []labelstore.Row, names []string) ([][]float64, []float64) {
	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, row := range rows {
		x[i] = featureRow(row.Features, names)
		if row.Label == models.LabelMatch {
			y[i] = 1
		}
	}
	return x, y
}

func featureRow(features models.FeatureVector, names []string) []float64 {
	row := make([]float64, len(names))
	for j, name := range names {
		row[j] = features[name]
	}
	return row
}

func classCount(rows []labelstore.Row) int {
	var hasMatch, hasNonMatch bool
	for _, row := range rows {
		switch row.Label {
		case models.LabelMatch:
			hasMatch = true
		case models.LabelNonMatch:
			hasNonMatch = true
		}
	}
	count := 0
	if hasMatch {
		count++
	}
	if hasNonMatch {
		count++
	}
	return count
}

var (
	baseFeatures     = similarity.BaseFeatures
	extendedFeatures = similarity.ExtendedFeatures
)
