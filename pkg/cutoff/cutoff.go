// Package cutoff selects the probability threshold that separates matches
// from non-matches once the classifier has converged.
package cutoff

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Result is the outcome of a cutoff search. Undefined is set when the pair
// universe holds zero confirmed matches, in which case every expected F1 is
// 0/0 and no threshold is trustworthy. Callers must branch on Undefined
// instead of consuming Cutoff.
type Result struct {
	Cutoff     float64
	ExpectedF1 float64
	Precision  float64
	Recall     float64
	Undefined  bool
}

// Select computes the expected-F1-maximizing probability cutoff over the
// scored pair universe.
//
// The estimator mixes confirmed and probabilistic evidence: confirmed Match
// rows always count as true positives (the final filter keeps them at any
// threshold) and confirmed NonMatch rows never count at all. An unlabeled
// row at probability p contributes p expected true positives and 1-p
// expected false positives when it sits at or above the cutoff, and p
// expected false negatives when it falls below.
//
// Select is a pure function of its input: re-running it on an unchanged
// snapshot returns the identical result.
func Select(pairs []*models.CandidatePair) Result {
	confirmedMatches := 0
	unlabeled := make([]float64, 0, len(pairs))

	for _, pair := range pairs {
		switch {
		case pair.Label == models.LabelMatch:
			confirmedMatches++
		case pair.Label.Confirmed():
			// Confirmed non-matches are excluded by the final filter
			// regardless of cutoff.
		default:
			unlabeled = append(unlabeled, pair.Probability)
		}
	}

	if confirmedMatches == 0 {
		return Result{Undefined: true}
	}

	best := Result{Cutoff: -1, ExpectedF1: -1}
	for _, candidate := range candidateCutoffs(unlabeled) {
		r := evaluate(candidate, float64(confirmedMatches), unlabeled)
		if r.ExpectedF1 > best.ExpectedF1 {
			best = r
		}
	}

	return best
}

func evaluate(cutoff, baseTP float64, unlabeled []float64) Result {
	tp := baseTP
	var fp, fn float64

	for _, p := range unlabeled {
		if p >= cutoff {
			tp += p
			fp += 1 - p
		} else {
			fn += p
		}
	}

	precision := tp / (tp + fp)
	recall := tp / (tp + fn)

	r := Result{Cutoff: cutoff, Precision: precision, Recall: recall}
	if precision+recall > 0 {
		r.ExpectedF1 = 2 * precision * recall / (precision + recall)
	}
	return r
}

// candidateCutoffs returns the sorted distinct unlabeled probabilities plus
// the two boundary thresholds. Sorted ascending so equal-F1 ties resolve to
// the lowest cutoff deterministically.
func candidateCutoffs(unlabeled []float64) []float64 {
	seen := map[float64]struct{}{0: {}, 1: {}}
	for _, p := range unlabeled {
		seen[p] = struct{}{}
	}

	candidates := make([]float64, 0, len(seen))
	for p := range seen {
		candidates = append(candidates, p)
	}
	sort.Float64s(candidates)
	return candidates
}
