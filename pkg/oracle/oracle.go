// Package oracle provides the external match/no-match decision source used
// to label candidate pairs.
package oracle

import (
	"context"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Pair is one item pair submitted for labeling.
type Pair struct {
	A string
	B string
}

// Oracle labels item pairs as match / non-match. The returned slice has the
// same length and order as the input. A pair whose response cannot be
// confidently normalized is labeled Unknown; that is not an error, but the
// label must not be treated as confirmed.
type Oracle interface {
	LabelPairs(ctx context.Context, pairs []Pair, recordType string, instructions string) ([]models.Label, error)
}

// NormalizeResponse maps a raw oracle response to a label. Only an
// unambiguous leading yes/no is accepted; everything else is Unknown.
func NormalizeResponse(raw string) models.Label {
	text := strings.ToLower(strings.TrimSpace(raw))
	text = strings.Trim(text, ".!\"'")

	switch {
	case text == "yes" || strings.HasPrefix(text, "yes,") || strings.HasPrefix(text, "yes "):
		return models.LabelMatch
	case text == "no" || strings.HasPrefix(text, "no,") || strings.HasPrefix(text, "no "):
		return models.LabelNonMatch
	default:
		return models.LabelUnknown
	}
}
