// Package embeddings provides the vector embedding provider used by the
// similarity feature builder.
package embeddings

import (
	"context"
	"errors"
	"math"
)

// Provider errors. RateLimited and ServerError are transient; the client
// retries them with backoff. Unauthorized and BadRequest abort the run.
var (
	ErrRateLimited  = errors.New("embedding provider rate limited")
	ErrUnauthorized = errors.New("embedding provider unauthorized")
	ErrBadRequest   = errors.New("embedding provider rejected request")
	ErrServer       = errors.New("embedding provider server error")
)

// Provider returns one embedding vector per input string, in input order.
type Provider interface {
	Embed(ctx context.Context, inputs []string) ([][]float64, error)
}

// IsRetryable reports whether a provider error is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer)
}

// Normalize scales a vector to unit L2 norm in place. Zero vectors are left
// unchanged.
func Normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
