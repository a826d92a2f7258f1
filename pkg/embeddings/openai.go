package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/fern/pkg/resilience"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ClientConfig holds settings for the OpenAI-compatible embedding client.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	BatchSize      int           // inputs per request (default: 512)
	MaxInFlight    int           // concurrent requests (default: 20)
	RequestTimeout time.Duration // per-request timeout (default: 60s)
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        "https://api.openai.com/v1",
		Model:          "text-embedding-3-small",
		BatchSize:      512,
		MaxInFlight:    20,
		RequestTimeout: 60 * time.Second,
	}
}

// Client is an OpenAI-compatible embedding provider. Inputs are split into
// batches issued concurrently, bounded by MaxInFlight; transient failures
// are retried with backoff inside each batch request.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	retry  resilience.RetryConfig
	logger ectologger.Logger
}

// NewClient creates a new embedding client.
func NewClient(cfg ClientConfig, logger ectologger.Logger) *Client {
	defaults := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaults.MaxInFlight
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}

	retry := resilience.DefaultRetryConfig()
	retry.Retryable = IsRetryable

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		retry:  retry,
		logger: logger,
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one L2-normalized vector per input, in input order.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	ctx, span := tracing.StartSpan(ctx, "embeddings.Client.Embed")
	defer span.End()

	if len(inputs) == 0 {
		return nil, nil
	}

	vectors := make([][]float64, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxInFlight)

	for start := 0; start < len(inputs); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(inputs))
		batch := inputs[start:end]
		offset := start

		g.Go(func() error {
			rows, err := c.embedBatch(gctx, batch)
			if err != nil {
				return err
			}
			for i, row := range rows {
				Normalize(row)
				vectors[offset+i] = row
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"input_count": len(inputs),
		"model":       c.cfg.Model,
	}).Debug("Embedded inputs")

	return vectors, nil
}

// embedBatch issues a single embeddings request, retrying transient failures.
func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float64, error) {
	var rows [][]float64

	err := resilience.Retry(ctx, c.logger, "embeddings.embedBatch", c.retry, func() error {
		body, err := json.Marshal(embeddingRequest{Model: c.cfg.Model, Input: batch})
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrServer, err)
		}
		defer resp.Body.Close()

		if err := statusToError(resp.StatusCode); err != nil {
			io.Copy(io.Discard, resp.Body)
			return err
		}

		var parsed embeddingResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", ErrServer, err)
		}
		if len(parsed.Data) != len(batch) {
			return fmt.Errorf("%w: expected %d embeddings, got %d", ErrServer, len(batch), len(parsed.Data))
		}

		rows = make([][]float64, len(batch))
		for _, item := range parsed.Data {
			if item.Index < 0 || item.Index >= len(rows) {
				return fmt.Errorf("%w: embedding index %d out of range", ErrServer, item.Index)
			}
			rows[item.Index] = item.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func statusToError(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: status %d", ErrBadRequest, status)
	default:
		return fmt.Errorf("%w: status %d", ErrServer, status)
	}
}
