package oracle

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

	"github.com/Ramsey-B/fern/pkg/embeddings"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resilience"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ClientConfig holds settings for the chat-completions oracle client.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxInFlight    int           // concurrent requests (default: 20)
	RequestTimeout time.Duration // per-request timeout (default: 60s)
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        "https://api.openai.com/v1",
		Model:          "gpt-4o-mini",
		MaxInFlight:    20,
		RequestTimeout: 60 * time.Second,
	}
}

// Client labels pairs by prompting a chat-completions model with a yes/no
// question per pair. Requests are issued concurrently, bounded by
// MaxInFlight; transient failures are retried with backoff.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	retry  resilience.RetryConfig
	logger ectologger.Logger
}

// NewClient creates a new oracle client.
func NewClient(cfg ClientConfig, logger ectologger.Logger) *Client {
	defaults := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaults.MaxInFlight
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}

	retry := resilience.DefaultRetryConfig()
	retry.Retryable = embeddings.IsRetryable

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		retry:  retry,
		logger: logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// LabelPairs labels each pair with a separate prompt. The returned slice has
// the same length and order as the input.
func (c *Client) LabelPairs(ctx context.Context, pairs []Pair, recordType string, instructions string) ([]models.Label, error) {
	ctx, span := tracing.StartSpan(ctx, "oracle.Client.LabelPairs")
	defer span.End()

	if len(pairs) == 0 {
		return nil, nil
	}

	labels := make([]models.Label, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxInFlight)

	for i, pair := range pairs {
		g.Go(func() error {
			label, err := c.labelPair(gctx, pair, recordType, instructions)
			if err != nil {
				return err
			}
			labels[i] = label
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"pair_count":  len(pairs),
		"record_type": recordType,
	}).Debug("Labeled pairs")

	return labels, nil
}

func (c *Client) labelPair(ctx context.Context, pair Pair, recordType string, instructions string) (models.Label, error) {
	prompt := fmt.Sprintf(
		"Do these two %s names refer to the same entity?\nA: %s\nB: %s\nAnswer with exactly one word: Yes or No.",
		recordType, pair.A, pair.B,
	)

	messages := []chatMessage{}
	if instructions != "" {
		messages = append(messages, chatMessage{Role: "system", Content: instructions})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	var raw string
	err := resilience.Retry(ctx, c.logger, "oracle.labelPair", c.retry, func() error {
		body, err := json.Marshal(chatRequest{
			Model:       c.cfg.Model,
			Messages:    messages,
			Temperature: 0,
			MaxTokens:   4,
		})
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
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
			return fmt.Errorf("%w: %v", embeddings.ErrServer, err)
		}
		defer resp.Body.Close()

		if err := statusToError(resp.StatusCode); err != nil {
			io.Copy(io.Discard, resp.Body)
			return err
		}

		var parsed chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", embeddings.ErrServer, err)
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("%w: response contained no choices", embeddings.ErrServer)
		}

		raw = parsed.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return models.LabelUnknown, err
	}

	return NormalizeResponse(raw), nil
}

func statusToError(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return embeddings.ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return embeddings.ErrUnauthorized
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: status %d", embeddings.ErrBadRequest, status)
	default:
		return fmt.Errorf("%w: status %d", embeddings.ErrServer, status)
	}
}
