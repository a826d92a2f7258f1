package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/embeddings"
	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestNormalizeResponse(t *testing.T) {
	t.Run("Matches", func(t *testing.T) {
		for _, raw := range []string{
			"Yes",
			"yes",
			"YES",
			"Yes.",
			"yes!",
			"  yes  ",
			"Yes, they match",
			"yes they refer to the same company",
		} {
			assert.Equal(t, models.LabelMatch, NormalizeResponse(raw), "raw: %q", raw)
		}
	})

	t.Run("NonMatches", func(t *testing.T) {
		for _, raw := range []string{
			"No",
			"no",
			"No.",
			"no, different entities",
			"No they are not the same",
		} {
			assert.Equal(t, models.LabelNonMatch, NormalizeResponse(raw), "raw: %q", raw)
		}
	})

	t.Run("AmbiguousIsUnknown", func(t *testing.T) {
		for _, raw := range []string{
			"",
			"maybe",
			"I think so",
			"It is not possible to tell",
			"noise",       // leading "no" only counts as a whole word
			"yesterday",   // same for "yes"
			"Probably no", // verdict must lead
		} {
			assert.Equal(t, models.LabelUnknown, NormalizeResponse(raw), "raw: %q", raw)
		}
	})
}

func TestClientDefaults(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "test"}, testLogger())

	assert.Equal(t, "https://api.openai.com/v1", client.cfg.BaseURL)
	assert.Equal(t, "gpt-4o-mini", client.cfg.Model)
	assert.Equal(t, 20, client.cfg.MaxInFlight)
}

// fastClient shrinks the backoff schedule so retry paths finish in
// milliseconds.
func fastClient(cfg ClientConfig) *Client {
	client := NewClient(cfg, testLogger())
	client.retry.InitialDelay = time.Millisecond
	client.retry.MaxDelay = 2 * time.Millisecond
	return client
}

func TestLabelPairs(t *testing.T) {
	t.Run("EmptyInputReturnsNil", func(t *testing.T) {
		client := fastClient(ClientConfig{BaseURL: "http://unused", APIKey: "test"})

		labels, err := client.LabelPairs(context.Background(), nil, "company", "")
		require.NoError(t, err)
		assert.Nil(t, labels)
	})

	t.Run("LabelsFollowPairOrder", func(t *testing.T) {
		// The server answers Yes only when both names in the prompt mention
		// acme, so each pair gets a distinct, predictable verdict.
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotEmpty(t, req.Messages)

			prompt := req.Messages[len(req.Messages)-1].Content
			verdict := "No"
			if strings.Count(prompt, "acme") >= 2 {
				verdict = "Yes"
			}
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": chatMessage{Role: "assistant", Content: verdict}},
				},
			})
		}))
		defer server.Close()

		client := fastClient(ClientConfig{BaseURL: server.URL, APIKey: "test", MaxInFlight: 2})

		labels, err := client.LabelPairs(context.Background(), []Pair{
			{A: "acme co", B: "acme corporation"},
			{A: "acme co", B: "globex"},
			{A: "acme industries", B: "acme inc"},
		}, "company", "")
		require.NoError(t, err)
		assert.Equal(t, []models.Label{models.LabelMatch, models.LabelNonMatch, models.LabelMatch}, labels)
	})

	t.Run("InstructionsBecomeSystemMessage", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Messages, 2)
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "match conservatively", req.Messages[0].Content)

			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": chatMessage{Role: "assistant", Content: "No"}},
				},
			})
		}))
		defer server.Close()

		client := fastClient(ClientConfig{BaseURL: server.URL, APIKey: "test"})

		labels, err := client.LabelPairs(context.Background(), []Pair{{A: "a", B: "b"}}, "company", "match conservatively")
		require.NoError(t, err)
		assert.Equal(t, []models.Label{models.LabelNonMatch}, labels)
	})

	t.Run("UnauthorizedStopsWithoutRetry", func(t *testing.T) {
		var requests atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		client := fastClient(ClientConfig{BaseURL: server.URL, APIKey: "bad"})

		_, err := client.LabelPairs(context.Background(), []Pair{{A: "a", B: "b"}}, "company", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, embeddings.ErrUnauthorized)
		assert.Equal(t, int32(1), requests.Load())
	})

	t.Run("CancelledContextIsNotRetried", func(t *testing.T) {
		var requests atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
		}))
		defer server.Close()

		client := fastClient(ClientConfig{BaseURL: server.URL, APIKey: "test"})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.LabelPairs(ctx, []Pair{{A: "a", B: "b"}}, "company", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, embeddings.ErrServer)
		assert.Equal(t, int32(0), requests.Load())
	})
}
