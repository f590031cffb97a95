package embedder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// fakeEmbeddingsAPI serves /v1/embeddings; fail decides per call whether to
// answer with an error status
func fakeEmbeddingsAPI(t *testing.T, dim int, fail func(call int64) int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if status := fail(n); status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
			return
		}

		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Reply in reverse order to check index sorting
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dim)
			vec[i%dim] = 2
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": vec})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestRemote(t *testing.T, baseURL string, dim int) *RemoteProvider {
	t.Helper()
	p, err := NewRemoteProvider(RemoteConfig{
		Provider:      ProviderJina,
		APIKey:        "test-key",
		BaseURL:       baseURL + "/v1",
		Model:         "test-model",
		Dimension:     dim,
		Timeout:       5 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		Logger:        log.New(io.Discard),
	})
	require.NoError(t, err)
	return p
}

func TestRemoteProvider_Embed(t *testing.T) {
	srv, calls := fakeEmbeddingsAPI(t, 8, func(int64) int { return 0 })
	p := newTestRemote(t, srv.URL, 8)

	v, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, v, 8)
	assert.InDelta(t, 1.0, float64(v[0]), 1e-6, "normalized")
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, "test-model", p.Model())
	assert.Equal(t, ProviderJina, p.Provider())
}

func TestRemoteProvider_BatchOrderAndSplit(t *testing.T) {
	srv, calls := fakeEmbeddingsAPI(t, 4, func(int64) int { return 0 })
	p := newTestRemote(t, srv.URL, 4)

	texts := make([]string, MaxBatchSize+3)
	for i := range texts {
		texts[i] = "text"
	}
	vectors, err := p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	assert.Equal(t, int64(2), calls.Load())

	// Position i within each call got a one-hot at i%4
	assert.InDelta(t, 1.0, float64(vectors[1][1]), 1e-6)
	assert.InDelta(t, 1.0, float64(vectors[MaxBatchSize+2][2]), 1e-6)
}

func TestRemoteProvider_RetriesServerErrors(t *testing.T) {
	srv, calls := fakeEmbeddingsAPI(t, 4, func(n int64) int {
		if n < 3 {
			return http.StatusServiceUnavailable
		}
		return 0
	})
	p := newTestRemote(t, srv.URL, 4)

	_, err := p.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load())
}

func TestRemoteProvider_DoesNotRetryClientErrors(t *testing.T) {
	srv, calls := fakeEmbeddingsAPI(t, 4, func(int64) int { return http.StatusUnauthorized })
	p := newTestRemote(t, srv.URL, 4)

	_, err := p.Embed(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int64(1), calls.Load())
}

func TestRemoteProvider_GivesUpAfterAttempts(t *testing.T) {
	srv, calls := fakeEmbeddingsAPI(t, 4, func(int64) int { return http.StatusInternalServerError })
	p := newTestRemote(t, srv.URL, 4)

	_, err := p.Embed(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int64(3), calls.Load())
}

func TestRemoteProvider_DimensionMismatch(t *testing.T) {
	srv, calls := fakeEmbeddingsAPI(t, 4, func(int64) int { return 0 })
	p := newTestRemote(t, srv.URL, 16)

	_, err := p.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, int64(1), calls.Load(), "mismatch is not retried")
}

func TestRemoteConfig_Validate(t *testing.T) {
	base := RemoteConfig{Provider: ProviderOpenAI, APIKey: "k", BaseURL: "http://x", Model: "m", RetryAttempts: 1, Logger: log.New(io.Discard)}
	assert.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*RemoteConfig)
	}{
		{"no key", func(c *RemoteConfig) { c.APIKey = "" }},
		{"no model", func(c *RemoteConfig) { c.Model = "" }},
		{"no url", func(c *RemoteConfig) { c.BaseURL = "" }},
		{"no attempts", func(c *RemoteConfig) { c.RetryAttempts = 0 }},
		{"no logger", func(c *RemoteConfig) { c.Logger = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
