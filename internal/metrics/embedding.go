package metrics

import (
	"context"
	"time"

	"github.com/dshills/codeintel/internal/embedder"
)

// instrumentedEmbedder counts and times calls to the wrapped embedder
type instrumentedEmbedder struct {
	embedder.Embedder
	m *Metrics
}

// InstrumentEmbedder wraps e so every Embed and EmbedBatch call is recorded
// under codeintel_embedding_requests_total{provider,status}
func (m *Metrics) InstrumentEmbedder(e embedder.Embedder) embedder.Embedder {
	return &instrumentedEmbedder{Embedder: e, m: m}
}

func (i *instrumentedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	v, err := i.Embedder.Embed(ctx, text)
	i.observe(start, err)
	return v, err
}

func (i *instrumentedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	v, err := i.Embedder.EmbedBatch(ctx, texts)
	i.observe(start, err)
	return v, err
}

func (i *instrumentedEmbedder) observe(start time.Time, err error) {
	provider := i.Provider()
	status := "success"
	if err != nil {
		status = "error"
	}
	i.m.embeddingRequests.WithLabelValues(provider, status).Inc()
	i.m.embeddingDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
