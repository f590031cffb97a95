package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default endpoints; Jina serves an OpenAI-compatible embeddings API
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultJinaBaseURL   = "https://api.jina.ai/v1"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// MaxBatchSize is the most texts sent in one API call
	MaxBatchSize = 100
)

// RemoteConfig configures an OpenAI-compatible embedding provider
type RemoteConfig struct {
	Provider          string
	APIKey            string
	BaseURL           string
	Model             string
	Dimension         int // Expected vector length; 0 accepts whatever the API returns
	Timeout           time.Duration
	RetryAttempts     uint
	RetryDelay        time.Duration
	RequestsPerSecond float64 // 0 disables pacing
	Logger            *log.Logger
}

// Validate checks required fields
func (c RemoteConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: %s api key is required", ErrNoProviderEnabled, c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	if c.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts must be greater than 0")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// RemoteProvider implements Embedder against an OpenAI-compatible API
type RemoteProvider struct {
	config  RemoteConfig
	client  *openai.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewRemoteProvider creates a remote embedder
func NewRemoteProvider(config RemoteConfig) (*RemoteProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 100 * time.Millisecond
	}

	cfg := openai.DefaultConfig(config.APIKey)
	cfg.BaseURL = config.BaseURL
	cfg.HTTPClient = &http.Client{Timeout: config.Timeout}

	p := &RemoteProvider{
		config: config,
		client: openai.NewClientWithConfig(cfg),
		logger: config.Logger,
	}
	if config.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return p, nil
}

// NewOpenAIProvider creates an embedder for the OpenAI API
func NewOpenAIProvider(apiKey string, logger *log.Logger) (*RemoteProvider, error) {
	return NewRemoteProvider(RemoteConfig{
		Provider:      ProviderOpenAI,
		APIKey:        apiKey,
		BaseURL:       DefaultOpenAIBaseURL,
		Model:         DefaultOpenAIModel,
		Dimension:     OpenAIDimension,
		RetryAttempts: 3,
		Logger:        logger,
	})
}

// NewJinaProvider creates an embedder for the Jina AI API
func NewJinaProvider(apiKey string, logger *log.Logger) (*RemoteProvider, error) {
	return NewRemoteProvider(RemoteConfig{
		Provider:      ProviderJina,
		APIKey:        apiKey,
		BaseURL:       DefaultJinaBaseURL,
		Model:         DefaultJinaModel,
		Dimension:     JinaDimension,
		RetryAttempts: 3,
		Logger:        logger,
	})
}

func (p *RemoteProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *RemoteProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := p.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (p *RemoteProvider) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := retry.DoWithData(
		func() ([][]float32, error) {
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					return nil, retry.Unrecoverable(err)
				}
			}
			return p.callAPI(ctx, texts)
		},
		retry.Context(ctx),
		retry.Attempts(p.config.RetryAttempts),
		retry.Delay(p.config.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("Retrying embedding request",
				"provider", p.config.Provider,
				"attempt", n+1,
				"max_attempts", p.config.RetryAttempts,
				"error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, p.config.Provider, err)
	}
	return vectors, nil
}

func (p *RemoteProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	t := time.Now()
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(p.config.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		if p.config.Dimension > 0 && len(d.Embedding) != p.config.Dimension {
			return nil, retry.Unrecoverable(fmt.Errorf("%w: want %d, got %d",
				ErrDimensionMismatch, p.config.Dimension, len(d.Embedding)))
		}
		vectors[i] = NormalizeVector(d.Embedding)
	}

	p.logger.Debug("Generated embeddings",
		"provider", p.config.Provider,
		"model", p.config.Model,
		"count", len(texts),
		"duration", time.Since(t))
	return vectors, nil
}

// isRetryable retries transport failures, rate limiting and server errors
func isRetryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == 0 {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

func (p *RemoteProvider) Dimension() int {
	return p.config.Dimension
}

func (p *RemoteProvider) Provider() string {
	return p.config.Provider
}

func (p *RemoteProvider) Model() string {
	return p.config.Model
}

func (p *RemoteProvider) Close() error {
	return nil
}
