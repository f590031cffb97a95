package embedder

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Config holds embedder configuration
type Config struct {
	Provider          string
	APIKey            string
	BaseURL           string
	Model             string
	Dimension         int
	CacheSize         int
	Timeout           time.Duration
	RetryAttempts     uint
	RequestsPerSecond float64
}

// New creates an embedder with explicit configuration. A positive CacheSize
// wraps the provider in an LRU cache.
func New(cfg Config, logger *log.Logger) (Embedder, error) {
	var base Embedder

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case ProviderJina, ProviderOpenAI:
		remote := RemoteConfig{
			Provider:          provider,
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimension:         cfg.Dimension,
			Timeout:           cfg.Timeout,
			RetryAttempts:     cfg.RetryAttempts,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Logger:            logger,
		}
		applyProviderDefaults(&remote)
		p, err := NewRemoteProvider(remote)
		if err != nil {
			return nil, err
		}
		base = p
	case ProviderLocal:
		base = NewLocalProvider(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}

	logger.Info("Embedding provider ready",
		"provider", base.Provider(),
		"model", base.Model(),
		"dimension", base.Dimension(),
		"cache_size", cfg.CacheSize)

	if cfg.CacheSize > 0 {
		return WithCache(base, NewCache(cfg.CacheSize)), nil
	}
	return base, nil
}

func applyProviderDefaults(c *RemoteConfig) {
	switch c.Provider {
	case ProviderJina:
		if c.BaseURL == "" {
			c.BaseURL = DefaultJinaBaseURL
		}
		if c.Model == "" {
			c.Model = DefaultJinaModel
			if c.Dimension == 0 {
				c.Dimension = JinaDimension
			}
		}
	case ProviderOpenAI:
		if c.BaseURL == "" {
			c.BaseURL = DefaultOpenAIBaseURL
		}
		if c.Model == "" {
			c.Model = DefaultOpenAIModel
			if c.Dimension == 0 {
				c.Dimension = OpenAIDimension
			}
		}
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
}

// DetectProvider picks a provider: an explicit name wins, then whichever
// API key is present, falling back to local
func DetectProvider(explicit, jinaKey, openaiKey string) string {
	if p := strings.ToLower(strings.TrimSpace(explicit)); p != "" {
		return p
	}
	if jinaKey != "" {
		return ProviderJina
	}
	if openaiKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
