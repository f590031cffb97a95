package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/codeintel/internal/embedder"
	"github.com/dshills/codeintel/internal/retrieval"
	"github.com/dshills/codeintel/pkg/types"
)

// Config holds the codeintel configuration
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Index     IndexConfig     `yaml:"index"`
	HTTP      HTTPConfig      `yaml:"http"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json logfmt"`
}

// StorageConfig locates the relational and vector stores. Relative file
// names are resolved against DataDir.
type StorageConfig struct {
	DataDir         string `yaml:"data_dir" validate:"required"`
	DBFile          string `yaml:"db_file" validate:"required"`
	VectorDir       string `yaml:"vector_dir"`
	CompressVectors bool   `yaml:"compress_vectors"`
}

// EmbeddingConfig selects and tunes the embedding provider
type EmbeddingConfig struct {
	Provider      string        `yaml:"provider" validate:"oneof=jina openai local"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey        string        `yaml:"api_key"`
	Dimension     int           `yaml:"dimension" validate:"gte=0"`
	CacheSize     int           `yaml:"cache_size" validate:"gte=0"`
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
	RetryAttempts uint          `yaml:"retry_attempts" validate:"lte=10"`
	RateLimit     float64       `yaml:"rate_limit" validate:"gte=0"` // Requests per second, 0 disables pacing
}

// RetrievalConfig holds the engine parameters. Map keys are doc type and
// importance names.
type RetrievalConfig struct {
	Weights          map[string]float64       `yaml:"weights" validate:"dive,keys,oneof=code memory plan session,endkeys,gt=0"`
	ImportanceBoosts map[string]float64       `yaml:"importance_boosts" validate:"dive,keys,oneof=high medium low,endkeys,gte=0"`
	RecencyWindow    time.Duration            `yaml:"recency_window" validate:"gt=0"`
	MaxRecencyBoost  float64                  `yaml:"max_recency_boost" validate:"gte=0"`
	OverfetchFactor  int                      `yaml:"overfetch_factor" validate:"min=1,max=20"`
	SearcherTimeout  time.Duration            `yaml:"searcher_timeout" validate:"gt=0"`
	DocTypeTimeouts  map[string]time.Duration `yaml:"doc_type_timeouts" validate:"dive,keys,oneof=code memory plan session,endkeys,gt=0"`
	EmbedTimeout     time.Duration            `yaml:"embed_timeout" validate:"gt=0"`
	DefaultLimit     int                      `yaml:"default_limit" validate:"min=1,ltefield=MaxLimit"`
	MaxLimit         int                      `yaml:"max_limit" validate:"min=1,max=1000"`
}

// IndexConfig tunes code ingestion
type IndexConfig struct {
	Workers      int  `yaml:"workers" validate:"min=1,max=64"`
	IncludeTests bool `yaml:"include_tests"`
	BatchSize    int  `yaml:"batch_size" validate:"min=1,max=100"`
}

// HTTPConfig holds REST server settings
type HTTPConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required,startswith=/"`
}

// Default returns the stock configuration. Load decodes the file on top of it,
// so keys absent from the file keep these values.
func Default() Config {
	rc := retrieval.DefaultConfig()
	weights := make(map[string]float64, len(rc.Weights))
	for dt, w := range rc.Weights {
		weights[string(dt)] = w
	}
	boosts := make(map[string]float64, len(rc.ImportanceBoosts))
	for imp, b := range rc.ImportanceBoosts {
		boosts[string(imp)] = b
	}

	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{
			DataDir:   ".codeintel",
			DBFile:    "codeintel.db",
			VectorDir: "vectors",
		},
		Embedding: EmbeddingConfig{
			CacheSize:     1000,
			Timeout:       30 * time.Second,
			RetryAttempts: 3,
		},
		Retrieval: RetrievalConfig{
			Weights:          weights,
			ImportanceBoosts: boosts,
			RecencyWindow:    rc.RecencyWindow,
			MaxRecencyBoost:  rc.MaxRecencyBoost,
			OverfetchFactor:  rc.OverfetchFactor,
			SearcherTimeout:  rc.SearcherTimeout,
			EmbedTimeout:     rc.EmbedTimeout,
			DefaultLimit:     rc.DefaultLimit,
			MaxLimit:         rc.MaxLimit,
		},
		Index: IndexConfig{Workers: 4, BatchSize: 32, IncludeTests: true},
		HTTP: HTTPConfig{
			Addr:            ":8420",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load reads the YAML file at path, expands ${VAR} references, applies
// defaults and validates. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.ApplyDefaults()

	if err := ValidateWithDetails(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills empty fields and resolves the embedding provider from
// the environment when it is not set
func (c *Config) ApplyDefaults() {
	def := Default()

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}

	if c.Storage.DataDir == "" {
		c.Storage.DataDir = def.Storage.DataDir
	}
	if c.Storage.DBFile == "" {
		c.Storage.DBFile = def.Storage.DBFile
	}

	c.Embedding.Provider = embedder.DetectProvider(c.Embedding.Provider, os.Getenv("JINA_API_KEY"), os.Getenv("OPENAI_API_KEY"))
	if c.Embedding.APIKey == "" {
		switch c.Embedding.Provider {
		case embedder.ProviderJina:
			c.Embedding.APIKey = os.Getenv("JINA_API_KEY")
		case embedder.ProviderOpenAI:
			c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.Embedding.Timeout <= 0 {
		c.Embedding.Timeout = def.Embedding.Timeout
	}

	r := &c.Retrieval
	if r.Weights == nil {
		r.Weights = make(map[string]float64)
	}
	for k, v := range def.Retrieval.Weights {
		if _, ok := r.Weights[k]; !ok {
			r.Weights[k] = v
		}
	}
	if r.ImportanceBoosts == nil {
		r.ImportanceBoosts = make(map[string]float64)
	}
	for k, v := range def.Retrieval.ImportanceBoosts {
		if _, ok := r.ImportanceBoosts[k]; !ok {
			r.ImportanceBoosts[k] = v
		}
	}
	if r.RecencyWindow <= 0 {
		r.RecencyWindow = def.Retrieval.RecencyWindow
	}
	if r.OverfetchFactor <= 0 {
		r.OverfetchFactor = def.Retrieval.OverfetchFactor
	}
	if r.SearcherTimeout <= 0 {
		r.SearcherTimeout = def.Retrieval.SearcherTimeout
	}
	if r.EmbedTimeout <= 0 {
		r.EmbedTimeout = def.Retrieval.EmbedTimeout
	}
	if r.MaxLimit <= 0 {
		r.MaxLimit = def.Retrieval.MaxLimit
	}
	if r.DefaultLimit <= 0 {
		r.DefaultLimit = def.Retrieval.DefaultLimit
	}

	if c.Index.Workers <= 0 {
		c.Index.Workers = def.Index.Workers
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = def.Index.BatchSize
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = def.HTTP.ReadTimeout
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = def.HTTP.WriteTimeout
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = def.HTTP.ShutdownTimeout
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = def.Metrics.Path
	}
}

// DBPath returns the SQLite database path
func (c *Config) DBPath() string {
	return c.resolve(c.Storage.DBFile)
}

// VectorPath returns the vector store directory; empty keeps vectors in memory
func (c *Config) VectorPath() string {
	if c.Storage.VectorDir == "" {
		return ""
	}
	return c.resolve(c.Storage.VectorDir)
}

func (c *Config) resolve(name string) string {
	if name == ":memory:" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Storage.DataDir, name)
}

// EngineConfig converts the retrieval section to engine parameters
func (c *Config) EngineConfig() (retrieval.Config, error) {
	r := c.Retrieval
	out := retrieval.Config{
		Weights:          make(map[types.DocType]float64, len(r.Weights)),
		ImportanceBoosts: make(map[types.Importance]float64, len(r.ImportanceBoosts)),
		RecencyWindow:    r.RecencyWindow,
		MaxRecencyBoost:  r.MaxRecencyBoost,
		OverfetchFactor:  r.OverfetchFactor,
		SearcherTimeout:  r.SearcherTimeout,
		DocTypeTimeouts:  make(map[types.DocType]time.Duration, len(r.DocTypeTimeouts)),
		EmbedTimeout:     r.EmbedTimeout,
		DefaultLimit:     r.DefaultLimit,
		MaxLimit:         r.MaxLimit,
	}

	var errs []error
	for name, w := range r.Weights {
		dt, err := types.ParseDocType(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("retrieval.weights: %w", err))
			continue
		}
		out.Weights[dt] = w
	}
	for name, b := range r.ImportanceBoosts {
		imp, err := types.ParseImportance(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("retrieval.importance_boosts: %w", err))
			continue
		}
		out.ImportanceBoosts[imp] = b
	}
	for name, d := range r.DocTypeTimeouts {
		dt, err := types.ParseDocType(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("retrieval.doc_type_timeouts: %w", err))
			continue
		}
		out.DocTypeTimeouts[dt] = d
	}
	if err := errors.Join(errs...); err != nil {
		return retrieval.Config{}, err
	}
	return out, out.Validate()
}

// EmbedderConfig converts the embedding section
func (c *Config) EmbedderConfig() embedder.Config {
	e := c.Embedding
	return embedder.Config{
		Provider:          e.Provider,
		APIKey:            e.APIKey,
		BaseURL:           e.BaseURL,
		Model:             e.Model,
		Dimension:         e.Dimension,
		CacheSize:         e.CacheSize,
		Timeout:           e.Timeout,
		RetryAttempts:     e.RetryAttempts,
		RequestsPerSecond: e.RateLimit,
	}
}

// envVarRegex matches ${VAR} and ${VAR:-default}
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, fallback, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = fallback
		}
		return []byte(val)
	})
}
