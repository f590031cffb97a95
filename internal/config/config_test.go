package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeintel/pkg/types"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JINA_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codeintel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearProviderEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 10, cfg.Retrieval.DefaultLimit)
	assert.Equal(t, 200, cfg.Retrieval.MaxLimit)
	assert.Equal(t, 1.0, cfg.Retrieval.Weights["code"])
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, filepath.Join(".codeintel", "codeintel.db"), cfg.DBPath())
}

func TestLoad_File(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("CODEINTEL_TEST_DIR", "/var/lib/codeintel")

	path := writeConfig(t, `
log:
  level: DEBUG
storage:
  data_dir: ${CODEINTEL_TEST_DIR}
  vector_dir: ${CODEINTEL_TEST_VECTORS:-vec}
embedding:
  provider: local
  dimension: 64
  timeout: 5s
retrieval:
  weights:
    memory: 1.2
  doc_type_timeouts:
    session: 750ms
  searcher_timeout: 2s
  default_limit: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/lib/codeintel", cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join("/var/lib/codeintel", "vec"), cfg.VectorPath())
	assert.Equal(t, 64, cfg.Embedding.Dimension)
	assert.Equal(t, 5*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 1.2, cfg.Retrieval.Weights["memory"])
	assert.Equal(t, 1.0, cfg.Retrieval.Weights["code"], "unset weights keep defaults")
	assert.Equal(t, 5, cfg.Retrieval.DefaultLimit)
	assert.Equal(t, 200, cfg.Retrieval.MaxLimit)
}

func TestLoad_ExampleFile(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("CODEINTEL_DATA_DIR", "")
	t.Setenv("CODEINTEL_EMBEDDING_PROVIDER", "")

	cfg, err := Load(filepath.Join("..", "..", "codeintel.example.yaml"))
	require.NoError(t, err)

	def := Default()
	def.ApplyDefaults()
	assert.Equal(t, def.Retrieval.Weights, cfg.Retrieval.Weights)
	assert.Equal(t, def.Retrieval.RecencyWindow, cfg.Retrieval.RecencyWindow)
	assert.Equal(t, def.HTTP, cfg.HTTP)
	assert.Equal(t, ".codeintel", cfg.Storage.DataDir)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 5*time.Second, cfg.Retrieval.DocTypeTimeouts["memory"])

	engineCfg, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, engineCfg.TimeoutFor(types.DocTypeMemory))
	assert.Equal(t, 3*time.Second, engineCfg.TimeoutFor(types.DocTypeCode))
}

func TestLoad_ProviderDetection(t *testing.T) {
	tests := []struct {
		name       string
		jina       string
		openai     string
		file       string
		wantName   string
		wantAPIKey string
	}{
		{"no keys", "", "", "", "local", ""},
		{"jina key", "jk", "", "", "jina", "jk"},
		{"openai key", "", "ok", "", "openai", "ok"},
		{"jina wins", "jk", "ok", "", "jina", "jk"},
		{"explicit provider", "jk", "ok", "embedding:\n  provider: openai\n", "openai", "ok"},
		{"explicit key", "", "", "embedding:\n  provider: jina\n  api_key: from-file\n", "jina", "from-file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JINA_API_KEY", tt.jina)
			t.Setenv("OPENAI_API_KEY", tt.openai)

			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, cfg.Embedding.Provider)
			assert.Equal(t, tt.wantAPIKey, cfg.Embedding.APIKey)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	clearProviderEnv(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "log: [unterminated"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config")
	})

	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"unknown provider", "embedding:\n  provider: cohere\n", "Embedding.Provider"},
		{"bad log level", "log:\n  level: loud\n", "Log.Level"},
		{"zero weight", "retrieval:\n  weights:\n    code: 0\n", "Retrieval.Weights"},
		{"unknown doc type weight", "retrieval:\n  weights:\n    wiki: 1\n", "Retrieval.Weights"},
		{"negative boost", "retrieval:\n  importance_boosts:\n    high: -1\n", "Retrieval.ImportanceBoosts"},
		{"default above max", "retrieval:\n  default_limit: 50\n  max_limit: 20\n", "Retrieval.DefaultLimit"},
		{"bad base url", "embedding:\n  base_url: not a url\n", "Embedding.BaseURL"},
		{"metrics path", "metrics:\n  path: metrics\n", "Metrics.Path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %T: %v", err, err)
			require.NotEmpty(t, verrs)
			assert.Contains(t, verrs[0].Field, tt.field)
			assert.Contains(t, err.Error(), "configuration validation failed")
		})
	}
}

func TestConfig_EngineConfig(t *testing.T) {
	clearProviderEnv(t)
	path := writeConfig(t, `
retrieval:
  weights:
    memory: 1.2
  doc_type_timeouts:
    session: 750ms
  max_recency_boost: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	rc, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, 1.2, rc.Weights[types.DocTypeMemory])
	assert.Equal(t, 1.0, rc.Weights[types.DocTypeCode])
	assert.Equal(t, 0.15, rc.ImportanceBoosts[types.ImportanceHigh])
	assert.Equal(t, 750*time.Millisecond, rc.TimeoutFor(types.DocTypeSession))
	assert.Equal(t, 3*time.Second, rc.TimeoutFor(types.DocTypeCode))
	assert.Zero(t, rc.MaxRecencyBoost)
}

func TestConfig_EmbedderConfig(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKey = "k"
	cfg.Embedding.RateLimit = 2.5

	ec := cfg.EmbedderConfig()
	assert.Equal(t, "openai", ec.Provider)
	assert.Equal(t, "k", ec.APIKey)
	assert.Equal(t, 2.5, ec.RequestsPerSecond)
	assert.Equal(t, 1000, ec.CacheSize)
	assert.Equal(t, uint(3), ec.RetryAttempts)
}

func TestConfig_Paths(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/data"

	assert.Equal(t, "/data/codeintel.db", cfg.DBPath())
	assert.Equal(t, "/data/vectors", cfg.VectorPath())

	cfg.Storage.DBFile = ":memory:"
	cfg.Storage.VectorDir = ""
	assert.Equal(t, ":memory:", cfg.DBPath())
	assert.Equal(t, "", cfg.VectorPath())

	cfg.Storage.DBFile = "/elsewhere/x.db"
	assert.Equal(t, "/elsewhere/x.db", cfg.DBPath())
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("CI_SET", "value")
	t.Setenv("CI_EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{"key: ${CI_SET}", "key: value"},
		{"key: ${CI_EMPTY:-fallback}", "key: fallback"},
		{"key: ${CI_UNSET_VAR:-fallback}", "key: fallback"},
		{"key: ${CI_UNSET_VAR}", "key: "},
		{"key: ${CI_SET:-ignored}", "key: value"},
		{"key: $CI_SET", "key: $CI_SET"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, string(expandEnvVars([]byte(tt.in))))
		})
	}
}
