package embedder

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger := log.New(io.Discard)

	e, err := New(Config{Provider: "LOCAL", Dimension: 32}, logger)
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, e.Provider())
	assert.Equal(t, 32, e.Dimension())

	cached, err := New(Config{Provider: "local", CacheSize: 10}, logger)
	require.NoError(t, err)
	_, ok := cached.(*cachedEmbedder)
	assert.True(t, ok)

	_, err = New(Config{Provider: "bogus"}, logger)
	assert.ErrorIs(t, err, ErrUnsupportedModel)

	_, err = New(Config{Provider: "openai"}, logger)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	jina, err := New(Config{Provider: "jina", APIKey: "k"}, logger)
	require.NoError(t, err)
	assert.Equal(t, DefaultJinaModel, jina.Model())
	assert.Equal(t, JinaDimension, jina.Dimension())

	custom, err := New(Config{Provider: "openai", APIKey: "k", Model: "text-embedding-3-large"}, logger)
	require.NoError(t, err)
	assert.Equal(t, 0, custom.Dimension(), "custom models accept any dimension")
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name      string
		explicit  string
		jina      string
		openaiKey string
		want      string
	}{
		{"explicit wins", "OpenAI", "j", "", "openai"},
		{"jina key", "", "j", "o", ProviderJina},
		{"openai key", "", "", "o", ProviderOpenAI},
		{"fallback", "", "", "", ProviderLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectProvider(tt.explicit, tt.jina, tt.openaiKey))
		})
	}
}
