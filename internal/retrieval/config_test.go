package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeintel/pkg/types"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing weight", func(c *Config) { delete(c.Weights, types.DocTypePlan) }},
		{"zero weight", func(c *Config) { c.Weights[types.DocTypeCode] = 0 }},
		{"negative weight", func(c *Config) { c.Weights[types.DocTypeSession] = -1 }},
		{"unknown doc type weight", func(c *Config) { c.Weights["wiki"] = 1 }},
		{"negative importance", func(c *Config) { c.ImportanceBoosts[types.ImportanceHigh] = -0.1 }},
		{"zero window", func(c *Config) { c.RecencyWindow = 0 }},
		{"negative recency", func(c *Config) { c.MaxRecencyBoost = -1 }},
		{"zero overfetch", func(c *Config) { c.OverfetchFactor = 0 }},
		{"zero searcher timeout", func(c *Config) { c.SearcherTimeout = 0 }},
		{"bad doc type timeout", func(c *Config) { c.DocTypeTimeouts = map[types.DocType]time.Duration{types.DocTypeCode: 0} }},
		{"zero embed timeout", func(c *Config) { c.EmbedTimeout = 0 }},
		{"zero default limit", func(c *Config) { c.DefaultLimit = 0 }},
		{"default above max", func(c *Config) { c.DefaultLimit = 300 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_EffectiveLimit(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 10, c.EffectiveLimit(0))
	assert.Equal(t, 10, c.EffectiveLimit(-3))
	assert.Equal(t, 7, c.EffectiveLimit(7))
	assert.Equal(t, 200, c.EffectiveLimit(200))
	assert.Equal(t, 200, c.EffectiveLimit(5000))
}

func TestConfig_TimeoutFor(t *testing.T) {
	c := DefaultConfig()
	c.DocTypeTimeouts = map[types.DocType]time.Duration{types.DocTypeMemory: 5 * time.Second}
	assert.Equal(t, 5*time.Second, c.TimeoutFor(types.DocTypeMemory))
	assert.Equal(t, c.SearcherTimeout, c.TimeoutFor(types.DocTypeCode))
}

func TestConfig_CloneIsIndependent(t *testing.T) {
	c := DefaultConfig()
	cp := c.clone()
	c.Weights[types.DocTypeCode] = 9
	assert.Equal(t, 1.0, cp.Weights[types.DocTypeCode])
}
