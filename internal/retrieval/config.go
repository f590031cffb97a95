package retrieval

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dshills/codeintel/pkg/types"
)

// Config holds the engine parameters. The engine copies it at construction;
// changing parameters means building a new engine.
type Config struct {
	// Weights multiplies raw similarity per doc type; every value must be positive
	Weights map[types.DocType]float64

	// ImportanceBoosts are the per-tier addends for memory and plan hits
	ImportanceBoosts map[types.Importance]float64

	// RecencyWindow is the age at which the recency boost reaches zero
	RecencyWindow time.Duration
	// MaxRecencyBoost is the boost for an item created just now
	MaxRecencyBoost float64

	// OverfetchFactor multiplies the limit for each searcher
	OverfetchFactor int

	// SearcherTimeout bounds each searcher; DocTypeTimeouts overrides it per type
	SearcherTimeout time.Duration
	DocTypeTimeouts map[types.DocType]time.Duration

	// EmbedTimeout bounds the query embedding call
	EmbedTimeout time.Duration

	DefaultLimit int
	MaxLimit     int
}

// DefaultConfig returns the stock parameters
func DefaultConfig() Config {
	return Config{
		Weights: map[types.DocType]float64{
			types.DocTypeCode:    1.0,
			types.DocTypeMemory:  0.9,
			types.DocTypePlan:    0.8,
			types.DocTypeSession: 0.7,
		},
		ImportanceBoosts: map[types.Importance]float64{
			types.ImportanceHigh:   0.15,
			types.ImportanceMedium: 0.05,
			types.ImportanceLow:    0,
		},
		RecencyWindow:   30 * 24 * time.Hour,
		MaxRecencyBoost: 0.25,
		OverfetchFactor: 3,
		SearcherTimeout: 3 * time.Second,
		EmbedTimeout:    10 * time.Second,
		DefaultLimit:    10,
		MaxLimit:        200,
	}
}

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("invalid retrieval config")

// Validate checks that every parameter is usable
func (c Config) Validate() error {
	for _, dt := range types.AllDocTypes {
		w, ok := c.Weights[dt]
		if !ok {
			return fmt.Errorf("%w: missing weight for %s", ErrInvalidConfig, dt)
		}
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weight for %s must be positive, got %v", ErrInvalidConfig, dt, w)
		}
	}
	for dt := range c.Weights {
		if !dt.Valid() {
			return fmt.Errorf("%w: weight for unknown doc type %q", ErrInvalidConfig, dt)
		}
	}
	for imp, b := range c.ImportanceBoosts {
		if b < 0 || math.IsNaN(b) {
			return fmt.Errorf("%w: importance boost for %s must be >= 0", ErrInvalidConfig, imp)
		}
	}
	if c.RecencyWindow <= 0 {
		return fmt.Errorf("%w: recency window must be positive", ErrInvalidConfig)
	}
	if c.MaxRecencyBoost < 0 || math.IsNaN(c.MaxRecencyBoost) {
		return fmt.Errorf("%w: max recency boost must be >= 0", ErrInvalidConfig)
	}
	if c.OverfetchFactor < 1 {
		return fmt.Errorf("%w: overfetch factor must be >= 1", ErrInvalidConfig)
	}
	if c.SearcherTimeout <= 0 {
		return fmt.Errorf("%w: searcher timeout must be positive", ErrInvalidConfig)
	}
	for dt, d := range c.DocTypeTimeouts {
		if !dt.Valid() {
			return fmt.Errorf("%w: timeout for unknown doc type %q", ErrInvalidConfig, dt)
		}
		if d <= 0 {
			return fmt.Errorf("%w: timeout for %s must be positive", ErrInvalidConfig, dt)
		}
	}
	if c.EmbedTimeout <= 0 {
		return fmt.Errorf("%w: embed timeout must be positive", ErrInvalidConfig)
	}
	if c.DefaultLimit < 1 || c.MaxLimit < 1 {
		return fmt.Errorf("%w: limits must be >= 1", ErrInvalidConfig)
	}
	if c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("%w: default limit %d exceeds max limit %d", ErrInvalidConfig, c.DefaultLimit, c.MaxLimit)
	}
	return nil
}

// EffectiveLimit applies the default and the cap to a requested limit
func (c Config) EffectiveLimit(requested int) int {
	switch {
	case requested <= 0:
		return c.DefaultLimit
	case requested > c.MaxLimit:
		return c.MaxLimit
	default:
		return requested
	}
}

// TimeoutFor returns the searcher timeout for dt
func (c Config) TimeoutFor(dt types.DocType) time.Duration {
	if d, ok := c.DocTypeTimeouts[dt]; ok {
		return d
	}
	return c.SearcherTimeout
}

// clone deep-copies the maps so the engine's copy cannot be mutated
func (c Config) clone() Config {
	out := c
	out.Weights = make(map[types.DocType]float64, len(c.Weights))
	for k, v := range c.Weights {
		out.Weights[k] = v
	}
	out.ImportanceBoosts = make(map[types.Importance]float64, len(c.ImportanceBoosts))
	for k, v := range c.ImportanceBoosts {
		out.ImportanceBoosts[k] = v
	}
	out.DocTypeTimeouts = make(map[types.DocType]time.Duration, len(c.DocTypeTimeouts))
	for k, v := range c.DocTypeTimeouts {
		out.DocTypeTimeouts[k] = v
	}
	return out
}

// Policy returns the scoring parameters of the config
func (c Config) Policy() Policy {
	return Policy{
		Weights:          c.Weights,
		ImportanceBoosts: c.ImportanceBoosts,
		RecencyWindow:    c.RecencyWindow,
		MaxRecencyBoost:  c.MaxRecencyBoost,
	}
}
