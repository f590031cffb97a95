package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder turns text into unit-length vectors. Queries and stored
// documents must be embedded by the same provider and model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimension() int
	Provider() string
	Model() string
	Close() error
}

// ValidateText rejects blank input
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatch rejects an empty batch or one holding a blank text
func ValidateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidInput)
	}
	for i := range texts {
		if ValidateText(texts[i]) != nil {
			return fmt.Errorf("%w: text %d is blank", ErrInvalidInput, i)
		}
	}
	return nil
}

// NormalizeVector scales v to unit length in place and returns it. A zero
// vector is returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	if sq == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sq)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
