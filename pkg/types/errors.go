package types

import (
	"errors"
	"fmt"
)

// Caller-facing sentinels matched by the typed errors below
var (
	ErrInvalidQuery         = errors.New("invalid query")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// Domain errors for result validation
var (
	ErrMissingID         = errors.New("result id is required")
	ErrUnknownDocType    = errors.New("unknown doc type")
	ErrInvalidRank       = errors.New("rank must be >= 1")
	ErrInvalidSimilarity = errors.New("raw similarity must be between 0 and 1")
	ErrMissingMetadata   = errors.New("metadata is required")
	ErrMetadataMismatch  = errors.New("metadata variant does not match doc type")
)

// InvalidQueryError reports a caller error such as an empty query or a
// malformed filter. It is never retried.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

func (e *InvalidQueryError) Is(target error) bool {
	return target == ErrInvalidQuery
}

// NewInvalidQueryError formats a reason into an InvalidQueryError
func NewInvalidQueryError(format string, args ...any) *InvalidQueryError {
	return &InvalidQueryError{Reason: fmt.Sprintf(format, args...)}
}

// EmbeddingUnavailableError reports that the query text could not be embedded
type EmbeddingUnavailableError struct {
	Provider string
	Err      error
}

func (e *EmbeddingUnavailableError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("embedding unavailable: %v", e.Err)
	}
	return fmt.Sprintf("embedding unavailable (%s): %v", e.Provider, e.Err)
}

func (e *EmbeddingUnavailableError) Unwrap() error {
	return e.Err
}

func (e *EmbeddingUnavailableError) Is(target error) bool {
	return target == ErrEmbeddingUnavailable
}
