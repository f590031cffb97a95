package retrieval

import (
	"time"

	"github.com/dshills/codeintel/pkg/types"
)

// Query is one retrieval request
type Query struct {
	Text     string
	DocTypes []string // Case-insensitive names; empty selects every doc type
	Limit    int      // <= 0 uses the default; above the max is clamped
	Filters  types.Filters
}

// Outcome is the result of one doc type's searcher
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeEmpty  Outcome = "empty"
	OutcomeFailed Outcome = "failed"
)

// DocTypeOutcome records how one searcher fared
type DocTypeOutcome struct {
	DocType    types.DocType
	Outcome    Outcome
	Candidates int    // Hits returned before dedup and truncation
	Reason     string // Set when Outcome is failed
	Duration   time.Duration
}

// Response is the ranked result list plus per-doc-type diagnostics
type Response struct {
	Results  []types.ScoredResult
	Outcomes []DocTypeOutcome // One per searched doc type, in priority order
	Failed   int
	Empty    int
	Limit    int // Effective limit after defaulting and clamping
	Duration time.Duration
}

// Partial reports whether any searched doc type failed
func (r *Response) Partial() bool {
	return r.Failed > 0
}

// FailedDocTypes lists the doc types whose searcher failed
func (r *Response) FailedDocTypes() []types.DocType {
	return r.docTypesWith(OutcomeFailed)
}

// EmptyDocTypes lists the doc types whose searcher returned nothing
func (r *Response) EmptyDocTypes() []types.DocType {
	return r.docTypesWith(OutcomeEmpty)
}

func (r *Response) docTypesWith(o Outcome) []types.DocType {
	out := make([]types.DocType, 0)
	for _, oc := range r.Outcomes {
		if oc.Outcome == o {
			out = append(out, oc.DocType)
		}
	}
	return out
}
