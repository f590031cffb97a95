package api

import (
	"github.com/dshills/codeintel/internal/retrieval"
	"github.com/dshills/codeintel/pkg/types"
)

// SearchResult is one ranked result on the wire
type SearchResult struct {
	ID            string         `json:"id"`
	DocType       types.DocType  `json:"doc_type"`
	RawSimilarity float64        `json:"raw_similarity"`
	WeightedScore float64        `json:"weighted_score"`
	Confidence    float64        `json:"confidence"`
	Rank          int            `json:"rank"`
	Metadata      types.Metadata `json:"metadata"`
}

// SearchResponse is the body of GET /api/search and the MCP search_context result
type SearchResponse struct {
	Results        []SearchResult  `json:"results"`
	Total          int             `json:"total"`
	Partial        bool            `json:"partial"`
	FailedDocTypes []types.DocType `json:"failed_doc_types"`
	EmptyDocTypes  []types.DocType `json:"empty_doc_types"`
	Limit          int             `json:"limit"`
	DurationMS     int64           `json:"duration_ms"`
}

// NewSearchResponse converts an engine response
func NewSearchResponse(resp *retrieval.Response) SearchResponse {
	results := make([]SearchResult, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = SearchResult{
			ID:            r.ID,
			DocType:       r.DocType,
			RawSimilarity: r.RawSimilarity,
			WeightedScore: r.WeightedScore,
			Confidence:    r.Confidence,
			Rank:          r.Rank,
			Metadata:      r.Metadata,
		}
	}
	return SearchResponse{
		Results:        results,
		Total:          len(results),
		Partial:        resp.Partial(),
		FailedDocTypes: resp.FailedDocTypes(),
		EmptyDocTypes:  resp.EmptyDocTypes(),
		Limit:          resp.Limit,
		DurationMS:     resp.Duration.Milliseconds(),
	}
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	CodeInvalidQuery         = "invalid_query"
	CodeEmbeddingUnavailable = "embedding_unavailable"
	CodeInternalError        = "internal_error"
	CodeNotFound             = "not_found"
)
