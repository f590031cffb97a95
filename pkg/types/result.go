package types

import "strings"

// CandidateHit is an unscored match returned by one doc-type searcher.
// (DocType, ID) is the identity; ID alone is only unique within a collection.
type CandidateHit struct {
	ID            string
	DocType       DocType
	RawSimilarity float64 // [0, 1], comparable only within one DocType
	Metadata      Metadata
}

// Key returns the deduplication key for the hit. Code hits that carry both a
// file path and a symbol name collapse on the normalized pair, since chunk ids
// change across re-indexing. Names Go lets a file declare more than once
// (init funcs and blank identifiers) key on the id.
func (h CandidateHit) Key() string {
	if md, ok := h.Metadata.(CodeMetadata); ok && md.FilePath != "" && md.SymbolName != "" && !repeatable(md.SymbolName) {
		return string(DocTypeCode) + "|" + normalizePath(md.FilePath) + "#" + md.SymbolName
	}
	return string(h.DocType) + "|" + h.ID
}

func repeatable(symbol string) bool {
	name := symbol
	if i := strings.LastIndexByte(symbol, '.'); i >= 0 {
		name = symbol[i+1:]
	}
	return name == "init" || name == "_"
}

// ScoredResult is a CandidateHit after weighting and confidence enrichment
type ScoredResult struct {
	CandidateHit
	WeightedScore float64
	Confidence    float64
	Rank          int // 1-based, assigned at final sort
}

// Validate checks the invariants of a ranked result
func (r *ScoredResult) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}
	if !r.DocType.Valid() {
		return ErrUnknownDocType
	}
	if r.Rank < 1 {
		return ErrInvalidRank
	}
	if r.RawSimilarity < 0 || r.RawSimilarity > 1 {
		return ErrInvalidSimilarity
	}
	if r.Metadata == nil {
		return ErrMissingMetadata
	}
	if r.Metadata.DocType() != r.DocType {
		return ErrMetadataMismatch
	}
	return nil
}
