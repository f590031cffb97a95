// Package types provides shared type definitions for Codebase Intelligence.
//
// The retrieval pipeline moves three kinds of values between packages:
//
//   - DocType names one of the four indexed document categories
//     (code, memory, plan, session) and fixes their tie-break priority.
//   - CandidateHit is an unscored match produced by a single doc-type
//     searcher. Its Metadata field is a closed union with one variant per
//     doc type, so scoring code switches on the concrete type:
//
//     switch md := hit.Metadata.(type) {
//     case types.CodeMetadata:
//     case types.MemoryMetadata:
//     case types.PlanMetadata:
//     case types.SessionMetadata:
//     }
//
//   - ScoredResult is a CandidateHit after weighting, confidence
//     enrichment and ranking.
//
// # Filters
//
// Filters is a flat string map shared by every searcher. Keys a searcher does
// not understand are ignored, which lets one request carry filters for
// several doc types at once:
//
//	filters := types.Filters{"path": "internal/**/*.go", "status": "active"}
//
// # Errors
//
// InvalidQueryError and EmbeddingUnavailableError are the only errors the
// retrieval engine returns to callers. Both match their sentinel with
// errors.Is:
//
//	if errors.Is(err, types.ErrInvalidQuery) { ... }
//
// Symbol and ParseResult describe Go source declarations extracted during
// code indexing.
package types
