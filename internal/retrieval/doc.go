// Package retrieval implements the retrieval engine: one query embedded
// once, fanned out to the per-doc-type searchers, then weighted, boosted,
// deduplicated and ranked into a single list.
//
//	engine, err := retrieval.NewEngine(retrieval.DefaultConfig(), emb, searchers,
//	    retrieval.WithLogger(logger))
//	resp, err := engine.Search(ctx, retrieval.Query{
//	    Text:     "how are sessions persisted",
//	    DocTypes: []string{"code", "memory"},
//	    Limit:    10,
//	})
//	if resp.Partial() {
//	    // some doc types failed; see resp.Outcomes
//	}
//
// # Scoring
//
// Each hit's raw similarity is multiplied by its doc-type weight, then
// enriched:
//
//	confidence = weighted * (1 + recency) * (1 + importance)
//
// Recency decays linearly from MaxRecencyBoost to zero over RecencyWindow.
// Memory and plan hits get both boosts, session hits recency only, and code
// hits none. Confidence is not capped at 1.
//
// Results sort by confidence descending, then doc-type priority
// (code, memory, plan, session), then id.
//
// # Failure Handling
//
// Search returns only *types.InvalidQueryError and
// *types.EmbeddingUnavailableError. A searcher that errors, panics or
// exceeds its timeout contributes nothing and is reported as failed in
// Response.Outcomes.
package retrieval
