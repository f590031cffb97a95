// Package searcher implements the per-doc-type searchers the retrieval
// engine fans out to.
//
// Each searcher queries its own vector collection for the nearest
// neighbours, translates the filter keys it understands into a storage
// filter and ignores the rest, then joins the hit ids against the relational
// store in one batched read. The relational row is the source of truth for
// mutable fields; hits whose row is missing or filtered out are dropped.
//
//	s := searcher.NewMemorySearcher(vectors, db)
//	hits, err := s.Find(ctx, queryVector, types.Filters{"tags": "auth,security"}, 30)
//
// Searchers only see read-only interfaces of both stores.
package searcher
