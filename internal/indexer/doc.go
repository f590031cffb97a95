// Package indexer feeds the relational and vector stores.
//
// IndexCode walks a Go codebase and keeps one code chunk per top-level
// declaration:
//
//	idx := indexer.New(store, vectors, emb, logger)
//	stats, err := idx.IndexCode(ctx, "/path/to/project", &indexer.Config{
//	    Workers:   8,
//	    BatchSize: 32,
//	})
//
// Runs are incremental. Chunk ids are derived from the file path and the
// qualified symbol name, so an unchanged declaration keeps its id and is
// not re-embedded; a declaration that only moved gets its line range
// rewritten. Chunks of declarations or files that disappeared are deleted
// from both stores. Only one IndexCode run executes at a time; a second
// caller gets ErrIndexingInProgress.
//
// Files are parsed by a bounded worker pool and embedded in batches.
// Per-file failures (unreadable files, failed embedding batches) are
// reported in Statistics and do not stop the run. Storage failures and
// context cancellation do.
//
// Import loads memories, plans, sessions and activities from a JSON-lines
// stream, one record per line:
//
//	{"kind":"memory","memory_type":"gotcha","observation":"...","importance":"high"}
//	{"kind":"plan","title":"...","content":"...","status":"active"}
//	{"kind":"session","id":"s1","title":"...","summary":"..."}
//	{"kind":"activity","session_id":"s1","activity_kind":"edit","content":"..."}
//
// Records without an id get a random UUID. Activities are not embedded.
package indexer
