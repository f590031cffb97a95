// Package storage provides SQLite persistence for the relational side of
// the retrieval engine: code chunk rows, memories, plans, sessions and
// session activities.
//
// Embeddings live in the vector store; this package holds the metadata the
// searchers join against after a vector query. Reads are batched by id and
// apply filters as SQL predicates, so a returned map only contains rows that
// exist and match:
//
//	rows, err := db.GetMemories(ctx, ids, storage.MemoryFilter{
//	    MemoryType: "decision",
//	    Tags:       []string{"auth", "security"},
//	})
//
// Timestamps are stored as unix milliseconds. Tags are stored as a
// comma-delimited string and filtered with any-match semantics.
//
// # Build Tags
//
// CGO build (sqlite_vec tag) uses github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go build (default, or purego tag) uses modernc.org/sqlite:
//
//	CGO_ENABLED=0 go build -tags "purego"
package storage
