// Package vectorstore keeps document embeddings in chromem-go, one
// collection per doc type.
//
// The store holds vectors plus a little display text; rich metadata lives in
// the relational store. Open with an empty directory for an in-memory store:
//
//	vs, err := vectorstore.Open("", false, logger)
//	err = vs.Upsert(ctx, types.DocTypeMemory, id, text, vector, nil)
//	matches, err := vs.Query(ctx, types.DocTypeMemory, queryVector, 30, map[string]string{vectorstore.MetaSessionID: sessionID})
package vectorstore
