package searcher

import (
	"context"
	"fmt"

	"github.com/dshills/codeintel/internal/storage"
	"github.com/dshills/codeintel/internal/vectorstore"
	"github.com/dshills/codeintel/pkg/types"
)

// Searcher finds candidate hits of one doc type for a query vector
type Searcher interface {
	DocType() types.DocType
	Find(ctx context.Context, vector []float32, filters types.Filters, limit int) ([]types.CandidateHit, error)
}

// VectorQuerier is the read-only view of the vector store. where holds
// exact metadata matches, see the vectorstore Meta keys.
type VectorQuerier interface {
	Query(ctx context.Context, dt types.DocType, vector []float32, n int, where map[string]string) ([]vectorstore.Match, error)
}

// New returns the searcher for dt
func New(dt types.DocType, vectors VectorQuerier, rows storage.Reader) (Searcher, error) {
	switch dt {
	case types.DocTypeCode:
		return NewCodeSearcher(vectors, rows), nil
	case types.DocTypeMemory:
		return NewMemorySearcher(vectors, rows), nil
	case types.DocTypePlan:
		return NewPlanSearcher(vectors, rows), nil
	case types.DocTypeSession:
		return NewSessionSearcher(vectors, rows), nil
	default:
		return nil, fmt.Errorf("no searcher for doc type %q", dt)
	}
}

// All returns one searcher per doc type, in priority order
func All(vectors VectorQuerier, rows storage.Reader) []Searcher {
	return []Searcher{
		NewCodeSearcher(vectors, rows),
		NewMemorySearcher(vectors, rows),
		NewPlanSearcher(vectors, rows),
		NewSessionSearcher(vectors, rows),
	}
}

// search is one filtered nearest-neighbour lookup of a doc type. Exact
// metadata filters go to the vector store in where; load reads the rows and
// applies the filters only the relational store can answer.
type search[R any] struct {
	dt    types.DocType
	where map[string]string
	load  func(ctx context.Context, ids []string) (map[string]R, error)
	meta  func(R) types.Metadata
}

// run asks for limit neighbours and doubles the request while fewer than
// limit rows survive load and the vector store still has more to give
func (q search[R]) run(ctx context.Context, vectors VectorQuerier, vector []float32, limit int) ([]types.CandidateHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows := make(map[string]R)
	seen := make(map[string]struct{})
	var matches []vectorstore.Match
	for n := limit; ; n *= 2 {
		var err error
		matches, err = vectors.Query(ctx, q.dt, vector, n, q.where)
		if err != nil {
			return nil, fmt.Errorf("%s vector query: %w", q.dt, err)
		}

		fresh := make([]string, 0, len(matches))
		for _, m := range matches {
			if _, ok := seen[m.ID]; !ok {
				seen[m.ID] = struct{}{}
				fresh = append(fresh, m.ID)
			}
		}
		if len(fresh) > 0 {
			got, err := q.load(ctx, fresh)
			if err != nil {
				return nil, err
			}
			for id, r := range got {
				rows[id] = r
			}
		}

		if len(rows) >= limit || len(matches) < n {
			break
		}
	}

	hits := join(q.dt, matches, rows, q.meta)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// equal collects the non-empty pairs of kv into a where map
func equal(kv ...string) map[string]string {
	var where map[string]string
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		if where == nil {
			where = make(map[string]string, len(kv)/2)
		}
		where[kv[i]] = kv[i+1]
	}
	return where
}

// join builds hits for matches whose row exists, keeping match order
func join[R any](dt types.DocType, matches []vectorstore.Match, rows map[string]R, meta func(R) types.Metadata) []types.CandidateHit {
	hits := make([]types.CandidateHit, 0, len(matches))
	for _, m := range matches {
		row, ok := rows[m.ID]
		if !ok {
			continue
		}
		hits = append(hits, types.CandidateHit{
			ID:            m.ID,
			DocType:       dt,
			RawSimilarity: m.Similarity,
			Metadata:      meta(row),
		})
	}
	return hits
}
