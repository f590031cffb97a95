package searcher

import (
	"context"

	"github.com/dshills/codeintel/internal/storage"
	"github.com/dshills/codeintel/internal/vectorstore"
	"github.com/dshills/codeintel/pkg/types"
)

// MemorySearcher searches stored memories.
// Filters: memory_type, tags (any-match), session_id, since, until.
type MemorySearcher struct {
	vectors VectorQuerier
	rows    storage.Reader
}

// NewMemorySearcher creates a memory searcher
func NewMemorySearcher(vectors VectorQuerier, rows storage.Reader) *MemorySearcher {
	return &MemorySearcher{vectors: vectors, rows: rows}
}

func (s *MemorySearcher) DocType() types.DocType { return types.DocTypeMemory }

func (s *MemorySearcher) Find(ctx context.Context, vector []float32, filters types.Filters, limit int) ([]types.CandidateHit, error) {
	since, until, err := filters.DateRange()
	if err != nil {
		return nil, types.NewInvalidQueryError("%v", err)
	}
	filter := storage.MemoryFilter{
		MemoryType: filters.Get(types.FilterMemoryType),
		Tags:       filters.List(types.FilterTags),
		SessionID:  filters.Get(types.FilterSessionID),
		Since:      since,
		Until:      until,
	}

	q := search[*storage.Memory]{
		dt: types.DocTypeMemory,
		where: equal(
			vectorstore.MetaMemoryType, filter.MemoryType,
			vectorstore.MetaSessionID, filter.SessionID,
		),
		load: func(ctx context.Context, ids []string) (map[string]*storage.Memory, error) {
			return s.rows.GetMemories(ctx, ids, filter)
		},
		meta: func(m *storage.Memory) types.Metadata {
			return types.MemoryMetadata{
				MemoryType:  m.MemoryType,
				Importance:  m.Importance,
				CreatedAt:   m.CreatedAt,
				Tags:        m.Tags,
				SessionID:   m.SessionID,
				Observation: m.Observation,
			}
		},
	}
	return q.run(ctx, s.vectors, vector, limit)
}
