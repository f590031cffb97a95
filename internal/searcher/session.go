package searcher

import (
	"context"

	"github.com/dshills/codeintel/internal/storage"
	"github.com/dshills/codeintel/pkg/types"
)

// SessionSearcher searches captured sessions.
// Filters: status, session_id, since, until (on start time).
type SessionSearcher struct {
	vectors VectorQuerier
	rows    storage.Reader
}

// NewSessionSearcher creates a session searcher
func NewSessionSearcher(vectors VectorQuerier, rows storage.Reader) *SessionSearcher {
	return &SessionSearcher{vectors: vectors, rows: rows}
}

func (s *SessionSearcher) DocType() types.DocType { return types.DocTypeSession }

func (s *SessionSearcher) Find(ctx context.Context, vector []float32, filters types.Filters, limit int) ([]types.CandidateHit, error) {
	since, until, err := filters.DateRange()
	if err != nil {
		return nil, types.NewInvalidQueryError("%v", err)
	}
	filter := storage.SessionFilter{
		Status:    filters.Get(types.FilterStatus),
		SessionID: filters.Get(types.FilterSessionID),
		Since:     since,
		Until:     until,
	}

	q := search[*storage.Session]{
		dt: types.DocTypeSession,
		load: func(ctx context.Context, ids []string) (map[string]*storage.Session, error) {
			return s.rows.GetSessions(ctx, ids, filter)
		},
		meta: func(r *storage.Session) types.Metadata {
			return types.SessionMetadata{
				SessionID:     r.ID,
				Title:         r.Title,
				Status:        r.Status,
				StartedAt:     r.StartedAt,
				EndedAt:       r.EndedAt,
				Summary:       r.Summary,
				ActivityCount: r.ActivityCount,
			}
		},
	}
	return q.run(ctx, s.vectors, vector, limit)
}
