package searcher

import (
	"context"

	"github.com/dshills/codeintel/internal/storage"
	"github.com/dshills/codeintel/pkg/types"
)

// PlanSearcher searches agent plans.
// Filters: status, since, until.
type PlanSearcher struct {
	vectors VectorQuerier
	rows    storage.Reader
}

// NewPlanSearcher creates a plan searcher
func NewPlanSearcher(vectors VectorQuerier, rows storage.Reader) *PlanSearcher {
	return &PlanSearcher{vectors: vectors, rows: rows}
}

func (s *PlanSearcher) DocType() types.DocType { return types.DocTypePlan }

func (s *PlanSearcher) Find(ctx context.Context, vector []float32, filters types.Filters, limit int) ([]types.CandidateHit, error) {
	since, until, err := filters.DateRange()
	if err != nil {
		return nil, types.NewInvalidQueryError("%v", err)
	}
	filter := storage.PlanFilter{
		Status: filters.Get(types.FilterStatus),
		Since:  since,
		Until:  until,
	}

	q := search[*storage.Plan]{
		dt: types.DocTypePlan,
		load: func(ctx context.Context, ids []string) (map[string]*storage.Plan, error) {
			return s.rows.GetPlans(ctx, ids, filter)
		},
		meta: func(p *storage.Plan) types.Metadata {
			return types.PlanMetadata{
				PlanID:     p.ID,
				Title:      p.Title,
				Status:     p.Status,
				Importance: p.Importance,
				CreatedAt:  p.CreatedAt,
				Content:    p.Content,
			}
		},
	}
	return q.run(ctx, s.vectors, vector, limit)
}
