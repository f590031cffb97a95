package retrieval

import (
	"time"

	"github.com/dshills/codeintel/pkg/types"
)

// Policy holds the scoring parameters. Its methods are pure: they depend
// only on their arguments and the policy values.
type Policy struct {
	Weights          map[types.DocType]float64
	ImportanceBoosts map[types.Importance]float64
	RecencyWindow    time.Duration
	MaxRecencyBoost  float64
}

// Weighted scales a raw similarity by a doc-type weight
func Weighted(raw, weight float64) float64 {
	return raw * weight
}

// RecencyBoost decays linearly from maxBoost at age zero to 0 at window.
// Future timestamps count as age zero; the result is never negative.
func RecencyBoost(age, window time.Duration, maxBoost float64) float64 {
	if window <= 0 || maxBoost <= 0 {
		return 0
	}
	if age < 0 {
		age = 0
	}
	if age >= window {
		return 0
	}
	return maxBoost * (1 - float64(age)/float64(window))
}

// ImportanceBoost returns the addend for a tier; unknown tiers get 0
func ImportanceBoost(imp types.Importance, boosts map[types.Importance]float64) float64 {
	return boosts[imp]
}

// Weight returns the weight for dt
func (p Policy) Weight(dt types.DocType) float64 {
	return p.Weights[dt]
}

func (p Policy) recency(created, now time.Time) float64 {
	if created.IsZero() {
		return 0
	}
	return RecencyBoost(now.Sub(created), p.RecencyWindow, p.MaxRecencyBoost)
}

// Confidence enriches a weighted score from the hit metadata:
// weighted * (1 + recency) * (1 + importance). Code passes through unchanged;
// sessions get recency only.
func (p Policy) Confidence(weighted float64, md types.Metadata, now time.Time) float64 {
	var recency, importance float64
	switch m := md.(type) {
	case types.CodeMetadata:
		return weighted
	case types.MemoryMetadata:
		recency = p.recency(m.CreatedAt, now)
		importance = ImportanceBoost(m.Importance, p.ImportanceBoosts)
	case types.PlanMetadata:
		recency = p.recency(m.CreatedAt, now)
		importance = ImportanceBoost(m.Importance, p.ImportanceBoosts)
	case types.SessionMetadata:
		recency = p.recency(m.LastActive(), now)
	default:
		return weighted
	}
	return weighted * (1 + recency) * (1 + importance)
}

// Score turns a hit into an unranked ScoredResult
func (p Policy) Score(hit types.CandidateHit, now time.Time) types.ScoredResult {
	weighted := Weighted(hit.RawSimilarity, p.Weight(hit.DocType))
	return types.ScoredResult{
		CandidateHit:  hit,
		WeightedScore: weighted,
		Confidence:    p.Confidence(weighted, hit.Metadata, now),
	}
}
