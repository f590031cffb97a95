package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeintel/internal/searcher"
	"github.com/dshills/codeintel/pkg/types"
)

// Embedder embeds the query text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Provider() string
}

// Recorder receives search telemetry
type Recorder interface {
	ObserveSearch(d time.Duration, results int, partial bool)
	ObserveSearcher(dt types.DocType, outcome Outcome, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSearch(time.Duration, int, bool) {}

func (nopRecorder) ObserveSearcher(types.DocType, Outcome, time.Duration) {}

// errNoSearcher marks a requested doc type with no registered searcher
var errNoSearcher = errors.New("no searcher registered")

// Engine blends the per-doc-type searchers into one ranked list. It is
// immutable after construction and safe for concurrent use.
type Engine struct {
	cfg       Config
	policy    Policy
	embedder  Embedder
	searchers map[types.DocType]searcher.Searcher
	logger    *log.Logger
	recorder  Recorder
	now       func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder sets the telemetry recorder
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithClock sets the time source used for recency
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine validates cfg and builds an engine over the given searchers
func NewEngine(cfg Config, emb Embedder, searchers []searcher.Searcher, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if emb == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}

	cfg = cfg.clone()
	e := &Engine{
		cfg:       cfg,
		policy:    cfg.Policy(),
		embedder:  emb,
		searchers: make(map[types.DocType]searcher.Searcher, len(searchers)),
		logger:    log.New(io.Discard),
		recorder:  nopRecorder{},
		now:       time.Now,
	}
	for _, s := range searchers {
		dt := s.DocType()
		if !dt.Valid() {
			return nil, fmt.Errorf("%w: searcher for unknown doc type %q", ErrInvalidConfig, dt)
		}
		if _, dup := e.searchers[dt]; dup {
			return nil, fmt.Errorf("%w: duplicate searcher for %s", ErrInvalidConfig, dt)
		}
		e.searchers[dt] = s
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns a copy of the engine parameters
func (e *Engine) Config() Config {
	return e.cfg.clone()
}

// searchSlot is written by exactly one fan-out task
type searchSlot struct {
	hits    []types.CandidateHit
	outcome DocTypeOutcome
}

// Search runs a query. It returns *types.InvalidQueryError for caller errors
// and *types.EmbeddingUnavailableError when the query cannot be embedded;
// searcher failures are reported in the response, never returned.
func (e *Engine) Search(ctx context.Context, q Query) (*Response, error) {
	start := time.Now()

	text, docTypes, err := e.validate(q)
	if err != nil {
		return nil, err
	}
	limit := e.cfg.EffectiveLimit(q.Limit)

	vector, err := e.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	fetch := limit * e.cfg.OverfetchFactor
	slots := make([]searchSlot, len(docTypes))

	var g errgroup.Group
	for i, dt := range docTypes {
		g.Go(func() error {
			slots[i] = e.runSearcher(ctx, dt, vector, q.Filters, fetch)
			return nil
		})
	}
	_ = g.Wait()

	now := e.now()
	resp := &Response{Limit: limit, Outcomes: make([]DocTypeOutcome, 0, len(slots))}
	scored := make([]types.ScoredResult, 0)
	for _, slot := range slots {
		resp.Outcomes = append(resp.Outcomes, slot.outcome)
		switch slot.outcome.Outcome {
		case OutcomeFailed:
			resp.Failed++
		case OutcomeEmpty:
			resp.Empty++
		}
		for _, hit := range slot.hits {
			scored = append(scored, e.policy.Score(hit, now))
		}
	}

	resp.Results = rank(dedup(scored), limit)
	resp.Duration = time.Since(start)

	e.recorder.ObserveSearch(resp.Duration, len(resp.Results), resp.Partial())
	e.logger.Debug("Search completed",
		"query_len", len(text),
		"doc_types", len(docTypes),
		"filters", q.Filters.Canonical(),
		"results", len(resp.Results),
		"failed", resp.Failed,
		"duration", resp.Duration)

	return resp, nil
}

func (e *Engine) validate(q Query) (string, []types.DocType, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return "", nil, types.NewInvalidQueryError("query text is empty")
	}
	if err := q.Filters.Validate(); err != nil {
		return "", nil, err
	}
	parsed, err := types.ParseDocTypes(q.DocTypes)
	if err != nil {
		return "", nil, types.NewInvalidQueryError("%v", err)
	}

	// Search in priority order regardless of request order
	want := make(map[types.DocType]bool, len(parsed))
	for _, dt := range parsed {
		want[dt] = true
	}
	docTypes := make([]types.DocType, 0, len(types.AllDocTypes))
	for _, dt := range types.AllDocTypes {
		if len(want) == 0 || want[dt] {
			docTypes = append(docTypes, dt)
		}
	}
	return text, docTypes, nil
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.EmbedTimeout)
	defer cancel()

	vector, err := e.embedder.Embed(ctx, text)
	if err == nil && len(vector) == 0 {
		err = errors.New("empty embedding")
	}
	if err != nil {
		e.logger.Warn("Query embedding failed", "provider", e.embedder.Provider(), "error", err)
		return nil, &types.EmbeddingUnavailableError{Provider: e.embedder.Provider(), Err: err}
	}
	return vector, nil
}

// runSearcher never fails: errors, timeouts and panics become a failed outcome
func (e *Engine) runSearcher(ctx context.Context, dt types.DocType, vector []float32, filters types.Filters, fetch int) searchSlot {
	start := time.Now()
	slot := searchSlot{outcome: DocTypeOutcome{DocType: dt}}

	hits, err := e.find(ctx, dt, vector, filters, fetch)
	slot.outcome.Duration = time.Since(start)

	switch {
	case err != nil:
		slot.outcome.Outcome = OutcomeFailed
		slot.outcome.Reason = err.Error()
		e.logger.Warn("Searcher failed", "doc_type", dt, "error", err, "duration", slot.outcome.Duration)
	case len(hits) == 0:
		slot.outcome.Outcome = OutcomeEmpty
	default:
		slot.outcome.Outcome = OutcomeOK
		slot.hits = hits
		slot.outcome.Candidates = len(hits)
	}

	e.recorder.ObserveSearcher(dt, slot.outcome.Outcome, slot.outcome.Duration)
	return slot
}

type findResult struct {
	hits []types.CandidateHit
	err  error
}

// find calls the searcher under its timeout. A searcher that ignores
// cancellation is abandoned at the deadline and its late result discarded.
func (e *Engine) find(ctx context.Context, dt types.DocType, vector []float32, filters types.Filters, fetch int) ([]types.CandidateHit, error) {
	s, ok := e.searchers[dt]
	if !ok {
		return nil, errNoSearcher
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.TimeoutFor(dt))
	defer cancel()

	done := make(chan findResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- findResult{err: fmt.Errorf("searcher panic: %v", r)}
			}
		}()
		hits, err := s.Find(ctx, vector, filters, fetch)
		done <- findResult{hits: hits, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return sanitize(dt, r.hits), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("searcher timeout: %w", ctx.Err())
	}
}

// sanitize drops hits that do not belong to dt and clamps similarity to [0, 1]
func sanitize(dt types.DocType, hits []types.CandidateHit) []types.CandidateHit {
	out := hits[:0:0]
	for _, h := range hits {
		if h.ID == "" || h.DocType != dt || h.Metadata == nil || h.Metadata.DocType() != dt {
			continue
		}
		if math.IsNaN(h.RawSimilarity) || h.RawSimilarity < 0 {
			h.RawSimilarity = 0
		} else if h.RawSimilarity > 1 {
			h.RawSimilarity = 1
		}
		out = append(out, h)
	}
	return out
}
