package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/codeintel/internal/storage"
	"github.com/dshills/codeintel/internal/vectorstore"
	"github.com/dshills/codeintel/pkg/types"
)

// maxRecordBytes bounds a single JSON line
const maxRecordBytes = 4 << 20

// Record kinds accepted by Import
const (
	RecordMemory   = "memory"
	RecordPlan     = "plan"
	RecordSession  = "session"
	RecordActivity = "activity"
)

var errUnknownKind = errors.New("unknown record kind")

// Record is one JSON line of an import stream. Fields are shared across
// kinds; each kind reads the ones it needs.
type Record struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`

	// memory
	MemoryType  string   `json:"memory_type,omitempty"`
	Observation string   `json:"observation,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// memory, plan
	Importance string `json:"importance,omitempty"`

	// plan, session
	Title  string `json:"title,omitempty"`
	Status string `json:"status,omitempty"`

	// plan, activity
	Content string `json:"content,omitempty"`

	// session
	Summary   string     `json:"summary,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// memory, activity
	SessionID    string `json:"session_id,omitempty"`
	ActivityKind string `json:"activity_kind,omitempty"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ImportStats counts imported records per kind
type ImportStats struct {
	Memories      int      `json:"memories"`
	Plans         int      `json:"plans"`
	Sessions      int      `json:"sessions"`
	Activities    int      `json:"activities"`
	Failed        int      `json:"failed"`
	ErrorMessages []string `json:"errors,omitempty"`
}

// Import reads JSON-lines records from r and stores them. Bad lines are
// counted and reported; storage and embedding of the other lines continue.
// Only a read error or context cancellation aborts the run.
func (idx *Indexer) Import(ctx context.Context, r io.Reader) (*ImportStats, error) {
	stats := &ImportStats{ErrorMessages: make([]string, 0)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			stats.fail(line, fmt.Errorf("invalid JSON: %w", err))
			continue
		}
		if err := idx.importRecord(ctx, &rec); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.fail(line, err)
			continue
		}
		stats.count(rec.Kind)
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read import stream: %w", err)
	}

	idx.logger.Info("Import complete",
		"memories", stats.Memories,
		"plans", stats.Plans,
		"sessions", stats.Sessions,
		"activities", stats.Activities,
		"failed", stats.Failed)
	return stats, nil
}

func (s *ImportStats) fail(line int, err error) {
	s.Failed++
	s.ErrorMessages = append(s.ErrorMessages, fmt.Sprintf("line %d: %v", line, err))
}

func (s *ImportStats) count(kind string) {
	switch kind {
	case RecordMemory:
		s.Memories++
	case RecordPlan:
		s.Plans++
	case RecordSession:
		s.Sessions++
	case RecordActivity:
		s.Activities++
	}
}

func (idx *Indexer) importRecord(ctx context.Context, rec *Record) error {
	rec.Kind = strings.ToLower(strings.TrimSpace(rec.Kind))
	if rec.ID == "" && rec.Kind != RecordActivity {
		rec.ID = uuid.NewString()
	}

	switch rec.Kind {
	case RecordMemory:
		return idx.importMemory(ctx, rec)
	case RecordPlan:
		return idx.importPlan(ctx, rec)
	case RecordSession:
		return idx.importSession(ctx, rec)
	case RecordActivity:
		return idx.importActivity(ctx, rec)
	default:
		return fmt.Errorf("%w %q", errUnknownKind, rec.Kind)
	}
}

func (idx *Indexer) importMemory(ctx context.Context, rec *Record) error {
	if strings.TrimSpace(rec.Observation) == "" {
		return fmt.Errorf("%w: memory requires an observation", storage.ErrInvalidRow)
	}
	importance, err := types.ParseImportance(rec.Importance)
	if err != nil {
		return err
	}
	m := &storage.Memory{
		ID:          rec.ID,
		MemoryType:  rec.MemoryType,
		Observation: rec.Observation,
		Importance:  importance,
		Tags:        rec.Tags,
		SessionID:   rec.SessionID,
		CreatedAt:   timeOrZero(rec.CreatedAt),
	}
	if m.MemoryType == "" {
		m.MemoryType = "observation"
	}

	meta := map[string]string{vectorstore.MetaMemoryType: m.MemoryType}
	if m.SessionID != "" {
		meta[vectorstore.MetaSessionID] = m.SessionID
	}
	return idx.storeDocument(ctx, types.DocTypeMemory, m.ID, m.Observation, meta,
		func() error { return idx.storage.UpsertMemory(ctx, m) })
}

func (idx *Indexer) importPlan(ctx context.Context, rec *Record) error {
	importance, err := types.ParseImportance(rec.Importance)
	if err != nil {
		return err
	}
	switch rec.Status {
	case "", storage.PlanDraft, storage.PlanActive, storage.PlanCompleted, storage.PlanAbandoned:
	default:
		return fmt.Errorf("unknown plan status %q", rec.Status)
	}
	p := &storage.Plan{
		ID:         rec.ID,
		Title:      rec.Title,
		Content:    rec.Content,
		Status:     rec.Status,
		Importance: importance,
		CreatedAt:  timeOrZero(rec.CreatedAt),
	}

	return idx.storeDocument(ctx, types.DocTypePlan, p.ID, joinText(p.Title, p.Content),
		map[string]string{vectorstore.MetaStatus: p.Status},
		func() error { return idx.storage.UpsertPlan(ctx, p) })
}

func (idx *Indexer) importSession(ctx context.Context, rec *Record) error {
	switch rec.Status {
	case "", storage.SessionActive, storage.SessionCompleted:
	default:
		return fmt.Errorf("unknown session status %q", rec.Status)
	}
	s := &storage.Session{
		ID:        rec.ID,
		Title:     rec.Title,
		Summary:   rec.Summary,
		Status:    rec.Status,
		StartedAt: timeOrZero(rec.StartedAt),
		EndedAt:   rec.EndedAt,
	}
	if s.EndedAt != nil && s.Status == "" {
		s.Status = storage.SessionCompleted
	}

	// A session with nothing to embed is stored but not searchable
	text := joinText(s.Title, s.Summary)
	if text == "" {
		return idx.storage.UpsertSession(ctx, s)
	}
	return idx.storeDocument(ctx, types.DocTypeSession, s.ID, text, nil,
		func() error { return idx.storage.UpsertSession(ctx, s) })
}

func (idx *Indexer) importActivity(ctx context.Context, rec *Record) error {
	a := &storage.Activity{
		SessionID: rec.SessionID,
		Kind:      rec.ActivityKind,
		Content:   rec.Content,
		CreatedAt: timeOrZero(rec.CreatedAt),
	}
	return idx.storage.InsertActivity(ctx, a)
}

// storeDocument embeds text before anything is written, then stores the row
// and its vector
func (idx *Indexer) storeDocument(ctx context.Context, dt types.DocType, id, text string,
	metadata map[string]string, writeRow func() error) error {

	vector, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed %s %s: %w", dt, id, err)
	}
	if err := writeRow(); err != nil {
		return err
	}
	if err := idx.vectors.Upsert(ctx, dt, id, text, vector, metadata); err != nil {
		return fmt.Errorf("failed to store vector: %w", err)
	}
	return nil
}

func joinText(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
