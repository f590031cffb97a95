package storage

import (
	"context"
	"time"

	"github.com/dshills/codeintel/pkg/types"
)

// Reader is the read-only view used by the doc-type searchers.
// Each method returns the rows found for ids keyed by id; ids with no row,
// or whose row does not pass the filter, are absent from the map.
type Reader interface {
	GetCodeChunks(ctx context.Context, ids []string, filter CodeFilter) (map[string]*CodeChunk, error)
	GetMemories(ctx context.Context, ids []string, filter MemoryFilter) (map[string]*Memory, error)
	GetPlans(ctx context.Context, ids []string, filter PlanFilter) (map[string]*Plan, error)
	GetSessions(ctx context.Context, ids []string, filter SessionFilter) (map[string]*Session, error)
}

// Writer is used by the ingestion pipeline
type Writer interface {
	// Code chunk operations
	UpsertCodeChunk(ctx context.Context, chunk *CodeChunk) error
	ListCodeChunkIDs(ctx context.Context, filePath string) ([]string, error)
	ListCodeFiles(ctx context.Context) ([]string, error)
	DeleteCodeChunks(ctx context.Context, ids []string) (int, error)

	// Memory operations
	UpsertMemory(ctx context.Context, memory *Memory) error
	DeleteMemory(ctx context.Context, id string) error

	// Plan operations
	UpsertPlan(ctx context.Context, plan *Plan) error
	DeletePlan(ctx context.Context, id string) error

	// Session operations
	UpsertSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, id string) error
	InsertActivity(ctx context.Context, activity *Activity) error
	ListActivities(ctx context.Context, sessionID string) ([]*Activity, error)
}

// Storage is the relational store for sessions, activities, memories, plans
// and code chunk rows
type Storage interface {
	Reader
	Writer

	GetStatus(ctx context.Context) (*Status, error)
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Reader
	Writer
	Commit() error
	Rollback() error
}

// CodeChunk is one indexed declaration of a source file
type CodeChunk struct {
	ID          string
	FilePath    string // Relative to the indexed root, slash separated
	Package     string
	SymbolName  string
	SymbolKind  types.SymbolKind
	Signature   string
	StartLine   int
	EndLine     int
	Content     string
	ContentHash string
	IndexedAt   time.Time
}

// Memory is a stored observation, decision or gotcha
type Memory struct {
	ID          string
	MemoryType  string
	Observation string
	Importance  types.Importance
	Tags        []string
	SessionID   string // Empty when not tied to a session
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Plan is an agent plan with a lifecycle status
type Plan struct {
	ID         string
	Title      string
	Content    string
	Status     string
	Importance types.Importance
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Session is a captured coding-agent session
type Session struct {
	ID        string
	Title     string
	Summary   string
	Status    string
	StartedAt time.Time
	EndedAt   *time.Time // Nil while the session is active
	UpdatedAt time.Time

	// ActivityCount is computed on read
	ActivityCount int
}

// Activity is one captured event within a session
type Activity struct {
	ID        int64
	SessionID string
	Kind      string
	Content   string
	CreatedAt time.Time
}

// Session statuses
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
)

// Plan statuses
const (
	PlanDraft     = "draft"
	PlanActive    = "active"
	PlanCompleted = "completed"
	PlanAbandoned = "abandoned"
)

// CodeFilter narrows code chunk reads
type CodeFilter struct {
	PathGlob   string // SQLite GLOB pattern on file_path
	SymbolKind string
	Package    string
}

// MemoryFilter narrows memory reads
type MemoryFilter struct {
	MemoryType string
	Tags       []string // Any-match
	SessionID  string
	Since      time.Time
	Until      time.Time
}

// PlanFilter narrows plan reads
type PlanFilter struct {
	Status string
	Since  time.Time
	Until  time.Time
}

// SessionFilter narrows session reads
type SessionFilter struct {
	Status    string
	SessionID string
	Since     time.Time
	Until     time.Time
}

// Status contains row counts for the relational store
type Status struct {
	CodeChunks    int    `json:"code_chunks"`
	Files         int    `json:"files"`
	Memories      int    `json:"memories"`
	Plans         int    `json:"plans"`
	Sessions      int    `json:"sessions"`
	Activities    int    `json:"activities"`
	SchemaVersion string `json:"schema_version"`
	Driver        string `json:"driver"`
	BuildMode     string `json:"build_mode"`
}
