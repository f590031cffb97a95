package types

import (
	"fmt"
	"strings"
	"time"
)

// Importance is the tier carried by memory and plan rows
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// ParseImportance converts a tier name; blank input maps to ImportanceLow
func ParseImportance(s string) (Importance, error) {
	switch Importance(strings.ToLower(strings.TrimSpace(s))) {
	case ImportanceHigh:
		return ImportanceHigh, nil
	case ImportanceMedium:
		return ImportanceMedium, nil
	case ImportanceLow, "":
		return ImportanceLow, nil
	default:
		return "", fmt.Errorf("unknown importance %q", s)
	}
}

// Metadata is the doc-type specific payload of a CandidateHit.
// The set of implementations is closed to this package.
type Metadata interface {
	DocType() DocType
	isMetadata()
}

// CodeMetadata describes an indexed code chunk
type CodeMetadata struct {
	FilePath   string     `json:"file_path"`
	SymbolName string     `json:"symbol_name,omitempty"`
	SymbolKind SymbolKind `json:"symbol_kind,omitempty"`
	Package    string     `json:"package,omitempty"`
	StartLine  int        `json:"start_line"`
	EndLine    int        `json:"end_line"`
	Snippet    string     `json:"snippet,omitempty"`
}

// MemoryMetadata describes a stored observation, decision or gotcha
type MemoryMetadata struct {
	MemoryType  string     `json:"memory_type"`
	Importance  Importance `json:"importance"`
	CreatedAt   time.Time  `json:"created_at"`
	Tags        []string   `json:"tags,omitempty"`
	SessionID   string     `json:"session_id,omitempty"`
	Observation string     `json:"observation"`
}

// PlanMetadata describes an agent plan
type PlanMetadata struct {
	PlanID     string     `json:"plan_id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Importance Importance `json:"importance"`
	CreatedAt  time.Time  `json:"created_at"`
	Content    string     `json:"content,omitempty"`
}

// SessionMetadata describes a captured coding-agent session
type SessionMetadata struct {
	SessionID     string     `json:"session_id"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	ActivityCount int        `json:"activity_count"`
}

func (CodeMetadata) DocType() DocType    { return DocTypeCode }
func (MemoryMetadata) DocType() DocType  { return DocTypeMemory }
func (PlanMetadata) DocType() DocType    { return DocTypePlan }
func (SessionMetadata) DocType() DocType { return DocTypeSession }

func (CodeMetadata) isMetadata()    {}
func (MemoryMetadata) isMetadata()  {}
func (PlanMetadata) isMetadata()    {}
func (SessionMetadata) isMetadata() {}

// LastActive returns the most recent timestamp known for the session
func (m SessionMetadata) LastActive() time.Time {
	if m.EndedAt != nil && m.EndedAt.After(m.StartedAt) {
		return *m.EndedAt
	}
	return m.StartedAt
}
