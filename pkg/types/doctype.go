package types

import (
	"fmt"
	"strings"
)

// DocType identifies an indexed document category with its own vector collection
type DocType string

const (
	DocTypeCode    DocType = "code"
	DocTypeMemory  DocType = "memory"
	DocTypePlan    DocType = "plan"
	DocTypeSession DocType = "session"
)

// AllDocTypes lists every doc type in tie-break priority order
var AllDocTypes = []DocType{DocTypeCode, DocTypeMemory, DocTypePlan, DocTypeSession}

// Priority returns the tie-break rank of the doc type (lower sorts first)
func (d DocType) Priority() int {
	switch d {
	case DocTypeCode:
		return 0
	case DocTypeMemory:
		return 1
	case DocTypePlan:
		return 2
	case DocTypeSession:
		return 3
	default:
		return len(AllDocTypes)
	}
}

// Valid reports whether d is one of the known doc types
func (d DocType) Valid() bool {
	return d.Priority() < len(AllDocTypes)
}

func (d DocType) String() string {
	return string(d)
}

// ParseDocType converts a case-insensitive name into a DocType
func ParseDocType(s string) (DocType, error) {
	d := DocType(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown doc type %q", s)
	}
	return d, nil
}

// ParseDocTypes parses a list of names, dropping blanks and duplicates.
// An empty input yields an empty slice.
func ParseDocTypes(names []string) ([]DocType, error) {
	seen := make(map[DocType]bool, len(names))
	out := make([]DocType, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		d, err := ParseDocType(name)
		if err != nil {
			return nil, err
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}
