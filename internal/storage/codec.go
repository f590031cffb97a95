package storage

import (
	"database/sql"
	"strings"
	"time"

	"github.com/dshills/codeintel/pkg/types"
)

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// encodeTags stores tags as ",a,b," so a single tag matches with LIKE '%,a,%'
func encodeTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" && !strings.Contains(tag, ",") {
			clean = append(clean, tag)
		}
	}
	if len(clean) == 0 {
		return ""
	}
	return "," + strings.Join(clean, ",") + ","
}

func decodeTags(s string) []string {
	s = strings.Trim(s, ",")
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func importanceOf(s string) types.Importance {
	imp, err := types.ParseImportance(s)
	if err != nil {
		return types.ImportanceLow
	}
	return imp
}

func symbolKind(s string) types.SymbolKind {
	return types.SymbolKind(s)
}
