package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilters_DateRange(t *testing.T) {
	tests := []struct {
		name      string
		filters   Filters
		wantSince time.Time
		wantUntil time.Time
	}{
		{"empty", nil, time.Time{}, time.Time{}},
		{
			name:      "date only since starts the day",
			filters:   Filters{FilterSince: "2026-05-01"},
			wantSince: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "date only until ends the day",
			filters:   Filters{FilterUntil: "2026-05-01"},
			wantUntil: time.Date(2026, 5, 1, 23, 59, 59, 999999999, time.UTC),
		},
		{
			name:      "timestamp until is exact",
			filters:   Filters{FilterUntil: "2026-05-01T00:00:00Z"},
			wantUntil: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "same day since and until",
			filters:   Filters{FilterSince: " 2026-05-01 ", FilterUntil: "2026-05-01"},
			wantSince: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			wantUntil: time.Date(2026, 5, 1, 23, 59, 59, 999999999, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			since, until, err := tt.filters.DateRange()
			require.NoError(t, err)
			assert.True(t, tt.wantSince.Equal(since), "since %v", since)
			assert.True(t, tt.wantUntil.Equal(until), "until %v", until)
		})
	}

	_, _, err := Filters{FilterUntil: "tomorrow"}.DateRange()
	assert.Error(t, err)
}

func TestFilters_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		wantErr bool
	}{
		{"empty", nil, false},
		{"same day", Filters{FilterSince: "2026-05-01", FilterUntil: "2026-05-01"}, false},
		{"since later in the until day", Filters{FilterSince: "2026-05-01T18:00:00Z", FilterUntil: "2026-05-01"}, false},
		{"since after until", Filters{FilterSince: "2026-05-02", FilterUntil: "2026-05-01"}, true},
		{"bad since", Filters{FilterSince: "soon"}, true},
		{"bad until", Filters{FilterUntil: "05/01/2026"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filters.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFilters_ListAndCanonical(t *testing.T) {
	f := Filters{FilterTags: " auth, ,db ", FilterPath: "internal/*"}
	assert.Equal(t, []string{"auth", "db"}, f.List(FilterTags))
	assert.Nil(t, f.List(FilterStatus))
	assert.Equal(t, "path=internal/*&tags=auth, ,db", f.Canonical())
}
