package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekKey(t *testing.T) {
	tests := []struct {
		name string
		ts   int64
		want string
	}{
		{"monday starts a new iso week", 1756684800, "2025-W36"}, // 2025-09-01T00:00:00Z
		{"first of january in week one", 1704067200, "2024-W01"}, // 2024-01-01T00:00:00Z
		{"new years eve belongs to the old year", 1704067199, "2023-W52"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekKey(tt.ts))
		})
	}
}

func TestPrevWeekKey(t *testing.T) {
	// Monday noon looks back to the completed week.
	monday := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-W35", PrevWeekKey(monday))

	// Mid-week stays in the current week.
	thursday := time.Date(2025, 9, 4, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-W36", PrevWeekKey(thursday))
}
