package domain

import (
	"fmt"
	"time"
)

// WeekKey maps a unix timestamp to its ISO week bucket, e.g. "2025-W36".
func WeekKey(ts int64) string {
	year, week := time.Unix(ts, 0).UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// PrevWeekKey returns the ISO week bucket of the day before now. The weekly
// announcement runs shortly after the week rolls over, so stepping back one
// day lands in the completed week.
func PrevWeekKey(now time.Time) string {
	year, week := now.UTC().AddDate(0, 0, -1).ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
