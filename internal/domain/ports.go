package domain

import "context"

// ZapRepository defines persistence operations for zap receipts.
type ZapRepository interface {
	// InsertZap persists a zap keyed by its event id. It returns false
	// without error when the event id already exists; redelivered receipts
	// are the normal path, not a failure.
	InsertZap(ctx context.Context, zap *Zap) (bool, error)

	// WeeklyTotals aggregates stored zaps for a week, ordered by total
	// msat descending with zapper pubkey as the tie-break.
	WeeklyTotals(ctx context.Context, week string) ([]LeaderboardRow, error)

	// TopZappers is WeeklyTotals restricted to the first limit rows with a
	// known zapper pubkey. Used by the weekly announcement.
	TopZappers(ctx context.Context, week string, limit int) ([]LeaderboardRow, error)
}

// CursorRepository defines persistence operations for the ingestion cursor.
type CursorRepository interface {
	// GetCursor retrieves the stored cursor for the given key. Returns 0
	// if no cursor has been saved.
	GetCursor(ctx context.Context, key string) (int64, error)

	// AdvanceCursor persists ts under key only if it exceeds the stored
	// value, so the cursor never decreases.
	AdvanceCursor(ctx context.Context, key string, ts int64) error
}
