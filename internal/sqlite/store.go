package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/satstack/zap-thanks/internal/domain"
)

// Store implements domain.ZapRepository and domain.CursorRepository on a
// SQLite database. It is the sole owner of zap and cursor persistence.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the schema exists. The caller should call Close when done.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS zaps (
			event_id TEXT PRIMARY KEY,
			zapper_pubkey TEXT,
			note_id TEXT,
			amount_msat INTEGER,
			created_at INTEGER,
			week TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_zaps_week ON zaps(week)`,

		`CREATE TABLE IF NOT EXISTS state (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// InsertZap inserts a zap record, returning false when the event id was
// already recorded. Redelivered receipts land here routinely.
func (s *Store) InsertZap(ctx context.Context, zap *domain.Zap) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO zaps (event_id, zapper_pubkey, note_id, amount_msat, created_at, week)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		zap.EventID, zap.ZapperPubkey, zap.NoteID, zap.AmountMsat, zap.CreatedAt, zap.Week,
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// GetCursor retrieves the stored cursor for key, or 0 when absent.
func (s *Store) GetCursor(ctx context.Context, key string) (int64, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM state WHERE k = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	cursor, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt cursor %q: %w", v, err)
	}
	return cursor, nil
}

// AdvanceCursor stores ts under key only if it exceeds the current value.
// The guard lives in the upsert itself so the cursor never decreases.
func (s *Store) AdvanceCursor(ctx context.Context, key string, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state (k, v) VALUES (?, ?)
		 ON CONFLICT(k) DO UPDATE SET v = excluded.v
		 WHERE CAST(state.v AS INTEGER) < CAST(excluded.v AS INTEGER)`,
		key, strconv.FormatInt(ts, 10),
	)
	return err
}

// WeeklyTotals aggregates the week's zaps per zapper, largest total first.
// The pubkey is the explicit tie-break so equal totals order reproducibly.
func (s *Store) WeeklyTotals(ctx context.Context, week string) ([]domain.LeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT zapper_pubkey, SUM(amount_msat) AS tot, COUNT(*) AS cnt
		 FROM zaps WHERE week = ?
		 GROUP BY zapper_pubkey
		 ORDER BY tot DESC, zapper_pubkey ASC`,
		week,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeaderboard(rows)
}

// TopZappers is WeeklyTotals limited to the first limit rows with a known
// zapper, for the weekly announcement.
func (s *Store) TopZappers(ctx context.Context, week string, limit int) ([]domain.LeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT zapper_pubkey, SUM(amount_msat) AS tot, COUNT(*) AS cnt
		 FROM zaps WHERE week = ?
		 GROUP BY zapper_pubkey
		 HAVING zapper_pubkey <> ''
		 ORDER BY tot DESC, zapper_pubkey ASC
		 LIMIT ?`,
		week, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeaderboard(rows)
}

func scanLeaderboard(rows *sql.Rows) ([]domain.LeaderboardRow, error) {
	var out []domain.LeaderboardRow
	for rows.Next() {
		var row domain.LeaderboardRow
		if err := rows.Scan(&row.ZapperPubkey, &row.TotalMsat, &row.Count); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
