package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// CursorKey is the settings-table key holding the ingestion cursor.
const CursorKey = "last_since"

// ServiceConfig carries the policy knobs for receipt processing.
type ServiceConfig struct {
	// Pubkey is this identity's hex pubkey; receipts not addressed to it
	// are rejected.
	Pubkey string

	// MinZapSats is the smallest amount that triggers an acknowledgement.
	MinZapSats int64

	// AllowSelfZap accepts receipts where the payer is this identity even
	// when no recipient tag matches.
	AllowSelfZap bool

	// ReplyOnUnknown acknowledges receipts whose amount could not be
	// resolved.
	ReplyOnUnknown bool

	// MaxSaneSats is the sanity ceiling for amount candidates, in sats.
	MaxSaneSats int64
}

// Acknowledgement is the decision to thank a zapper, handed to the reply
// publisher.
type Acknowledgement struct {
	Zap  *ParsedZap
	Rank int
}

// ZapService owns the receipt processing pipeline: parse, filter, persist,
// advance the cursor, and decide whether and how to acknowledge.
type ZapService struct {
	cfg     ServiceConfig
	repo    ZapRepository
	cursors CursorRepository
	logger  *slog.Logger
}

// NewZapService creates a ZapService.
func NewZapService(cfg ServiceConfig, repo ZapRepository, cursors CursorRepository, logger *slog.Logger) *ZapService {
	return &ZapService{
		cfg:     cfg,
		repo:    repo,
		cursors: cursors,
		logger:  logger,
	}
}

// StartCursor returns the timestamp the subscription should resume from: the
// stored cursor, or now minus one day on first run.
func (s *ZapService) StartCursor(ctx context.Context) (int64, error) {
	cursor, err := s.cursors.GetCursor(ctx, CursorKey)
	if err != nil {
		return 0, fmt.Errorf("get cursor: %w", err)
	}
	if cursor == 0 {
		cursor = time.Now().Unix() - 86400
	}
	return cursor, nil
}

// ProcessReceipt runs one zap receipt through the pipeline. A nil
// Acknowledgement means no reply is owed: the receipt was addressed to
// someone else, or its amount fell below the threshold. The zap is persisted
// and the cursor advanced before the rank is computed, so the payer's own new
// total counts toward their rank.
func (s *ZapService) ProcessReceipt(ctx context.Context, ev *nostr.Event) (*Acknowledgement, error) {
	parsed := ParseZap(ev, s.cfg.MaxSaneSats)

	if !s.accepts(parsed) {
		return nil, nil
	}

	createdAt := int64(ev.CreatedAt)
	week := WeekKey(createdAt)

	inserted, err := s.repo.InsertZap(ctx, &Zap{
		EventID:      ev.ID,
		ZapperPubkey: parsed.ZapperPubkey,
		NoteID:       parsed.NoteID,
		AmountMsat:   parsed.Sats * 1000,
		CreatedAt:    createdAt,
		Week:         week,
	})
	if err != nil {
		return nil, fmt.Errorf("insert zap: %w", err)
	}
	if !inserted {
		s.logger.Debug("duplicate receipt", "event_id", ev.ID)
	}

	if err := s.cursors.AdvanceCursor(ctx, CursorKey, createdAt); err != nil {
		// A stale cursor only means re-reading on restart; dedup absorbs it.
		s.logger.Error("failed to advance cursor", "error", err)
	}

	if parsed.Sats < s.cfg.MinZapSats && !(parsed.Unknown && s.cfg.ReplyOnUnknown) {
		return nil, nil
	}

	rank, err := s.RankForWeek(ctx, parsed.ZapperPubkey, week)
	if err != nil {
		s.logger.Error("failed to compute rank", "error", err)
		rank = 1
	}

	return &Acknowledgement{Zap: parsed, Rank: rank}, nil
}

// RankForWeek is the zapper's 1-based position in the week's descending
// totals. Zappers with no rows yet rank first by default.
func (s *ZapService) RankForWeek(ctx context.Context, zapperPubkey, week string) (int, error) {
	if zapperPubkey == "" {
		return 1, nil
	}
	rows, err := s.repo.WeeklyTotals(ctx, week)
	if err != nil {
		return 1, fmt.Errorf("weekly totals: %w", err)
	}
	for i, row := range rows {
		if row.ZapperPubkey == zapperPubkey {
			return i + 1, nil
		}
	}
	return 1, nil
}

// accepts applies the recipient filter: the receipt must name our pubkey in
// the zap request or on the receipt itself, or be a permitted self-zap.
func (s *ZapService) accepts(parsed *ParsedZap) bool {
	for _, p := range parsed.RecipientsInRequest {
		if p == s.cfg.Pubkey {
			return true
		}
	}
	for _, p := range parsed.RecipientsInEvent {
		if p == s.cfg.Pubkey {
			return true
		}
	}
	return s.cfg.AllowSelfZap && parsed.ZapperPubkey == s.cfg.Pubkey
}
