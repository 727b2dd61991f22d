package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/satstack/zap-thanks/internal/config"
	"github.com/satstack/zap-thanks/internal/domain"
	"github.com/satstack/zap-thanks/internal/relay"
	"github.com/satstack/zap-thanks/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		week string
		top  int
	)
	flag.StringVar(&week, "week", "", "ISO week to announce (e.g. 2025-W36); defaults to the previous week")
	flag.IntVar(&top, "top", 0, "how many zappers to list (defaults to TOP_N)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if week == "" {
		week = domain.PrevWeekKey(time.Now())
	}
	if top <= 0 {
		top = cfg.TopN
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	rows, err := store.TopZappers(ctx, week, top)
	if err != nil {
		return fmt.Errorf("top zappers: %w", err)
	}
	if len(rows) == 0 {
		fmt.Printf("No zaps for week %s, nothing to post.\n", week)
		return nil
	}

	ev := &nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindTextNote,
		Tags:      nostr.Tags{},
		Content:   formatLeaderboard(week, rows),
	}
	if err := ev.Sign(cfg.SecretKey); err != nil {
		return fmt.Errorf("sign leaderboard note: %w", err)
	}

	if err := relay.Broadcast(ctx, logger, cfg.Relays, ev); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}

	fmt.Printf("Posted weekly leaderboard for %s.\n", week)
	return nil
}

func formatLeaderboard(week string, rows []domain.LeaderboardRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚡ Weekly Zap Leaderboard — %s\n", week)
	for i, row := range rows {
		fmt.Fprintf(&b, "\n%d) %s — %s sats (%d zaps)",
			i+1, displayName(row.ZapperPubkey), humanize.Comma(row.TotalMsat/1000), row.Count)
	}
	return b.String()
}

// displayName renders a pubkey as an npub, falling back to a truncated hex
// when the pubkey does not re-encode.
func displayName(pubkey string) string {
	if npub, err := nip19.EncodePublicKey(pubkey); err == nil {
		return npub
	}
	if len(pubkey) > 12 {
		return pubkey[:12] + "…"
	}
	return pubkey
}
