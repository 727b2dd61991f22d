package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/nbd-wtf/go-nostr"

	"github.com/satstack/zap-thanks/internal/config"
	"github.com/satstack/zap-thanks/internal/relay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		message string
		file    string
	)
	flag.StringVar(&message, "message", "", "note content to post")
	flag.StringVar(&file, "file", "", "read note content from this file instead")
	flag.Parse()

	if message == "" && file == "" {
		return fmt.Errorf("--message or --file is required")
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read content file: %w", err)
		}
		message = string(data)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.LoadWithDefaultRelays()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ev := &nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindTextNote,
		Tags:      nostr.Tags{},
		Content:   message,
	}
	if err := ev.Sign(cfg.SecretKey); err != nil {
		return fmt.Errorf("sign note: %w", err)
	}

	fmt.Printf("npub: %s\n", cfg.Npub())
	fmt.Printf("Event ID (pre-publish): %s\n", ev.ID)

	if err := relay.Broadcast(context.Background(), logger, cfg.Relays, ev); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}

	fmt.Println("Relays used:")
	for _, u := range cfg.Relays {
		fmt.Printf("- %s: sent\n", u)
	}
	fmt.Println("Done.")
	return nil
}
