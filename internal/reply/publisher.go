package reply

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/satstack/zap-thanks/internal/metrics"
	"github.com/satstack/zap-thanks/internal/relay"
)

const (
	publishAttempts = 3
	retryBackoff    = time.Second
)

// Publisher delivers acknowledgement events with relay-level fallback. Every
// failure is logged and swallowed; delivery is best-effort broadcast, not
// exactly-once, and a failed publish must never stall receipt ingestion.
type Publisher struct {
	primary *relay.Client
	relays  []string
	logger  *slog.Logger
}

// NewPublisher creates a Publisher around the long-lived relay client and
// the configured relay list.
func NewPublisher(primary *relay.Client, relays []string, logger *slog.Logger) *Publisher {
	return &Publisher{
		primary: primary,
		relays:  relays,
		logger:  logger,
	}
}

// Publish broadcasts the event. The already-open connection set is tried
// first with bounded retry and backoff. If that fails, a fresh short-lived
// connection set covering the configured relays plus any hinted by the zap
// request gets one more attempt. Hinted relays outside the configured set
// additionally receive their own broadcast regardless of the primary
// outcome (extra reach, not a retry).
func (p *Publisher) Publish(ctx context.Context, ev *nostr.Event, hintedRelays []string) {
	err := p.publishWithRetry(ctx, ev)
	if err != nil {
		p.logger.Warn("primary publish failed, using fresh connection set", "error", err)
		all := dedupe(append(slices.Clone(p.relays), hintedRelays...))
		if err := relay.Broadcast(ctx, p.logger, all, ev); err != nil {
			metrics.PublishFailuresTotal.Inc()
			p.logger.Error("fallback publish failed", "event_id", ev.ID, "error", err)
		}
	}

	extras := subtract(hintedRelays, p.relays)
	if len(extras) > 0 {
		if err := relay.Broadcast(ctx, p.logger, extras, ev); err != nil {
			p.logger.Warn("broadcast to hinted relays failed", "relays", extras, "error", err)
		}
	}
}

func (p *Publisher) publishWithRetry(ctx context.Context, ev *nostr.Event) error {
	var err error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		if attempt > 0 {
			backoff := retryBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err = p.primary.Publish(ctx, ev); err == nil {
			return nil
		}
		p.logger.Warn("publish attempt failed", "attempt", attempt+1, "error", err)
	}
	return err
}

// dedupe preserves first occurrences.
func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// subtract returns the urls not present in exclude, deduplicated.
func subtract(urls, exclude []string) []string {
	var out []string
	for _, u := range dedupe(slices.Clone(urls)) {
		if !slices.Contains(exclude, u) {
			out = append(out, u)
		}
	}
	return out
}
