package listener

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/satstack/zap-thanks/internal/config"
	"github.com/satstack/zap-thanks/internal/domain"
	"github.com/satstack/zap-thanks/internal/metrics"
	"github.com/satstack/zap-thanks/internal/relay"
	"github.com/satstack/zap-thanks/internal/reply"
)

const (
	// pollInterval is the idle sleep between drain passes.
	pollInterval = 500 * time.Millisecond

	// replyPace spaces consecutive replies so relays are not flooded.
	replyPace = 500 * time.Millisecond
)

// Listener orchestrates the ingestion pipeline: it resumes the subscription
// from the stored cursor, drains buffered receipts, runs each through the
// zap service, and publishes acknowledgements.
type Listener struct {
	client    *relay.Client
	service   *domain.ZapService
	publisher *reply.Publisher
	cfg       *config.Config
	logger    *slog.Logger

	lastActivity atomic.Int64
}

// New creates a Listener.
func New(client *relay.Client, service *domain.ZapService, publisher *reply.Publisher, cfg *config.Config, logger *slog.Logger) *Listener {
	return &Listener{
		client:    client,
		service:   service,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// LastActivity is the unix time of the most recent poll iteration, exposed
// through the health endpoint for the watchdog.
func (l *Listener) LastActivity() int64 {
	return l.lastActivity.Load()
}

// Run subscribes and polls until the context is cancelled or every relay
// connection is lost. Processing is cooperative and single-threaded: each
// iteration drains everything buffered, then sleeps the poll interval.
func (l *Listener) Run(ctx context.Context) error {
	since, err := l.service.StartCursor(ctx)
	if err != nil {
		return fmt.Errorf("resume cursor: %w", err)
	}

	ts := nostr.Timestamp(since)
	if err := l.client.Subscribe(ctx, nostr.Filter{
		Kinds: []int{nostr.KindZap},
		Since: &ts,
	}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	l.logger.Info("listening for zap receipts",
		"npub", l.cfg.Npub(),
		"since", since,
		"relays", len(l.cfg.Relays),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		l.drain(ctx)
		l.lastActivity.Store(time.Now().Unix())

		if l.client.Alive() == 0 {
			return fmt.Errorf("all relay connections lost")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(pollInterval):
		}
	}
}

// drain processes every currently buffered event without blocking for more.
func (l *Listener) drain(ctx context.Context) {
	for {
		select {
		case ev := <-l.client.Events():
			l.handle(ctx, ev)
		default:
			return
		}
	}
}

func (l *Listener) handle(ctx context.Context, ev *nostr.Event) {
	if ev.Kind != nostr.KindZap {
		return
	}
	metrics.ReceiptsTotal.Inc()

	ack, err := l.service.ProcessReceipt(ctx, ev)
	if err != nil {
		// One bad receipt never stops the next.
		metrics.StoreErrorsTotal.Inc()
		l.logger.Error("failed to process receipt", "event_id", ev.ID, "error", err)
		return
	}
	if ack == nil {
		return
	}
	if ack.Zap.Unknown {
		metrics.UnknownAmountsTotal.Inc()
	}

	replyEv, err := reply.BuildReply(ack, l.cfg.ThankTemplate, l.cfg.SecretKey)
	if err != nil {
		l.logger.Error("failed to build reply", "event_id", ev.ID, "error", err)
		return
	}

	l.publisher.Publish(ctx, replyEv, ack.Zap.Relays)
	metrics.RepliesTotal.Inc()
	l.logger.Info("published reply",
		"reply_id", shortID(replyEv.ID),
		"sats", ack.Zap.Sats,
		"unknown", ack.Zap.Unknown,
		"rank", ack.Rank,
	)

	select {
	case <-ctx.Done():
	case <-time.After(replyPace):
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "…"
	}
	return id
}
