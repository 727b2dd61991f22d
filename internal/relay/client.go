package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"
)

const (
	// DefaultSettleDelay approximates handshake completion after dialing.
	// Relays send no ready signal, so this is a pacing floor, not
	// synchronization.
	DefaultSettleDelay = 2 * time.Second

	// BroadcastSettleDelay is the shorter settle used by one-shot
	// broadcast connections.
	BroadcastSettleDelay = 1250 * time.Millisecond

	// DefaultAckTimeout bounds the wait for a command result after a
	// publish. Publishing remains best-effort when no relay answers.
	DefaultAckTimeout = 3 * time.Second

	defaultPace    = 750 * time.Millisecond
	eventBufferLen = 1024
)

// Client manages one websocket connection per relay URL and multiplexes
// their event streams into a single channel. Writes that fail mark the
// connection dead; there is no automatic redial, so the caller watches Alive
// and restarts when the pool empties.
type Client struct {
	logger *slog.Logger
	urls   []string

	settle time.Duration
	pace   time.Duration
	ackTO  time.Duration

	mu    sync.Mutex
	conns []*relayConn
	subID string

	events chan *nostr.Event

	ackMu sync.Mutex
	acks  map[string]chan *okResult

	dropped atomic.Int64
}

type relayConn struct {
	url     string
	ws      *websocket.Conn
	writeMu sync.Mutex
	dead    atomic.Bool
}

// Option adjusts Client timing.
type Option func(*Client)

// WithSettleDelay overrides the post-dial settle delay.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Client) { c.settle = d }
}

// WithAckTimeout overrides the publish acknowledgement timeout.
func WithAckTimeout(d time.Duration) Option {
	return func(c *Client) { c.ackTO = d }
}

// New creates a Client for the given relay URLs. Connect must be called
// before Subscribe or Publish.
func New(urls []string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		logger: logger,
		urls:   urls,
		settle: DefaultSettleDelay,
		pace:   defaultPace,
		ackTO:  DefaultAckTimeout,
		events: make(chan *nostr.Event, eventBufferLen),
		acks:   make(map[string]chan *okResult),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials every relay. Individual failures are logged and tolerated;
// it is an error only when no relay is reachable. A settle delay follows so
// handshakes can complete before the first write.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	for _, u := range c.urls {
		ws, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
		if err != nil {
			c.logger.Warn("failed to dial relay", "url", u, "error", err)
			continue
		}
		cn := &relayConn{url: u, ws: ws}
		c.conns = append(c.conns, cn)
		go c.readLoop(cn)
	}
	n := len(c.conns)
	c.mu.Unlock()

	if n == 0 {
		return fmt.Errorf("no relay reachable out of %d", len(c.urls))
	}

	c.logger.Info("connected to relays", "connected", n, "configured", len(c.urls))
	sleepCtx(ctx, c.settle)
	return nil
}

// Alive reports how many relay connections are still usable.
func (c *Client) Alive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, cn := range c.conns {
		if !cn.dead.Load() {
			n++
		}
	}
	return n
}

// Events is the merged stream of events from all subscribed relays. Relays
// deliver independently, so ordering across relays is not guaranteed.
func (c *Client) Events() <-chan *nostr.Event {
	return c.events
}

// Subscribe sends a REQ for the given filter on every live connection.
func (c *Client) Subscribe(ctx context.Context, filter nostr.Filter) error {
	c.mu.Lock()
	c.subID = "zaps-" + uuid.NewString()[:8]
	subID := c.subID
	c.mu.Unlock()

	payload, err := json.Marshal([]any{"REQ", subID, filter})
	if err != nil {
		return fmt.Errorf("marshal REQ: %w", err)
	}
	if sent := c.writeAll(payload); sent == 0 {
		return fmt.Errorf("subscribe: no live relay connection")
	}
	c.logger.Info("subscribed", "sub_id", subID)
	return nil
}

// Publish sends the event to every live connection and waits up to the ack
// timeout for one command result. It errors only when no connection accepted
// the write; an elapsed timeout still counts as a best-effort send.
func (c *Client) Publish(ctx context.Context, ev *nostr.Event) error {
	payload, err := json.Marshal([]any{"EVENT", ev})
	if err != nil {
		return fmt.Errorf("marshal EVENT: %w", err)
	}

	ackCh := make(chan *okResult, 1)
	c.ackMu.Lock()
	c.acks[ev.ID] = ackCh
	c.ackMu.Unlock()
	defer func() {
		c.ackMu.Lock()
		delete(c.acks, ev.ID)
		c.ackMu.Unlock()
	}()

	if sent := c.writeAll(payload); sent == 0 {
		return fmt.Errorf("publish: no live relay connection")
	}

	select {
	case res := <-ackCh:
		if !res.accepted {
			c.logger.Warn("relay rejected event", "event_id", ev.ID, "reason", res.reason)
		}
	case <-time.After(c.ackTO):
		c.logger.Debug("no publish acknowledgement before timeout", "event_id", ev.ID)
	case <-ctx.Done():
	}
	return nil
}

// Close unsubscribes and closes every connection, pacing the steps so
// in-flight frames can flush.
func (c *Client) Close() {
	c.mu.Lock()
	subID := c.subID
	conns := c.conns
	c.conns = nil
	c.mu.Unlock()

	if subID != "" {
		if payload, err := json.Marshal([]any{"CLOSE", subID}); err == nil {
			for _, cn := range conns {
				cn.write(payload) //nolint:errcheck
			}
		}
	}
	time.Sleep(c.pace)

	for _, cn := range conns {
		cn.writeMu.Lock()
		cn.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		cn.writeMu.Unlock()
		cn.ws.Close()
		cn.dead.Store(true)
	}
}

// writeAll writes the payload to every live connection, returning how many
// writes succeeded.
func (c *Client) writeAll(payload []byte) int {
	c.mu.Lock()
	conns := make([]*relayConn, len(c.conns))
	copy(conns, c.conns)
	c.mu.Unlock()

	sent := 0
	for _, cn := range conns {
		if err := cn.write(payload); err != nil {
			c.logger.Warn("relay write failed", "url", cn.url, "error", err)
			continue
		}
		sent++
	}
	return sent
}

func (cn *relayConn) write(payload []byte) error {
	if cn.dead.Load() {
		return fmt.Errorf("connection to %s is closed", cn.url)
	}
	cn.writeMu.Lock()
	defer cn.writeMu.Unlock()
	if err := cn.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		cn.dead.Store(true)
		return err
	}
	return nil
}

func (c *Client) readLoop(cn *relayConn) {
	for {
		_, msg, err := cn.ws.ReadMessage()
		if err != nil {
			if !cn.dead.Swap(true) {
				c.logger.Warn("relay connection closed", "url", cn.url, "error", err)
			}
			return
		}
		c.handleFrame(cn.url, msg)
	}
}

func (c *Client) handleFrame(url string, msg []byte) {
	label, rest, err := parseFrame(msg)
	if err != nil {
		c.logger.Debug("unparseable relay frame", "url", url, "error", err)
		return
	}

	switch label {
	case "EVENT":
		if len(rest) < 2 {
			return
		}
		ev, err := decodeEvent(rest[1])
		if err != nil {
			c.logger.Debug("unparseable event", "url", url, "error", err)
			return
		}
		select {
		case c.events <- ev:
		default:
			if c.dropped.Add(1)%100 == 1 {
				c.logger.Warn("event buffer full, dropping", "url", url, "dropped", c.dropped.Load())
			}
		}
	case "OK":
		res, err := parseOK(rest)
		if err != nil {
			c.logger.Debug("unparseable OK frame", "url", url, "error", err)
			return
		}
		c.ackMu.Lock()
		ch := c.acks[res.eventID]
		c.ackMu.Unlock()
		if ch != nil {
			select {
			case ch <- res:
			default:
			}
		}
	case "EOSE":
		c.logger.Debug("end of stored events", "url", url)
	case "NOTICE":
		c.logger.Info("relay notice", "url", url, "notice", string(msg))
	}
}

// Broadcast publishes one event through a short-lived connection set: dial,
// settle, publish, pause, tear down. It mirrors the fallback path used when
// the long-lived pool cannot deliver.
func Broadcast(ctx context.Context, logger *slog.Logger, urls []string, ev *nostr.Event) error {
	c := New(urls, logger, WithSettleDelay(BroadcastSettleDelay))
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	if err := c.Publish(ctx, ev); err != nil {
		return err
	}
	sleepCtx(ctx, c.pace)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
