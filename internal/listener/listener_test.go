package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satstack/zap-thanks/internal/config"
	"github.com/satstack/zap-thanks/internal/domain"
	"github.com/satstack/zap-thanks/internal/relay"
	"github.com/satstack/zap-thanks/internal/reply"
	"github.com/satstack/zap-thanks/internal/sqlite"
)

// fakeRelay serves the seeded receipts on subscription and collects
// everything published back.
type fakeRelay struct {
	srv       *httptest.Server
	seed      []string
	published chan json.RawMessage
}

func newFakeRelay(t *testing.T, seed ...string) *fakeRelay {
	t.Helper()
	f := &fakeRelay{seed: seed, published: make(chan json.RawMessage, 16)}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var frame []json.RawMessage
			if err := json.Unmarshal(msg, &frame); err != nil || len(frame) < 2 {
				continue
			}
			var label string
			json.Unmarshal(frame[0], &label)
			switch label {
			case "REQ":
				var subID string
				json.Unmarshal(frame[1], &subID)
				for _, ev := range f.seed {
					ws.WriteMessage(websocket.TextMessage, []byte(`["EVENT","`+subID+`",`+ev+`]`))
				}
				ws.WriteMessage(websocket.TextMessage, []byte(`["EOSE","`+subID+`"]`))
			case "EVENT":
				f.published <- frame[1]
				var ev struct {
					ID string `json:"id"`
				}
				json.Unmarshal(frame[1], &ev)
				ws.WriteMessage(websocket.TextMessage, []byte(`["OK","`+ev.ID+`",true,""]`))
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeRelay) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func receiptJSON(id, recipient string, msat int64, createdAt int64) string {
	return fmt.Sprintf(`{
		"id": %q,
		"pubkey": "servicepk",
		"created_at": %d,
		"kind": 9735,
		"tags": [["p", %q], ["P", "payerpk"], ["amount", "%d"]],
		"content": "",
		"sig": ""
	}`, id, createdAt, recipient, msat)
}

func testSetup(t *testing.T, f *fakeRelay) (*Listener, *sqlite.Store, context.CancelFunc) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "zaps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svcCfg := domain.ServiceConfig{
		Pubkey:         "me",
		MinZapSats:     50,
		ReplyOnUnknown: true,
		MaxSaneSats:    10_000_000,
	}
	service := domain.NewZapService(svcCfg, store, store, logger)

	cfg := &config.Config{
		SecretKey: sk,
		Pubkey:    pk,
		Relays:    []string{f.url()},
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := relay.New(cfg.Relays, logger,
		relay.WithSettleDelay(10*time.Millisecond),
		relay.WithAckTimeout(500*time.Millisecond))
	require.NoError(t, client.Connect(ctx))
	t.Cleanup(client.Close)

	publisher := reply.NewPublisher(client, cfg.Relays, logger)
	l := New(client, service, publisher, cfg, logger)

	go func() { l.Run(ctx) }() //nolint:errcheck
	return l, store, cancel
}

func TestListenerAcknowledgesZap(t *testing.T) {
	f := newFakeRelay(t, receiptJSON("receipt1", "me", 100_000, time.Now().Unix()))
	_, store, cancel := testSetup(t, f)
	defer cancel()

	var raw json.RawMessage
	select {
	case raw = <-f.published:
	case <-time.After(10 * time.Second):
		t.Fatal("no reply was published")
	}

	var got struct {
		Kind    int        `json:"kind"`
		Content string     `json:"content"`
		Tags    [][]string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, nostr.KindTextNote, got.Kind)
	assert.Contains(t, got.Content, "100 sats")
	assert.Contains(t, got.Content, "#1")
	require.NotEmpty(t, got.Tags)
	assert.Equal(t, []string{"p", "payerpk"}, got.Tags[0])

	rows, err := store.WeeklyTotals(context.Background(), domain.WeekKey(time.Now().Unix()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "payerpk", rows[0].ZapperPubkey)
	assert.Equal(t, int64(100_000), rows[0].TotalMsat)
}

func TestListenerIgnoresForeignZap(t *testing.T) {
	f := newFakeRelay(t, receiptJSON("receipt1", "someone-else", 100_000, time.Now().Unix()))
	_, store, cancel := testSetup(t, f)
	defer cancel()

	select {
	case <-f.published:
		t.Fatal("reply published for a receipt addressed to someone else")
	case <-time.After(2 * time.Second):
	}

	rows, err := store.WeeklyTotals(context.Background(), domain.WeekKey(time.Now().Unix()))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListenerBelowThresholdStoresSilently(t *testing.T) {
	f := newFakeRelay(t, receiptJSON("receipt1", "me", 10_000, time.Now().Unix()))
	_, store, cancel := testSetup(t, f)
	defer cancel()

	select {
	case <-f.published:
		t.Fatal("reply published below the sat threshold")
	case <-time.After(2 * time.Second):
	}

	rows, err := store.WeeklyTotals(context.Background(), domain.WeekKey(time.Now().Unix()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(10_000), rows[0].TotalMsat)
}

func TestListenerTracksActivity(t *testing.T) {
	f := newFakeRelay(t)
	l, _, cancel := testSetup(t, f)
	defer cancel()

	require.Eventually(t, func() bool {
		return l.LastActivity() > 0
	}, 5*time.Second, 50*time.Millisecond)
	assert.InDelta(t, float64(time.Now().Unix()), float64(l.LastActivity()), 5)
}
