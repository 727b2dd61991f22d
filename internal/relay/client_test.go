package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRelay speaks just enough of the relay protocol for the client: it
// answers REQ with the seeded events followed by EOSE, and EVENT with an OK.
type fakeRelay struct {
	srv       *httptest.Server
	seed      []string // event JSON served on subscription
	published chan json.RawMessage
}

func newFakeRelay(t *testing.T, seed ...string) *fakeRelay {
	t.Helper()
	f := &fakeRelay{
		seed:      seed,
		published: make(chan json.RawMessage, 16),
	}
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
			if err := json.Unmarshal(msg, &frame); err != nil || len(frame) == 0 {
				continue
			}
			var label string
			if err := json.Unmarshal(frame[0], &label); err != nil {
				continue
			}
			switch label {
			case "REQ":
				var subID string
				if err := json.Unmarshal(frame[1], &subID); err != nil {
					continue
				}
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

const seedReceipt = `{
	"id": "receipt1",
	"pubkey": "servicepk",
	"created_at": 1756684800,
	"kind": 9735,
	"tags": [["p", "me"], ["amount", "100000"]],
	"content": "",
	"sig": ""
}`

func TestClientSubscribeAndReceive(t *testing.T) {
	relay := newFakeRelay(t, seedReceipt)
	ctx := context.Background()

	c := New([]string{relay.url()}, testLogger(), WithSettleDelay(10*time.Millisecond))
	require.NoError(t, c.Connect(ctx))
	defer c.Close()
	assert.Equal(t, 1, c.Alive())

	require.NoError(t, c.Subscribe(ctx, nostr.Filter{Kinds: []int{nostr.KindZap}}))

	select {
	case ev := <-c.Events():
		assert.Equal(t, "receipt1", ev.ID)
		assert.Equal(t, nostr.KindZap, ev.Kind)
		assert.Equal(t, nostr.Tag{"p", "me"}, ev.Tags[0])
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
	}
}

func TestClientPublish(t *testing.T) {
	relay := newFakeRelay(t)
	ctx := context.Background()

	c := New([]string{relay.url()}, testLogger(),
		WithSettleDelay(10*time.Millisecond), WithAckTimeout(time.Second))
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	ev := &nostr.Event{ID: "pub1", Kind: nostr.KindTextNote, Content: "hi", Tags: nostr.Tags{}}
	require.NoError(t, c.Publish(ctx, ev))

	select {
	case raw := <-relay.published:
		var got struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		}
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "pub1", got.ID)
		assert.Equal(t, "hi", got.Content)
	case <-time.After(3 * time.Second):
		t.Fatal("relay never received the event")
	}
}

func TestConnectFailsWhenNoRelayReachable(t *testing.T) {
	c := New([]string{"ws://127.0.0.1:1"}, testLogger(), WithSettleDelay(time.Millisecond))
	assert.Error(t, c.Connect(context.Background()))
}

func TestConnectToleratesPartialFailure(t *testing.T) {
	relay := newFakeRelay(t)

	c := New([]string{"ws://127.0.0.1:1", relay.url()}, testLogger(), WithSettleDelay(time.Millisecond))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()
	assert.Equal(t, 1, c.Alive())
}

func TestPublishWithoutConnections(t *testing.T) {
	c := New(nil, testLogger())
	err := c.Publish(context.Background(), &nostr.Event{ID: "x", Tags: nostr.Tags{}})
	assert.Error(t, err)
}
