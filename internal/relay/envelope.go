package relay

import (
	"encoding/json"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/satstack/zap-thanks/internal/domain"
)

// parseFrame splits a relay message into its label and trailing elements.
// Relay messages are JSON arrays whose first element names the message type
// ("EVENT", "OK", "EOSE", "NOTICE").
func parseFrame(data []byte) (string, []json.RawMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return "", nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	if len(arr) == 0 {
		return "", nil, fmt.Errorf("empty frame")
	}
	var label string
	if err := json.Unmarshal(arr[0], &label); err != nil {
		return "", nil, fmt.Errorf("unmarshal frame label: %w", err)
	}
	return label, arr[1:], nil
}

// wireEvent is the raw JSON structure of an event as delivered by a relay.
// Tags are kept raw so heterogeneous shapes can be normalized before any
// business logic sees them.
type wireEvent struct {
	ID        string            `json:"id"`
	PubKey    string            `json:"pubkey"`
	CreatedAt int64             `json:"created_at"`
	Kind      int               `json:"kind"`
	Tags      []json.RawMessage `json:"tags"`
	Content   string            `json:"content"`
	Sig       string            `json:"sig"`
}

// decodeEvent parses an event payload, normalizing its tags into the
// canonical form at the transport boundary.
func decodeEvent(raw json.RawMessage) (*nostr.Event, error) {
	var we wireEvent
	if err := json.Unmarshal(raw, &we); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &nostr.Event{
		ID:        we.ID,
		PubKey:    we.PubKey,
		CreatedAt: nostr.Timestamp(we.CreatedAt),
		Kind:      we.Kind,
		Tags:      domain.NormalizeTags(we.Tags),
		Content:   we.Content,
		Sig:       we.Sig,
	}, nil
}

// okResult is a NIP-20 command result for a published event.
type okResult struct {
	eventID  string
	accepted bool
	reason   string
}

func parseOK(rest []json.RawMessage) (*okResult, error) {
	if len(rest) < 2 {
		return nil, fmt.Errorf("short OK frame")
	}
	res := &okResult{}
	if err := json.Unmarshal(rest[0], &res.eventID); err != nil {
		return nil, fmt.Errorf("unmarshal OK event id: %w", err)
	}
	if err := json.Unmarshal(rest[1], &res.accepted); err != nil {
		return nil, fmt.Errorf("unmarshal OK status: %w", err)
	}
	if len(rest) > 2 {
		// The reason is informational; ignore a malformed one.
		_ = json.Unmarshal(rest[2], &res.reason)
	}
	return res, nil
}
