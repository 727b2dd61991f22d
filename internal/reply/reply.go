package reply

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/satstack/zap-thanks/internal/domain"
)

// DefaultTemplate is the acknowledgement text used when no template is
// configured. Placeholders: {sats}, {rank}, {who}.
const DefaultTemplate = "⚡ Thanks for the {sats} sats{who}! You're currently #{rank} this week. 🙏"

// RenderThanks fills the acknowledgement template. An unknown amount renders
// as the lightning glyph, and the mention clause is omitted entirely when the
// zapper is unknown or their pubkey does not re-encode. Placeholders the
// template author invented are left verbatim.
func RenderThanks(template string, sats int64, unknown bool, rank int, zapperHex string) string {
	satsStr := strconv.FormatInt(sats, 10)
	if unknown {
		satsStr = "⚡"
	}

	who := ""
	if zapperHex != "" {
		if npub, err := nip19.EncodePublicKey(zapperHex); err == nil {
			who = " (nostr:" + npub + ")"
		}
	}

	if template == "" {
		template = DefaultTemplate
	}
	return strings.NewReplacer(
		"{sats}", satsStr,
		"{rank}", strconv.Itoa(rank),
		"{who}", who,
	).Replace(template)
}

// BuildReply renders and signs the acknowledgement note for a zap. The reply
// back-references the zapper when known and marks the zapped note as the
// reply target.
func BuildReply(ack *domain.Acknowledgement, template, secretKey string) (*nostr.Event, error) {
	text := RenderThanks(template, ack.Zap.Sats, ack.Zap.Unknown, ack.Rank, ack.Zap.ZapperPubkey)

	tags := nostr.Tags{}
	if ack.Zap.ZapperPubkey != "" {
		tags = append(tags, nostr.Tag{"p", ack.Zap.ZapperPubkey})
	}
	if ack.Zap.NoteID != "" {
		tags = append(tags, nostr.Tag{"e", ack.Zap.NoteID, "", "reply"})
	}

	ev := &nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      nostr.KindTextNote,
		Tags:      tags,
		Content:   text,
	}
	if err := ev.Sign(secretKey); err != nil {
		return nil, fmt.Errorf("sign reply: %w", err)
	}
	return ev, nil
}
