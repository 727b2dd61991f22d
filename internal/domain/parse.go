package domain

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// zapRequest is the JSON payload carried in a receipt's description tag: the
// original zap request event, whose tags may themselves be heterogeneous.
type zapRequest struct {
	Pubkey string            `json:"pubkey"`
	Tags   []json.RawMessage `json:"tags"`
}

// ParseZap extracts the payer, note reference, recipients, hinted relays and
// amount from a zap receipt.
//
// Up to three amount sources are reconciled, in priority order: the amount
// tag inside the zap request, the amount tag on the receipt itself, and the
// invoice's human-readable part. Non-positive and non-numeric candidates are
// dropped, and the first candidate at or under maxSaneSats wins. When none
// survives the amount is unknown and contributes zero.
func ParseZap(ev *nostr.Event, maxSaneSats int64) *ParsedZap {
	res := &ParsedZap{Unknown: true}

	var msDesc, msReceipt, msHRP int64

	if desc := TagValues(ev.Tags, "description"); len(desc) > 0 {
		var req zapRequest
		if err := json.Unmarshal([]byte(desc[0]), &req); err == nil {
			res.ZapperPubkey = req.Pubkey
			for _, raw := range req.Tags {
				tag, ok := NormalizeTag(raw)
				if !ok {
					continue
				}
				switch tag[0] {
				case "e":
					if res.NoteID == "" {
						res.NoteID = tag[1]
					}
				case "p":
					res.RecipientsInRequest = append(res.RecipientsInRequest, tag[1])
				case "relays":
					for _, u := range tag[1:] {
						if strings.HasPrefix(u, "wss://") {
							res.Relays = append(res.Relays, strings.TrimSpace(u))
						}
					}
				case "amount":
					if ms, err := strconv.ParseInt(strings.TrimSpace(tag[1]), 10, 64); err == nil {
						msDesc = ms
					}
				}
			}
		}
	}

	if amt := TagValues(ev.Tags, "amount"); len(amt) > 0 {
		if ms, err := strconv.ParseInt(strings.TrimSpace(amt[0]), 10, 64); err == nil {
			msReceipt = ms
		}
	}

	if bolt := TagValues(ev.Tags, "bolt11"); len(bolt) > 0 {
		if ms, ok := MsatFromBolt11(bolt[0]); ok {
			msHRP = ms
		}
	}

	for _, ms := range []int64{msDesc, msReceipt, msHRP} {
		if ms <= 0 {
			continue
		}
		if ms/1000 > maxSaneSats {
			continue
		}
		res.Sats = ms / 1000
		res.Unknown = false
		break
	}

	res.RecipientsInEvent = append(TagValues(ev.Tags, "p"), TagValues(ev.Tags, "P")...)

	// The receipt's own tags are the fallback for payer and note.
	if res.ZapperPubkey == "" {
		if payers := TagValues(ev.Tags, "P"); len(payers) > 0 {
			res.ZapperPubkey = payers[0]
		}
	}
	if res.NoteID == "" {
		if notes := TagValues(ev.Tags, "e"); len(notes) > 0 {
			res.NoteID = notes[0]
		}
	}

	return res
}
