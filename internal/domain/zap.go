package domain

// Zap represents a recorded zap receipt. It is written once per unique
// receipt event and never updated.
type Zap struct {
	// EventID is the id of the zap receipt event (primary key).
	EventID string

	// ZapperPubkey is the hex pubkey of the payer, empty when unknown.
	ZapperPubkey string

	// NoteID is the id of the zapped note, empty when the receipt did not
	// reference one.
	NoteID string

	// AmountMsat is the resolved amount in millisatoshi. Zero when the
	// amount could not be resolved.
	AmountMsat int64

	// CreatedAt is the receipt's creation timestamp (unix seconds).
	CreatedAt int64

	// Week is the ISO week bucket the receipt falls into, e.g. "2025-W36".
	Week string
}

// ParsedZap is the transient result of parsing a zap receipt's tags. It is
// not persisted; the ingestion loop turns it into a Zap.
type ParsedZap struct {
	// Sats is the resolved amount in whole sats, zero when Unknown.
	Sats int64

	// Unknown is set when no trusted amount source survived resolution.
	Unknown bool

	// ZapperPubkey is the payer's hex pubkey, empty when unknown.
	ZapperPubkey string

	// NoteID is the zapped note's id, empty when absent.
	NoteID string

	// RecipientsInRequest are the `p` pubkeys inside the embedded zap
	// request (description tag).
	RecipientsInRequest []string

	// RecipientsInEvent are the `p`/`P` pubkeys on the receipt itself.
	RecipientsInEvent []string

	// Relays are wss:// URLs hinted by the zap request.
	Relays []string
}

// LeaderboardRow is one zapper's aggregate for a week, computed on demand.
type LeaderboardRow struct {
	ZapperPubkey string
	TotalMsat    int64
	Count        int64
}
