package domain

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// hrpAmountRE matches the human-readable part of a BOLT11 invoice: "ln",
// a currency prefix of two or more letters, an optional decimal amount, an
// optional multiplier, and the literal '1' that starts the data section.
// Anchoring on the '1' after the multiplier is what makes "lnbc210n1..."
// parse as 210n (21 sats) instead of splitting at the first digit.
var hrpAmountRE = regexp.MustCompile(`^ln[a-z]{2,}([0-9]+(?:\.[0-9]+)?)([munp]?)1`)

// Multiplier factors in millisatoshi relative to one whole bitcoin
// (1 BTC = 100_000_000_000 msat).
var hrpMultipliers = map[string]decimal.Decimal{
	"m": decimal.New(1, 8),  // milli
	"u": decimal.New(1, 5),  // micro
	"n": decimal.New(1, 2),  // nano
	"p": decimal.New(1, -1), // pico
	"":  decimal.New(1, 11), // whole bitcoin
}

// maxMsat bounds results before IntPart, which wraps silently above int64.
var maxMsat = decimal.NewFromInt(math.MaxInt64)

// MsatFromBolt11 extracts the amount encoded in an invoice's human-readable
// part and converts it to millisatoshi, flooring fractional results.
//
//	lnbc300n1...  -> 30_000 msat (30 sats)
//	lnbc10.5u1... -> 1_050_000 msat
//	lnbc1m1...    -> 100_000_000 msat
//
// ok is false for amountless invoices, malformed prefixes, and non-positive
// results. An amountless invoice is not a zero-amount invoice.
func MsatFromBolt11(invoice string) (msat int64, ok bool) {
	s := strings.ToLower(strings.TrimSpace(invoice))
	if s == "" {
		return 0, false
	}

	m := hrpAmountRE.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	val, err := decimal.NewFromString(m[1])
	if err != nil {
		return 0, false
	}

	total := val.Mul(hrpMultipliers[m[2]])
	if total.Cmp(maxMsat) > 0 {
		return 0, false
	}
	out := total.IntPart()
	if out <= 0 {
		return 0, false
	}
	return out, true
}
