package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// Config holds all configuration for the zap listener and its companion
// commands.
type Config struct {
	// SecretKey is the hex-encoded signing key derived from NSEC.
	SecretKey string

	// Pubkey is the hex pubkey derived from SecretKey; receipts must be
	// addressed to it.
	Pubkey string

	// Relays is the configured relay URL list.
	Relays []string

	// DBPath is the SQLite database location.
	DBPath string

	// MinZapSats is the smallest amount that triggers a reply.
	MinZapSats int64

	// ThankTemplate is the acknowledgement template ({sats}, {rank}, {who}).
	ThankTemplate string

	// AllowSelfZap accepts receipts where the payer is this identity.
	AllowSelfZap bool

	// ReplyOnUnknown still replies when the amount could not be resolved.
	ReplyOnUnknown bool

	// MaxSaneSats is the sanity ceiling for amount candidates, in sats.
	MaxSaneSats int64

	// HealthAddr is the health/metrics listen address; empty disables it.
	HealthAddr string

	// TopN is how many zappers the weekly announcement lists.
	TopN int
}

// DefaultRelays is the fallback relay set for one-shot posting commands when
// RELAYS is not configured. The listener never uses it: its relay set decides
// which receipts are seen at all, so leaving it implicit would hide a
// misconfiguration.
var DefaultRelays = []string{
	"wss://relay.davidebtc.me",
	"wss://nos.lol",
	"wss://nostr-pub.wellorder.net",
	"wss://nostr.hifish.org",
	"wss://nostr.0x7e.xyz",
	"wss://nostr.massmux.com",
	"wss://relay.damus.io",
	"wss://relay.nostrplebs.com",
	"wss://relay.primal.net",
}

// Load reads configuration from the environment, honoring a .env file when
// present. Missing NSEC or RELAYS is a startup failure.
func Load() (*Config, error) {
	return load(nil)
}

// LoadWithDefaultRelays is Load, except a missing RELAYS falls back to
// DefaultRelays instead of failing.
func LoadWithDefaultRelays() (*Config, error) {
	return load(DefaultRelays)
}

func load(relayFallback []string) (*Config, error) {
	// A missing .env is fine; the environment may be set by the supervisor.
	_ = godotenv.Load()

	nsec := os.Getenv("NSEC")
	if nsec == "" {
		return nil, fmt.Errorf("NSEC is required")
	}
	secretKey, err := decodeNsec(nsec)
	if err != nil {
		return nil, fmt.Errorf("invalid NSEC: %w", err)
	}
	pubkey, err := nostr.GetPublicKey(secretKey)
	if err != nil {
		return nil, fmt.Errorf("derive pubkey: %w", err)
	}

	relays := splitList(os.Getenv("RELAYS"))
	if len(relays) == 0 {
		relays = relayFallback
	}
	if len(relays) == 0 {
		return nil, fmt.Errorf("RELAYS is required")
	}

	return &Config{
		SecretKey:      secretKey,
		Pubkey:         pubkey,
		Relays:         relays,
		DBPath:         getEnv("DB_PATH", "./zaps.db"),
		MinZapSats:     getEnvInt64("MIN_ZAP_SATS", 50),
		ThankTemplate:  getEnv("THANK_TEMPLATE", ""),
		AllowSelfZap:   os.Getenv("ALLOW_SELF_ZAP") == "1",
		ReplyOnUnknown: getEnv("REPLY_ON_UNKNOWN", "1") == "1",
		MaxSaneSats:    getEnvInt64("MAX_SANE_SATS", 10_000_000),
		HealthAddr:     getEnv("HEALTH_ADDR", ":8990"),
		TopN:           int(getEnvInt64("TOP_N", 10)),
	}, nil
}

// Npub returns this identity's bech32 display form.
func (c *Config) Npub() string {
	npub, err := nip19.EncodePublicKey(c.Pubkey)
	if err != nil {
		return c.Pubkey
	}
	return npub
}

func decodeNsec(nsec string) (string, error) {
	prefix, value, err := nip19.Decode(strings.TrimSpace(nsec))
	if err != nil {
		return "", err
	}
	if prefix != "nsec" {
		return "", fmt.Errorf("expected an nsec, got %q", prefix)
	}
	sk, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected nsec payload type %T", value)
	}
	return sk, nil
}

// splitList splits on commas and whitespace, dropping empties.
func splitList(raw string) []string {
	var out []string
	for _, chunk := range strings.Split(raw, ",") {
		for _, item := range strings.Fields(chunk) {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}
