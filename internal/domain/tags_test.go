package domain

import (
	"encoding/json"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTag(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want nostr.Tag
		ok   bool
	}{
		{"array pair", `["p","abc"]`, nostr.Tag{"p", "abc"}, true},
		{"array with extra elements", `["e","note1","","reply"]`, nostr.Tag{"e", "note1", "", "reply"}, true},
		{"object with name and value", `{"name":"amount","value":"21000"}`, nostr.Tag{"amount", "21000"}, true},
		{"object with tag key", `{"tag":"p","value":"abc"}`, nostr.Tag{"p", "abc"}, true},
		{"object with values array", `{"name":"e","values":["e","note1"]}`, nostr.Tag{"e", "note1"}, true},
		{"array too short", `["p"]`, nil, false},
		{"bare string", `"p"`, nil, false},
		{"number", `42`, nil, false},
		{"object without value", `{"name":"p"}`, nil, false},
		{"object without name", `{"value":"abc"}`, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, ok := NormalizeTag(json.RawMessage(tt.raw))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, tag)
		})
	}
}

func TestNormalizeTagsSkipsJunk(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`["p","abc"]`),
		json.RawMessage(`42`),
		json.RawMessage(`{"name":"amount","value":"100"}`),
		json.RawMessage(`["short"]`),
	}

	tags := NormalizeTags(raw)
	require.Len(t, tags, 2)
	assert.Equal(t, nostr.Tag{"p", "abc"}, tags[0])
	assert.Equal(t, nostr.Tag{"amount", "100"}, tags[1])
}

func TestTagValues(t *testing.T) {
	tags := nostr.Tags{
		{"p", "first"},
		{"e", "note"},
		{"p", "second"},
		{"p"},
	}

	assert.Equal(t, []string{"first", "second"}, TagValues(tags, "p"))
	assert.Equal(t, []string{"note"}, TagValues(tags, "e"))
	assert.Nil(t, TagValues(tags, "missing"))
}
