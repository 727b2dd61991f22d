package domain

import (
	"encoding/json"

	"github.com/nbd-wtf/go-nostr"
)

// NormalizeTag maps one wire representation of a tag into the canonical
// name/value sequence form. Producers disagree on the shape of a tag entry;
// three are accepted:
//
//   - an array of strings with at least two elements: ["p", "<hex>", ...]
//   - an object with a "name" (or "tag") key and a "value" key
//   - an object with a "name" (or "tag") key and a "values" array, whose
//     second element is the value
//
// Anything else is rejected with ok == false so callers can skip it. All
// business logic downstream operates on the canonical form only.
func NormalizeTag(raw json.RawMessage) (nostr.Tag, bool) {
	var arr nostr.Tag
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) < 2 {
			return nil, false
		}
		return arr, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}

	name, ok := stringField(obj, "name", "tag")
	if !ok {
		return nil, false
	}

	if value, ok := stringField(obj, "value"); ok {
		return nostr.Tag{name, value}, true
	}

	var values []json.RawMessage
	if err := json.Unmarshal(obj["values"], &values); err == nil && len(values) >= 2 {
		var value string
		if err := json.Unmarshal(values[1], &value); err == nil {
			return nostr.Tag{name, value}, true
		}
	}

	return nil, false
}

// NormalizeTags applies NormalizeTag to each entry, silently dropping
// entries of unrecognized shape.
func NormalizeTags(raw []json.RawMessage) nostr.Tags {
	tags := make(nostr.Tags, 0, len(raw))
	for _, r := range raw {
		if tag, ok := NormalizeTag(r); ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

// TagValues returns the ordered values of every occurrence of the named tag.
// Tags are not required to be unique by name.
func TagValues(tags nostr.Tags, name string) []string {
	var out []string
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == name {
			out = append(out, tag[1])
		}
	}
	return out
}

func stringField(obj map[string]json.RawMessage, keys ...string) (string, bool) {
	for _, k := range keys {
		raw, present := obj[k]
		if !present {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	}
	return "", false
}
