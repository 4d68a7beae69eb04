package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// StripFence removes a surrounding markdown code fence (``` or ```json)
// from a model response, if present. Text without a fence passes through
// unchanged.
func StripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	// Optional language tag on the opening fence line.
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		first := strings.TrimSpace(trimmed[:idx])
		if first == "" || isFenceTag(first) {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// ParseObject parses a model response into an object, stripping an optional
// code fence and repairing common JSON defects (trailing commas, single
// quotes, truncation) before giving up.
func ParseObject(s string) (map[string]any, error) {
	text := StripFence(s)
	if text == "" {
		return nil, fmt.Errorf("empty response text")
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, fmt.Errorf("unparseable response text: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, fmt.Errorf("unparseable response text after repair: %w", err)
	}
	return out, nil
}

// ParsePartial is the tolerant variant used while a response is still
// streaming: incomplete or malformed JSON yields an empty object instead of
// an error, so callers always get a usable snapshot.
func ParsePartial(s string) map[string]any {
	out, err := ParseObject(s)
	if err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
