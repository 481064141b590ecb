// Package llmjson extracts JSON payloads from completion text.
package llmjson

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencePattern spans from the first fence to the last one, so a payload
// that itself contains backticks survives intact.
var fencePattern = regexp.MustCompile("(?s)```(?i:json)?(.*)```")

// StripFences returns the body of a fenced block, or the trimmed input when
// there is none.
func StripFences(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// StringList parses a JSON array of strings, trimming entries and dropping
// empty ones and case-insensitive duplicates. limit <= 0 keeps everything.
func StringList(raw string, limit int) ([]string, error) {
	body := StripFences(raw)
	if body == "" {
		return nil, fmt.Errorf("empty response")
	}
	var items []string
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, fmt.Errorf("parse string list failed: %w", err)
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("string list is empty")
	}
	return out, nil
}
