// Package prompt builds every prompt the pipeline sends and leniently
// parses what comes back. Models are asked for JSON but do not always
// comply; the parsers here recover what they can and report failure
// rather than guessing. System prompts are package constants so their
// bytes stay stable across calls, which is what makes provider prompt
// caching effective.
package prompt

import (
	"encoding/json"
	"strings"
)

// decodeLenient unmarshals a model response into v: first the whole body,
// then the first bracketed substring. Models habitually wrap JSON in prose
// or markdown fences; the substring pass strips all of that.
func decodeLenient(text string, v any) bool {
	text = strings.TrimSpace(text)
	if json.Unmarshal([]byte(text), v) == nil {
		return true
	}

	for _, pair := range [][2]byte{{'[', ']'}, {'{', '}'}} {
		start := strings.IndexByte(text, pair[0])
		end := strings.LastIndexByte(text, pair[1])
		if start >= 0 && end > start {
			if json.Unmarshal([]byte(text[start:end+1]), v) == nil {
				return true
			}
		}
	}
	return false
}
