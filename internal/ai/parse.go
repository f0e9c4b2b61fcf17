package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// Matches ```json\n{...}\n```, ```{...}``` and similar fences.
	codeFenceRegex = regexp.MustCompile("(?s)```(?:json|javascript|js)?\\s*\\n?(.*?)\\n?```")
	trailingComma  = regexp.MustCompile(`,(\s*[}\]])`)
)

// parseJSON decodes model output into T, tolerating code fences, prose around
// the JSON object and trailing commas.
func parseJSON[T any](text string) (T, error) {
	var out T
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return out, fmt.Errorf("%w: empty response", ErrMalformedOutput)
	}

	candidates := []string{trimmed}
	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		candidates = append(candidates, trimmed[start:end+1])
	}

	var lastErr error
	for _, c := range candidates {
		for _, attempt := range []string{c, trailingComma.ReplaceAllString(c, "$1")} {
			var v T
			if err := json.Unmarshal([]byte(attempt), &v); err != nil {
				lastErr = err
				continue
			}
			return v, nil
		}
	}
	return out, fmt.Errorf("%w: %v", ErrMalformedOutput, lastErr)
}

// normalizePriority maps loose model spellings onto the three priorities.
func normalizePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "urgent", "critical":
		return PriorityHigh, true
	case "medium", "moderate", "normal":
		return PriorityMedium, true
	case "low":
		return PriorityLow, true
	}
	return "", false
}
