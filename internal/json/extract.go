// Package json extracts JSON replies from LLM text.
//
// Models asked for a JSON reply often wrap it in markdown fences or
// surround it with commentary. This package digs the object out.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONFromResponse extracts and parses the JSON object in a
// model reply. Handles pure JSON, fenced JSON, and an object embedded
// in surrounding text. Objects only, not arrays; brace matching is
// simple and can fail on braces inside strings.
func ExtractJSONFromResponse[T any](response string) (T, error) {
	var result T
	jsonStr, err := extractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// extractJSON finds the JSON portion of a reply: the full reply if it
// parses, otherwise the span from the first '{' to the last '}'.
func extractJSON(response string) (string, error) {
	response = stripMarkdownFences(response)

	var test interface{}
	if err := json.Unmarshal([]byte(response), &test); err == nil {
		return response, nil
	}

	start := strings.Index(response, "{")
	if start != -1 {
		end := strings.LastIndex(response, "}")
		if end > start {
			candidate := response[start : end+1]
			if err := json.Unmarshal([]byte(candidate), &test); err == nil {
				return candidate, nil
			}
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview)
}

// stripMarkdownFences removes ```json ... ``` style fences.
func stripMarkdownFences(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}
	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}
	return trimmed
}
