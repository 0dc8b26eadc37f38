// Package jsonx extracts JSON objects from LLM completion text. Model output
// frequently wraps the payload in markdown code fences or leaves trailing
// commas behind, so strict parsing alone is not enough.
package jsonx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// ExtractObject parses a single JSON object out of raw completion text.
// It tries progressively more tolerant strategies:
//  1. strict unmarshal of the trimmed text
//  2. strip markdown code fences and retry
//  3. remove trailing commas and retry
//  4. take the outermost {...} slice and retry
func ExtractObject(raw string) (map[string]interface{}, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("empty response text")
	}

	if obj, err := tryUnmarshal(text); err == nil {
		return obj, nil
	}

	text = StripCodeFences(text)
	if obj, err := tryUnmarshal(text); err == nil {
		return obj, nil
	}

	cleaned := trailingCommaRe.ReplaceAllString(text, "$1")
	if obj, err := tryUnmarshal(cleaned); err == nil {
		return obj, nil
	}

	startIdx := strings.Index(cleaned, "{")
	endIdx := strings.LastIndex(cleaned, "}")
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return nil, fmt.Errorf("no JSON object found in response: %s", truncate(raw, 120))
	}

	obj, err := tryUnmarshal(cleaned[startIdx : endIdx+1])
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w, response: %s", err, truncate(raw, 120))
	}
	return obj, nil
}

// StripCodeFences removes a surrounding markdown code block, tolerating a
// language tag on the opening fence.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	if idx := strings.Index(text, "\n"); idx != -1 {
		text = text[idx+1:]
	} else {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
	}
	if end := strings.LastIndex(text, "```"); end != -1 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

func tryUnmarshal(text string) (map[string]interface{}, error) {
	if !strings.HasPrefix(text, "{") {
		return nil, fmt.Errorf("not a JSON object")
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
