// Package jsonx recovers structured data from language model output that may wrap
// JSON in code fences or prose.
package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var ErrNoJSON = errors.New("no json found in response")

var (
	greedyObject = regexp.MustCompile(`(?s)\{.*\}`)
	greedyArray  = regexp.MustCompile(`(?s)\[.*\]`)
	flatObject   = regexp.MustCompile(`\{[^{}]*\}`)
	trailingComa = regexp.MustCompile(`,\s*([}\]])`)
)

// StripFences removes markdown code fences around a payload.
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// ExtractObject returns the first JSON object found in raw. The greedy span from the
// first '{' to the last '}' is tried first, then the first balanced span.
func ExtractObject(raw string) (map[string]any, error) {
	cleaned := StripFences(raw)

	for _, candidate := range candidates(cleaned, greedyObject, '{', '}') {
		var data map[string]any
		if err := json.Unmarshal([]byte(candidate), &data); err == nil {
			return data, nil
		}
	}

	return nil, fmt.Errorf("object: %w", ErrNoJSON)
}

// ExtractArray returns the first JSON array found in raw.
func ExtractArray(raw string) ([]any, error) {
	cleaned := StripFences(raw)

	for _, candidate := range candidates(cleaned, greedyArray, '[', ']') {
		var data []any
		if err := json.Unmarshal([]byte(candidate), &data); err == nil {
			return data, nil
		}
	}

	return nil, fmt.Errorf("array: %w", ErrNoJSON)
}

// ExtractFlatObjects salvages every non-nested object that carries all required keys.
// It is the last resort when the surrounding array is broken.
func ExtractFlatObjects(raw string, required ...string) []map[string]any {
	var result []map[string]any
	for _, match := range flatObject.FindAllString(raw, -1) {
		var data map[string]any
		if err := json.Unmarshal([]byte(trailingComa.ReplaceAllString(match, "$1")), &data); err != nil {
			continue
		}
		if hasKeys(data, required) {
			result = append(result, data)
		}
	}
	return result
}

func candidates(s string, greedy *regexp.Regexp, open, closing byte) []string {
	var result []string
	if match := greedy.FindString(s); match != "" {
		result = append(result, match, trailingComa.ReplaceAllString(match, "$1"))
	}
	if span, ok := balancedSpan(s, open, closing); ok {
		result = append(result, span, trailingComa.ReplaceAllString(span, "$1"))
	}
	return result
}

// balancedSpan finds the first balanced span delimited by open/closing, ignoring
// delimiters inside string literals.
func balancedSpan(s string, open, closing byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == closing:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

func hasKeys(data map[string]any, keys []string) bool {
	for _, key := range keys {
		if _, ok := data[key]; !ok {
			return false
		}
	}
	return true
}

func Bool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes" || lower == "oui"
	case float64:
		return val != 0
	default:
		return false
	}
}

// Float returns NaN when v cannot be read as a number.
func Float(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// Int accepts only values that represent a whole number.
func Int(v any) (int, bool) {
	f := Float(v)
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func String(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// Strings reads a list of strings. A single comma separated string is split.
func Strings(v any) []string {
	var result []string
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := String(item); s != "" {
				result = append(result, s)
			}
		}
	case []string:
		for _, item := range val {
			if s := strings.TrimSpace(item); s != "" {
				result = append(result, s)
			}
		}
	case string:
		for _, item := range strings.Split(val, ",") {
			if s := strings.TrimSpace(item); s != "" {
				result = append(result, s)
			}
		}
	}
	return result
}
