// Package llmjson extracts a JSON object from free-form model output.
package llmjson

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?is)```(?:json)?[ \\t]*\\r?\\n?(.*?)```")

// Parse returns the first JSON object found in text. It tries, in order, the
// whole text, each fenced code block, and the outermost brace-delimited span.
// When nothing parses it returns an empty, non-nil map.
func Parse(text string) map[string]interface{} {
	if obj, ok := decode(text); ok {
		return obj
	}
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if obj, ok := decode(m[1]); ok {
			return obj
		}
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		if obj, ok := decode(text[start : end+1]); ok {
			return obj
		}
	}
	return map[string]interface{}{}
}

func decode(s string) (map[string]interface{}, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// String returns obj[key] when it is a string, otherwise "".
func String(obj map[string]interface{}, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}

// Strings returns obj[key] as a slice of strings. A single string value is
// split on commas; non-string elements are skipped.
func Strings(obj map[string]interface{}, key string) []string {
	switch v := obj[key].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return strings.Split(v, ",")
	}
	return nil
}
