package enrich

import (
	"encoding/json"
	"strings"
)

// parseJSONObject extracts a JSON object from free-form model output. It
// tries the whole text first, then the first '{' through the last '}', which
// tolerates JSON wrapped in prose. Returns nil when no object can be parsed.
func parseJSONObject(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil
	}

	parsed = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil
	}
	return parsed
}

// jsonString reads a string field, trimmed; empty or absent yields "".
func jsonString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// jsonFloat reads a numeric field, accepting numbers or numeric strings.
func jsonFloat(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		var f float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// jsonBool reads a bool field.
func jsonBool(m map[string]any, key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}
