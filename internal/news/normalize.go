package news

import (
	"fmt"
	"strings"
	"time"
)

// Epoch values above this are treated as milliseconds, not seconds.
const epochMillisThreshold = 10_000_000_000

// timeLayouts are tried in order after ISO-8601 and RFC-822 parsing fails.
var timeLayouts = []string{
	"20060102150405",
	"2006-01-02 15:04:05",
}

// ParseTime normalizes the timestamp representations seen across providers
// into UTC: epoch seconds, epoch milliseconds, ISO-8601 (with or without a
// trailing Z), RFC-822/RFC-1123 dates, and a few fixed layouts. Anything
// unparsable yields nil, never an error.
func ParseTime(value any) *time.Time {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		if v.IsZero() {
			return nil
		}
		u := v.UTC()
		return &u
	case *time.Time:
		if v == nil {
			return nil
		}
		return ParseTime(*v)
	case int:
		return fromEpoch(float64(v))
	case int64:
		return fromEpoch(float64(v))
	case float64:
		return fromEpoch(v)
	case string:
		return parseTimeString(v)
	default:
		return nil
	}
}

func fromEpoch(ts float64) *time.Time {
	if ts == 0 {
		return nil
	}
	if ts > epochMillisThreshold {
		ts = ts / 1000.0
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	t := time.Unix(sec, nsec).UTC()
	return &t
}

func parseTimeString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	// Epoch timestamps arrive as JSON numbers and are handled by the
	// int/float cases; all-digit strings here are fixed layouts like the
	// wire feed's 20060102150405, never epoch values.
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
	}
	layouts = append(layouts, timeLayouts...)

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// JSONSafe deep-converts an arbitrary provider payload into values that
// survive json.Marshal: strings, numbers, bools, nil, maps keyed by string,
// and slices. Timestamps become RFC3339 strings; anything else is
// stringified with fmt.
func JSONSafe(value any) any {
	switch v := value.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case time.Time:
		if t := ParseTime(v); t != nil {
			return t.Format(time.RFC3339)
		}
		return nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, raw := range v {
			out[k] = JSONSafe(raw)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, raw := range v {
			out[fmt.Sprint(k)] = JSONSafe(raw)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, raw := range v {
			out[i] = JSONSafe(raw)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return fmt.Sprint(v)
	}
}

// JSONSafeMap applies JSONSafe to every value of a payload map.
func JSONSafeMap(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = JSONSafe(v)
	}
	return out
}
