// Package payload converts loosely-typed inbound JSON into plain Go values.
//
// Downstream clients send snake_case and camelCase spellings of the same
// field, scalars where lists are expected, and JSON-encoded lists inside
// strings. Everything here is tolerant: malformed values coerce to nothing
// rather than erroring, so business logic only ever sees clean strings.
package payload

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/datavents/datavents/pkg/hashset"
)

// CoerceStringList turns an arbitrary JSON value into a list of strings.
// Accepted shapes: a string (possibly a JSON-encoded list), a number, or a
// list of strings/numbers. Anything else yields an empty list.
func CoerceStringList(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return CoerceStringList(arr)
			}
		}
		return []string{s}
	case float64:
		return []string{formatNumber(v)}
	case json.Number:
		return []string{v.String()}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch it := item.(type) {
			case string:
				if s := strings.TrimSpace(it); s != "" {
					out = append(out, s)
				}
			case float64:
				out = append(out, formatNumber(it))
			case json.Number:
				out = append(out, it.String())
			}
		}
		return out
	case []string:
		return v
	default:
		return nil
	}
}

// CollectStrings gathers coerced string lists for every listed key of source.
func CollectStrings(source map[string]any, keys ...string) []string {
	if source == nil {
		return nil
	}
	var out []string
	for _, key := range keys {
		out = append(out, CoerceStringList(source[key])...)
	}
	return out
}

// DedupePreserve removes duplicates while keeping first-seen order.
func DedupePreserve(items []string) []string {
	seen := hashset.NewSet[string]()
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" || seen.Has(item) {
			continue
		}
		seen.Set(item)
		out = append(out, item)
	}
	return out
}

// FirstString returns the first non-empty string found under any of the keys
// across the given sources, in order.
func FirstString(keys []string, sources ...map[string]any) string {
	for _, source := range sources {
		if source == nil {
			continue
		}
		for _, key := range keys {
			switch v := source[key].(type) {
			case string:
				if s := strings.TrimSpace(v); s != "" {
					return s
				}
			case float64:
				return formatNumber(v)
			case json.Number:
				return v.String()
			}
		}
	}
	return ""
}

// FirstInt returns the first value parseable as an integer found under any
// of the keys across the given sources.
func FirstInt(keys []string, sources ...map[string]any) (int64, bool) {
	for _, source := range sources {
		if source == nil {
			continue
		}
		for _, key := range keys {
			switch v := source[key].(type) {
			case float64:
				return int64(v), true
			case json.Number:
				if i, err := v.Int64(); err == nil {
					return i, true
				}
			case string:
				s := strings.TrimSpace(v)
				if s == "" {
					continue
				}
				if i, err := strconv.ParseInt(s, 10, 64); err == nil {
					return i, true
				}
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					return int64(f), true
				}
			}
		}
	}
	return 0, false
}

// FirstFloat returns the first value parseable as a float found under any of
// the keys across the given sources.
func FirstFloat(keys []string, sources ...map[string]any) (float64, bool) {
	for _, source := range sources {
		if source == nil {
			continue
		}
		for _, key := range keys {
			switch v := source[key].(type) {
			case float64:
				return v, true
			case json.Number:
				if f, err := v.Float64(); err == nil {
					return f, true
				}
			case string:
				if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
					return f, true
				}
			}
		}
	}
	return 0, false
}

// AsObject returns value as a JSON object, or nil when it is not one.
func AsObject(value any) map[string]any {
	obj, _ := value.(map[string]any)
	return obj
}

// TruthyFlag interprets common boolean spellings ("1", "true", "yes", "on",
// true) used by query parameters and JSON bodies.
func TruthyFlag(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v == 1
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			return true
		}
	}
	return false
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
