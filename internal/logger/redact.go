package logger

import (
	"fmt"
	"strings"
)

const redacted = "[REDACTED]"

// redactKeys match guardian contacts, the child's identity and free text
// that tends to hold health details.
var redactKeys = []string{
	"email", "tel", "phone",
	"date_naissance", "birth",
	"nom", "prenom", "name",
	"difficultes", "remarques", "sante", "contact",
}

// Field paths are logged under these keys; their values are the path, not
// the data, so they are never redacted.
var pathKeys = map[string]struct{}{"field": {}, "path": {}}

func sanitizeKVs(kv []any) []any {
	if len(kv) == 0 {
		return kv
	}
	out := make([]any, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := toString(kv[i])
		out = append(out, key, sanitizeValue(strings.ToLower(strings.TrimSpace(key)), kv[i+1]))
	}
	return out
}

func sanitizeValue(key string, val any) any {
	if key == "" {
		return val
	}
	if _, ok := pathKeys[key]; ok {
		return val
	}
	if isRedactKey(key) {
		return redacted
	}
	switch v := val.(type) {
	case map[string]any:
		return sanitizeMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(key, item)
		}
		return out
	default:
		return val
	}
}

func sanitizeMap(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = sanitizeValue(strings.ToLower(strings.TrimSpace(k)), v)
	}
	return out
}

func isRedactKey(key string) bool {
	for _, needle := range redactKeys {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
