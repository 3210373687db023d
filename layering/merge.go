// Package layering merges and clones JSON-shaped documents (the
// map[string]any / []any trees produced by encoding/json).
package layering

// Merge composes documents ordered from strongest to weakest. Keys present in
// a stronger layer win; nested objects are merged key by key so a weaker
// layer fills whatever the stronger one lacks. A null in a stronger layer
// counts as absent. Arrays are never merged: the strongest array wins whole.
// The result shares no maps or slices with the inputs.
func Merge(layers ...map[string]any) map[string]any {
	if len(layers) == 0 {
		return map[string]any{}
	}
	merged := Clone(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeObject(layers[i], merged)
	}
	if merged == nil {
		return map[string]any{}
	}
	return merged
}

// Overlay copies the top-level keys of strong over weak without descending
// into nested objects.
func Overlay(strong, weak map[string]any) map[string]any {
	out := Clone(weak)
	if out == nil {
		out = make(map[string]any, len(strong))
	}
	for key, value := range strong {
		if value == nil {
			continue
		}
		out[key] = CloneValue(value)
	}
	return out
}

func mergeObject(strong, weak map[string]any) map[string]any {
	if strong == nil {
		return weak
	}
	out := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		out[key] = value
	}
	for key, value := range strong {
		out[key] = mergeValue(value, out[key])
	}
	return out
}

func mergeValue(strong, weak any) any {
	switch typed := strong.(type) {
	case nil:
		return weak
	case map[string]any:
		weakObject, ok := weak.(map[string]any)
		if !ok {
			return Clone(typed)
		}
		return mergeObject(typed, weakObject)
	default:
		return CloneValue(strong)
	}
}

// Clone deep-copies a document.
func Clone(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for key, value := range doc {
		out[key] = CloneValue(value)
	}
	return out
}

// CloneValue deep-copies any JSON-shaped value.
func CloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return Clone(typed)
	case []any:
		if typed == nil {
			return typed
		}
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = CloneValue(typed[i])
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(typed))
		for i := range typed {
			out[i] = Clone(typed[i])
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return value
	}
}
