package rased

import "strings"

// SplitPath breaks a dotted path into segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// SetPath returns a copy of doc with value stored at the dotted path. Only the
// maps along the path are copied; doc itself is never modified. A missing or
// non-object intermediate is replaced by a fresh map.
func SetPath(doc map[string]any, path string, value any) map[string]any {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return shallowCopy(doc)
	}
	return setIn(doc, parts, value)
}

func setIn(node map[string]any, parts []string, value any) map[string]any {
	out := shallowCopy(node)
	key := parts[0]
	if len(parts) == 1 {
		out[key] = value
		return out
	}
	child, _ := out[key].(map[string]any)
	out[key] = setIn(child, parts[1:], value)
	return out
}

func shallowCopy(node map[string]any) map[string]any {
	out := make(map[string]any, len(node)+1)
	for key, value := range node {
		out[key] = value
	}
	return out
}

// GetPath reads the value at a dotted path.
func GetPath(doc map[string]any, path string) (any, bool) {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return nil, false
	}
	var current any = doc
	for _, part := range parts {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
