package jsonschema

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
)

type defsRegistry struct {
	names     map[reflect.Type]string
	schemas   map[string]*schemaNode
	usedNames map[string]struct{}
}

func newDefsRegistry() *defsRegistry {
	return &defsRegistry{
		names:     map[reflect.Type]string{},
		schemas:   map[string]*schemaNode{},
		usedNames: map[string]struct{}{},
	}
}

func (r *defsRegistry) lookup(rt reflect.Type) (string, bool) {
	name, ok := r.names[rt]
	if !ok {
		return "", false
	}
	if _, defined := r.schemas[name]; !defined {
		return "", false
	}
	return refTo(name), true
}

// reserve names rt before its schema is complete so recursive types resolve.
func (r *defsRegistry) reserve(rt reflect.Type) string {
	if name, ok := r.names[rt]; ok {
		return refTo(name)
	}
	name := r.uniqueName(rt.Name())
	r.names[rt] = name
	return refTo(name)
}

func (r *defsRegistry) define(rt reflect.Type, node *schemaNode) string {
	ref := r.reserve(rt)
	r.schemas[r.names[rt]] = node
	return ref
}

func (r *defsRegistry) uniqueName(name string) string {
	safe := sanitizeDefName(name)
	if safe == "" {
		safe = "Schema"
	}
	if _, exists := r.usedNames[safe]; !exists {
		r.usedNames[safe] = struct{}{}
		return safe
	}
	for suffix := 1; ; suffix++ {
		candidate := fmt.Sprintf("%s%d", safe, suffix)
		if _, exists := r.usedNames[candidate]; !exists {
			r.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

func (r *defsRegistry) defsMap() map[string]any {
	if len(r.schemas) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(map[string]any, len(names))
	for _, name := range names {
		out[name] = r.schemas[name].toMap()
	}
	return out
}

func refTo(name string) string {
	return "#/$defs/" + name
}

var defNameRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func sanitizeDefName(name string) string {
	name = defNameRegexp.ReplaceAllString(name, "_")
	start, end := 0, len(name)
	for start < end && name[start] == '_' {
		start++
	}
	for end > start && name[end-1] == '_' {
		end--
	}
	name = name[start:end]
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}
