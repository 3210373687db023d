package jsonschema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

type schemaNode struct {
	Ref         string
	Type        any
	Format      string
	Description string
	Properties  map[string]*schemaNode
	Required    []string
	Items       *schemaNode
	MinItems    *int
	MaxItems    *int
	OneOf       []*schemaNode
	Enum        []any
	Pattern     string
	Additional  *bool
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) toMap() map[string]any {
	if n == nil {
		return map[string]any{}
	}
	if n.Ref != "" {
		return map[string]any{"$ref": n.Ref}
	}
	result := map[string]any{}
	if n.Type != nil {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Description != "" {
		result["description"] = n.Description
	}
	if len(n.Enum) > 0 {
		result["enum"] = n.Enum
	}
	if n.Pattern != "" {
		result["pattern"] = n.Pattern
	}
	if n.Properties != nil {
		props := make(map[string]any, len(n.Properties))
		for name, child := range n.Properties {
			props[name] = child.toMap()
		}
		result["properties"] = props
	}
	if len(n.Required) > 0 {
		required := append([]string{}, n.Required...)
		sort.Strings(required)
		result["required"] = required
	}
	if n.Additional != nil {
		result["additionalProperties"] = *n.Additional
	}
	if n.Items != nil {
		result["items"] = n.Items.toMap()
	}
	if n.MinItems != nil {
		result["minItems"] = *n.MinItems
	}
	if n.MaxItems != nil {
		result["maxItems"] = *n.MaxItems
	}
	if len(n.OneOf) > 0 {
		variants := make([]any, 0, len(n.OneOf))
		for _, variant := range n.OneOf {
			variants = append(variants, variant.toMap())
		}
		result["oneOf"] = variants
	}
	return result
}

// Override builds the node for a type whose JSON form is not its Go shape.
type Override func() *schemaNode

type schemaBuilder struct {
	registry  *defsRegistry
	overrides map[reflect.Type]Override
	extend    map[reflect.Type]func(*schemaNode)
	visited   map[reflect.Type]bool
}

func newSchemaBuilder(registry *defsRegistry) *schemaBuilder {
	return &schemaBuilder{
		registry:  registry,
		overrides: map[reflect.Type]Override{},
		extend:    map[reflect.Type]func(*schemaNode){},
		visited:   map[reflect.Type]bool{},
	}
}

func (b *schemaBuilder) build(rt reflect.Type) (*schemaNode, error) {
	if rt == nil {
		return newObjectNode(), nil
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if override, ok := b.overrides[rt]; ok {
		return override(), nil
	}
	if rt == reflect.TypeOf(time.Time{}) {
		return &schemaNode{Type: "string", Format: "date-time"}, nil
	}

	switch rt.Kind() {
	case reflect.Interface:
		return &schemaNode{}, nil
	case reflect.Bool:
		return &schemaNode{Type: "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &schemaNode{Type: "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return &schemaNode{Type: "number"}, nil
	case reflect.String:
		return &schemaNode{Type: "string"}, nil
	case reflect.Struct:
		return b.buildNamedStruct(rt)
	case reflect.Map:
		return b.buildMap(rt)
	case reflect.Slice, reflect.Array:
		return b.buildSlice(rt)
	default:
		return nil, fmt.Errorf("jsonschema: unsupported kind %s for %s", rt.Kind(), rt)
	}
}

// buildNamedStruct publishes named structs under $defs and returns a
// reference to them.
func (b *schemaBuilder) buildNamedStruct(rt reflect.Type) (*schemaNode, error) {
	if rt.Name() == "" {
		return b.buildStruct(rt)
	}
	if ref, ok := b.registry.lookup(rt); ok {
		return &schemaNode{Ref: ref}, nil
	}
	if b.visited[rt] {
		return &schemaNode{Ref: b.registry.reserve(rt)}, nil
	}
	b.visited[rt] = true
	defer delete(b.visited, rt)

	node, err := b.buildStruct(rt)
	if err != nil {
		return nil, err
	}
	return &schemaNode{Ref: b.registry.define(rt, node)}, nil
}

func (b *schemaBuilder) buildStruct(rt reflect.Type) (*schemaNode, error) {
	node := newObjectNode()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := parseJSONName(field)
		if skip {
			continue
		}
		child, err := b.build(field.Type)
		if err != nil {
			return nil, err
		}
		applyFieldMetadata(child, field)
		node.Properties[name] = child
		if isFieldRequired(field, omitEmpty) {
			node.Required = append(node.Required, name)
		}
	}
	if extend, ok := b.extend[rt]; ok {
		extend(node)
	}
	return node, nil
}

func (b *schemaBuilder) buildMap(rt reflect.Type) (*schemaNode, error) {
	if rt.Key().Kind() != reflect.String {
		return nil, fmt.Errorf("jsonschema: map key type %s unsupported", rt.Key())
	}
	return &schemaNode{Type: "object"}, nil
}

func (b *schemaBuilder) buildSlice(rt reflect.Type) (*schemaNode, error) {
	child, err := b.build(rt.Elem())
	if err != nil {
		return nil, err
	}
	node := &schemaNode{Type: "array", Items: child}
	if rt.Kind() == reflect.Array {
		n := rt.Len()
		node.MinItems = &n
		node.MaxItems = &n
	}
	return node, nil
}

func parseJSONName(field reflect.StructField) (name string, omitEmpty bool, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name, false, false
	}
	segments := strings.Split(tag, ",")
	if segments[0] == "-" {
		return "", false, true
	}
	name = segments[0]
	if name == "" {
		name = field.Name
	}
	for _, segment := range segments[1:] {
		if segment == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func isFieldRequired(field reflect.StructField, omitEmpty bool) bool {
	return !omitEmpty && field.Type.Kind() != reflect.Pointer
}

// applyFieldMetadata copies the format and pattern struct tags. References
// are left alone since $ref siblings are ignored by older validators.
func applyFieldMetadata(node *schemaNode, field reflect.StructField) {
	if node.Ref != "" {
		return
	}
	if format := field.Tag.Get("format"); format != "" {
		node.Format = format
	}
	if pattern := field.Tag.Get("pattern"); pattern != "" {
		node.Pattern = pattern
	}
}

func stringEnum[T ~string](values []T) []any {
	out := make([]any, 0, len(values))
	for _, value := range values {
		out = append(out, string(value))
	}
	return out
}
