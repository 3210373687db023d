// Package jsonschema describes the exported RASED documents as JSON Schema
// (draft 2020-12), derived from the Go types by reflection.
package jsonschema

import (
	"fmt"
	"reflect"
	"strings"

	rased "github.com/goliatone/go-rased"
)

// Draft is the meta-schema URI stamped on every document.
const Draft = "https://json-schema.org/draft/2020-12/schema"

// Scope selects the root of the generated document.
type Scope string

const (
	ScopeSession Scope = "session"
	ScopeStudent Scope = "student"
)

type generatorConfig struct {
	id          string
	title       string
	description string
}

// Option configures Generate.
type Option func(*generatorConfig)

// WithID sets $id.
func WithID(id string) Option {
	return func(cfg *generatorConfig) {
		cfg.id = strings.TrimSpace(id)
	}
}

// WithTitle overrides the default title. Empty strings keep the default.
func WithTitle(title string) Option {
	return func(cfg *generatorConfig) {
		if title = strings.TrimSpace(title); title != "" {
			cfg.title = title
		}
	}
}

// WithDescription sets the root description.
func WithDescription(description string) Option {
	return func(cfg *generatorConfig) {
		cfg.description = strings.TrimSpace(description)
	}
}

// Generate builds the schema of an exported document of scope.
func Generate(scope Scope, opts ...Option) (map[string]any, error) {
	var root reflect.Type
	cfg := generatorConfig{}
	switch scope {
	case ScopeSession, "":
		root = reflect.TypeOf(rased.Session{})
		cfg.title = "RASED session"
	case ScopeStudent:
		root = reflect.TypeOf(rased.StudentRecord{})
		cfg.title = "RASED student record"
	default:
		return nil, fmt.Errorf("jsonschema: unknown scope %q", scope)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	registry := newDefsRegistry()
	builder := newSchemaBuilder(registry)
	registerDomainTypes(builder)

	node, err := builder.build(root)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{
		"$schema": Draft,
		"title":   cfg.title,
	}
	if cfg.id != "" {
		doc["$id"] = cfg.id
	}
	if cfg.description != "" {
		doc["description"] = cfg.description
	}
	if node.Ref != "" {
		// Inline the root so the document is usable without resolving $defs.
		name := strings.TrimPrefix(node.Ref, "#/$defs/")
		node = registry.schemas[name]
		delete(registry.schemas, name)
	}
	for key, value := range node.toMap() {
		doc[key] = value
	}
	if defs := registry.defsMap(); defs != nil {
		doc["$defs"] = defs
	}
	return doc, nil
}

// registerDomainTypes describes the types whose JSON encoding differs from
// their Go shape and fills the catalog enums.
func registerDomainTypes(b *schemaBuilder) {
	enumOf := func(values []any, allowEmpty bool) Override {
		enum := dedupe(values)
		if allowEmpty {
			enum = append([]any{""}, enum...)
		}
		return func() *schemaNode {
			return &schemaNode{Type: "string", Enum: append([]any(nil), enum...)}
		}
	}
	b.overrides[reflect.TypeOf(rased.SchoolType(""))] = enumOf(stringEnum(rased.SchoolTypes), true)
	b.overrides[reflect.TypeOf(rased.Sex(""))] = enumOf([]any{string(rased.SexFemale), string(rased.SexMale)}, true)
	b.overrides[reflect.TypeOf(rased.Screening(""))] = enumOf(stringEnum([]rased.Screening{rased.ScreeningNo, rased.ScreeningToCheck, rased.ScreeningYes}), true)
	b.overrides[reflect.TypeOf(rased.CareType(""))] = enumOf(stringEnum(rased.CareTypes), true)
	b.overrides[reflect.TypeOf(rased.CodeStage(""))] = enumOf(stringEnum(rased.CodeStages), true)

	b.overrides[reflect.TypeOf(rased.TriState(0))] = func() *schemaNode {
		return &schemaNode{Type: []any{"boolean", "null"}, Description: "null when unanswered"}
	}
	b.overrides[reflect.TypeOf(rased.WPM(0))] = func() *schemaNode {
		return &schemaNode{OneOf: []*schemaNode{
			{Type: "integer"},
			{Type: "string", Pattern: `^\s*([0-9]+([.,][0-9]+)?)?\s*$`},
		}, Description: "words per minute; empty string when not measured"}
	}
	b.overrides[reflect.TypeOf(rased.Generation(0))] = func() *schemaNode {
		return &schemaNode{
			Type:        "integer",
			Enum:        []any{int(rased.GenerationLegacy), int(rased.GenerationCurrent)},
			Description: "1 = legacy evaluation rows, 2 = current",
		}
	}

	legacyRow := reflect.TypeOf(rased.LegacyEntry{})
	currentRow := reflect.TypeOf(rased.Assessment{})
	b.extend[reflect.TypeOf(rased.StudentRecord{})] = func(node *schemaNode) {
		for _, key := range []string{"comportement", "apprentissages"} {
			legacy, _ := b.build(legacyRow)
			current, _ := b.build(currentRow)
			node.Properties[key] = &schemaNode{
				Type: "array",
				Items: &schemaNode{OneOf: []*schemaNode{
					current,
					legacy,
				}},
				Description: "rows follow meta.evaluation_schema",
			}
			node.Required = append(node.Required, key)
		}
	}
	b.extend[legacyRow] = func(node *schemaNode) {
		node.Required = []string{"niveau"}
		node.Properties["niveau"].Enum = dedupe(append(append([]any{""},
			stringEnum(rased.LegacyBehaviorScale)...), stringEnum(rased.LegacyProficiencyScale)...))
	}
	b.extend[currentRow] = func(node *schemaNode) {
		node.Required = []string{"item"}
		node.Properties["evaluation"].Enum = append([]any{""}, stringEnum(rased.EvaluationScale)...)
		node.Properties["frequence"].Enum = append([]any{""}, stringEnum(rased.FrequencyScale)...)
		node.Properties["qualite"].Enum = append([]any{""}, stringEnum(rased.QualityScale)...)
		closed := false
		node.Additional = &closed
	}
	b.extend[reflect.TypeOf(rased.Session{})] = func(node *schemaNode) {
		one := 1
		node.Properties["students"].MinItems = &one
	}
}

func dedupe(values []any) []any {
	seen := map[any]bool{}
	out := make([]any, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	return out
}
