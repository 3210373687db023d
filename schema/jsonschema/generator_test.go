package jsonschema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func generate(t *testing.T, scope Scope, opts ...Option) map[string]any {
	t.Helper()
	doc, err := Generate(scope, opts...)
	if err != nil {
		t.Fatalf("Generate(%q) returned error: %v", scope, err)
	}
	// round trip so assertions see the encoded shape
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	return out
}

func object(t *testing.T, value any, path string) map[string]any {
	t.Helper()
	m, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("%s: expected object, got %T", path, value)
	}
	return m
}

func resolve(t *testing.T, doc, node map[string]any) map[string]any {
	t.Helper()
	ref, ok := node["$ref"].(string)
	if !ok {
		return node
	}
	defs := object(t, doc["$defs"], "$defs")
	name := ref[len("#/$defs/"):]
	return object(t, defs[name], ref)
}

func property(t *testing.T, doc, node map[string]any, name string) map[string]any {
	t.Helper()
	props := object(t, resolve(t, doc, node)["properties"], "properties")
	child, ok := props[name]
	if !ok {
		t.Fatalf("missing property %q", name)
	}
	return resolve(t, doc, object(t, child, name))
}

func TestGenerateSessionRoot(t *testing.T) {
	t.Parallel()

	doc := generate(t, ScopeSession, WithID("https://example.re/rased/session.json"))
	if doc["$schema"] != Draft {
		t.Fatalf("expected $schema %q, got %v", Draft, doc["$schema"])
	}
	if doc["$id"] != "https://example.re/rased/session.json" {
		t.Fatalf("unexpected $id %v", doc["$id"])
	}
	if doc["type"] != "object" {
		t.Fatalf("expected object root, got %v", doc["type"])
	}
	required, _ := doc["required"].([]any)
	want := map[string]bool{"teacher": false, "students": false, "currentStudentId": false, "meta": false}
	for _, name := range required {
		want[name.(string)] = true
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("expected %q to be required, got %v", name, required)
		}
	}

	students := property(t, doc, doc, "students")
	if students["minItems"] != float64(1) {
		t.Fatalf("expected students minItems 1, got %v", students["minItems"])
	}
	items := object(t, students["items"], "students.items")
	if items["$ref"] != "#/$defs/StudentRecord" {
		t.Fatalf("expected student items to reference StudentRecord, got %v", items)
	}
}

func TestGenerateStudentRecordShape(t *testing.T) {
	t.Parallel()

	doc := generate(t, ScopeStudent)
	if doc["title"] != "RASED student record" {
		t.Fatalf("unexpected title %v", doc["title"])
	}

	behavior := property(t, doc, doc, "comportement")
	rows := object(t, behavior["items"], "comportement.items")
	variants, _ := rows["oneOf"].([]any)
	if len(variants) != 2 {
		t.Fatalf("expected two evaluation row variants, got %d", len(variants))
	}

	eleve := property(t, doc, doc, "eleve")
	retained := property(t, doc, eleve, "deja_maintenu")
	types, _ := retained["type"].([]any)
	if len(types) != 2 || types[0] != "boolean" || types[1] != "null" {
		t.Fatalf("expected tri-state as boolean|null, got %v", retained["type"])
	}
	birth := property(t, doc, eleve, "date_naissance")
	if birth["format"] != "date" {
		t.Fatalf("expected date format, got %v", birth["format"])
	}
	sex := property(t, doc, eleve, "sexe")
	if enum, _ := sex["enum"].([]any); len(enum) != 3 {
		t.Fatalf("expected sexe enum ['', F, M], got %v", sex["enum"])
	}

	needs := property(t, doc, doc, "besoins_prioritaires")
	if needs["minItems"] != float64(2) || needs["maxItems"] != float64(2) {
		t.Fatalf("expected exactly two priority needs, got %v..%v", needs["minItems"], needs["maxItems"])
	}

	settings := property(t, doc, doc, "settings")
	accent := property(t, doc, settings, "accentColor")
	if accent["pattern"] == nil {
		t.Fatalf("expected accentColor pattern")
	}
}

func TestGenerateCoversFixtureKeys(t *testing.T) {
	t.Parallel()

	raw, err := os.ReadFile(filepath.Join("..", "..", "testdata", "session.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	var session map[string]any
	if err := json.Unmarshal(raw, &session); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	doc := generate(t, ScopeSession)
	students := property(t, doc, doc, "students")
	record := resolve(t, doc, object(t, students["items"], "items"))
	props := object(t, record["properties"], "StudentRecord.properties")

	for _, item := range session["students"].([]any) {
		for key := range item.(map[string]any) {
			if _, ok := props[key]; !ok {
				t.Fatalf("fixture key %q not described by schema", key)
			}
		}
	}
}

func TestGenerateUnknownScope(t *testing.T) {
	t.Parallel()

	if _, err := Generate(Scope("teacher")); err == nil {
		t.Fatalf("expected error for unknown scope")
	}
}

func TestGenerateConcurrentAccess(t *testing.T) {
	t.Parallel()

	const goroutines = 8
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := Generate(ScopeSession); err != nil {
				t.Errorf("Generate returned error: %v", err)
			}
		}()
	}
	wg.Wait()
}
