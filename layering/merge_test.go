package layering

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMergeFromFixture(t *testing.T) {
	fx := loadMergeFixture(t, "merge.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			got := Merge(tc.Layers...)
			if !reflect.DeepEqual(tc.Expect, got) {
				t.Errorf("merged document mismatch:\nwant: %#v\n got: %#v", tc.Expect, got)
			}
		})
	}
}

func TestMergeZeroInput(t *testing.T) {
	got := Merge()
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty document, got %#v", got)
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	weak := map[string]any{"eleve": map[string]any{"sexe": "F"}, "tags": []any{"a"}}
	strong := map[string]any{"eleve": map[string]any{"nom": "Martin"}}

	got := Merge(strong, weak)
	got["eleve"].(map[string]any)["sexe"] = "M"
	got["tags"].([]any)[0] = "b"

	if weak["eleve"].(map[string]any)["sexe"] != "F" {
		t.Fatalf("weak layer mutated through merged result")
	}
	if weak["tags"].([]any)[0] != "a" {
		t.Fatalf("weak slice mutated through merged result")
	}
	if _, ok := strong["eleve"].(map[string]any)["sexe"]; ok {
		t.Fatalf("strong layer mutated")
	}
}

func TestOverlayIsShallow(t *testing.T) {
	weak := map[string]any{"teacher": map[string]any{"nom": "", "classe": ""}, "meta": map[string]any{"version": 1}}
	strong := map[string]any{"teacher": map[string]any{"nom": "Mme Payet"}, "meta": nil}

	got := Overlay(strong, weak)
	teacher := got["teacher"].(map[string]any)
	if _, ok := teacher["classe"]; ok {
		t.Fatalf("overlay must replace top-level objects whole, got %v", teacher)
	}
	if got["meta"] == nil {
		t.Fatalf("null top-level key must keep the default")
	}
}

type mergeFixture struct {
	Description string             `json:"description"`
	Cases       []mergeFixtureCase `json:"cases"`
}

type mergeFixtureCase struct {
	Name   string           `json:"name"`
	Layers []map[string]any `json:"layers"`
	Expect map[string]any   `json:"expect"`
}

func loadMergeFixture(t *testing.T, name string) mergeFixture {
	t.Helper()
	path := filepath.Join("testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read merge fixture %q: %v", name, err)
	}
	var fx mergeFixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal merge fixture %q: %v", name, err)
	}
	return fx
}
