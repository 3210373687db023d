package rased

import (
	"reflect"
	"testing"
)

func TestSetPathLeavesInputUntouched(t *testing.T) {
	doc := map[string]any{
		"eleve":   map[string]any{"nom": "Martin"},
		"famille": map[string]any{"responsable1_nom": "Paul"},
	}

	out := SetPath(doc, "eleve.prenom", "Lea")

	if _, ok := doc["eleve"].(map[string]any)["prenom"]; ok {
		t.Fatalf("input document was mutated")
	}
	got, ok := GetPath(out, "eleve.prenom")
	if !ok || got != "Lea" {
		t.Fatalf("expected eleve.prenom=Lea, got %v (found=%v)", got, ok)
	}
	if name, _ := GetPath(out, "eleve.nom"); name != "Martin" {
		t.Fatalf("sibling key lost, got %v", name)
	}
}

func TestSetPathSharesUntouchedBranches(t *testing.T) {
	doc := map[string]any{
		"eleve":   map[string]any{"nom": "Martin"},
		"famille": map[string]any{"responsable1_nom": "Paul"},
	}

	out := SetPath(doc, "eleve.nom", "Hoarau")

	before := reflect.ValueOf(doc["famille"]).Pointer()
	after := reflect.ValueOf(out["famille"]).Pointer()
	if before != after {
		t.Fatalf("expected untouched branch to be shared")
	}
	if reflect.ValueOf(doc["eleve"]).Pointer() == reflect.ValueOf(out["eleve"]).Pointer() {
		t.Fatalf("expected touched branch to be copied")
	}
}

func TestSetPathCreatesIntermediates(t *testing.T) {
	out := SetPath(nil, "apprentissages_detail.lecture.fluence_mcl", 42)

	got, ok := GetPath(out, "apprentissages_detail.lecture.fluence_mcl")
	if !ok || got != 42 {
		t.Fatalf("expected nested value 42, got %v (found=%v)", got, ok)
	}
}

func TestSetPathOverwritesScalarIntermediate(t *testing.T) {
	doc := map[string]any{"sante": "inconnu"}

	out := SetPath(doc, "sante.trouble_visuel", "Oui")

	if doc["sante"] != "inconnu" {
		t.Fatalf("input document was mutated")
	}
	sante, ok := out["sante"].(map[string]any)
	if !ok {
		t.Fatalf("expected scalar intermediate replaced by object, got %T", out["sante"])
	}
	if len(sante) != 1 || sante["trouble_visuel"] != "Oui" {
		t.Fatalf("unexpected replacement object %v", sante)
	}
}

func TestGetPathMissing(t *testing.T) {
	doc := map[string]any{"eleve": "flat"}
	if _, ok := GetPath(doc, "eleve.nom"); ok {
		t.Fatalf("expected lookup through scalar to fail")
	}
	if _, ok := GetPath(doc, ""); ok {
		t.Fatalf("expected empty path lookup to fail")
	}
}
