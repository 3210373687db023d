package migrate

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	rased "github.com/goliatone/go-rased"
)

var fixedNow = time.Date(2024, time.September, 16, 9, 30, 0, 0, time.UTC)

func TestLegacyWrapsRecord(t *testing.T) {
	raw := loadFixture(t, "legacy_record.json")

	session, err := Legacy(raw, fixedNow)
	if err != nil {
		t.Fatalf("unexpected migrate error: %v", err)
	}
	if len(session.Students) != 1 || session.CurrentStudentID != session.Students[0].ID {
		t.Fatalf("expected one current student, got %+v", session)
	}
	rec := session.Students[0]
	if rec.Name != "Lea Martin" {
		t.Fatalf("expected derived name, got %q", rec.Name)
	}
	if rec.Family.Guardian1Phone != "0692 12 34 56" {
		t.Fatalf("family not carried over: %+v", rec.Family)
	}
	if session.Teacher.Name != "Mme Hoarau" || session.Teacher.School != "Jean JAURÈS" {
		t.Fatalf("teacher not lifted: %+v", session.Teacher)
	}
	if rec.Behavior.Generation != rased.GenerationLegacy {
		t.Fatalf("expected legacy behavior rows, got %s", rec.Behavior.Generation)
	}
	if session.Meta.Version != rased.SessionVersion {
		t.Fatalf("expected version stamp, got %d", session.Meta.Version)
	}
}

func TestLegacyNamesAnonymousRecord(t *testing.T) {
	session, err := Legacy(map[string]any{"eleve": map[string]any{"nom": ""}}, fixedNow)
	if err != nil {
		t.Fatalf("unexpected migrate error: %v", err)
	}
	if session.Students[0].Name != rased.ImportedStudentName {
		t.Fatalf("expected placeholder name, got %q", session.Students[0].Name)
	}
}

func TestLegacyResolvesFreeTextSchool(t *testing.T) {
	raw := map[string]any{"etablissement": map[string]any{"ecole": rased.OtherChoice, "ecole_libre": "École des Hauts"}}

	session, err := Legacy(raw, fixedNow)
	if err != nil {
		t.Fatalf("unexpected migrate error: %v", err)
	}
	if session.Teacher.School != "École des Hauts" {
		t.Fatalf("expected free-text school, got %q", session.Teacher.School)
	}
}

func TestLegacyRejectsSessions(t *testing.T) {
	_, err := Legacy(map[string]any{"students": []any{}}, fixedNow)
	if !errors.Is(err, ErrNotLegacy) {
		t.Fatalf("expected ErrNotLegacy, got %v", err)
	}
}

func TestUpgradeEvaluations(t *testing.T) {
	session, err := Legacy(loadFixture(t, "legacy_record.json"), fixedNow)
	if err != nil {
		t.Fatalf("unexpected migrate error: %v", err)
	}

	upgraded, changed := UpgradeEvaluations(session.Students[0])
	if !changed {
		t.Fatalf("expected legacy record to change")
	}
	if upgraded.Meta.EvaluationSchema != rased.GenerationCurrent {
		t.Fatalf("expected current marker, got %s", upgraded.Meta.EvaluationSchema)
	}

	cases := map[string]rased.Assessment{
		"Respect des règles":        {Item: "Respect des règles", Evaluation: "Très satisfaisant"},
		"Attention / concentration": {Item: "Attention / concentration", Evaluation: "Problématique", Observation: "se disperse"},
		"Relation aux pairs":        {Item: "Relation aux pairs", Quality: "Problématique", Observation: "isolée"},
		"Autonomie":                 {Item: "Autonomie"},
	}
	for item, want := range cases {
		got, ok := upgraded.Behavior.Lookup(item)
		if !ok {
			t.Fatalf("missing upgraded row %q", item)
		}
		if got != want {
			t.Fatalf("row %q: want %+v, got %+v", item, want, got)
		}
	}
	reading, ok := upgraded.Learning.Lookup("Lecture")
	if !ok || reading.Evaluation != "Problématique" || reading.Observation != "déchiffrage lent" {
		t.Fatalf("unexpected learning row %+v", reading)
	}

	if session.Students[0].Behavior.Generation != rased.GenerationLegacy {
		t.Fatalf("upgrade mutated its input")
	}
	if _, again := UpgradeEvaluations(upgraded); again {
		t.Fatalf("expected current record to be left alone")
	}
}

func TestUpgradeSessionCounts(t *testing.T) {
	session, err := Legacy(loadFixture(t, "legacy_record.json"), fixedNow)
	if err != nil {
		t.Fatalf("unexpected migrate error: %v", err)
	}
	session.Students = append(session.Students, rased.NewStudent(session.Teacher, fixedNow))

	out, changed := UpgradeSession(session)
	if changed != 1 {
		t.Fatalf("expected one upgraded record, got %d", changed)
	}
	for _, rec := range out.Students {
		if rec.Behavior.Generation != rased.GenerationCurrent {
			t.Fatalf("record %s still legacy", rec.ID)
		}
	}
}

func loadFixture(t *testing.T, name string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", name, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", name, err)
	}
	return out
}
