// Package migrate converts documents written by older versions into the
// current session shape.
package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/layering"
)

// ErrNotLegacy is returned when Legacy receives a document that already has
// a students array.
var ErrNotLegacy = errors.New("migrate: document is not a legacy record")

// IsLegacy reports whether raw is a bare student record rather than a session.
func IsLegacy(raw map[string]any) bool {
	_, ok := raw["students"].([]any)
	return !ok
}

// LegacyDocument wraps a bare record into the JSON form of a one-student
// session. The record is merged over a fresh template so newer keys get their
// defaults and unknown keys are carried along. The record keeps the fresh id.
func LegacyDocument(raw map[string]any, now time.Time) (map[string]any, error) {
	if !IsLegacy(raw) {
		return nil, ErrNotLegacy
	}
	fresh := rased.NewSession(now)
	template, err := fresh.Students[0].ToMap()
	if err != nil {
		return nil, fmt.Errorf("migrate: build template: %w", err)
	}
	// the stored lists decide their own generation
	if meta, ok := template["meta"].(map[string]any); ok {
		delete(meta, "evaluation_schema")
	}

	record := layering.Merge(raw, template)
	id := fresh.Students[0].ID
	record["id"] = id
	record["name"] = legacyName(raw)

	teacher := map[string]any{"nom": "", "ecole": "", "type_ecole": "", "classe": ""}
	if est, ok := raw["etablissement"].(map[string]any); ok {
		if name := text(est["enseignant"]); name != "" {
			teacher["nom"] = name
		}
		school := rased.Establishment{School: text(est["ecole"]), SchoolOther: text(est["ecole_libre"])}
		if name := school.SchoolName(); name != "" {
			teacher["ecole"] = name
		}
		if kind := text(est["type_ecole"]); kind != "" {
			teacher["type_ecole"] = kind
		}
	}

	return map[string]any{
		"teacher":          teacher,
		"students":         []any{record},
		"currentStudentId": id,
		"meta": map[string]any{
			"version":   rased.SessionVersion,
			"lastSaved": fresh.Meta.LastSaved,
		},
	}, nil
}

// Legacy converts a bare record into a session holding it as the only student.
func Legacy(raw map[string]any, now time.Time) (rased.Session, error) {
	doc, err := LegacyDocument(raw, now)
	if err != nil {
		return rased.Session{}, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return rased.Session{}, fmt.Errorf("migrate: encode session: %w", err)
	}
	var session rased.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return rased.Session{}, fmt.Errorf("migrate: decode session: %w", err)
	}
	return session, nil
}

func legacyName(raw map[string]any) string {
	eleve, _ := raw["eleve"].(map[string]any)
	full := strings.TrimSpace(text(eleve["prenom"]) + " " + text(eleve["nom"]))
	if full == "" {
		return rased.ImportedStudentName
	}
	return full
}

func text(value any) string {
	s, _ := value.(string)
	return strings.TrimSpace(s)
}
