package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/layering"
	"github.com/goliatone/go-rased/pkg/migrate"
)

// ErrMissingStudents rejects an import whose document has no students array.
var ErrMissingStudents = errors.New("hydrate: document has no students array")

// StoredSession decodes what a storage slot holds. Bare records written
// before sessions existed are wrapped into a one-student session.
func StoredSession() *Decoder[rased.Session] {
	return NewDecoder(
		WithPreHook[rased.Session](wrapLegacy),
		WithPreHook[rased.Session](fillDefaults),
		WithPostHook(repair),
	)
}

// ImportedSession decodes a user supplied file. Unlike StoredSession it
// requires a students array.
func ImportedSession() *Decoder[rased.Session] {
	return NewDecoder(
		WithPreHook[rased.Session](requireStudents),
		WithPreHook[rased.Session](fillDefaults),
		WithPostHook(repair),
	)
}

func wrapLegacy(ctx Context, payload map[string]any) (map[string]any, error) {
	if !migrate.IsLegacy(payload) {
		return payload, nil
	}
	return migrate.LegacyDocument(payload, ctx.now())
}

func requireStudents(_ Context, payload map[string]any) (map[string]any, error) {
	if migrate.IsLegacy(payload) {
		return nil, ErrMissingStudents
	}
	return payload, nil
}

// fillDefaults lays the persisted top level over a default session and each
// student over a blank record, so documents from older versions gain the
// keys added since.
func fillDefaults(ctx Context, payload map[string]any) (map[string]any, error) {
	now := ctx.now()
	defaults, err := sessionTemplate(now)
	if err != nil {
		return nil, err
	}
	out := layering.Overlay(payload, defaults)

	students, _ := out["students"].([]any)
	merged := make([]any, 0, len(students))
	for i, entry := range students {
		student, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("student %d is not an object", i)
		}
		template, err := studentTemplate(now)
		if err != nil {
			return nil, err
		}
		merged = append(merged, layering.Merge(student, template))
	}
	out["students"] = merged
	return out, nil
}

func repair(ctx Context, session *rased.Session) error {
	*session = session.Repair(ctx.now())
	return nil
}

func sessionTemplate(now time.Time) (map[string]any, error) {
	fresh := rased.NewSession(now)
	fresh.Students = []rased.StudentRecord{}
	fresh.CurrentStudentID = ""
	data, err := json.Marshal(fresh)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func studentTemplate(now time.Time) (map[string]any, error) {
	template, err := rased.NewStudent(rased.TeacherProfile{}, now).ToMap()
	if err != nil {
		return nil, err
	}
	// a record without a marker has its generation detected from its rows
	if meta, ok := template["meta"].(map[string]any); ok {
		delete(meta, "evaluation_schema")
	}
	return template, nil
}
