package activity

import (
	"strings"
	"time"
)

// Object types.
const (
	ObjectSession = "session"
	ObjectStudent = "student"
)

// Verbs emitted by the session store and the transfer commands.
const (
	VerbStudentAdded    = "student.added"
	VerbStudentSelected = "student.selected"
	VerbStudentDeleted  = "student.deleted"
	VerbStudentUpdated  = "student.updated"
	VerbStudentPrinted  = "student.printed"
	VerbStepChanged     = "student.step.changed"
	VerbTeacherUpdated  = "session.teacher.updated"
	VerbSessionImported = "session.imported"
	VerbSessionExported = "session.exported"
	VerbSessionReset    = "session.reset"
)

// SessionEventInput describes the common fields of session lifecycle events.
// Field values are never copied into events: a referral holds personal data
// about a child, so only the field name travels.
type SessionEventInput struct {
	ActorID    string
	UserID     string
	SessionID  string
	StudentID  string
	Field      string
	Step       *int
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildStudentEvent constructs an event about one student record.
func BuildStudentEvent(verb string, input SessionEventInput) Event {
	return buildSessionEvent(verb, ObjectStudent, strings.TrimSpace(input.StudentID), input)
}

// BuildSessionEvent constructs an event about the session as a whole.
func BuildSessionEvent(verb string, input SessionEventInput) Event {
	return buildSessionEvent(verb, ObjectSession, strings.TrimSpace(input.SessionID), input)
}

func buildSessionEvent(verb, objectType, objectID string, input SessionEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Field != "" {
		metadata = ensureMetadata(metadata)
		metadata["field"] = input.Field
	}
	if input.Step != nil {
		metadata = ensureMetadata(metadata)
		metadata["step"] = *input.Step
	}
	if objectType == ObjectSession && input.StudentID != "" {
		metadata = ensureMetadata(metadata)
		metadata["student_id"] = input.StudentID
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
