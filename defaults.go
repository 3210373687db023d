package rased

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// NewStudent builds a blank record pre-seeded with the teacher's name and
// school. The edition date defaults to the day of now.
func NewStudent(teacher TeacherProfile, now time.Time) StudentRecord {
	return StudentRecord{
		ID:   NewID(),
		Name: DefaultStudentName,
		Meta: RecordMeta{
			EditionDate:      now.Format(time.DateOnly),
			EvaluationSchema: GenerationCurrent,
		},
		Settings:          PrintSettings{AccentColor: DefaultAccentColor},
		Establishment:     establishmentFor(teacher),
		Student:           StudentIdentity{Sex: SexFemale},
		ExternalFollowUps: []ExternalFollowUp{},
		Behavior:          NewEvaluations(),
		Learning:          NewEvaluations(),
	}
}

func establishmentFor(teacher TeacherProfile) Establishment {
	est := Establishment{SchoolType: teacher.SchoolType, Teacher: teacher.Name}
	switch school := Norm(teacher.School); {
	case school == "":
	case IsCatalogSchool(school):
		est.School = school
	default:
		est.School = OtherChoice
		est.SchoolOther = school
	}
	return est
}

// NewSession builds a session holding one blank student.
func NewSession(now time.Time) Session {
	student := NewStudent(TeacherProfile{}, now)
	return Session{
		Students:         []StudentRecord{student},
		CurrentStudentID: student.ID,
		Meta: SessionMeta{
			Version:   SessionVersion,
			LastSaved: now.UTC().Format(time.RFC3339Nano),
		},
	}
}

// Clone returns a deep copy of the record.
func (r StudentRecord) Clone() StudentRecord {
	out := r
	out.ExternalFollowUps = append(make([]ExternalFollowUp, 0, len(r.ExternalFollowUps)), r.ExternalFollowUps...)
	out.Behavior = r.Behavior.Clone()
	out.Learning = r.Learning.Clone()
	out.Extra = cloneExtra(r.Extra)
	return out
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	out.Students = make([]StudentRecord, len(s.Students))
	for i := range s.Students {
		out.Students[i] = s.Students[i].Clone()
	}
	return out
}

// Repair restores the session invariants: at least one student, unique ids,
// a current pointer that resolves, and a stamped version.
func (s Session) Repair(now time.Time) Session {
	out := s
	seen := make(map[string]struct{}, len(s.Students))
	students := make([]StudentRecord, 0, len(s.Students))
	for _, rec := range s.Students {
		if rec.ID == "" {
			rec.ID = NewID()
		}
		if _, dup := seen[rec.ID]; dup {
			rec.ID = NewID()
		}
		seen[rec.ID] = struct{}{}
		students = append(students, rec)
	}
	if len(students) == 0 {
		students = append(students, NewStudent(s.Teacher, now))
	}
	out.Students = students
	if out.IndexOf(out.CurrentStudentID) < 0 {
		out.CurrentStudentID = students[0].ID
	}
	if out.Meta.Version == 0 {
		out.Meta.Version = SessionVersion
	}
	return out
}

func cloneExtra(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneExtra(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = cloneValue(typed[i])
		}
		return out
	default:
		return value
	}
}
