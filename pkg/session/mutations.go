package session

import (
	"context"
	"fmt"
	"strings"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/pkg/activity"
)

// Teacher profile keys accepted by UpdateTeacherField.
const (
	TeacherName       = "nom"
	TeacherSchool     = "ecole"
	TeacherSchoolType = "type_ecole"
	TeacherClass      = "classe"
)

// UpdateTeacherField sets one teacher profile attribute. The profile seeds
// records created afterwards; existing records are left alone.
func (s *Store) UpdateTeacherField(ctx context.Context, field, value string) error {
	var assign func(*rased.TeacherProfile)
	switch field {
	case TeacherName:
		assign = func(t *rased.TeacherProfile) { t.Name = value }
	case TeacherSchool:
		assign = func(t *rased.TeacherProfile) { t.School = value }
	case TeacherSchoolType:
		assign = func(t *rased.TeacherProfile) { t.SchoolType = rased.SchoolType(value) }
	case TeacherClass:
		assign = func(t *rased.TeacherProfile) { t.Class = value }
	default:
		return fmt.Errorf("%w: teacher.%s", rased.ErrUnknownField, field)
	}
	s.apply(ctx, func(cur rased.Session) (rased.Session, *activity.Event, bool) {
		next := cur
		assign(&next.Teacher)
		return next, s.sessionEvent(activity.VerbTeacherUpdated, next), true
	})
	return nil
}

// AddStudent appends a blank record seeded from the teacher profile, makes
// it current and rewinds the wizard.
func (s *Store) AddStudent(ctx context.Context) rased.StudentRecord {
	var added rased.StudentRecord
	s.apply(ctx, func(cur rased.Session) (rased.Session, *activity.Event, bool) {
		added = rased.NewStudent(cur.Teacher, s.now())
		next := cur
		next.Students = append(append(make([]rased.StudentRecord, 0, len(cur.Students)+1), cur.Students...), added)
		next.CurrentStudentID = added.ID
		s.step = 0
		return next, s.studentEvent(activity.VerbStudentAdded, added.ID), true
	})
	return added.Clone()
}

// SelectStudent switches the current record and rewinds the wizard. An
// unknown id is ignored and reported as false.
func (s *Store) SelectStudent(ctx context.Context, id string) bool {
	return s.apply(ctx, func(cur rased.Session) (rased.Session, *activity.Event, bool) {
		if cur.IndexOf(id) < 0 {
			s.logger.Debug("select ignored", "student_id", id, "error", rased.ErrStudentNotFound)
			return cur, nil, false
		}
		next := cur
		next.CurrentStudentID = id
		s.step = 0
		return next, s.studentEvent(activity.VerbStudentSelected, id), true
	})
}

// DeleteStudent removes a record. Deleting the current record promotes the
// first remaining one; deleting the last one leaves a fresh blank record.
func (s *Store) DeleteStudent(ctx context.Context, id string) bool {
	return s.apply(ctx, func(cur rased.Session) (rased.Session, *activity.Event, bool) {
		idx := cur.IndexOf(id)
		if idx < 0 {
			s.logger.Debug("delete ignored", "student_id", id, "error", rased.ErrStudentNotFound)
			return cur, nil, false
		}
		next := cur
		next.Students = make([]rased.StudentRecord, 0, len(cur.Students))
		next.Students = append(next.Students, cur.Students[:idx]...)
		next.Students = append(next.Students, cur.Students[idx+1:]...)
		if len(next.Students) == 0 {
			next.Students = append(next.Students, rased.NewStudent(cur.Teacher, s.now()))
		}
		if cur.CurrentStudentID == id {
			next.CurrentStudentID = next.Students[0].ID
			s.step = 0
		}
		return next, s.studentEvent(activity.VerbStudentDeleted, id), true
	})
}

// UpdateCurrentStudent assigns value to field of the current record only.
// Conversion failures are returned; nothing is written in that case.
func (s *Store) UpdateCurrentStudent(ctx context.Context, field rased.Field, value any) error {
	return s.updateCurrent(ctx, field.String(), func(rec rased.StudentRecord) (rased.StudentRecord, error) {
		return field.Apply(rec, value)
	})
}

// UpdatePath resolves a dotted path to a typed field. Paths under keys the
// record does not model are written into its extra data.
func (s *Store) UpdatePath(ctx context.Context, path string, value any) error {
	field, err := rased.ParseField(path)
	if err == nil {
		return s.UpdateCurrentStudent(ctx, field, value)
	}
	parts := rased.SplitPath(path)
	if len(parts) == 0 || rased.IsRecordKey(parts[0]) {
		return err
	}
	return s.updateCurrent(ctx, strings.Join(parts, "."), func(rec rased.StudentRecord) (rased.StudentRecord, error) {
		doc, err := rec.ToMap()
		if err != nil {
			return rec, err
		}
		return rased.RecordFromMap(rased.SetPath(doc, path, value))
	})
}

func (s *Store) updateCurrent(ctx context.Context, field string, fn func(rased.StudentRecord) (rased.StudentRecord, error)) error {
	var applyErr error
	s.apply(ctx, func(cur rased.Session) (rased.Session, *activity.Event, bool) {
		idx := cur.IndexOf(cur.CurrentStudentID)
		if idx < 0 {
			return cur, nil, false
		}
		updated, err := fn(cur.Students[idx])
		if err != nil {
			applyErr = err
			return cur, nil, false
		}
		next := cur
		next.Students = append(make([]rased.StudentRecord, 0, len(cur.Students)), cur.Students...)
		next.Students[idx] = updated
		step := s.step
		event := activity.BuildStudentEvent(activity.VerbStudentUpdated, activity.SessionEventInput{
			StudentID:  updated.ID,
			Field:      field,
			Step:       &step,
			OccurredAt: s.now(),
		})
		return next, &event, true
	})
	return applyErr
}

// Replace swaps the whole session, as an import does.
func (s *Store) Replace(ctx context.Context, session rased.Session) {
	repaired := session.Clone().Repair(s.now())
	s.apply(ctx, func(rased.Session) (rased.Session, *activity.Event, bool) {
		s.step = 0
		return repaired, s.sessionEvent(activity.VerbSessionImported, repaired), true
	})
}

// Reset clears the storage slot and starts over with a default session. The
// fresh session is not written until the next change.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	err := s.backend.Delete(ctx, s.ref)
	if err != nil {
		s.lastErr = err
		s.logger.Error("session reset failed", "slot", s.ref.Slot, "error", err)
		s.mu.Unlock()
		return fmt.Errorf("session: reset %s: %w", s.ref.Slot, err)
	}
	s.stopTimersLocked()
	s.session = rased.NewSession(s.now())
	s.step = 0
	s.lastErr = nil
	note := s.setStatusLocked(StatusIdle)
	listeners := s.listenersLocked()
	fresh := s.session
	s.mu.Unlock()

	notify(listeners, note)
	s.emit(ctx, *s.sessionEvent(activity.VerbSessionReset, fresh))
	return nil
}
