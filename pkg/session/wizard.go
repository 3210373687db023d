package session

import (
	"context"
	"fmt"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/pkg/activity"
)

// Step returns the wizard position of the current record.
func (s *Store) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// CanProceed reports whether the current step lets the wizard move on.
func (s *Store) CanProceed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, _ := s.session.Current()
	return s.gate.CanProceed(s.step, rec)
}

// Blockers lists what keeps the current step from passing: missing or
// invalid fields, then the messages of failed rules.
func (s *Store) Blockers() ([]rased.Field, []rased.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, _ := s.session.Current()
	return rased.MissingRequirements(s.step, rec), s.gate.FailedRules(s.step, rec)
}

// Next advances one step when the gate allows it. It returns ErrStepBlocked
// otherwise. On the last step it is a no-op.
func (s *Store) Next(ctx context.Context) error {
	s.mu.Lock()
	rec, _ := s.session.Current()
	if s.step >= rased.StepLast {
		s.mu.Unlock()
		return nil
	}
	if !s.gate.CanProceed(s.step, rec) {
		step := s.step
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", rased.ErrStepBlocked, rased.StepTitles[step])
	}
	s.step++
	step := s.step
	s.mu.Unlock()
	s.emitStep(ctx, rec.ID, step)
	return nil
}

// Back moves one step back, stopping at the first step.
func (s *Store) Back(ctx context.Context) {
	s.mu.Lock()
	if s.step == 0 {
		s.mu.Unlock()
		return
	}
	s.step--
	step := s.step
	id := s.session.CurrentStudentID
	s.mu.Unlock()
	s.emitStep(ctx, id, step)
}

// GoTo jumps to step. Going back is always allowed; going forward requires
// every step in between to pass the gate, otherwise the wizard stops on the
// first blocked step and ErrStepBlocked is returned.
func (s *Store) GoTo(ctx context.Context, step int) error {
	target := rased.ClampStep(step)
	s.mu.Lock()
	rec, _ := s.session.Current()
	var err error
	reached := s.step
	for reached < target {
		if !s.gate.CanProceed(reached, rec) {
			err = fmt.Errorf("%w: %s", rased.ErrStepBlocked, rased.StepTitles[reached])
			break
		}
		reached++
	}
	if target < s.step {
		reached = target
	}
	changed := reached != s.step
	s.step = reached
	s.mu.Unlock()
	if changed {
		s.emitStep(ctx, rec.ID, reached)
	}
	return err
}

func (s *Store) emitStep(ctx context.Context, studentID string, step int) {
	s.emit(ctx, activity.BuildStudentEvent(activity.VerbStepChanged, activity.SessionEventInput{
		StudentID:  studentID,
		Step:       &step,
		OccurredAt: s.now(),
	}))
}
