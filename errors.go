package rased

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownField is returned when a field key or path has no lens.
	ErrUnknownField = errors.New("rased: unknown field")
	// ErrInvalidValue is returned when a value cannot be converted to a field's type.
	ErrInvalidValue = errors.New("rased: invalid field value")
	// ErrStudentNotFound is returned by lookups of an id absent from the session.
	ErrStudentNotFound = errors.New("rased: student not found")
	// ErrStepBlocked is returned when the step gate refuses forward navigation.
	ErrStepBlocked = errors.New("rased: step requirements not met")
	// ErrNoEvaluator is returned when a rule names an engine that is not built in.
	ErrNoEvaluator = errors.New("rased: evaluator not configured")
)

func errInvalidWPM(value any) error {
	return fmt.Errorf("%w: fluency %v is not a number", ErrInvalidValue, value)
}
