package rased

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError(EngineExpr, "isPhone(famille.responsable1_tel)", "step:1", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != EngineExpr {
		t.Fatalf("expected engine expr, got %q", evalErr.Engine)
	}
	if evalErr.Expr != "isPhone(famille.responsable1_tel)" {
		t.Fatalf("expected expression metadata, got %q", evalErr.Expr)
	}
	if evalErr.Scope != "step:1" {
		t.Fatalf("expected scope metadata, got %q", evalErr.Scope)
	}
	if !errors.Is(evalErr.Err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
	if !strings.Contains(err.Error(), "at=step:1") {
		t.Fatalf("expected scope in message, got %q", err.Error())
	}
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{
		Engine: EngineExpr,
		Err:    base,
	}

	err := wrapEvaluationError(EngineCEL, "rule", "step:4", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != EngineExpr {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" {
		t.Fatalf("expression should be filled, got %q", existing.Expr)
	}
	if existing.Scope != "step:4" {
		t.Fatalf("scope should be filled, got %q", existing.Scope)
	}
}

func TestWrapEvaluatorErrorKeepsPrefixedErrors(t *testing.T) {
	prefixed := errors.New("rased: already wrapped")
	if got := wrapEvaluatorError(EngineJS, prefixed); got != prefixed {
		t.Fatalf("expected prefixed error returned as is, got %v", got)
	}
	got := wrapEvaluatorError(EngineJS, errors.New("raw"))
	if got.Error() != "rased: js evaluator: raw" {
		t.Fatalf("unexpected message %q", got.Error())
	}
}
