//go:build js_eval

package rased

import "testing"

func TestJSEvaluatorBindsValidators(t *testing.T) {
	evaluator, err := NewEvaluator(EngineJS, NewProgramCache())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	rec := completeRecord()
	rec.Family.Guardian1Email = "parent@example.re"
	ctx := RuleContext{Snapshot: recordSnapshot(t, rec), Step: 1}

	value, err := evaluator.Evaluate(ctx, `isEmail(famille.responsable1_email) && step.index === 1`)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if value != true {
		t.Fatalf("expected true, got %v", value)
	}
}
