package rased

import (
	"fmt"
	"sort"
	"time"
)

// Rule is an extra requirement attached to a wizard step. Expr must evaluate
// to true for the step to pass.
type Rule struct {
	Step    int    `yaml:"step" json:"step"`
	Engine  string `yaml:"engine" json:"engine,omitempty"`
	Expr    string `yaml:"expr" json:"expr"`
	Message string `yaml:"message" json:"message,omitempty"`
}

type boundRule struct {
	Rule
	compiled CompiledRule
}

// Gate extends CanProceed with configured rules. A nil *Gate behaves like
// CanProceed.
type Gate struct {
	rules  map[int][]boundRule
	logger EvaluatorLogger
	now    func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithEvaluatorLogger records every rule evaluation.
func WithEvaluatorLogger(logger EvaluatorLogger) GateOption {
	return func(g *Gate) {
		if logger == nil {
			g.logger = noopEvaluatorLogger{}
			return
		}
		g.logger = logger
	}
}

// WithGateClock overrides the time bound to rules as now.
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate compiles rules up front so configuration errors surface at startup.
func NewGate(rules []Rule, opts ...GateOption) (*Gate, error) {
	g := &Gate{
		rules:  make(map[int][]boundRule),
		logger: noopEvaluatorLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	cache := NewProgramCache()
	evaluators := map[string]Evaluator{}
	for i, rule := range rules {
		if rule.Step < 0 || rule.Step >= StepCount {
			return nil, fmt.Errorf("rased: rule %d: step %d out of range", i, rule.Step)
		}
		evaluator, ok := evaluators[rule.Engine]
		if !ok {
			var err error
			evaluator, err = NewEvaluator(rule.Engine, cache)
			if err != nil {
				return nil, fmt.Errorf("rased: rule %d: %w", i, err)
			}
			evaluators[rule.Engine] = evaluator
		}
		compiled, err := evaluator.Compile(rule.Expr)
		if err != nil {
			return nil, fmt.Errorf("rased: rule %d: %w", i, err)
		}
		g.rules[rule.Step] = append(g.rules[rule.Step], boundRule{Rule: rule, compiled: compiled})
	}
	return g, nil
}

// CanProceed applies the built-in requirements then every rule of step.
func (g *Gate) CanProceed(step int, rec StudentRecord) bool {
	if !CanProceed(step, rec) {
		return false
	}
	return len(g.FailedRules(step, rec)) == 0
}

// FailedRules evaluates the configured rules of step and returns the ones
// that did not pass. Evaluation errors count as failures.
func (g *Gate) FailedRules(step int, rec StudentRecord) []Rule {
	if g == nil || len(g.rules[step]) == 0 {
		return nil
	}
	snapshot, err := rec.ToMap()
	if err != nil {
		out := make([]Rule, 0, len(g.rules[step]))
		for _, bound := range g.rules[step] {
			out = append(out, bound.Rule)
		}
		return out
	}
	now := g.now()
	ctx := RuleContext{Snapshot: snapshot, Now: &now, Step: step, StudentID: rec.ID}
	var failed []Rule
	for _, bound := range g.rules[step] {
		if !g.evaluate(ctx, bound) {
			failed = append(failed, bound.Rule)
		}
	}
	return failed
}

func (g *Gate) evaluate(ctx RuleContext, bound boundRule) bool {
	engine := bound.Engine
	if engine == "" {
		engine = EngineExpr
	}
	start := time.Now()
	value, err := bound.compiled.Evaluate(ctx)
	err = wrapEvaluationError(engine, bound.Expr, ctx.scopeLabel(), err)
	passed := err == nil && Truthy(value)
	g.logger.LogEvaluation(EvaluatorLogEvent{
		Step:     bound.Step,
		Engine:   engine,
		Expr:     bound.Expr,
		Message:  bound.Message,
		Scope:    ctx.scopeLabel(),
		Passed:   passed,
		Duration: time.Since(start),
		Err:      err,
	})
	return passed
}

// Steps lists the steps that carry rules.
func (g *Gate) Steps() []int {
	if g == nil {
		return nil
	}
	steps := make([]int, 0, len(g.rules))
	for step := range g.rules {
		steps = append(steps, step)
	}
	sort.Ints(steps)
	return steps
}
