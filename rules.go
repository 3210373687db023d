package rased

import (
	"fmt"
	"sync"
	"time"
)

// RuleContext carries inputs needed when evaluating a gate rule.
type RuleContext struct {
	Snapshot  any
	Now       *time.Time
	Args      map[string]any
	Metadata  map[string]any
	Step      int
	StudentID string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) scopeLabel() string {
	if ctx.StudentID == "" {
		return fmt.Sprintf("step:%d", ctx.Step)
	}
	return fmt.Sprintf("step:%d/student:%s", ctx.Step, ctx.StudentID)
}

func (ctx RuleContext) stepBinding() map[string]any {
	return map[string]any{
		"index": ctx.Step,
		"title": stepTitle(ctx.Step),
	}
}

func stepTitle(step int) string {
	if step < 0 || step >= len(StepTitles) {
		return ""
	}
	return StepTitles[step]
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// NewProgramCache returns an unbounded in-memory ProgramCache.
func NewProgramCache() ProgramCache {
	return &programCache{}
}

type programCache struct {
	entries sync.Map
}

func (c *programCache) Get(key string) (any, bool) {
	return c.entries.Load(key)
}

func (c *programCache) Set(key string, value any) {
	c.entries.Store(key, value)
}

// Engine names accepted by NewEvaluator.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// NewEvaluator builds the evaluator for engine with the validator functions
// registered. An empty engine selects expr.
func NewEvaluator(engine string, cache ProgramCache) (Evaluator, error) {
	registry := ValidatorFunctions()
	switch engine {
	case "", EngineExpr:
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)), nil
	case EngineCEL:
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)), nil
	case EngineJS:
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("%w: %s (build with -tags js_eval)", ErrNoEvaluator, engine)
		}
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoEvaluator, engine)
	}
}

// ValidatorFunctions returns a registry exposing the field validators to rule
// expressions as isDate, isEmail, isPhone and norm.
func ValidatorFunctions() *FunctionRegistry {
	registry := NewFunctionRegistry()
	_ = registry.Register("isDate", stringPredicate(IsDateISO))
	_ = registry.Register("isEmail", stringPredicate(IsEmail))
	_ = registry.Register("isPhone", stringPredicate(IsPhone))
	_ = registry.Register("norm", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("rased: norm expects 1 argument, got %d", len(args))
		}
		return Norm(stringArg(args[0])), nil
	})
	return registry
}

func stringPredicate(fn func(string) bool) Function {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("rased: validator expects 1 argument, got %d", len(args))
		}
		return fn(stringArg(args[0])), nil
	}
}

func stringArg(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

// Truthy interprets a rule result as a pass/fail verdict.
func Truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != ""
	case int:
		return typed != 0
	case int64:
		return typed != 0
	case float64:
		return typed != 0
	default:
		return true
	}
}
