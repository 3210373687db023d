package rased

import "time"

// EvaluatorLogEvent is emitted once per gate rule check. Step and Message
// come from the configured rule; Scope names the student the rule ran
// against.
type EvaluatorLogEvent struct {
	Step     int
	Engine   string
	Expr     string
	Message  string
	Scope    string
	Passed   bool
	Duration time.Duration
	Err      error
}

// Blocked reports whether the check kept the wizard on its step. A rule
// that errors blocks just like one that returns false.
func (e EvaluatorLogEvent) Blocked() bool {
	return !e.Passed
}

// EvaluatorLogger observes gate rule checks.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc lets a closure observe gate rule checks.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}
