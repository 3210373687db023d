package rased

// jsSetup is what every goja runtime is seeded with before a gate rule runs.
type jsSetup struct {
	cache   ProgramCache
	globals *FunctionRegistry
}

// JSEvaluatorOption adjusts how JavaScript gate rules are compiled and run.
type JSEvaluatorOption func(*jsSetup)

// JSWithProgramCache reuses compiled rule programs. Entries are keyed by
// engine and source, so one cache can back every engine of a Gate.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(s *jsSetup) {
		s.cache = cache
	}
}

// JSWithFunctionRegistry binds the registry's validators (isDate, isEmail
// and friends) as globals of each runtime. The registry is copied, so later
// registrations do not reach rules already compiled.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(s *jsSetup) {
		if registry != nil {
			s.globals = registry.Clone()
		}
	}
}

func newJSSetup(opts []JSEvaluatorOption) jsSetup {
	var s jsSetup
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}
