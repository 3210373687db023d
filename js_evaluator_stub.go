//go:build !js_eval

package rased

// NewJSEvaluator is unavailable without the js_eval build tag.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = newJSSetup(opts)
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
