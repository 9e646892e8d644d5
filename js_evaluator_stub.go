//go:build !js_eval

package resolver

// NewJSEvaluator returns nil unless built with the js_eval tag.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return nil
}

// JSEvaluatorAvailable reports whether NewJSEvaluator returns an evaluator.
func JSEvaluatorAvailable() bool {
	return false
}
