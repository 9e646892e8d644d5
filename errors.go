package resolver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCanonicalization indicates a canonicalization pattern that
	// does not compile.
	ErrInvalidCanonicalization = errors.New("resolver: invalid canonicalization rule")
	// ErrUnsupportedPlatform indicates the host cannot answer a path query,
	// such as a missing working directory.
	ErrUnsupportedPlatform = errors.New("resolver: unsupported platform")
	// ErrHookResult indicates a scripted hook produced a value of the wrong type.
	ErrHookResult = errors.New("resolver: unexpected hook result")
)

// EvaluationError captures a scripted hook failure with the expression and
// the identifier being resolved.
type EvaluationError struct {
	Engine     string
	Expr       string
	Identifier string
	Err        error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("resolver: %s hook %s identifier=%q: %v", e.Engine, describeExpression(e.Expr), e.Identifier, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	if strings.HasPrefix(err.Error(), "resolver:") {
		return err
	}
	return fmt.Errorf("resolver: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, identifier string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Identifier == "" {
			evalErr.Identifier = identifier
		}
		return evalErr
	}
	return &EvaluationError{
		Engine:     engine,
		Expr:       expr,
		Identifier: identifier,
		Err:        err,
	}
}
