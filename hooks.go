package resolver

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/goliatone/go-resolver/pkg/assetfs"
)

// ResolveRequest is what a ResolveHook receives for one identifier.
type ResolveRequest struct {
	Context    *ResolverContext
	Identifier string
	Storage    assetfs.Storage
}

// ResolveHook replaces the search path probe of a context. It returns the
// resolved location or "" when nothing was found.
type ResolveHook interface {
	ResolveAndCache(ctx context.Context, req ResolveRequest) (string, error)
}

// ResolveHookFunc adapts a function to ResolveHook.
type ResolveHookFunc func(ctx context.Context, req ResolveRequest) (string, error)

func (fn ResolveHookFunc) ResolveAndCache(ctx context.Context, req ResolveRequest) (string, error) {
	if fn == nil {
		return "", nil
	}
	return fn(ctx, req)
}

// InitializeHook runs at the end of every context (re)initialisation and
// typically seeds caching pairs in batch.
type InitializeHook interface {
	Initialize(ctx context.Context, rc *ResolverContext) error
}

// InitializeHookFunc adapts a function to InitializeHook.
type InitializeHookFunc func(ctx context.Context, rc *ResolverContext) error

func (fn InitializeHookFunc) Initialize(ctx context.Context, rc *ResolverContext) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, rc)
}

// MappingSource reads the flat mapping pair array behind a context. It
// reports false when the source is absent or malformed.
type MappingSource interface {
	ReadPairs(ctx context.Context, ref string) ([]string, bool)
}

// EvaluatorHookOption configures evaluator-backed hooks.
type EvaluatorHookOption func(*evaluatorHookConfig)

type evaluatorHookConfig struct {
	engine   string
	logger   HookLogger
	args     map[string]any
	metadata map[string]any
}

// HookWithEngineName labels log events and errors.
func HookWithEngineName(name string) EvaluatorHookOption {
	return func(cfg *evaluatorHookConfig) {
		cfg.engine = name
	}
}

// HookWithLogger reports each evaluation to logger.
func HookWithLogger(logger HookLogger) EvaluatorHookOption {
	return func(cfg *evaluatorHookConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// HookWithArgs exposes args to the expression as `args`.
func HookWithArgs(args map[string]any) EvaluatorHookOption {
	return func(cfg *evaluatorHookConfig) {
		cfg.args = args
	}
}

// HookWithMetadata exposes metadata to the expression as `metadata`.
func HookWithMetadata(metadata map[string]any) EvaluatorHookOption {
	return func(cfg *evaluatorHookConfig) {
		cfg.metadata = metadata
	}
}

type evaluatorHook struct {
	cfg        evaluatorHookConfig
	expression string
	rule       CompiledRule
}

func newEvaluatorHook(evaluator Evaluator, expression string, opts []EvaluatorHookOption) (*evaluatorHook, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("resolver: hook evaluator is required")
	}
	cfg := evaluatorHookConfig{engine: "expr", logger: noopHookLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	rule, err := evaluator.Compile(expression)
	if err != nil {
		return nil, err
	}
	return &evaluatorHook{cfg: cfg, expression: expression, rule: rule}, nil
}

func (h *evaluatorHook) evaluate(identifier string, snapshot map[string]any) (any, error) {
	start := time.Now()
	result, err := h.rule.Evaluate(RuleContext{
		Identifier: identifier,
		Snapshot:   snapshot,
		Args:       h.cfg.args,
		Metadata:   h.cfg.metadata,
	})
	if err != nil {
		err = wrapEvaluationError(h.cfg.engine, h.expression, identifier, err)
	}
	h.cfg.logger.LogHook(HookLogEvent{
		Engine:     h.cfg.engine,
		Expr:       h.expression,
		Identifier: identifier,
		Duration:   time.Since(start),
		Err:        err,
	})
	return result, err
}

// EvaluatorResolveHook resolves identifiers with a scripted expression. The
// expression sees identifier, mapping_file, search_paths, mapping_pairs and
// caching_pairs, and must return a string.
type EvaluatorResolveHook struct {
	hook *evaluatorHook
}

// NewEvaluatorResolveHook compiles expression with evaluator.
func NewEvaluatorResolveHook(evaluator Evaluator, expression string, opts ...EvaluatorHookOption) (*EvaluatorResolveHook, error) {
	hook, err := newEvaluatorHook(evaluator, expression, opts)
	if err != nil {
		return nil, err
	}
	return &EvaluatorResolveHook{hook: hook}, nil
}

func (h *EvaluatorResolveHook) ResolveAndCache(_ context.Context, req ResolveRequest) (string, error) {
	result, err := h.hook.evaluate(req.Identifier, contextSnapshot(req.Context))
	if err != nil {
		return "", err
	}
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", wrapEvaluationError(h.hook.cfg.engine, h.hook.expression, req.Identifier,
			fmt.Errorf("%w: got %T, want string", ErrHookResult, result))
	}
}

// EvaluatorInitializeHook seeds caching pairs from a scripted expression
// returning a map of identifier to location.
type EvaluatorInitializeHook struct {
	hook *evaluatorHook
}

// NewEvaluatorInitializeHook compiles expression with evaluator.
func NewEvaluatorInitializeHook(evaluator Evaluator, expression string, opts ...EvaluatorHookOption) (*EvaluatorInitializeHook, error) {
	hook, err := newEvaluatorHook(evaluator, expression, opts)
	if err != nil {
		return nil, err
	}
	return &EvaluatorInitializeHook{hook: hook}, nil
}

func (h *EvaluatorInitializeHook) Initialize(_ context.Context, rc *ResolverContext) error {
	result, err := h.hook.evaluate(rc.MappingFilePath(), contextSnapshot(rc))
	if err != nil {
		return err
	}
	pairs, err := stringPairs(result)
	if err != nil {
		return wrapEvaluationError(h.hook.cfg.engine, h.hook.expression, rc.MappingFilePath(), err)
	}
	for key, value := range pairs {
		rc.AddCachingPair(key, value)
	}
	return nil
}

func contextSnapshot(rc *ResolverContext) map[string]any {
	snapshot := map[string]any{
		"mapping_file":  "",
		"search_paths":  []any{},
		"mapping_pairs": map[string]any{},
		"caching_pairs": map[string]any{},
	}
	if rc == nil {
		return snapshot
	}
	snapshot["mapping_file"] = rc.MappingFilePath()
	paths := rc.SearchPaths()
	list := make([]any, 0, len(paths))
	for _, p := range paths {
		list = append(list, p)
	}
	snapshot["search_paths"] = list
	snapshot["mapping_pairs"] = anyMap(rc.MappingPairs())
	snapshot["caching_pairs"] = anyMap(rc.CachingPairs())
	return snapshot
}

func anyMap(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

// stringPairs accepts any map whose keys and values are strings, including
// the wrapped values CEL returns.
func stringPairs(result any) (map[string]string, error) {
	if result == nil {
		return nil, nil
	}
	value := reflect.ValueOf(result)
	if value.Kind() != reflect.Map {
		return nil, fmt.Errorf("%w: got %T, want map", ErrHookResult, result)
	}
	out := make(map[string]string, value.Len())
	iter := value.MapRange()
	for iter.Next() {
		key, ok := unwrapString(iter.Key().Interface())
		if !ok {
			return nil, fmt.Errorf("%w: map key %v is not a string", ErrHookResult, iter.Key().Interface())
		}
		val, ok := unwrapString(iter.Value().Interface())
		if !ok {
			return nil, fmt.Errorf("%w: map value for %q is not a string", ErrHookResult, key)
		}
		out[key] = val
	}
	return out, nil
}

func unwrapString(v any) (string, bool) {
	if wrapped, ok := v.(interface{ Value() any }); ok {
		v = wrapped.Value()
	}
	s, ok := v.(string)
	return s, ok
}
