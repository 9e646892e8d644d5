package resolver

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-resolver/pkg/assetfs"
)

// Function is a helper callable from hook expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry stores hook helpers. Lookups are case-insensitive; the
// registered spelling is what expressions bind.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]registeredFunction
}

type registeredFunction struct {
	name string
	fn   Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]registeredFunction)}
}

// DefaultFunctions returns a registry with the path helpers hooks usually
// need: exists, join, norm, basename, dirname, isRelative and
// isSearchRelative. exists probes storage.
func DefaultFunctions(storage assetfs.Storage) *FunctionRegistry {
	if storage == nil {
		storage = assetfs.Default()
	}
	r := NewFunctionRegistry()
	_ = r.Register("exists", func(args ...any) (any, error) {
		p, err := stringArg("exists", args, 0)
		if err != nil {
			return nil, err
		}
		return storage.Exists(context.Background(), p), nil
	})
	_ = r.Register("join", func(args ...any) (any, error) {
		parts := make([]string, 0, len(args))
		for i := range args {
			p, err := stringArg("join", args, i)
			if err != nil {
				return nil, err
			}
			parts = append(parts, toSlash(p))
		}
		return NormPath(path.Join(parts...)), nil
	})
	_ = r.Register("norm", unaryPath("norm", NormPath))
	_ = r.Register("basename", unaryPath("basename", func(p string) string { return path.Base(NormPath(p)) }))
	_ = r.Register("dirname", unaryPath("dirname", func(p string) string { return path.Dir(NormPath(p)) }))
	_ = r.Register("isRelative", func(args ...any) (any, error) {
		p, err := stringArg("isRelative", args, 0)
		if err != nil {
			return nil, err
		}
		return IsRelative(p), nil
	})
	_ = r.Register("isSearchRelative", func(args ...any) (any, error) {
		p, err := stringArg("isSearchRelative", args, 0)
		if err != nil {
			return nil, err
		}
		return IsSearchRelative(p), nil
	})
	return r
}

// Register stores fn under name. Names are case-insensitive and unique.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if name == "" {
		return fmt.Errorf("resolver: function name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("resolver: function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]registeredFunction)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("resolver: function %q already registered", name)
	}
	r.functions[key] = registeredFunction{name: name, fn: fn}
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]registeredFunction, len(r.functions))}
	for key, entry := range r.functions {
		clone.functions[key] = entry
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("resolver: function registry is nil")
	}
	r.mu.RLock()
	entry, ok := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("resolver: function %q not registered", name)
	}
	return entry.fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for _, entry := range r.functions {
		names = append(names, entry.name)
	}
	sort.Strings(names)
	return names
}

func unaryPath(name string, fn func(string) string) Function {
	return func(args ...any) (any, error) {
		p, err := stringArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		return fn(p), nil
	}
}

func stringArg(name string, args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("resolver: %s: missing argument %d", name, i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("resolver: %s: argument %d must be a string, got %T", name, i, args[i])
	}
	return s, nil
}
