package resolver

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type scopeKey struct {
	engine *Engine
}

// ScopedCache memoises every resolution made through a context.Context
// derived from BeginScopedCache, whichever ResolverContext is bound. Scopes
// nest; an inner scope starts empty and never writes through to its parent.
type ScopedCache struct {
	id     uuid.UUID
	parent *ScopedCache

	mu      sync.Mutex
	entries map[string]string
	closed  bool
}

// BeginScopedCache opens a scope. Resolutions made with the returned context
// are memoised until Close.
func (e *Engine) BeginScopedCache(ctx context.Context) (context.Context, *ScopedCache) {
	ctx = contextOrBackground(ctx)
	scope := &ScopedCache{
		id:      uuid.New(),
		parent:  scopeFrom(ctx, e),
		entries: map[string]string{},
	}
	return context.WithValue(ctx, scopeKey{engine: e}, scope), scope
}

// ActiveScopedCache returns the innermost open scope for ctx, or nil.
func (e *Engine) ActiveScopedCache(ctx context.Context) *ScopedCache {
	return scopeFrom(ctx, e)
}

// scopeFrom returns the innermost open scope of ctx. A closed scope hands
// over to its nearest open ancestor.
func scopeFrom(ctx context.Context, e *Engine) *ScopedCache {
	if ctx == nil {
		return nil
	}
	scope, _ := ctx.Value(scopeKey{engine: e}).(*ScopedCache)
	for scope != nil && scope.isClosed() {
		scope = scope.parent
	}
	return scope
}

// ID identifies the scope in logs.
func (s *ScopedCache) ID() uuid.UUID { return s.id }

// Depth is 1 for an outermost scope.
func (s *ScopedCache) Depth() int {
	depth := 0
	for cur := s; cur != nil; cur = cur.parent {
		depth++
	}
	return depth
}

// Len reports how many identifiers are memoised.
func (s *ScopedCache) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close discards the memo. Later lookups through the scope's context miss
// and nothing more is recorded. Close is idempotent.
func (s *ScopedCache) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
}

func (s *ScopedCache) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *ScopedCache) lookup(id string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false
	}
	resolved, ok := s.entries[id]
	return resolved, ok
}

func (s *ScopedCache) store(id, resolved string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.entries[id] = resolved
}
