package resolver

import (
	"context"
	"fmt"
	"log/slog"
)

type boundContextKey struct{}

// BindContext returns a child of ctx under which rc is consulted before the
// engine's fallback context.
func BindContext(ctx context.Context, rc *ResolverContext) context.Context {
	return context.WithValue(contextOrBackground(ctx), boundContextKey{}, rc)
}

// BoundContext returns the context bound to ctx, or nil.
func BoundContext(ctx context.Context) *ResolverContext {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(boundContextKey{}).(*ResolverContext)
	return rc
}

// Resolve returns the location id refers to, or "" when it cannot be found.
// Errors are reserved for misconfiguration.
func (e *Engine) Resolve(ctx context.Context, id string) (string, error) {
	ctx = contextOrBackground(ctx)
	e.logCall(ctx, "Resolve", slog.String("identifier", id))
	return e.resolve(ctx, id, nil)
}

// ResolveWithTrace is Resolve plus a record of every lookup and probe.
func (e *Engine) ResolveWithTrace(ctx context.Context, id string) (string, Trace, error) {
	ctx = contextOrBackground(ctx)
	e.logCall(ctx, "ResolveWithTrace", slog.String("identifier", id))
	trace := &Trace{Identifier: id}
	resolved, err := e.resolve(ctx, id, trace)
	trace.Resolved = resolved
	return resolved, *trace, err
}

// ResolveAndCache runs the per-context resolution step for id against rc
// alone and caches the outcome in rc.
func (e *Engine) ResolveAndCache(ctx context.Context, rc *ResolverContext, id string) (string, error) {
	ctx = contextOrBackground(ctx)
	e.logCall(ctx, "ResolveAndCache", slog.String("identifier", id), slog.String("context", rc.String()))
	resolved, _, err := e.resolveAndCache(ctx, rc, id, nil)
	return resolved, err
}

func (e *Engine) resolve(ctx context.Context, id string, trace *Trace) (string, error) {
	if id == "" {
		return "", nil
	}
	scope := scopeFrom(ctx, e)
	if resolved, ok := scope.lookup(id); ok {
		trace.add(Step{Stage: StageScopedCache, Candidate: id, Location: resolved, Found: resolved != ""})
		return resolved, nil
	}

	var resolved string
	if e.IsContextDependentPath(id) {
		var err error
		resolved, err = e.resolveInContexts(ctx, id, trace)
		if err != nil {
			return "", err
		}
	} else {
		resolved = e.probe(ctx, id, trace, StageDirect, "")
	}

	scope.store(id, resolved)
	return resolved, nil
}

// contextChain is the bound context followed by the fallback.
func (e *Engine) contextChain(ctx context.Context) []*ResolverContext {
	chain := make([]*ResolverContext, 0, 2)
	if bound := BoundContext(ctx); bound != nil {
		chain = append(chain, bound)
	}
	if e.fallback != nil && (len(chain) == 0 || chain[0] != e.fallback) {
		chain = append(chain, e.fallback)
	}
	return chain
}

// resolveInContexts stops at the first context that had a way to probe for
// id, even when the probe missed.
func (e *Engine) resolveInContexts(ctx context.Context, id string, trace *Trace) (string, error) {
	for _, rc := range e.contextChain(ctx) {
		resolved, attempted, err := e.resolveAndCache(ctx, rc, id, trace)
		if err != nil {
			return "", err
		}
		if attempted {
			return resolved, nil
		}
	}
	return "", nil
}

// resolveAndCache applies mapping, cache and probe for one context. The
// boolean reports whether rc produced an answer, cached or probed.
func (e *Engine) resolveAndCache(ctx context.Context, rc *ResolverContext, id string, trace *Trace) (string, bool, error) {
	if rc == nil || id == "" {
		return "", false, nil
	}
	label := rc.String()
	generation := rc.cacheGeneration()

	lookup := id
	token, isToken := e.parseToken(id)
	var mapped bool
	if isToken {
		lookup, mapped = rc.MappingTarget(e.cfg.RelativeIdentifier.Canonical(token))
		if !mapped {
			lookup = e.tokenLocation(id, token)
		}
	} else {
		target, ok, err := rc.lookupMapping(id)
		if err != nil {
			return "", false, err
		}
		if ok {
			lookup, mapped = target, true
		}
	}
	if mapped {
		trace.add(Step{Stage: StageMapping, Context: label, Candidate: id, Location: lookup, Found: true})
	}

	if cached, ok := rc.CachingPair(lookup); ok {
		trace.add(Step{Stage: StageCache, Context: label, Candidate: lookup, Location: cached, Found: cached != ""})
		return cached, true, nil
	}

	var resolved string
	switch {
	case isToken && !mapped && IsRelative(lookup):
		trace.add(Step{Stage: StageToken, Context: label, Candidate: lookup})
	case isToken && !mapped:
		resolved = e.probe(ctx, lookup, trace, StageToken, label)
	case !IsRelative(lookup):
		resolved = e.probe(ctx, lookup, trace, StageDirect, label)
	case rc.resolveHook != nil:
		location, err := rc.resolveHook.ResolveAndCache(ctx, ResolveRequest{Context: rc, Identifier: lookup, Storage: e.storage})
		if err != nil {
			return "", false, fmt.Errorf("resolver: resolve hook for %q in %s: %w", lookup, label, err)
		}
		trace.add(Step{Stage: StageHook, Context: label, Candidate: lookup, Location: location, Found: location != ""})
		resolved = location
	default:
		prefixes := rc.SearchPaths()
		if len(prefixes) == 0 {
			return "", false, nil
		}
		resolved = probeSearchPaths(ctx, e.storage, prefixes, lookup, func(candidate string, found bool) {
			trace.add(Step{Stage: StageSearchPath, Context: label, Candidate: candidate, Found: found})
		})
	}

	rc.storeResult(lookup, resolved, generation)
	return resolved, true, nil
}

func (e *Engine) probe(ctx context.Context, location string, trace *Trace, stage Stage, label string) string {
	found := e.storage.Exists(ctx, location)
	resolved := ""
	if found {
		resolved = absOrSelf(location)
	}
	trace.add(Step{Stage: stage, Context: label, Candidate: location, Location: resolved, Found: found})
	return resolved
}

// tokenLocation returns the anchored identifier a token was created from,
// falling back to the scheme layout. Unplaceable tokens are returned as is.
func (e *Engine) tokenLocation(id string, token RelativeIdentifier) string {
	e.mu.Lock()
	for anchored, t := range e.relative {
		if t == id {
			e.mu.Unlock()
			return anchored
		}
	}
	e.mu.Unlock()
	if location := e.cfg.RelativeIdentifier.Location(token); location != "" {
		return location
	}
	return id
}

func (e *Engine) parseToken(id string) (RelativeIdentifier, bool) {
	if !e.cfg.ExposeRelativePathIdentifiers {
		return RelativeIdentifier{}, false
	}
	return e.cfg.RelativeIdentifier.Parse(id)
}
