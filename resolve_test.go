package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-resolver/pkg/assetfs"
	"github.com/google/go-cmp/cmp"
)

func TestResolveEmptyIdentifier(t *testing.T) {
	engine := newTestEngine(t, assetfs.NewMemory(), nil)
	if got := mustResolve(t, engine, context.Background(), ""); got != "" {
		t.Fatalf("Resolve(\"\") = %q, want empty", got)
	}
}

func TestResolveThroughEnvSearchPaths(t *testing.T) {
	storage := assetfs.NewMemory()
	storage.Touch("/env/search/pathB/char/hero.usd")
	env := map[string]string{DefaultSearchPathsEnv: "/env/search/pathA:/env/search/pathB"}
	engine := newTestEngine(t, storage, env)

	got := mustResolve(t, engine, context.Background(), "char/hero.usd")
	if got != "/env/search/pathB/char/hero.usd" {
		t.Fatalf("Resolve = %q, want /env/search/pathB/char/hero.usd", got)
	}
}

func TestResolveIsIdempotentWithoutRepeatingIO(t *testing.T) {
	memory := assetfs.NewMemory()
	memory.Touch("/search/found.usd")
	storage := assetfs.NewCounting(memory)
	engine := newTestEngine(t, storage, map[string]string{DefaultSearchPathsEnv: "/search"})

	for _, id := range []string{"found.usd", "missing.usd"} {
		first := mustResolve(t, engine, context.Background(), id)
		calls := storage.ExistsCalls()
		second := mustResolve(t, engine, context.Background(), id)
		if first != second {
			t.Fatalf("Resolve(%q) not idempotent: %q then %q", id, first, second)
		}
		if storage.ExistsCalls() != calls {
			t.Fatalf("Resolve(%q) repeated I/O: %d calls, want %d", id, storage.ExistsCalls(), calls)
		}
	}
}

func TestNegativeCacheShortCircuits(t *testing.T) {
	storage := assetfs.NewMemory()
	engine := newTestEngine(t, storage, map[string]string{DefaultSearchPathsEnv: "/search"})

	if got := mustResolve(t, engine, context.Background(), "missing.usd"); got != "" {
		t.Fatalf("Resolve(missing.usd) = %q, want empty", got)
	}
	storage.Touch("/search/missing.usd")
	if got := mustResolve(t, engine, context.Background(), "missing.usd"); got != "" {
		t.Fatalf("negative entry ignored, got %q", got)
	}

	engine.CreateDefaultContext().RemoveCachingByKey("missing.usd")
	if got := mustResolve(t, engine, context.Background(), "missing.usd"); got != "/search/missing.usd" {
		t.Fatalf("Resolve after clearing = %q", got)
	}
}

func TestMappingTakesPrecedenceOverCache(t *testing.T) {
	storage := assetfs.NewMemory()
	storage.Touch("/search/pinned.usd", "/search/asset.usd")
	engine := newTestEngine(t, storage, map[string]string{DefaultSearchPathsEnv: "/search"})
	rc := engine.CreateDefaultContext()

	rc.AddCachingPair("asset.usd", "/stale/asset.usd")
	rc.AddMappingPair("asset.usd", "pinned.usd")

	if got := mustResolve(t, engine, context.Background(), "asset.usd"); got != "/search/pinned.usd" {
		t.Fatalf("Resolve = %q, want mapping target /search/pinned.usd", got)
	}
	if got, _ := rc.CachingPair("pinned.usd"); got != "/search/pinned.usd" {
		t.Fatalf("result cached under %q, want mapping target key", got)
	}
}

func TestCanonicalizationRoundTrip(t *testing.T) {
	storage := assetfs.NewMemory()
	storage.Touch("/search/layer_v002.usd")
	engine := newTestEngine(t, storage, map[string]string{DefaultSearchPathsEnv: "/search"})
	rc := newTestContext(t, engine, WithCanonicalization(`(v\d\d\d)`, "v000"))
	rc.AddMappingPair("layer_v000.usd", "layer_v002.usd")

	ctx := BindContext(context.Background(), rc)
	if got := mustResolve(t, engine, ctx, "layer_v001.usd"); got != "/search/layer_v002.usd" {
		t.Fatalf("Resolve = %q, want /search/layer_v002.usd", got)
	}
}

func TestBoundContextShadowsFallback(t *testing.T) {
	storage := assetfs.NewMemory()
	storage.Touch("/fallback/asset.usd")
	engine := newTestEngine(t, storage, nil)
	engine.CreateDefaultContext().SetCustomSearchPaths([]string{"/fallback"})

	primary := newTestContext(t, engine, WithSearchPaths("/primary"))
	ctx := BindContext(context.Background(), primary)
	if got := mustResolve(t, engine, ctx, "asset.usd"); got != "" {
		t.Fatalf("primary probed and missed; fallback must not be consulted, got %q", got)
	}
	if got, ok := primary.CachingPair("asset.usd"); !ok || got != "" {
		t.Fatalf("primary negative entry = %q, %v", got, ok)
	}

	bare := newTestContext(t, engine)
	ctx = BindContext(context.Background(), bare)
	if got := mustResolve(t, engine, ctx, "asset.usd"); got != "/fallback/asset.usd" {
		t.Fatalf("context without search paths must fall through, got %q", got)
	}
	if _, ok := bare.CachingPair("asset.usd"); ok {
		t.Fatalf("context that made no attempt must not cache")
	}
}

func TestNoContextAttemptIsNotCached(t *testing.T) {
	engine := newTestEngine(t, assetfs.NewMemory(), nil)
	if got := mustResolve(t, engine, context.Background(), "asset.usd"); got != "" {
		t.Fatalf("Resolve = %q, want empty", got)
	}
	if got := engine.CreateDefaultContext().CachingPairs(); len(got) != 0 {
		t.Fatalf("CachingPairs = %v, want empty", got)
	}
}

func TestResolveNonContextDependentProbesDirectly(t *testing.T) {
	memory := assetfs.NewMemory()
	memory.Touch("/abs/asset.usd")
	storage := assetfs.NewCounting(memory)
	engine := newTestEngine(t, storage, map[string]string{DefaultSearchPathsEnv: "/search"})

	if got := mustResolve(t, engine, context.Background(), "/abs/asset.usd"); got != "/abs/asset.usd" {
		t.Fatalf("Resolve = %q", got)
	}
	if storage.ExistsCalls() != 1 {
		t.Fatalf("ExistsCalls = %d, want 1", storage.ExistsCalls())
	}
	if got := engine.CreateDefaultContext().CachingPairs(); len(got) != 0 {
		t.Fatalf("absolute identifiers must not touch context caches, got %v", got)
	}
	if engine.IsContextDependentPath("/abs/asset.usd") || engine.IsContextDependentPath("./rel.usd") {
		t.Fatalf("absolute and file-relative identifiers are not context dependent")
	}
	if !engine.IsContextDependentPath("rel.usd") {
		t.Fatalf("search-relative identifiers are context dependent")
	}
}

func TestExposeAbsolutePathIdentifiersRoutesThroughMapping(t *testing.T) {
	storage := assetfs.NewMemory()
	storage.Touch("/pinned/asset.usd")
	cfg := DefaultConfig()
	cfg.ExposeAbsolutePathIdentifiers = true
	engine := newTestEngine(t, storage, nil, WithConfig(cfg))
	engine.CreateDefaultContext().AddMappingPair("/abs/asset.usd", "/pinned/asset.usd")

	if !engine.IsContextDependentPath("/abs/asset.usd") {
		t.Fatalf("absolute identifiers must be context dependent when exposed")
	}
	if got := mustResolve(t, engine, context.Background(), "/abs/asset.usd"); got != "/pinned/asset.usd" {
		t.Fatalf("Resolve = %q, want /pinned/asset.usd", got)
	}
}

func TestResolveHookReplacesSearchPaths(t *testing.T) {
	storage := assetfs.NewMemory()
	engine := newTestEngine(t, storage, nil)
	var seen []string
	rc := newTestContext(t, engine, WithResolveHook(ResolveHookFunc(func(_ context.Context, req ResolveRequest) (string, error) {
		seen = append(seen, req.Identifier)
		if req.Storage == nil || req.Context == nil {
			t.Fatalf("hook request missing storage or context")
		}
		return "/hooked/" + req.Identifier, nil
	})))

	ctx := BindContext(context.Background(), rc)
	for i := 0; i < 2; i++ {
		if got := mustResolve(t, engine, ctx, "asset.usd"); got != "/hooked/asset.usd" {
			t.Fatalf("Resolve = %q", got)
		}
	}
	if diff := cmp.Diff([]string{"asset.usd"}, seen); diff != "" {
		t.Fatalf("hook calls mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveHookErrorPropagates(t *testing.T) {
	engine := newTestEngine(t, assetfs.NewMemory(), nil)
	boom := errors.New("boom")
	rc := newTestContext(t, engine, WithResolveHook(ResolveHookFunc(func(context.Context, ResolveRequest) (string, error) {
		return "", boom
	})))
	if _, err := engine.Resolve(BindContext(context.Background(), rc), "asset.usd"); !errors.Is(err, boom) {
		t.Fatalf("Resolve error = %v, want boom", err)
	}
}

func TestResolveAndCacheSingleContext(t *testing.T) {
	storage := assetfs.NewMemory()
	storage.Touch("/custom/asset.usd")
	engine := newTestEngine(t, storage, nil)
	rc := newTestContext(t, engine, WithSearchPaths("/custom"))

	got, err := engine.ResolveAndCache(context.Background(), rc, "asset.usd")
	if err != nil || got != "/custom/asset.usd" {
		t.Fatalf("ResolveAndCache = %q, %v", got, err)
	}
	if cached, _ := rc.CachingPair("asset.usd"); cached != got {
		t.Fatalf("CachingPair = %q, want %q", cached, got)
	}
}

func TestResolveWithTrace(t *testing.T) {
	storage := assetfs.NewMemory()
	storage.Touch("/b/pinned.usd")
	engine := newTestEngine(t, storage, map[string]string{DefaultSearchPathsEnv: "/a:/b"})
	engine.CreateDefaultContext().AddMappingPair("asset.usd", "pinned.usd")

	resolved, trace, err := engine.ResolveWithTrace(context.Background(), "asset.usd")
	if err != nil {
		t.Fatalf("ResolveWithTrace error = %v", err)
	}
	if resolved != "/b/pinned.usd" || trace.Resolved != resolved {
		t.Fatalf("resolved = %q, trace.Resolved = %q", resolved, trace.Resolved)
	}
	want := []Stage{StageMapping, StageSearchPath, StageSearchPath}
	if diff := cmp.Diff(want, trace.Stages()); diff != "" {
		t.Fatalf("stages mismatch (-want +got):\n%s", diff)
	}

	_, trace, err = engine.ResolveWithTrace(context.Background(), "asset.usd")
	if err != nil {
		t.Fatalf("ResolveWithTrace error = %v", err)
	}
	if diff := cmp.Diff([]Stage{StageMapping, StageCache}, trace.Stages()); diff != "" {
		t.Fatalf("cached stages mismatch (-want +got):\n%s", diff)
	}

	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON error = %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("TraceFromJSON error = %v", err)
	}
	if diff := cmp.Diff(trace, decoded); diff != "" {
		t.Fatalf("trace JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestReinitializeDuringResolutionDropsStaleResult(t *testing.T) {
	engine := newTestEngine(t, assetfs.NewMemory(), nil)
	var rc *ResolverContext
	hook := ResolveHookFunc(func(ctx context.Context, req ResolveRequest) (string, error) {
		if err := rc.ClearAndReinitialize(ctx); err != nil {
			return "", err
		}
		return "/stale/" + req.Identifier, nil
	})
	rc = newTestContext(t, engine, WithResolveHook(hook))

	got := mustResolve(t, engine, BindContext(context.Background(), rc), "asset.usd")
	if got != "/stale/asset.usd" {
		t.Fatalf("Resolve = %q", got)
	}
	if pairs := rc.CachingPairs(); len(pairs) != 0 {
		t.Fatalf("result computed before the clear was cached: %v", pairs)
	}

	calls := 0
	rc2 := newTestContext(t, engine, WithResolveHook(ResolveHookFunc(func(context.Context, ResolveRequest) (string, error) {
		calls++
		return "/fresh.usd", nil
	})))
	ctx := BindContext(context.Background(), rc2)
	mustResolve(t, engine, ctx, "asset.usd")
	mustResolve(t, engine, ctx, "asset.usd")
	if calls != 1 {
		t.Fatalf("hook calls = %d, want 1 when nothing cleared the cache", calls)
	}
}
