package resolver

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-resolver/pkg/assetfs"
)

func TestConcurrentResolutionAgainstSharedContext(t *testing.T) {
	storage := assetfs.NewMemory()
	storage.Touch("/lib/a.usd", "/lib/b.usd")
	engine := newTestEngine(t, storage, nil)
	rc := newTestContext(t, engine, WithSearchPaths("/lib"))
	ctx := BindContext(context.Background(), rc)

	allowed := map[string]map[string]bool{
		"a.usd":     {"/lib/a.usd": true},
		"alias.usd": {"": true, "/lib/b.usd": true},
		"gone.usd":  {"": true},
	}

	const readers, writers, rounds = 8, 3, 200
	var wg sync.WaitGroup
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				for id, want := range allowed {
					got, err := engine.Resolve(ctx, id)
					if err != nil {
						t.Errorf("Resolve(%q) error = %v", id, err)
						return
					}
					if !want[got] {
						t.Errorf("Resolve(%q) = %q, not one of %v", id, got, want)
						return
					}
				}
			}
		}()
	}
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				switch (i + w) % 3 {
				case 0:
					rc.AddMappingPair("alias.usd", "b.usd")
				case 1:
					rc.AddCachingPair(fmt.Sprintf("seed-%d.usd", w), "/lib/a.usd")
				default:
					if err := rc.ClearAndReinitialize(context.Background()); err != nil {
						t.Errorf("ClearAndReinitialize error = %v", err)
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()

	for id, location := range rc.CachingPairs() {
		if want, ok := allowed[id]; ok && !want[location] {
			t.Fatalf("cached %q -> %q, not one of %v", id, location, want)
		}
	}
	rc.AddMappingPair("alias.usd", "b.usd")
	if got := mustResolve(t, engine, ctx, "alias.usd"); got != "/lib/b.usd" {
		t.Fatalf("Resolve(alias) after writers = %q", got)
	}
}

func TestConcurrentCallersShareOneContextPerAsset(t *testing.T) {
	storage := assetfs.NewMemory()
	storage.PutAt("/show/shot/shot.json", []byte(mappingDoc), time.Unix(100, 0))
	engine := newTestEngine(t, storage, nil)

	const callers = 16
	results := make([]*ResolverContext, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rc, err := engine.CreateDefaultContextForAsset(context.Background(), "/show/shot/shot.json")
			if err != nil {
				t.Errorf("CreateDefaultContextForAsset error = %v", err)
				return
			}
			results[i] = rc
		}(i)
	}
	wg.Wait()

	for i, rc := range results {
		if rc == nil || rc != results[0] {
			t.Fatalf("caller %d got a different context", i)
		}
	}
	if got, _ := results[0].MappingTarget("char/hero.usd"); got != "char/hero_v002.usd" {
		t.Fatalf("shared context mapping = %q", got)
	}
}
