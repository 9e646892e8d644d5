package state

import (
	"context"
	"fmt"

	resolver "github.com/goliatone/go-resolver"
)

// Seeder restores persisted pairs into a context. Install it with
// resolver.WithInitializeHook so pairs come back after every
// ClearAndReinitialize.
type Seeder struct {
	Store  Store
	Domain string
}

var _ resolver.InitializeHook = Seeder{}

// Initialize implements resolver.InitializeHook. Contexts without a mapping
// file have nothing to key a snapshot on and are skipped.
func (s Seeder) Initialize(ctx context.Context, rc *resolver.ResolverContext) error {
	if s.Store == nil || rc.MappingFilePath() == "" {
		return nil
	}
	snapshot, _, ok, err := s.Store.Load(ctx, Ref{Domain: s.Domain, MappingFile: rc.MappingFilePath()})
	if err != nil {
		return fmt.Errorf("state: seed %s: %w", rc, err)
	}
	if !ok {
		return nil
	}
	for source, target := range snapshot.MappingPairs {
		rc.AddMappingPair(source, target)
	}
	for id, location := range snapshot.CachingPairs {
		rc.AddCachingPair(id, location)
	}
	return nil
}

// Capture saves the current mapping and caching pairs of rc.
func Capture(ctx context.Context, store Store, domain string, rc *resolver.ResolverContext, meta Meta) (Meta, error) {
	if store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	ref := Ref{Domain: domain, MappingFile: rc.MappingFilePath()}
	return store.Save(ctx, ref, Snapshot{
		MappingPairs: rc.MappingPairs(),
		CachingPairs: rc.CachingPairs(),
	}, meta)
}
