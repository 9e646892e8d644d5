package resolver

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/goliatone/go-resolver/pkg/activity"
	"github.com/goliatone/go-resolver/pkg/assetfs"
	"github.com/goliatone/go-resolver/pkg/mappingfile"
	"github.com/google/uuid"
)

// ResolverContext is the mutable state resolution runs against: a mapping
// table, a search path list, a resolution cache and an optional backing
// mapping document. Identity (Hash, Equal) is the mapping file path alone.
type ResolverContext struct {
	mu sync.RWMutex

	id          uuid.UUID
	mappingFile string
	cfg         Config
	getenv      func(string) string
	source      MappingSource
	explicit    *CanonicalizationRule

	mapping     *MappingTable
	cache       *ResolutionCache
	searchPaths *SearchPathList
	ruleErr     error
	// generation changes whenever the resolution cache is cleared, so
	// results computed before the clear are not written back.
	generation uint64

	initHook    InitializeHook
	resolveHook ResolveHook
	emitter     *activity.Emitter
}

// ContextOption configures a ResolverContext.
type ContextOption func(*contextConfig)

type contextConfig struct {
	mappingFile  string
	searchPaths  []string
	cfg          Config
	getenv       func(string) string
	source       MappingSource
	storage      assetfs.Storage
	rule         *ruleSpec
	initHook     InitializeHook
	resolveHook  ResolveHook
	hooks        []activity.Hook
	channel      string
	mappingPairs []string
	cachingPairs map[string]string
}

type ruleSpec struct {
	pattern string
	format  string
}

// WithMappingFile sets the backing mapping document. Relative paths are made
// absolute.
func WithMappingFile(path string) ContextOption {
	return func(cfg *contextConfig) {
		cfg.mappingFile = path
	}
}

// WithSearchPaths sets the custom search path entries.
func WithSearchPaths(paths ...string) ContextOption {
	return func(cfg *contextConfig) {
		cfg.searchPaths = cloneStrings(paths)
	}
}

// WithContextConfig sets the env keys the context reads.
func WithContextConfig(c Config) ContextOption {
	return func(cfg *contextConfig) {
		cfg.cfg = c
	}
}

// WithGetenv replaces os.Getenv for every env read the context makes.
func WithGetenv(getenv func(string) string) ContextOption {
	return func(cfg *contextConfig) {
		if getenv != nil {
			cfg.getenv = getenv
		}
	}
}

// WithMappingSource replaces the document reader used for the mapping file.
func WithMappingSource(source MappingSource) ContextOption {
	return func(cfg *contextConfig) {
		cfg.source = source
	}
}

// WithContextStorage reads the mapping file through storage.
func WithContextStorage(storage assetfs.Storage) ContextOption {
	return func(cfg *contextConfig) {
		cfg.storage = storage
	}
}

// WithCanonicalization installs a canonicalization rule that takes
// precedence over the env rule and survives reinitialisation.
func WithCanonicalization(pattern, format string) ContextOption {
	return func(cfg *contextConfig) {
		cfg.rule = &ruleSpec{pattern: pattern, format: format}
	}
}

// WithInitializeHook runs hook after every (re)initialisation.
func WithInitializeHook(hook InitializeHook) ContextOption {
	return func(cfg *contextConfig) {
		cfg.initHook = hook
	}
}

// WithResolveHook replaces the search path probe with hook.
func WithResolveHook(hook ResolveHook) ContextOption {
	return func(cfg *contextConfig) {
		cfg.resolveHook = hook
	}
}

// WithContextActivity emits context lifecycle events to hooks.
func WithContextActivity(hooks ...activity.Hook) ContextOption {
	return func(cfg *contextConfig) {
		cfg.hooks = append(cfg.hooks, hooks...)
	}
}

func withActivityChannel(channel string) ContextOption {
	return func(cfg *contextConfig) {
		cfg.channel = channel
	}
}

// WithInitialMappingPairs adds flat source/target pairs after the first
// initialisation. They are not re-applied by ClearAndReinitialize. An
// odd-length total is malformed and no pair is added.
func WithInitialMappingPairs(pairs ...string) ContextOption {
	return func(cfg *contextConfig) {
		cfg.mappingPairs = append(cfg.mappingPairs, pairs...)
	}
}

// WithInitialCachingPairs adds caching pairs after the first
// initialisation. They are not re-applied by ClearAndReinitialize.
func WithInitialCachingPairs(pairs map[string]string) ContextOption {
	return func(cfg *contextConfig) {
		if cfg.cachingPairs == nil {
			cfg.cachingPairs = map[string]string{}
		}
		for key, value := range pairs {
			cfg.cachingPairs[key] = value
		}
	}
}

// NewResolverContext builds and initialises a context. It fails only when
// an explicit canonicalization rule does not compile or the initialize hook
// fails.
func NewResolverContext(ctx context.Context, opts ...ContextOption) (*ResolverContext, error) {
	ctx = contextOrBackground(ctx)
	cfg := contextConfig{cfg: DefaultConfig(), getenv: os.Getenv}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.cfg = cfg.cfg.withDefaults()
	if cfg.source == nil {
		cfg.source = mappingfile.NewReader(cfg.storage)
	}

	mappingFile := ""
	if cfg.mappingFile != "" {
		mappingFile = absOrSelf(cfg.mappingFile)
	}

	rc := &ResolverContext{
		id:          uuid.New(),
		mappingFile: mappingFile,
		cfg:         cfg.cfg,
		getenv:      cfg.getenv,
		source:      cfg.source,
		mapping:     NewMappingTable(),
		cache:       NewResolutionCache(),
		searchPaths: NewSearchPathList(cfg.cfg.SearchPathsEnv, cfg.getenv),
		initHook:    cfg.initHook,
		resolveHook: cfg.resolveHook,
		emitter:     activity.NewEmitter(cfg.hooks, activity.WithChannel(cfg.channel)),
	}
	rc.searchPaths.SetCustom(cfg.searchPaths)
	if cfg.rule != nil {
		rule, err := NewCanonicalizationRule(cfg.rule.pattern, cfg.rule.format)
		if err != nil {
			return nil, err
		}
		rc.explicit = rule
	}

	rc.mu.Lock()
	rc.initializeLocked(ctx)
	addFlatPairs(rc.mapping, cfg.mappingPairs)
	for key, value := range cfg.cachingPairs {
		rc.cache.Add(key, value)
	}
	rc.mu.Unlock()

	if err := rc.runInitializeHook(ctx); err != nil {
		return nil, err
	}
	return rc, nil
}

// initializeLocked reads env search paths, the env canonicalization rule and
// the backing mapping pairs. An absent or malformed document leaves the
// mapping table empty.
func (rc *ResolverContext) initializeLocked(ctx context.Context) {
	rc.searchPaths.Refresh()

	rc.ruleErr = nil
	switch {
	case rc.explicit != nil:
		rc.mapping.rule = rc.explicit
	default:
		rc.mapping.ClearRule()
		pattern := rc.getenv(rc.cfg.CanonicalPatternEnv)
		if pattern != "" {
			if err := rc.mapping.SetRule(pattern, rc.getenv(rc.cfg.CanonicalFormatEnv)); err != nil {
				rc.ruleErr = err
			}
		}
	}

	rc.loadMappingLocked(ctx)
}

func (rc *ResolverContext) loadMappingLocked(ctx context.Context) {
	if rc.mappingFile == "" || rc.source == nil {
		return
	}
	flat, ok := rc.source.ReadPairs(ctx, rc.mappingFile)
	if !ok {
		return
	}
	addFlatPairs(rc.mapping, flat)
}

// addFlatPairs adds source/target pairs from a flat array. An odd-length
// array is malformed and adds nothing.
func addFlatPairs(table *MappingTable, flat []string) {
	if len(flat)%2 != 0 {
		return
	}
	for i := 0; i < len(flat); i += 2 {
		table.Add(flat[i], flat[i+1])
	}
}

func (rc *ResolverContext) runInitializeHook(ctx context.Context) error {
	if rc.initHook == nil {
		return nil
	}
	if err := rc.initHook.Initialize(ctx, rc); err != nil {
		return fmt.Errorf("resolver: initialize hook for %s: %w", rc, err)
	}
	return nil
}

// ClearAndReinitialize empties the mapping and caching tables and runs
// initialisation again. Custom search paths and an explicit rule survive.
func (rc *ResolverContext) ClearAndReinitialize(ctx context.Context) error {
	ctx = contextOrBackground(ctx)
	rc.mu.Lock()
	rc.mapping.Clear()
	rc.cache.Clear()
	rc.generation++
	rc.initializeLocked(ctx)
	rc.mu.Unlock()

	if err := rc.runInitializeHook(ctx); err != nil {
		return err
	}
	return rc.emit(ctx, activity.VerbContextReinitialized)
}

// RefreshFromMappingFilePath replaces the mapping pairs with the content of
// the backing document. Caching pairs are kept.
func (rc *ResolverContext) RefreshFromMappingFilePath(ctx context.Context) error {
	ctx = contextOrBackground(ctx)
	rc.mu.Lock()
	rc.mapping.Clear()
	rc.loadMappingLocked(ctx)
	rc.mu.Unlock()
	return rc.emit(ctx, activity.VerbMappingReloaded)
}

func (rc *ResolverContext) emit(ctx context.Context, verb string) error {
	if !rc.emitter.Enabled() {
		return nil
	}
	return rc.emitter.Emit(ctx, verb, rc.event())
}

func (rc *ResolverContext) event() activity.Event {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return activity.Event{
		ContextID:    rc.id.String(),
		MappingFile:  rc.mappingFile,
		MappingPairs: rc.mapping.Len(),
		CachingPairs: rc.cache.Len(),
	}
}

// ID returns the process-unique id used in activity events.
func (rc *ResolverContext) ID() uuid.UUID { return rc.id }

// MappingFilePath returns the absolute backing document path, or "".
func (rc *ResolverContext) MappingFilePath() string { return rc.mappingFile }

// Hash is derived from the mapping file path only.
func (rc *ResolverContext) Hash() uint64 {
	if rc == nil {
		return xxhash.Sum64String("")
	}
	return xxhash.Sum64String(rc.mappingFile)
}

// Equal reports whether both contexts share a mapping file path.
func (rc *ResolverContext) Equal(other *ResolverContext) bool {
	if rc == nil || other == nil {
		return rc == other
	}
	return rc.mappingFile == other.mappingFile
}

func (rc *ResolverContext) String() string {
	if rc == nil {
		return "ResolverContext(<nil>)"
	}
	return fmt.Sprintf("ResolverContext('%s')", rc.mappingFile)
}

// AddMappingPair inserts or overwrites source→target.
func (rc *ResolverContext) AddMappingPair(source, target string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.mapping.Add(source, target)
}

// RemoveMappingByKey deletes the pair for source.
func (rc *ResolverContext) RemoveMappingByKey(source string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.mapping.RemoveByKey(source)
}

// RemoveMappingByValue deletes every pair targeting target.
func (rc *ResolverContext) RemoveMappingByValue(target string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.mapping.RemoveByValue(target)
}

// ClearMappingPairs removes every mapping pair.
func (rc *ResolverContext) ClearMappingPairs() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.mapping.Clear()
}

// MappingPairs returns a copy of the mapping table.
func (rc *ResolverContext) MappingPairs() map[string]string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.mapping.All()
}

// MappingTarget returns the target stored for source, without
// canonicalization.
func (rc *ResolverContext) MappingTarget(source string) (string, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.mapping.Get(source)
}

// AddCachingPair inserts or overwrites id→location. An empty location
// records a negative result.
func (rc *ResolverContext) AddCachingPair(id, location string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cache.Add(id, location)
}

// RemoveCachingByKey deletes the cached result for id.
func (rc *ResolverContext) RemoveCachingByKey(id string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cache.RemoveByKey(id)
}

// RemoveCachingByValue deletes every cached result equal to location.
func (rc *ResolverContext) RemoveCachingByValue(location string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cache.RemoveByValue(location)
}

// ClearCachingPairs empties the resolution cache.
func (rc *ResolverContext) ClearCachingPairs() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cache.Clear()
	rc.generation++
}

// CachingPairs returns a copy of the resolution cache.
func (rc *ResolverContext) CachingPairs() map[string]string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.cache.All()
}

// CachingPair returns the cached result for id.
func (rc *ResolverContext) CachingPair(id string) (string, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.cache.Get(id)
}

func (rc *ResolverContext) cacheGeneration() uint64 {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.generation
}

// storeResult caches id→location unless the cache was cleared since
// generation was read.
func (rc *ResolverContext) storeResult(id, location string, generation uint64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.generation == generation {
		rc.cache.Add(id, location)
	}
}

// SetCustomSearchPaths replaces the custom search path entries.
func (rc *ResolverContext) SetCustomSearchPaths(paths []string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.searchPaths.SetCustom(paths)
}

// CustomSearchPaths returns the custom entries.
func (rc *ResolverContext) CustomSearchPaths() []string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.searchPaths.Custom()
}

// EnvSearchPaths returns the env-sourced entries.
func (rc *ResolverContext) EnvSearchPaths() []string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.searchPaths.Env()
}

// SearchPaths returns env entries followed by custom entries.
func (rc *ResolverContext) SearchPaths() []string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.searchPaths.Effective()
}

// RefreshSearchPaths re-reads the env entries.
func (rc *ResolverContext) RefreshSearchPaths() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.searchPaths.Refresh()
}

// SetCanonicalizationRule installs an explicit rule. An empty pattern
// removes the explicit rule and falls back to the env rule on the next
// reinitialisation.
func (rc *ResolverContext) SetCanonicalizationRule(pattern, format string) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if pattern == "" {
		rc.explicit = nil
		rc.mapping.ClearRule()
		rc.ruleErr = nil
		return nil
	}
	rule, err := NewCanonicalizationRule(pattern, format)
	if err != nil {
		return err
	}
	rc.explicit = rule
	rc.mapping.rule = rule
	rc.ruleErr = nil
	return nil
}

// CanonicalizationRule returns the active pattern and format.
func (rc *ResolverContext) CanonicalizationRule() (pattern, format string) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if rule := rc.mapping.Rule(); rule != nil {
		return rule.Pattern, rule.Format
	}
	return "", ""
}

// lookupMapping canonicalizes id and consults the mapping table. A broken
// env rule surfaces here.
func (rc *ResolverContext) lookupMapping(id string) (string, bool, error) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if rc.ruleErr != nil {
		return "", false, rc.ruleErr
	}
	target, ok := rc.mapping.Lookup(id)
	return target, ok, nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
