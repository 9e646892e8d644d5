package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"
	"time"

	"github.com/goliatone/go-resolver/pkg/activity"
	"github.com/goliatone/go-resolver/pkg/assetfs"
	"github.com/goliatone/go-resolver/pkg/mappingfile"
)

// Engine turns asset paths into identifiers and identifiers into locations.
// It owns the fallback context, the relative identifier remap and the
// shared per-asset contexts; everything else lives in ResolverContexts
// bound through context.Context.
type Engine struct {
	cfg         Config
	storage     assetfs.Storage
	getenv      func(string) string
	logger      *slog.Logger
	hooks       []activity.Hook
	channel     string
	emitter     *activity.Emitter
	relHook     RelativeIdentifierHook
	contextOpts []ContextOption
	fallback    *ResolverContext

	mu       sync.Mutex
	relative pairTable

	sharedMu sync.Mutex
	shared   map[string]*sharedContext
}

type sharedContext struct {
	rc      *ResolverContext
	modTime time.Time
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	cfg         Config
	storage     assetfs.Storage
	getenv      func(string) string
	logger      *slog.Logger
	hooks       []activity.Hook
	channel     string
	relHook     RelativeIdentifierHook
	contextOpts []ContextOption
	fallback    *ResolverContext
}

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(ec *engineConfig) {
		ec.cfg = cfg
	}
}

// WithStorage sets the storage every probe goes through.
func WithStorage(storage assetfs.Storage) Option {
	return func(ec *engineConfig) {
		if storage != nil {
			ec.storage = storage
		}
	}
}

// WithEnvironment replaces os.Getenv for the engine and its contexts.
func WithEnvironment(getenv func(string) string) Option {
	return func(ec *engineConfig) {
		if getenv != nil {
			ec.getenv = getenv
		}
	}
}

// WithLogger sets the logger used when Config.LogCalls is on.
func WithLogger(logger *slog.Logger) Option {
	return func(ec *engineConfig) {
		ec.logger = logger
	}
}

// WithActivityHooks emits engine and context events to hooks.
func WithActivityHooks(hooks ...activity.Hook) Option {
	return func(ec *engineConfig) {
		ec.hooks = append(ec.hooks, hooks...)
	}
}

// WithActivityChannel overrides the default "resolver" channel.
func WithActivityChannel(channel string) Option {
	return func(ec *engineConfig) {
		ec.channel = channel
	}
}

// WithRelativeIdentifierHook replaces the configured scheme when turning
// file-relative identifiers into tokens.
func WithRelativeIdentifierHook(hook RelativeIdentifierHook) Option {
	return func(ec *engineConfig) {
		ec.relHook = hook
	}
}

// WithContextOptions applies opts to every context the engine creates.
func WithContextOptions(opts ...ContextOption) Option {
	return func(ec *engineConfig) {
		ec.contextOpts = append(ec.contextOpts, opts...)
	}
}

// WithFallbackContext replaces the engine-created fallback context.
func WithFallbackContext(rc *ResolverContext) Option {
	return func(ec *engineConfig) {
		ec.fallback = rc
	}
}

// New builds an Engine and its fallback context.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	ec := engineConfig{cfg: DefaultConfig(), getenv: os.Getenv}
	for _, opt := range opts {
		if opt != nil {
			opt(&ec)
		}
	}
	if ec.storage == nil {
		ec.storage = assetfs.Default()
	}
	if ec.logger == nil {
		ec.logger = slog.Default()
	}
	e := &Engine{
		cfg:         ec.cfg.withDefaults(),
		storage:     ec.storage,
		getenv:      ec.getenv,
		logger:      ec.logger,
		hooks:       ec.hooks,
		channel:     ec.channel,
		emitter:     activity.NewEmitter(ec.hooks, activity.WithChannel(ec.channel)),
		relHook:     ec.relHook,
		contextOpts: ec.contextOpts,
		relative:    pairTable{},
		shared:      map[string]*sharedContext{},
	}
	if e.relHook == nil {
		e.relHook = e.cfg.RelativeIdentifier
	}
	e.fallback = ec.fallback
	if e.fallback == nil {
		fallback, err := e.NewContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolver: fallback context: %w", err)
		}
		e.fallback = fallback
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Storage returns the storage probes go through.
func (e *Engine) Storage() assetfs.Storage { return e.storage }

// NewContext builds a context sharing the engine's config, environment,
// storage and activity hooks. opts are applied last.
func (e *Engine) NewContext(ctx context.Context, opts ...ContextOption) (*ResolverContext, error) {
	base := []ContextOption{
		WithContextConfig(e.cfg),
		WithGetenv(e.getenv),
		WithMappingSource(mappingfile.NewReader(e.storage)),
	}
	if len(e.hooks) > 0 {
		base = append(base, WithContextActivity(e.hooks...), withActivityChannel(e.channel))
	}
	base = append(base, e.contextOpts...)
	return NewResolverContext(ctx, append(base, opts...)...)
}

// CreateDefaultContext returns the fallback context.
func (e *Engine) CreateDefaultContext() *ResolverContext {
	return e.fallback
}

// CreateDefaultContextForAsset returns the bound context when there is one.
// Otherwise it returns a context shared by every caller asking for the same
// resolved asset: the asset is its mapping file and its directory a custom
// search path. A shared context is reinitialised when the asset's
// modification time changes. Unresolvable assets get the fallback context.
func (e *Engine) CreateDefaultContextForAsset(ctx context.Context, assetPath string) (*ResolverContext, error) {
	ctx = contextOrBackground(ctx)
	e.logCall(ctx, "CreateDefaultContextForAsset", slog.String("asset", assetPath))
	if bound := BoundContext(ctx); bound != nil {
		return bound, nil
	}
	if assetPath == "" {
		return e.fallback, nil
	}
	resolved, err := e.Resolve(ctx, assetPath)
	if err != nil {
		return nil, err
	}
	if resolved == "" {
		return e.fallback, nil
	}
	modTime, err := e.storage.ModTime(ctx, resolved)
	if err != nil && !errors.Is(err, assetfs.ErrNotFound) {
		return nil, fmt.Errorf("resolver: stat %s: %w", resolved, err)
	}

	// sharedMu only guards the table. Reinitialisation, hooks and events run
	// unlocked so they may call back into the engine.
	e.sharedMu.Lock()
	if shared, ok := e.shared[resolved]; ok {
		if shared.modTime.Equal(modTime) {
			e.sharedMu.Unlock()
			return shared.rc, nil
		}
		shared.modTime = modTime
		e.sharedMu.Unlock()
		if err := shared.rc.ClearAndReinitialize(ctx); err != nil {
			e.sharedMu.Lock()
			shared.modTime = time.Time{}
			e.sharedMu.Unlock()
			return nil, err
		}
		e.emit(ctx, shared.rc, activity.VerbSharedContextReloaded)
		return shared.rc, nil
	}
	e.sharedMu.Unlock()

	rc, err := e.NewContext(ctx, WithMappingFile(resolved), WithSearchPaths(path.Dir(resolved)))
	if err != nil {
		return nil, err
	}
	e.sharedMu.Lock()
	if existing, ok := e.shared[resolved]; ok {
		e.sharedMu.Unlock()
		return existing.rc, nil
	}
	e.shared[resolved] = &sharedContext{rc: rc, modTime: modTime}
	e.sharedMu.Unlock()
	e.emit(ctx, rc, activity.VerbSharedContextCreated)
	return rc, nil
}

// RefreshContext tells consumers the given context changed. Nothing is
// cleared.
func (e *Engine) RefreshContext(ctx context.Context, rc *ResolverContext) error {
	ctx = contextOrBackground(ctx)
	e.logCall(ctx, "RefreshContext", slog.String("context", rc.String()))
	if rc == nil {
		return nil
	}
	return e.emitErr(ctx, rc, activity.VerbContextRefreshed)
}

func (e *Engine) emit(ctx context.Context, rc *ResolverContext, verb string) {
	if err := e.emitErr(ctx, rc, verb); err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "resolver activity hook failed", slog.Any("error", err))
	}
}

func (e *Engine) emitErr(ctx context.Context, rc *ResolverContext, verb string) error {
	if !e.emitter.Enabled() {
		return nil
	}
	return e.emitter.Emit(ctx, verb, rc.event())
}

// IsContextDependentPath reports whether resolving id consults contexts.
// Only search-relative identifiers do, unless absolute identifiers are
// exposed, in which case every non-empty identifier does.
func (e *Engine) IsContextDependentPath(id string) bool {
	if id == "" {
		return false
	}
	if e.cfg.ExposeAbsolutePathIdentifiers {
		return true
	}
	return IsSearchRelative(id)
}

// CreateIdentifier anchors assetPath to anchor. A search-relative path whose
// anchored form does not resolve stays search-relative so later resolution
// can find it through search paths.
func (e *Engine) CreateIdentifier(ctx context.Context, assetPath, anchor string) (string, error) {
	ctx = contextOrBackground(ctx)
	e.logCall(ctx, "CreateIdentifier", slog.String("asset", assetPath), slog.String("anchor", anchor))
	if assetPath == "" {
		return "", nil
	}
	if anchor == "" {
		return NormPath(assetPath), nil
	}
	anchored := Anchor(anchor, assetPath)
	if e.cfg.ExposeRelativePathIdentifiers && IsFileRelative(assetPath) && !IsRelative(anchor) {
		return e.relativeIdentifier(anchored, assetPath, anchor)
	}
	if IsSearchRelative(assetPath) {
		resolved, err := e.Resolve(ctx, anchored)
		if err != nil {
			return "", err
		}
		if resolved == "" {
			return NormPath(assetPath), nil
		}
	}
	return NormPath(anchored), nil
}

// CreateIdentifierForNewAsset anchors assetPath without probing and makes
// the result absolute.
func (e *Engine) CreateIdentifierForNewAsset(assetPath, anchor string) (string, error) {
	e.logCall(context.Background(), "CreateIdentifierForNewAsset", slog.String("asset", assetPath), slog.String("anchor", anchor))
	if assetPath == "" {
		return "", nil
	}
	anchored := assetPath
	if anchor != "" {
		anchored = Anchor(anchor, assetPath)
	}
	return AbsPath(anchored)
}

// ResolveForNewAsset returns where a new asset named id would be written.
// It never probes storage nor touches caches.
func (e *Engine) ResolveForNewAsset(id string) (string, error) {
	e.logCall(context.Background(), "ResolveForNewAsset", slog.String("identifier", id))
	return AbsPath(id)
}

// GetModificationTimestamp returns the modification time of resolved. A
// missing location yields the zero time.
func (e *Engine) GetModificationTimestamp(ctx context.Context, assetPath, resolved string) (time.Time, error) {
	ctx = contextOrBackground(ctx)
	e.logCall(ctx, "GetModificationTimestamp", slog.String("asset", assetPath), slog.String("resolved", resolved))
	if resolved == "" {
		return time.Time{}, nil
	}
	modTime, err := e.storage.ModTime(ctx, resolved)
	if errors.Is(err, assetfs.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("resolver: modification time of %s: %w", resolved, err)
	}
	return modTime, nil
}

func (e *Engine) relativeIdentifier(anchored, assetPath, anchor string) (string, error) {
	anchored = NormPath(anchored)
	e.mu.Lock()
	token, ok := e.relative.get(anchored)
	e.mu.Unlock()
	if ok {
		return token, nil
	}
	token, err := e.relHook.CreateRelativeIdentifier(anchored, assetPath, anchor)
	if err != nil {
		return "", fmt.Errorf("resolver: relative identifier for %s: %w", anchored, err)
	}
	if token == "" {
		token = anchored
	}
	e.mu.Lock()
	e.relative.add(anchored, token)
	e.mu.Unlock()
	return token, nil
}

// AddRelativeIdentifierPair records anchored→token in the remap table.
func (e *Engine) AddRelativeIdentifierPair(anchored, token string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.relative.add(anchored, token)
}

// RemoveRelativeIdentifierByKey forgets the token for anchored.
func (e *Engine) RemoveRelativeIdentifierByKey(anchored string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.relative.removeByKey(anchored)
}

// RemoveRelativeIdentifierByValue forgets every pair producing token.
func (e *Engine) RemoveRelativeIdentifierByValue(token string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.relative.removeByValue(token)
}

// RelativeIdentifierPairs returns a copy of the remap table.
func (e *Engine) RelativeIdentifierPairs() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.relative.all()
}
