package activity

import (
	"context"
	"strings"
)

// DefaultChannel is stamped on events that do not carry one.
const DefaultChannel = "resolver"

// Emitter stamps verbs and defaults onto context events before handing them
// to its hooks. A nil or hookless Emitter is disabled.
type Emitter struct {
	hooks    Hooks
	channel  string
	actorID  string
	tenantID string
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithChannel overrides DefaultChannel.
func WithChannel(channel string) EmitterOption {
	return func(e *Emitter) {
		if channel = strings.TrimSpace(channel); channel != "" {
			e.channel = channel
		}
	}
}

// WithActor attributes events without an actor to actorID and tenantID.
func WithActor(actorID, tenantID string) EmitterOption {
	return func(e *Emitter) {
		e.actorID = strings.TrimSpace(actorID)
		e.tenantID = strings.TrimSpace(tenantID)
	}
}

// NewEmitter drops nil hooks and applies opts.
func NewEmitter(hooks []Hook, opts ...EmitterOption) *Emitter {
	e := &Emitter{hooks: compact(hooks), channel: DefaultChannel}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Enabled reports whether any hook would see an emitted event.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit sends event under verb. Explicit channel and actor fields win over
// the emitter defaults.
func (e *Emitter) Emit(ctx context.Context, verb string, event Event) error {
	if !e.Enabled() {
		return nil
	}
	event.Verb = verb
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = e.actorID
	}
	if strings.TrimSpace(event.TenantID) == "" {
		event.TenantID = e.tenantID
	}
	return e.hooks.Notify(ctx, event)
}
