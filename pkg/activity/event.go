// Package activity fans resolver lifecycle events (context refreshes,
// reinitialisations, mapping reloads) out to pluggable hooks.
package activity

import (
	"strings"
	"time"
)

// Verbs emitted by the resolver.
const (
	VerbContextRefreshed      = "resolver.context.refreshed"
	VerbContextReinitialized  = "resolver.context.reinitialized"
	VerbMappingReloaded       = "resolver.context.mapping_reloaded"
	VerbSharedContextReloaded = "resolver.context.shared_reloaded"
	VerbSharedContextCreated  = "resolver.context.shared_created"
)

// ObjectTypeContext is the object type sinks record for every event.
const ObjectTypeContext = "resolver.context"

// Event reports a change to one resolver context. MappingPairs and
// CachingPairs are the table sizes after the change.
type Event struct {
	Verb         string
	ContextID    string
	MappingFile  string
	ActorID      string
	TenantID     string
	Channel      string
	MappingPairs int
	CachingPairs int
	Metadata     map[string]any
	OccurredAt   time.Time
}

// Valid reports whether the event names a verb and a context.
func (e Event) Valid() bool {
	return e.Verb != "" && e.ContextID != ""
}

// Normalize trims the string fields, clones metadata and stamps OccurredAt
// when it is missing.
func (e Event) Normalize() Event {
	e.Verb = strings.TrimSpace(e.Verb)
	e.ContextID = strings.TrimSpace(e.ContextID)
	e.MappingFile = strings.TrimSpace(e.MappingFile)
	e.ActorID = strings.TrimSpace(e.ActorID)
	e.TenantID = strings.TrimSpace(e.TenantID)
	e.Channel = strings.TrimSpace(e.Channel)
	e.Metadata = cloneMap(e.Metadata)
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	return e
}

// Data flattens the context fields into a copy of Metadata, for sinks that
// only carry a map.
func (e Event) Data() map[string]any {
	data := make(map[string]any, len(e.Metadata)+3)
	for key, value := range e.Metadata {
		data[key] = value
	}
	if e.MappingFile != "" {
		data["mapping_file"] = e.MappingFile
	}
	data["mapping_pairs"] = e.MappingPairs
	data["caching_pairs"] = e.CachingPairs
	return data
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
