package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-resolver/internal/hydrate"
)

// ContextSpec is the serialisable description of a ResolverContext used at
// plugin boundaries. It carries configuration, never cached results.
type ContextSpec struct {
	MappingFile      string    `json:"mappingFile,omitempty"`
	SearchPaths      []string  `json:"searchPaths,omitempty"`
	Canonicalization *RuleSpec `json:"canonicalization,omitempty"`
	MappingPairs     []string  `json:"mappingPairs,omitempty"`
}

// RuleSpec is the serialised form of a canonicalization rule.
type RuleSpec struct {
	Pattern string `json:"pattern"`
	Format  string `json:"format"`
}

// Spec describes rc: mapping file, custom search paths and the explicit
// canonicalization rule.
func (rc *ResolverContext) Spec() ContextSpec {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	spec := ContextSpec{
		MappingFile: rc.mappingFile,
		SearchPaths: rc.searchPaths.Custom(),
	}
	if rc.explicit != nil {
		spec.Canonicalization = &RuleSpec{Pattern: rc.explicit.Pattern, Format: rc.explicit.Format}
	}
	return spec
}

// MarshalJSON encodes rc as its ContextSpec.
func (rc *ResolverContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(rc.Spec())
}

// Options converts s to context options.
func (s ContextSpec) Options() []ContextOption {
	opts := []ContextOption{WithMappingFile(s.MappingFile)}
	if len(s.SearchPaths) > 0 {
		opts = append(opts, WithSearchPaths(s.SearchPaths...))
	}
	if s.Canonicalization != nil && s.Canonicalization.Pattern != "" {
		opts = append(opts, WithCanonicalization(s.Canonicalization.Pattern, s.Canonicalization.Format))
	}
	if len(s.MappingPairs) > 0 {
		opts = append(opts, WithInitialMappingPairs(s.MappingPairs...))
	}
	return opts
}

// ContextFromSpec builds a context from spec. opts are applied first so the
// spec wins on conflicts.
func ContextFromSpec(ctx context.Context, spec ContextSpec, opts ...ContextOption) (*ResolverContext, error) {
	all := append(append([]ContextOption{}, opts...), spec.Options()...)
	return NewResolverContext(ctx, all...)
}

// ParseContextJSON builds a context from a MarshalJSON payload.
func ParseContextJSON(ctx context.Context, data []byte, opts ...ContextOption) (*ResolverContext, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("resolver: parse context json: %w", err)
	}
	return DecodeContext(ctx, "json", payload, opts...)
}

var specDecoder = hydrate.NewDecoder[ContextSpec](
	hydrate.WithPreHook[ContextSpec](normaliseSpecPayload),
	hydrate.WithPostHook[ContextSpec](validateSpec),
)

// DecodeContext builds a context from a loosely typed payload. searchPaths
// may be a list or a single os.PathListSeparator joined string, and
// snake_case keys are accepted.
func DecodeContext(ctx context.Context, source string, payload map[string]any, opts ...ContextOption) (*ResolverContext, error) {
	spec, err := specDecoder.Decode(hydrate.Origin{Source: source}, payload)
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}
	return ContextFromSpec(ctx, spec, opts...)
}

var specAliases = map[string]string{
	"mapping_file":  "mappingFile",
	"search_paths":  "searchPaths",
	"mapping_pairs": "mappingPairs",
}

func normaliseSpecPayload(_ hydrate.Origin, payload map[string]any) (map[string]any, error) {
	for alias, key := range specAliases {
		if value, ok := payload[alias]; ok {
			if _, exists := payload[key]; !exists {
				payload[key] = value
			}
			delete(payload, alias)
		}
	}
	if raw, ok := payload["searchPaths"].(string); ok {
		payload["searchPaths"] = stringsToAny(splitList(raw))
	}
	return payload, nil
}

func validateSpec(_ hydrate.Origin, spec *ContextSpec) error {
	if spec.Canonicalization != nil && spec.Canonicalization.Pattern != "" {
		if _, err := NewCanonicalizationRule(spec.Canonicalization.Pattern, spec.Canonicalization.Format); err != nil {
			return err
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, string(pathListSeparator)) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func stringsToAny(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
