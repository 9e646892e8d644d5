package resolver

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// pairTable is the source→target store shared by the mapping table, the
// resolution cache and the relative identifier remap. It is not
// synchronised; owners guard it.
type pairTable map[string]string

func (t *pairTable) add(key, value string) {
	if *t == nil {
		*t = pairTable{}
	}
	(*t)[key] = value
}

func (t pairTable) get(key string) (string, bool) {
	value, ok := t[key]
	return value, ok
}

func (t pairTable) removeByKey(key string) {
	delete(t, key)
}

func (t pairTable) removeByValue(value string) {
	for key, v := range t {
		if v == value {
			delete(t, key)
		}
	}
}

func (t *pairTable) clear() {
	*t = pairTable{}
}

func (t pairTable) all() map[string]string {
	out := make(map[string]string, len(t))
	for key, value := range t {
		out[key] = value
	}
	return out
}

// CanonicalizationRule rewrites identifiers before mapping lookup. Pattern
// uses ECMAScript syntax; Format may reference groups as $1, $2, ...
type CanonicalizationRule struct {
	Pattern string
	Format  string

	re *regexp2.Regexp
}

// NewCanonicalizationRule compiles pattern.
func NewCanonicalizationRule(pattern, format string) (*CanonicalizationRule, error) {
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCanonicalization, pattern, err)
	}
	return &CanonicalizationRule{Pattern: pattern, Format: format, re: re}, nil
}

// Apply replaces every match of the pattern in id with the format.
func (r *CanonicalizationRule) Apply(id string) string {
	if r == nil || r.re == nil || id == "" {
		return id
	}
	out, err := r.re.Replace(id, r.Format, -1, -1)
	if err != nil {
		return id
	}
	return out
}

// MappingTable holds explicit identifier redirections plus an optional
// canonicalization rule applied to keys on lookup.
type MappingTable struct {
	pairs pairTable
	rule  *CanonicalizationRule
}

// NewMappingTable returns an empty table without a rule.
func NewMappingTable() *MappingTable {
	return &MappingTable{pairs: pairTable{}}
}

// Add inserts or overwrites source→target.
func (m *MappingTable) Add(source, target string) { m.pairs.add(source, target) }

// RemoveByKey deletes the pair for source.
func (m *MappingTable) RemoveByKey(source string) { m.pairs.removeByKey(source) }

// RemoveByValue deletes every pair whose target equals target.
func (m *MappingTable) RemoveByValue(target string) { m.pairs.removeByValue(target) }

// Clear removes every pair. The rule is kept.
func (m *MappingTable) Clear() { m.pairs.clear() }

// Get returns the target stored for source without canonicalization.
func (m *MappingTable) Get(source string) (string, bool) { return m.pairs.get(source) }

// All returns a copy of the pairs.
func (m *MappingTable) All() map[string]string { return m.pairs.all() }

// Len reports the number of pairs.
func (m *MappingTable) Len() int { return len(m.pairs) }

// SetRule compiles and installs a canonicalization rule.
func (m *MappingTable) SetRule(pattern, format string) error {
	rule, err := NewCanonicalizationRule(pattern, format)
	if err != nil {
		return err
	}
	m.rule = rule
	return nil
}

// ClearRule removes the canonicalization rule.
func (m *MappingTable) ClearRule() { m.rule = nil }

// Rule returns the installed rule, or nil.
func (m *MappingTable) Rule() *CanonicalizationRule { return m.rule }

// Canonicalize applies the rule to id, or returns id without one.
func (m *MappingTable) Canonicalize(id string) string { return m.rule.Apply(id) }

// Lookup canonicalizes id and returns the mapped target. On a miss the
// original id is returned with false.
func (m *MappingTable) Lookup(id string) (string, bool) {
	if target, ok := m.pairs.get(m.Canonicalize(id)); ok {
		return target, true
	}
	return id, false
}

// ResolutionCache memoises identifier→location results. An empty location
// is a negative entry.
type ResolutionCache struct {
	pairs pairTable
}

// NewResolutionCache returns an empty cache.
func NewResolutionCache() *ResolutionCache {
	return &ResolutionCache{pairs: pairTable{}}
}

func (c *ResolutionCache) Add(id, location string)       { c.pairs.add(id, location) }
func (c *ResolutionCache) RemoveByKey(id string)         { c.pairs.removeByKey(id) }
func (c *ResolutionCache) RemoveByValue(location string) { c.pairs.removeByValue(location) }
func (c *ResolutionCache) Clear()                        { c.pairs.clear() }
func (c *ResolutionCache) Get(id string) (string, bool)  { return c.pairs.get(id) }
func (c *ResolutionCache) All() map[string]string        { return c.pairs.all() }
func (c *ResolutionCache) Len() int                      { return len(c.pairs) }
