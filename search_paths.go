package resolver

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-resolver/pkg/assetfs"
)

const pathListSeparator = os.PathListSeparator

// DefaultSearchPathsEnv is the environment key holding search path prefixes.
const DefaultSearchPathsEnv = "AR_SEARCH_PATHS"

// SearchPathList is an ordered list of directory prefixes built from an
// environment-sourced part followed by a caller-set custom part.
type SearchPathList struct {
	envKey string
	getenv func(string) string
	env    []string
	custom []string
}

// NewSearchPathList reads the env subsequence from envKey through getenv.
// A nil getenv uses os.Getenv.
func NewSearchPathList(envKey string, getenv func(string) string) *SearchPathList {
	if getenv == nil {
		getenv = os.Getenv
	}
	list := &SearchPathList{envKey: envKey, getenv: getenv}
	list.Refresh()
	return list
}

// Refresh re-reads the env subsequence. Custom entries are untouched.
func (s *SearchPathList) Refresh() {
	s.env = splitSearchPaths(s.getenv(s.envKey))
}

// Env returns a copy of the env-sourced entries.
func (s *SearchPathList) Env() []string { return cloneStrings(s.env) }

// Custom returns a copy of the caller-set entries.
func (s *SearchPathList) Custom() []string { return cloneStrings(s.custom) }

// SetCustom replaces the custom entries.
func (s *SearchPathList) SetCustom(paths []string) { s.custom = cloneStrings(paths) }

// Effective returns env entries followed by custom entries.
func (s *SearchPathList) Effective() []string {
	out := make([]string, 0, len(s.env)+len(s.custom))
	out = append(out, s.env...)
	return append(out, s.custom...)
}

// ResolveAnchored returns the first prefix+id location that exists, made
// absolute, or "" when none does.
func (s *SearchPathList) ResolveAnchored(ctx context.Context, storage assetfs.Storage, id string) string {
	return probeSearchPaths(ctx, storage, s.Effective(), id, nil)
}

type probeVisitor func(candidate string, found bool)

func probeSearchPaths(ctx context.Context, storage assetfs.Storage, prefixes []string, id string, visit probeVisitor) string {
	if id == "" || storage == nil {
		return ""
	}
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		candidate := NormPath(path.Join(toSlash(prefix), toSlash(id)))
		found := storage.Exists(ctx, candidate)
		if visit != nil {
			visit(candidate, found)
		}
		if found {
			return absOrSelf(candidate)
		}
	}
	return ""
}

func splitSearchPaths(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, entry := range strings.Split(value, string(pathListSeparator)) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		out = append(out, absOrSelf(entry))
	}
	return out
}

func absOrSelf(p string) string {
	if !IsRelative(p) {
		return NormPath(p)
	}
	abs, err := filepath.Abs(filepath.FromSlash(p))
	if err != nil {
		return NormPath(p)
	}
	return NormPath(abs)
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}
