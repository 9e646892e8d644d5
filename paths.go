package resolver

import (
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// IsRelative reports whether id lacks a root. The empty string is relative.
func IsRelative(id string) bool {
	if id == "" {
		return true
	}
	if strings.HasPrefix(id, "/") {
		return false
	}
	if runtime.GOOS == "windows" {
		return !filepath.IsAbs(id) && !strings.HasPrefix(id, `\`)
	}
	return true
}

// IsFileRelative reports whether id is explicitly relative to the file
// that references it ("./" or "../").
func IsFileRelative(id string) bool {
	id = toSlash(id)
	return strings.HasPrefix(id, "./") || strings.HasPrefix(id, "../")
}

// IsSearchRelative reports whether id is relative without being file
// relative. Such identifiers are looked up through search paths.
func IsSearchRelative(id string) bool {
	return id != "" && IsRelative(id) && !IsFileRelative(id)
}

// NormPath lexically normalises p. Backslashes become forward slashes and
// the empty string stays empty.
func NormPath(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(toSlash(p))
}

// Anchor joins id to the directory of base. base is treated as a file
// unless it ends with a separator. id is returned unchanged when base is
// relative or id is absolute.
func Anchor(base, id string) string {
	if IsRelative(base) || !IsRelative(id) {
		return id
	}
	return NormPath(anchorDir(base) + toSlash(id))
}

func anchorDir(base string) string {
	base = toSlash(base)
	if strings.HasSuffix(base, "/") {
		return base
	}
	if i := strings.LastIndex(base, "/"); i >= 0 {
		return base[:i+1]
	}
	return ""
}

// AbsPath makes p absolute against the working directory and normalises it.
func AbsPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if !IsRelative(p) {
		return NormPath(p), nil
	}
	abs, err := filepath.Abs(filepath.FromSlash(p))
	if err != nil {
		return "", fmt.Errorf("%w: working directory unavailable: %v", ErrUnsupportedPlatform, err)
	}
	return NormPath(abs), nil
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
