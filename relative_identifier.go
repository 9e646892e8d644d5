package resolver

import (
	"path"
	"strings"

	"github.com/dlclark/regexp2"
)

// RelativeIdentifierPrefix marks a remapped relative identifier token.
const RelativeIdentifierPrefix = "relativeIdentifier|"

// RelativeIdentifierHook turns an anchored file-relative identifier into a
// portable token. Returning "" keeps the anchored path.
type RelativeIdentifierHook interface {
	CreateRelativeIdentifier(anchored, assetPath, anchor string) (string, error)
}

// RelativeIdentifierHookFunc adapts a function to RelativeIdentifierHook.
type RelativeIdentifierHookFunc func(anchored, assetPath, anchor string) (string, error)

func (fn RelativeIdentifierHookFunc) CreateRelativeIdentifier(anchored, assetPath, anchor string) (string, error) {
	if fn == nil {
		return "", nil
	}
	return fn(anchored, assetPath, anchor)
}

// RelativeIdentifier is the parsed form of a token
// "relativeIdentifier|<entityType>/<entityId>?<element>-<version>".
type RelativeIdentifier struct {
	EntityType string
	EntityID   string
	Element    string
	Version    string
}

// RelativeIdentifierScheme derives tokens from the entity layout
// <root>/<entityId>/<elementsDir>/<element>_<version><ext>, where the anchor
// lives in <root>/<entityId>/ and root's basename is the entity type.
type RelativeIdentifierScheme struct {
	Prefix         string            `yaml:"prefix" toml:"prefix"`
	EntityRoots    map[string]string `yaml:"entity_roots" toml:"entity_roots"`
	ElementsDir    string            `yaml:"elements_dir" toml:"elements_dir"`
	Extension      string            `yaml:"extension" toml:"extension"`
	VersionPattern string            `yaml:"version_pattern" toml:"version_pattern"`
}

// DefaultRelativeIdentifierScheme returns the stock layout.
func DefaultRelativeIdentifierScheme() RelativeIdentifierScheme {
	return RelativeIdentifierScheme{
		Prefix:         RelativeIdentifierPrefix,
		ElementsDir:    "elements",
		Extension:      ".usd",
		VersionPattern: `v\d\d\d`,
	}
}

func (s RelativeIdentifierScheme) withDefaults() RelativeIdentifierScheme {
	def := DefaultRelativeIdentifierScheme()
	if s.Prefix == "" {
		s.Prefix = def.Prefix
	}
	if s.ElementsDir == "" {
		s.ElementsDir = def.ElementsDir
	}
	if s.Extension == "" {
		s.Extension = def.Extension
	}
	if s.VersionPattern == "" {
		s.VersionPattern = def.VersionPattern
	}
	return s
}

// CreateRelativeIdentifier implements RelativeIdentifierHook. Identifiers
// without a recognisable version or entity yield "".
func (s RelativeIdentifierScheme) CreateRelativeIdentifier(_, assetPath, anchor string) (string, error) {
	s = s.withDefaults()
	dir := strings.TrimSuffix(anchorDir(anchor), "/")
	entityID := path.Base(dir)
	entityType := path.Base(path.Dir(dir))
	if !validSegment(entityID) || !validSegment(entityType) {
		return "", nil
	}

	base := path.Base(NormPath(assetPath))
	stem := strings.TrimSuffix(base, path.Ext(base))
	re, err := regexp2.Compile(s.VersionPattern, regexp2.ECMAScript)
	if err != nil {
		return "", err
	}
	match, err := re.FindStringMatch(stem)
	if err != nil || match == nil {
		return "", nil
	}
	version := match.String()
	element := strings.TrimRight(stem[:match.Index], "_-")
	if element == "" {
		return "", nil
	}
	return s.Format(RelativeIdentifier{
		EntityType: entityType,
		EntityID:   entityID,
		Element:    element,
		Version:    version,
	}), nil
}

// Format renders ri as a token.
func (s RelativeIdentifierScheme) Format(ri RelativeIdentifier) string {
	return s.Canonical(ri) + "-" + ri.Version
}

// Canonical renders ri without its version. It is the key looked up in a
// context's mapping table.
func (s RelativeIdentifierScheme) Canonical(ri RelativeIdentifier) string {
	s = s.withDefaults()
	return s.Prefix + ri.EntityType + "/" + ri.EntityID + "?" + ri.Element
}

// Parse reads a token. Anything else reports false.
func (s RelativeIdentifierScheme) Parse(token string) (RelativeIdentifier, bool) {
	s = s.withDefaults()
	rest, ok := strings.CutPrefix(token, s.Prefix)
	if !ok {
		return RelativeIdentifier{}, false
	}
	entity, elementVersion, ok := strings.Cut(rest, "?")
	if !ok {
		return RelativeIdentifier{}, false
	}
	entityType, entityID, ok := strings.Cut(entity, "/")
	if !ok || entityType == "" || entityID == "" {
		return RelativeIdentifier{}, false
	}
	i := strings.LastIndex(elementVersion, "-")
	if i <= 0 || i == len(elementVersion)-1 {
		return RelativeIdentifier{}, false
	}
	return RelativeIdentifier{
		EntityType: entityType,
		EntityID:   entityID,
		Element:    elementVersion[:i],
		Version:    elementVersion[i+1:],
	}, true
}

// Location places ri in the configured layout. Unknown entity types yield "".
func (s RelativeIdentifierScheme) Location(ri RelativeIdentifier) string {
	s = s.withDefaults()
	root, ok := s.EntityRoots[ri.EntityType]
	if !ok || root == "" {
		return ""
	}
	return NormPath(path.Join(toSlash(root), ri.EntityID, s.ElementsDir, ri.Element+"_"+ri.Version+s.Extension))
}

func validSegment(segment string) bool {
	return segment != "" && segment != "." && segment != "/" && segment != ".."
}
