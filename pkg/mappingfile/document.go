// Package mappingfile reads and writes the documents that back a resolver
// context's mapping table.
//
// A mapping document stores a flat, even-length array of strings under
// customLayerData.mappingPairs: [source0, target0, source1, target1, ...].
// JSON, YAML and TOML encodings are supported, selected by file extension.
package mappingfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Key is the fixed, versionless metadata key holding the pairs.
const Key = "mappingPairs"

// ErrUnsupportedFormat indicates the file extension has no known encoding.
var ErrUnsupportedFormat = errors.New("mappingfile: unsupported document format")

// ErrOddPairs indicates a pair array whose length is not even.
var ErrOddPairs = errors.New("mappingfile: mapping pairs must have even length")

// Format identifies a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Document is the on-disk shape of a mapping file.
type Document struct {
	CustomLayerData LayerData `json:"customLayerData" yaml:"customLayerData" toml:"customLayerData"`
}

// LayerData holds the metadata section of a document.
type LayerData struct {
	MappingPairs []string `json:"mappingPairs" yaml:"mappingPairs" toml:"mappingPairs"`
}

// FormatFor returns the encoding used for path.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Decode parses data in format and returns the flat pair array.
func Decode(format Format, data []byte) ([]string, error) {
	var doc Document
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("mappingfile: decode %s: %w", format, err)
	}
	if len(doc.CustomLayerData.MappingPairs)%2 != 0 {
		return nil, ErrOddPairs
	}
	return doc.CustomLayerData.MappingPairs, nil
}

// Encode renders pairs as a document in format.
func Encode(format Format, pairs map[string]string) ([]byte, error) {
	doc := Document{CustomLayerData: LayerData{MappingPairs: Flatten(pairs)}}
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatTOML:
		var buf strings.Builder
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, fmt.Errorf("mappingfile: encode toml: %w", err)
		}
		return []byte(buf.String()), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Pairs folds a flat pair array into a map. Later duplicates win.
func Pairs(flat []string) map[string]string {
	out := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		out[flat[i]] = flat[i+1]
	}
	return out
}

// Flatten expands pairs into a flat array ordered by source.
func Flatten(pairs map[string]string) []string {
	keys := make([]string, 0, len(pairs))
	for key := range pairs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		out = append(out, key, pairs[key])
	}
	return out
}
