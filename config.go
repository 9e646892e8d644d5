package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment keys read by the engine and its contexts.
const (
	DefaultCanonicalPatternEnv         = "AR_ENV_SEARCH_REGEX_EXPRESSION"
	DefaultCanonicalFormatEnv          = "AR_ENV_SEARCH_REGEX_FORMAT"
	EnvExposeAbsolutePathIdentifiers   = "AR_EXPOSE_ABSOLUTE_PATH_IDENTIFIERS"
	EnvExposeRelativePathIdentifiers   = "AR_EXPOSE_RELATIVE_PATH_IDENTIFIERS"
	EnvLogCalls                        = "AR_LOG_CALLS"
	EnvRelativeIdentifierRoots         = "AR_RELATIVE_IDENTIFIER_ROOTS"
	EnvRelativeIdentifierVersionFormat = "AR_RELATIVE_IDENTIFIER_VERSION_PATTERN"
)

// Config carries the engine-wide settings.
type Config struct {
	// SearchPathsEnv names the variable holding env search paths.
	SearchPathsEnv string `yaml:"search_paths_env" toml:"search_paths_env"`
	// CanonicalPatternEnv and CanonicalFormatEnv name the variables holding
	// the env canonicalization rule.
	CanonicalPatternEnv string `yaml:"canonical_pattern_env" toml:"canonical_pattern_env"`
	CanonicalFormatEnv  string `yaml:"canonical_format_env" toml:"canonical_format_env"`

	// ExposeAbsolutePathIdentifiers routes every identifier through the
	// contexts, absolute ones included.
	ExposeAbsolutePathIdentifiers bool `yaml:"expose_absolute_path_identifiers" toml:"expose_absolute_path_identifiers"`
	// ExposeRelativePathIdentifiers enables the relative identifier remap.
	ExposeRelativePathIdentifiers bool `yaml:"expose_relative_path_identifiers" toml:"expose_relative_path_identifiers"`
	// LogCalls logs each engine entry point at debug level.
	LogCalls bool `yaml:"log_calls" toml:"log_calls"`

	RelativeIdentifier RelativeIdentifierScheme `yaml:"relative_identifier" toml:"relative_identifier"`
}

// DefaultConfig returns the stock env keys with every feature flag off.
func DefaultConfig() Config {
	return Config{
		SearchPathsEnv:      DefaultSearchPathsEnv,
		CanonicalPatternEnv: DefaultCanonicalPatternEnv,
		CanonicalFormatEnv:  DefaultCanonicalFormatEnv,
		RelativeIdentifier:  DefaultRelativeIdentifierScheme(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SearchPathsEnv == "" {
		c.SearchPathsEnv = def.SearchPathsEnv
	}
	if c.CanonicalPatternEnv == "" {
		c.CanonicalPatternEnv = def.CanonicalPatternEnv
	}
	if c.CanonicalFormatEnv == "" {
		c.CanonicalFormatEnv = def.CanonicalFormatEnv
	}
	c.RelativeIdentifier = c.RelativeIdentifier.withDefaults()
	return c
}

// LoadConfig reads a YAML or TOML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolver: read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("resolver: unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return Config{}, fmt.Errorf("resolver: parse config %s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}

// ApplyEnv overlays the AR_* flag variables found through getenv.
func (c Config) ApplyEnv(getenv func(string) string) Config {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v, ok := envBool(getenv, EnvExposeAbsolutePathIdentifiers); ok {
		c.ExposeAbsolutePathIdentifiers = v
	}
	if v, ok := envBool(getenv, EnvExposeRelativePathIdentifiers); ok {
		c.ExposeRelativePathIdentifiers = v
	}
	if v, ok := envBool(getenv, EnvLogCalls); ok {
		c.LogCalls = v
	}
	if roots := parseRoots(getenv(EnvRelativeIdentifierRoots)); len(roots) > 0 {
		c.RelativeIdentifier.EntityRoots = roots
	}
	if pattern := strings.TrimSpace(getenv(EnvRelativeIdentifierVersionFormat)); pattern != "" {
		c.RelativeIdentifier.VersionPattern = pattern
	}
	return c.withDefaults()
}

// ConfigFromEnv returns DefaultConfig overlaid with getenv.
func ConfigFromEnv(getenv func(string) string) Config {
	return DefaultConfig().ApplyEnv(getenv)
}

// LoadDotenv reads the given dotenv files (".env" when none are named) and
// returns a getenv that prefers the process environment over file values.
// Missing files are skipped.
func LoadDotenv(files ...string) (func(string) string, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	values := map[string]string{}
	for _, file := range files {
		read, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolver: read dotenv %s: %w", file, err)
		}
		for key, value := range read {
			values[key] = value
		}
	}
	return func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return values[key]
	}, nil
}

func envBool(getenv func(string) string, key string) (bool, bool) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// parseRoots reads "type=/root,type2=/root2".
func parseRoots(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[string]string{}
	for _, entry := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || key == "" || value == "" {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}
