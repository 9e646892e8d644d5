package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-resolver/pkg/assetfs"
	"github.com/goliatone/go-resolver/pkg/mappingfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, opts *Options, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	opts.NoColor = true
	root := NewRootCommand(opts, &out, &errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func testOptions(storage assetfs.Storage, env map[string]string) *Options {
	return &Options{
		Storage: storage,
		Getenv:  func(key string) string { return env[key] },
	}
}

func TestResolveCommand(t *testing.T) {
	storage := assetfs.NewMemory()
	storage.Touch("/lib/b/hero.usd")
	opts := testOptions(storage, map[string]string{"AR_SEARCH_PATHS": "/lib/a"})

	out, err := run(t, opts, "resolve", "-s", "/lib/b", "hero.usd", "villain.usd")
	require.NoError(t, err)
	assert.Contains(t, out, "hero.usd /lib/b/hero.usd")
	assert.Contains(t, out, "villain.usd (not found)")
}

func TestResolveCommandJSONTrace(t *testing.T) {
	storage := assetfs.NewMemory()
	storage.Touch("/lib/hero.usd")
	opts := testOptions(storage, map[string]string{"AR_SEARCH_PATHS": "/lib"})

	out, err := run(t, opts, "resolve", "--json", "--trace", "hero.usd")
	require.NoError(t, err)

	var results []resolveResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "/lib/hero.usd", results[0].Resolved)
	require.NotNil(t, results[0].Trace)
	assert.NotEmpty(t, results[0].Trace.Steps)
}

func TestIdentifierCommand(t *testing.T) {
	opts := testOptions(assetfs.NewMemory(), nil)

	out, err := run(t, opts, "identifier", "--anchor", "/show/shot/shot.usd", "sub/missing.usd")
	require.NoError(t, err)
	assert.Equal(t, "sub/missing.usd\n", out)

	out, err = run(t, testOptions(assetfs.NewMemory(), nil), "identifier", "--new", "--anchor", "/show/shot/shot.usd", "sub/new.usd")
	require.NoError(t, err)
	assert.Equal(t, "/show/shot/sub/new.usd\n", out)
}

func TestMappingCommands(t *testing.T) {
	dir := t.TempDir()
	mappingPath := filepath.Join(dir, "mapping.json")
	env := map[string]string{}

	_, err := run(t, &Options{Getenv: func(k string) string { return env[k] }}, "-m", mappingPath, "mapping", "set", "hero.usd", "hero_v002.usd")
	require.NoError(t, err)
	_, err = run(t, &Options{Getenv: func(k string) string { return env[k] }}, "-m", mappingPath, "mapping", "set", "prop.usd", "prop_v001.usd")
	require.NoError(t, err)

	data, err := os.ReadFile(mappingPath)
	require.NoError(t, err)
	flat, err := mappingfile.Decode(mappingfile.FormatJSON, data)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"hero.usd": "hero_v002.usd", "prop.usd": "prop_v001.usd"}, mappingfile.Pairs(flat))

	out, err := run(t, &Options{Getenv: func(k string) string { return env[k] }}, "-m", mappingPath, "mapping", "list")
	require.NoError(t, err)
	assert.Equal(t, "hero.usd -> hero_v002.usd\nprop.usd -> prop_v001.usd\n", out)

	_, err = run(t, &Options{Getenv: func(k string) string { return env[k] }}, "-m", mappingPath, "mapping", "remove", "--by-value", "prop_v001.usd")
	require.NoError(t, err)
	out, err = run(t, &Options{Getenv: func(k string) string { return env[k] }}, "-m", mappingPath, "mapping", "list")
	require.NoError(t, err)
	assert.Equal(t, "hero.usd -> hero_v002.usd\n", out)
}

func TestMappingRequiresFile(t *testing.T) {
	_, err := run(t, testOptions(assetfs.NewMemory(), nil), "mapping", "list")
	assert.Error(t, err)
}

func TestResolveCapturesState(t *testing.T) {
	dir := t.TempDir()
	storage := assetfs.NewMemory()
	storage.Touch("/lib/hero.usd")
	db := filepath.Join(dir, "state.db")

	opts := testOptions(storage, nil)
	_, err := run(t, opts, "--state-db", db, "-m", "/show/mapping.json", "-s", "/lib", "resolve", "hero.usd")
	require.NoError(t, err)

	storage.Delete("/lib/hero.usd")
	out, err := run(t, testOptions(storage, nil), "--state-db", db, "-m", "/show/mapping.json", "-s", "/lib", "resolve", "hero.usd")
	require.NoError(t, err)
	assert.Contains(t, out, "hero.usd /lib/hero.usd", "seeded caching pair should answer without probing")
}
