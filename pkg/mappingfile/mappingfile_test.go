package mappingfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-resolver/pkg/assetfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFormats(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		input  string
	}{
		{
			name:   "json",
			format: FormatJSON,
			input:  `{"customLayerData":{"mappingPairs":["a.usd","b.usd","c.usd","d.usd"]}}`,
		},
		{
			name:   "yaml",
			format: FormatYAML,
			input:  "customLayerData:\n  mappingPairs:\n    - a.usd\n    - b.usd\n    - c.usd\n    - d.usd\n",
		},
		{
			name:   "toml",
			format: FormatTOML,
			input:  "[customLayerData]\nmappingPairs = [\"a.usd\", \"b.usd\", \"c.usd\", \"d.usd\"]\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pairs, err := Decode(tc.format, []byte(tc.input))
			require.NoError(t, err)
			assert.Equal(t, []string{"a.usd", "b.usd", "c.usd", "d.usd"}, pairs)
		})
	}
}

func TestDecodeRejectsOddLength(t *testing.T) {
	_, err := Decode(FormatJSON, []byte(`{"customLayerData":{"mappingPairs":["a","b","c"]}}`))
	assert.ErrorIs(t, err, ErrOddPairs)
}

func TestFormatFor(t *testing.T) {
	format, err := FormatFor("/tmp/map.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, format)

	_, err = FormatFor("/tmp/map.usda")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPairsAndFlatten(t *testing.T) {
	pairs := Pairs([]string{"a", "1", "b", "2", "a", "3"})
	assert.Equal(t, map[string]string{"a": "3", "b": "2"}, pairs)
	assert.Equal(t, []string{"a", "3", "b", "2"}, Flatten(pairs))
}

func TestReaderReportsAbsentAndMalformed(t *testing.T) {
	memory := assetfs.NewMemory()
	memory.Put("/maps/good.json", []byte(`{"customLayerData":{"mappingPairs":["x","y"]}}`))
	memory.Put("/maps/odd.json", []byte(`{"customLayerData":{"mappingPairs":["x"]}}`))
	memory.Put("/maps/broken.yaml", []byte("customLayerData: [\n"))
	memory.Put("/maps/layer.usda", []byte("#usda 1.0"))

	reader := NewReader(memory)
	ctx := context.Background()

	pairs, ok := reader.ReadPairs(ctx, "/maps/good.json")
	assert.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, pairs)

	for _, ref := range []string{"/maps/missing.json", "/maps/odd.json", "/maps/broken.yaml", "/maps/layer.usda", ""} {
		pairs, ok := reader.ReadPairs(ctx, ref)
		assert.False(t, ok, ref)
		assert.Nil(t, pairs, ref)
	}
}

func TestWriterRoundTripsThroughReader(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriter()
	reader := NewReader(nil)

	for _, name := range []string{"map.json", "map.yaml", "map.toml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, writer.Write(path, map[string]string{"b.usd": "B.usd", "a.usd": "A.usd"}))

		pairs, ok := reader.ReadPairs(context.Background(), path)
		require.True(t, ok, name)
		assert.Equal(t, []string{"a.usd", "A.usd", "b.usd", "B.usd"}, pairs, name)
	}
}

func TestWriterUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "map.json")
	writer := NewWriter()

	require.NoError(t, writer.Update(path, func(pairs map[string]string) error {
		pairs["a"] = "1"
		return nil
	}))
	require.NoError(t, writer.Update(path, func(pairs map[string]string) error {
		assert.Equal(t, map[string]string{"a": "1"}, pairs)
		pairs["b"] = "2"
		delete(pairs, "a")
		return nil
	}))

	flat, err := NewReader(nil).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "2"}, flat)
}

func TestWriterConcurrentUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.json")
	writer := NewWriter()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			assert.NoError(t, writer.Update(path, func(pairs map[string]string) error {
				pairs[key] = key
				return nil
			}))
		}(i)
	}
	wg.Wait()

	flat, err := NewReader(nil).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, flat, 16)
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	changed := make(chan string, 10)
	watcher, err := NewWatcher(func(p string) { changed <- p })
	require.NoError(t, err)
	defer watcher.Close()
	require.NoError(t, watcher.Add(path))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o644))
	require.NoError(t, NewWriter().Write(path, map[string]string{"a": "b"}))

	select {
	case got := <-changed:
		abs, _ := filepath.Abs(path)
		assert.Equal(t, abs, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("expected change notification for %s", path)
	}
}
