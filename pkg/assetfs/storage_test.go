package assetfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAFSLocalFiles(t *testing.T) {
	dir := t.TempDir()
	location := filepath.Join(dir, "layer.usd")
	require.NoError(t, os.WriteFile(location, []byte("payload"), 0o644))

	storage := Default()
	ctx := context.Background()

	assert.True(t, storage.Exists(ctx, location))
	assert.False(t, storage.Exists(ctx, filepath.Join(dir, "missing.usd")))
	assert.False(t, storage.Exists(ctx, ""))

	data, err := storage.Read(ctx, location)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	modTime, err := storage.ModTime(ctx, location)
	require.NoError(t, err)
	assert.False(t, modTime.IsZero())

	_, err = storage.Read(ctx, filepath.Join(dir, "missing.usd"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStorage(t *testing.T) {
	memory := NewMemory()
	stamp := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	memory.PutAt("/a/b.usd", []byte("x"), stamp)
	memory.Touch("/a/c.usd")

	ctx := context.Background()
	assert.True(t, memory.Exists(ctx, "/a/b.usd"))
	assert.Equal(t, []string{"/a/b.usd", "/a/c.usd"}, memory.Locations())

	modTime, err := memory.ModTime(ctx, "/a/b.usd")
	require.NoError(t, err)
	assert.Equal(t, stamp, modTime)

	memory.Delete("/a/b.usd")
	assert.False(t, memory.Exists(ctx, "/a/b.usd"))
	_, err = memory.ModTime(ctx, "/a/b.usd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountingStorage(t *testing.T) {
	memory := NewMemory()
	memory.Touch("/x")
	counting := NewCounting(memory)
	ctx := context.Background()

	counting.Exists(ctx, "/x")
	counting.Exists(ctx, "/y")
	_, _ = counting.Read(ctx, "/x")
	_, _ = counting.ModTime(ctx, "/x")

	assert.Equal(t, 2, counting.ExistsCalls())
	assert.Equal(t, 1, counting.ReadCalls())
	assert.Equal(t, 1, counting.ModTimeCalls())

	counting.Reset()
	assert.Zero(t, counting.ExistsCalls())
}

func TestExistsFunc(t *testing.T) {
	fn := ExistsFunc(func(location string) bool { return location == "/ok" })
	assert.True(t, fn.Exists(context.Background(), "/ok"))
	assert.False(t, fn.Exists(context.Background(), "/no"))
	_, err := fn.Read(context.Background(), "/ok")
	assert.ErrorIs(t, err, ErrNotFound)
}
