// Package assetfs abstracts the storage probes the resolver performs:
// existence checks, modification timestamps and raw reads.
//
// Locations are plain filesystem paths or any URL understood by
// github.com/viant/afs (mem://, s3://, gs://...).
package assetfs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/afs"
)

// ErrNotFound is returned by ModTime and Read when the location does not exist.
var ErrNotFound = errors.New("assetfs: location not found")

// Storage answers the questions the resolver asks about asset locations.
// Implementations must be safe for concurrent use.
type Storage interface {
	Exists(ctx context.Context, location string) bool
	ModTime(ctx context.Context, location string) (time.Time, error)
	Read(ctx context.Context, location string) ([]byte, error)
}

// AFS is a Storage backed by an afs.Service.
type AFS struct {
	fs afs.Service
}

// NewAFS wraps service. A nil service falls back to afs.New().
func NewAFS(service afs.Service) *AFS {
	if service == nil {
		service = afs.New()
	}
	return &AFS{fs: service}
}

// Default returns a Storage over the local filesystem and every scheme afs
// registers by default.
func Default() Storage {
	return NewAFS(nil)
}

func (s *AFS) Exists(ctx context.Context, location string) bool {
	if location == "" {
		return false
	}
	ok, err := s.fs.Exists(contextOrBackground(ctx), location)
	return err == nil && ok
}

func (s *AFS) ModTime(ctx context.Context, location string) (time.Time, error) {
	ctx = contextOrBackground(ctx)
	if !s.Exists(ctx, location) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	object, err := s.fs.Object(ctx, location)
	if err != nil {
		return time.Time{}, fmt.Errorf("assetfs: stat %s: %w", location, err)
	}
	return object.ModTime(), nil
}

func (s *AFS) Read(ctx context.Context, location string) ([]byte, error) {
	ctx = contextOrBackground(ctx)
	if !s.Exists(ctx, location) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("assetfs: read %s: %w", location, err)
	}
	return data, nil
}

// ExistsFunc adapts a plain predicate to Storage. ModTime and Read always
// report ErrNotFound.
type ExistsFunc func(location string) bool

func (fn ExistsFunc) Exists(_ context.Context, location string) bool {
	return fn != nil && fn(location)
}

func (fn ExistsFunc) ModTime(_ context.Context, location string) (time.Time, error) {
	return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, location)
}

func (fn ExistsFunc) Read(_ context.Context, location string) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
