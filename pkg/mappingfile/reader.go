package mappingfile

import (
	"context"

	"github.com/goliatone/go-resolver/pkg/assetfs"
)

// Reader loads mapping pairs through an assetfs.Storage.
type Reader struct {
	Storage assetfs.Storage
}

// NewReader constructs a Reader. A nil storage uses assetfs.Default().
func NewReader(storage assetfs.Storage) *Reader {
	if storage == nil {
		storage = assetfs.Default()
	}
	return &Reader{Storage: storage}
}

// ReadPairs returns the flat pair array stored at ref. It reports false when
// the document is absent, unreadable, in an unknown format or malformed.
func (r *Reader) ReadPairs(ctx context.Context, ref string) ([]string, bool) {
	pairs, err := r.Load(ctx, ref)
	if err != nil {
		return nil, false
	}
	return pairs, true
}

// Load is ReadPairs with the failure reason preserved.
func (r *Reader) Load(ctx context.Context, ref string) ([]string, error) {
	format, err := FormatFor(ref)
	if err != nil {
		return nil, err
	}
	data, err := r.Storage.Read(ctx, ref)
	if err != nil {
		return nil, err
	}
	return Decode(format, data)
}
