package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// DefaultDomain namespaces snapshot keys when Ref.Domain is empty.
const DefaultDomain = "resolver"

// Ref identifies the persisted snapshot of one resolver context.
type Ref struct {
	Domain      string
	MappingFile string
}

// Identifier returns the deterministic storage key "<domain>/<mapping file>".
func (r Ref) Identifier() (string, error) {
	file := strings.TrimSpace(r.MappingFile)
	if file == "" {
		return "", fmt.Errorf("state: mapping file is required")
	}
	domain := strings.TrimSpace(r.Domain)
	if domain == "" {
		domain = DefaultDomain
	}
	file = strings.TrimPrefix(path.Clean(strings.ReplaceAll(file, `\`, "/")), "/")
	return domain + "/" + file, nil
}

// Snapshot is the runtime state of a context worth restoring.
type Snapshot struct {
	MappingPairs map[string]string `json:"mapping_pairs,omitempty"`
	CachingPairs map[string]string `json:"caching_pairs,omitempty"`
}

// Empty reports whether the snapshot holds no pairs.
func (s Snapshot) Empty() bool {
	return len(s.MappingPairs) == 0 && len(s.CachingPairs) == 0
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one snapshot for a single ref. Save rejects the
// write with ErrETagMismatch when meta.ETag is set and differs from the
// stored one, and returns the metadata actually stored.
type Store interface {
	Load(ctx context.Context, ref Ref) (snapshot Snapshot, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot Snapshot, meta Meta) (Meta, error)
}

// Mutator edits a snapshot in place.
type Mutator func(*Snapshot) error

// Mutate loads the snapshot for ref, applies fn and saves the result. A
// missing snapshot starts empty.
func Mutate(ctx context.Context, store Store, ref Ref, meta Meta, fn Mutator) (Snapshot, Meta, error) {
	if store == nil {
		return Snapshot{}, Meta{}, fmt.Errorf("state: store is required")
	}
	if fn == nil {
		return Snapshot{}, Meta{}, fmt.Errorf("state: mutator is required")
	}
	snapshot, loaded, ok, err := store.Load(ctx, ref)
	if err != nil {
		return Snapshot{}, Meta{}, fmt.Errorf("state: load %q: %w", ref.MappingFile, err)
	}
	if !ok {
		snapshot, loaded = Snapshot{}, Meta{}
	}
	if meta.ETag != "" && loaded.ETag != "" && meta.ETag != loaded.ETag {
		return Snapshot{}, loaded, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loaded.ETag)
	}
	snapshot = cloneSnapshot(snapshot)
	if err := fn(&snapshot); err != nil {
		return Snapshot{}, loaded, err
	}
	saveMeta := mergeMeta(loaded, meta)
	saved, err := store.Save(ctx, ref, snapshot, saveMeta)
	if err != nil {
		return Snapshot{}, loaded, fmt.Errorf("state: save %q: %w", ref.MappingFile, err)
	}
	return snapshot, saved, nil
}

// stamp fills the save-time metadata: a snapshot id when none was given,
// the content ETag and the update time.
func stamp(snapshot Snapshot, meta Meta, now time.Time) (Meta, []byte, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return Meta{}, nil, fmt.Errorf("state: encode snapshot: %w", err)
	}
	out := cloneMeta(meta)
	if out.SnapshotID == "" {
		out.SnapshotID = uuid.NewString()
	}
	out.ETag = strconv.FormatUint(xxhash.Sum64(payload), 16)
	out.UpdatedAt = now.UTC()
	return out, payload, nil
}

func checkETag(expected, stored string) error {
	if expected != "" && stored != "" && expected != stored {
		return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, stored)
	}
	return nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}

func cloneSnapshot(s Snapshot) Snapshot {
	return Snapshot{MappingPairs: clonePairs(s.MappingPairs), CachingPairs: clonePairs(s.CachingPairs)}
}

func clonePairs(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
