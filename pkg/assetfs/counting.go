package assetfs

import (
	"context"
	"sync/atomic"
	"time"
)

// Counting wraps a Storage and counts every probe made through it.
type Counting struct {
	Storage Storage

	exists  atomic.Int64
	modTime atomic.Int64
	reads   atomic.Int64
}

// NewCounting wraps storage.
func NewCounting(storage Storage) *Counting {
	return &Counting{Storage: storage}
}

func (c *Counting) Exists(ctx context.Context, location string) bool {
	c.exists.Add(1)
	return c.Storage.Exists(ctx, location)
}

func (c *Counting) ModTime(ctx context.Context, location string) (time.Time, error) {
	c.modTime.Add(1)
	return c.Storage.ModTime(ctx, location)
}

func (c *Counting) Read(ctx context.Context, location string) ([]byte, error) {
	c.reads.Add(1)
	return c.Storage.Read(ctx, location)
}

// ExistsCalls reports how many existence probes were made.
func (c *Counting) ExistsCalls() int { return int(c.exists.Load()) }

// ModTimeCalls reports how many timestamp probes were made.
func (c *Counting) ModTimeCalls() int { return int(c.modTime.Load()) }

// ReadCalls reports how many reads were made.
func (c *Counting) ReadCalls() int { return int(c.reads.Load()) }

// Reset zeroes every counter.
func (c *Counting) Reset() {
	c.exists.Store(0)
	c.modTime.Store(0)
	c.reads.Store(0)
}
