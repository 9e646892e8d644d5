package assetfs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory Storage intended for tests and examples.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	clock   func() time.Time
}

type memoryObject struct {
	data    []byte
	modTime time.Time
}

// NewMemory constructs an empty Memory storage.
func NewMemory() *Memory {
	return &Memory{objects: map[string]memoryObject{}, clock: time.Now}
}

// Put stores data at location stamped with the current time.
func (m *Memory) Put(location string, data []byte) {
	m.PutAt(location, data, m.clock())
}

// PutAt stores data at location with an explicit modification time.
func (m *Memory) PutAt(location string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[location] = memoryObject{data: append([]byte(nil), data...), modTime: modTime}
}

// Touch creates an empty object at each location.
func (m *Memory) Touch(locations ...string) {
	for _, location := range locations {
		m.Put(location, nil)
	}
}

// Delete removes location.
func (m *Memory) Delete(location string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, location)
}

// Locations lists stored locations in sorted order.
func (m *Memory) Locations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objects))
	for location := range m.objects {
		out = append(out, location)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) Exists(_ context.Context, location string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[location]
	return ok
}

func (m *Memory) ModTime(_ context.Context, location string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	object, ok := m.objects[location]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	return object.modTime, nil
}

func (m *Memory) Read(_ context.Context, location string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	object, ok := m.objects[location]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	return append([]byte(nil), object.data...), nil
}
