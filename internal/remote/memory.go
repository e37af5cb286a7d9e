package remote

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store used in tests and as a throwaway target when
// no backend is configured but sync behavior still needs exercising.
type Memory struct {
	mu       sync.Mutex
	objects  map[string][]byte
	modified map[string]time.Time

	// FailWith, when set, makes every operation fail with that error.
	FailWith error
}

func NewMemory() *Memory {
	return &Memory{
		objects:  make(map[string][]byte),
		modified: make(map[string]time.Time),
	}
}

func (m *Memory) Name() string { return "memory" }

// SetModified backdates or forward-dates an object, for grace-window tests.
func (m *Memory) SetModified(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modified[id] = at
}

func (m *Memory) Find(_ context.Context, name string) (*ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if _, ok := m.objects[name]; !ok {
		return nil, ErrNotFound
	}
	return &ObjectInfo{ID: name, ModifiedAt: m.modified[name]}, nil
}

func (m *Memory) Upload(_ context.Context, id string, name string, payload []byte) (*ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}
	key := id
	if key == "" {
		key = name
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)
	m.objects[key] = stored
	m.modified[key] = time.Now().UTC()
	return &ObjectInfo{ID: key, ModifiedAt: m.modified[key]}, nil
}

func (m *Memory) Download(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}
	payload, ok := m.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := make([]byte, len(payload))
	copy(result, payload)
	return result, nil
}
