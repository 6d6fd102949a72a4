package storage

import (
	"context"
	"sync"
)

// memoryStore keeps values in process memory. It is safe for concurrent use
// and returns copies, so callers cannot alias stored bytes.
type memoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-process Store.
func NewMemory() Store {
	return &memoryStore{data: map[string][]byte{}}
}

func (m *memoryStore) Save(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memoryStore) Close() error { return nil }

func init() {
	Register("memory", func(context.Context, Config) (Store, error) {
		return NewMemory(), nil
	})
}
