package repository

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory Collection. Values are copied on the way in and out.
type Memory[T any] struct {
	mu    sync.RWMutex
	id    IDFunc[T]
	next  int
	store map[int]T
}

func NewMemory[T any](id IDFunc[T]) *Memory[T] {
	return &Memory[T]{id: id, store: make(map[int]T)}
}

func (m *Memory[T]) Insert(ctx context.Context, v *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	*m.id(v) = m.next
	m.store[m.next] = *v
	return nil
}

func (m *Memory[T]) Get(ctx context.Context, id int) (*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *Memory[T]) List(ctx context.Context) ([]*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int, 0, len(m.store))
	for id := range m.store {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		v := m.store[id]
		out = append(out, &v)
	}
	return out, nil
}

func (m *Memory[T]) Replace(ctx context.Context, v *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := *m.id(v)
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	m.store[id] = *v
	return nil
}

func (m *Memory[T]) Delete(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}
