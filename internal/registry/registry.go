// Package registry holds the reminder-bearing entities the API edits and the
// schedulers read.
package registry

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound  = errors.New("entity not found")
	ErrDuplicate = errors.New("entity id already exists")
)

type Registry[E any] interface {
	// Snapshot returns every entity in insertion order. The slice is owned
	// by the caller.
	Snapshot(ctx context.Context) ([]E, error)
	Get(ctx context.Context, id string) (E, error)
	// Create adds a new entity. Ids are never reused.
	Create(ctx context.Context, e E) error
	// Update applies fn to the stored entity under the registry lock and
	// stores the result. The id must not change.
	Update(ctx context.Context, id string, fn func(e *E) error) (E, error)
	Delete(ctx context.Context, id string) error
}

// Memory is a process-local Registry.
type Memory[E any] struct {
	mu    sync.RWMutex
	idOf  func(E) string
	order []string
	items map[string]E
	used  map[string]struct{}
}

// NewMemory returns a Memory holding seed in order. A seed whose id is
// already taken is ignored; the first one wins.
func NewMemory[E any](idOf func(E) string, seed ...E) *Memory[E] {
	m := &Memory[E]{
		idOf:  idOf,
		items: make(map[string]E),
		used:  make(map[string]struct{}),
	}
	for _, e := range seed {
		_ = m.Create(context.Background(), e)
	}
	return m
}

func (m *Memory[E]) Snapshot(ctx context.Context) ([]E, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]E, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out, nil
}

func (m *Memory[E]) Get(ctx context.Context, id string) (E, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.items[id]
	if !ok {
		var zero E
		return zero, ErrNotFound
	}
	return e, nil
}

func (m *Memory[E]) Create(ctx context.Context, e E) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.idOf(e)
	if _, ok := m.used[id]; ok {
		return ErrDuplicate
	}
	m.used[id] = struct{}{}
	m.items[id] = e
	m.order = append(m.order, id)
	return nil
}

func (m *Memory[E]) Update(ctx context.Context, id string, fn func(e *E) error) (E, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero E
	e, ok := m.items[id]
	if !ok {
		return zero, ErrNotFound
	}
	if err := fn(&e); err != nil {
		return zero, err
	}
	if m.idOf(e) != id {
		return zero, errors.New("entity id is immutable")
	}
	m.items[id] = e
	return e, nil
}

func (m *Memory[E]) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
