package store

import (
	"context"
	"sync"
)

// Memory es un OptionStore in-process. Útil para tests y despliegues de un nodo.
type Memory struct {
	mu   sync.RWMutex
	opts map[string]string
}

func NewMemory() *Memory {
	return &Memory{opts: map[string]string{}}
}

func (m *Memory) Get(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.opts[name]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, name, value string) error {
	m.mu.Lock()
	m.opts[name] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.opts, name)
	m.mu.Unlock()
	return nil
}

// Keys devuelve los nombres almacenados (sin orden).
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.opts))
	for k := range m.opts {
		out = append(out, k)
	}
	return out
}
