package catalog

import (
	"context"
	"sync"
)

// Memory is a mutex-guarded in-process catalog. List returns services in
// insertion order. A single catalog-wide lock is enough: catalog mutation
// happens at admin rate, not user rate.
type Memory struct {
	mu     sync.Mutex
	prices map[string]int64
	names  []string
}

func NewMemory() *Memory {
	return &Memory{prices: make(map[string]int64)}
}

func (m *Memory) Upsert(_ context.Context, name string, price int64) error {
	if err := validate(name, price); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.prices[name]; !ok {
		m.names = append(m.names, name)
	}
	m.prices[name] = price
	return nil
}

func (m *Memory) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.prices[name]; !ok {
		return ErrServiceNotFound
	}
	delete(m.prices, name)
	for i, n := range m.names {
		if n == name {
			m.names = append(m.names[:i], m.names[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Get(_ context.Context, name string) (Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.prices[name]
	if !ok {
		return Service{}, ErrServiceNotFound
	}
	return Service{Name: name, Price: price}, nil
}

func (m *Memory) List(_ context.Context) ([]Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	services := make([]Service, 0, len(m.names))
	for _, n := range m.names {
		services = append(services, Service{Name: n, Price: m.prices[n]})
	}
	return services, nil
}
