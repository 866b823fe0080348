package connector

import (
	"fmt"
	"sort"
	"sync"
)

// Factory is a function that creates a new Connector instance.
type Factory func() Connector

// Registry maps driver names to connector factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// RegisterDriver registers a connector factory for a driver type.
func (r *Registry) RegisterDriver(driver string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[driver] = factory
}

// Open creates a connector for cfg.Driver and connects it.
func (r *Registry) Open(cfg ConnectionConfig) (Connector, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Driver]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s (available: %v)", cfg.Driver, r.Drivers())
	}

	conn := factory()
	if err := conn.Connect(cfg); err != nil {
		return nil, fmt.Errorf("connect %s: %w", RedactDSN(cfg.DSN), err)
	}
	return conn, nil
}

// Drivers returns the registered driver names, sorted.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	drivers := make([]string, 0, len(r.factories))
	for d := range r.factories {
		drivers = append(drivers, d)
	}
	sort.Strings(drivers)
	return drivers
}
