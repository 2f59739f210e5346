package gateway

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/tastyGranola/bioquery/errors"
)

// Registry holds the endpoint table. It is populated during startup and
// frozen before serving; lookups after freeze are lock-free reads in
// practice but kept under RLock for safety against misuse.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
	frozen    bool
}

// NewRegistry creates an empty endpoint registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]Endpoint)}
}

// Register adds an endpoint. Keys are unique and immutable for the process
// lifetime; re-registration and post-freeze registration are rejected.
func (r *Registry) Register(ep Endpoint) error {
	if ep.Key == "" {
		return errors.WrapPermanent(errors.ErrInvalidConfig, "Registry", "Register",
			"endpoint key cannot be empty")
	}
	if ep.BaseURL == "" {
		return errors.WrapPermanent(errors.ErrInvalidConfig, "Registry", "Register",
			fmt.Sprintf("endpoint %s has no base URL", ep.Key))
	}
	if _, err := url.Parse(ep.BaseURL); err != nil {
		return errors.WrapPermanent(err, "Registry", "Register",
			fmt.Sprintf("endpoint %s base URL", ep.Key))
	}
	if ep.Class == "" {
		ep.Class = TTLVolatile
	}
	if !ep.Anonymous.Valid() {
		return errors.WrapPermanent(errors.ErrInvalidConfig, "Registry", "Register",
			fmt.Sprintf("endpoint %s has no valid anonymous quota", ep.Key))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.WrapPermanent(errors.ErrInvalidConfig, "Registry", "Register",
			"registry is frozen")
	}
	if _, exists := r.endpoints[ep.Key]; exists {
		return errors.WrapPermanent(errors.ErrInvalidConfig, "Registry", "Register",
			fmt.Sprintf("endpoint %s already registered", ep.Key))
	}

	r.endpoints[ep.Key] = ep
	return nil
}

// Freeze marks the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Get returns the endpoint for key.
func (r *Registry) Get(key string) (Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ep, ok := r.endpoints[key]
	if !ok {
		return Endpoint{}, errors.WrapPermanent(errors.ErrEndpointUnknown, "Registry", "Get", key)
	}
	return ep, nil
}

// Keys returns all registered endpoint keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.endpoints))
	for key := range r.endpoints {
		keys = append(keys, key)
	}
	return keys
}
