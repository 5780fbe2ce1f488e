// Package provider defines the interface and registry for geocoding
// backends (C1), and the query types every adapter accepts.
//
// Grounded on internal/waterfall/provider/provider.go from the teacher
// repo: same Name()/Registry shape, generalized from premium-data
// providers to geocoding backends and from a field-key query surface to
// a Variant query surface.
package provider

import (
	"context"
	"sync"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

// Provider is one geocoding backend (HERE, Google, OSM, ...).
type Provider interface {
	// Name returns the provider identifier used in config, logs, and
	// the Precision Comparator's tie-break order.
	Name() model.ProviderName
	// Capabilities reports which Variant kinds this provider accepts.
	Capabilities() model.Capabilities
	// Geocode resolves a single query variant to a Result. Adapters
	// never retry internally, and nothing retries the same
	// (provider, variant) pair: the Fallback Engine moves on to the next
	// variant or provider instead. A Geocode call returns a terminal
	// Result or an error.
	Geocode(ctx context.Context, variant model.Variant) (model.Result, error)
}

// Supports reports whether p accepts variant's kind, consulting its
// Capabilities.
func Supports(p Provider, variant model.Variant) bool {
	caps := p.Capabilities()
	switch variant.Kind {
	case model.VariantStructured:
		return caps.Structured
	case model.VariantPlaceLookup:
		return caps.PlaceLookup
	default:
		return caps.FreeText
	}
}

// Registry is a thread-safe provider lookup by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[model.ProviderName]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[model.ProviderName]Provider)}
}

// Register adds or replaces a provider under its own Name().
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not registered.
func (r *Registry) Get(name model.ProviderName) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns the registered provider names in no particular order.
func (r *Registry) List() []model.ProviderName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]model.ProviderName, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Ordered returns the registered providers from names, in order,
// skipping names with no registered Provider.
func (r *Registry) Ordered(names []model.ProviderName) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(names))
	for _, name := range names {
		if p, ok := r.providers[name]; ok {
			out = append(out, p)
		}
	}
	return out
}
