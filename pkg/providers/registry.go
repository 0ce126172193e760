package providers

import (
	"fmt"

	"mercator-hq/helios/pkg/gateway"
)

// Registry maps provider ids to their strategies. It is populated once at
// startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	strategies map[gateway.ProviderID]Strategy
	sealed     bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[gateway.ProviderID]Strategy)}
}

// Register adds a strategy. It panics on duplicate registration or after
// Seal, both of which indicate a wiring bug at startup.
func (r *Registry) Register(s Strategy) {
	if r.sealed {
		panic("providers: Register after Seal")
	}
	if _, dup := r.strategies[s.Name()]; dup {
		panic(fmt.Sprintf("providers: duplicate strategy %q", s.Name()))
	}
	r.strategies[s.Name()] = s
}

// Seal marks the registry immutable.
func (r *Registry) Seal() { r.sealed = true }

// Lookup returns the strategy for id.
func (r *Registry) Lookup(id gateway.ProviderID) (Strategy, bool) {
	s, ok := r.strategies[id]
	return s, ok
}

// Names returns the registered provider ids, for logging.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		names = append(names, string(id))
	}
	return names
}
