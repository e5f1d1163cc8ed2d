package agent

import (
	"strings"

	"github.com/voletro/fleet/pkg/registry"
)

// Registry holds the agent connections registered for a session, plus
// name resolution by hint.
type Registry struct {
	*registry.BaseRegistry[*Connection]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[*Connection]()}
}

// Resolve finds a connection by name hint. Matching is case-insensitive:
// exact name first, then substring in either direction.
func (r *Registry) Resolve(hint string) (*Connection, bool) {
	if hint == "" {
		return nil, false
	}

	if conn, ok := r.Get(hint); ok {
		return conn, true
	}

	needle := strings.ToLower(hint)
	for _, name := range r.Names() {
		candidate := strings.ToLower(name)
		if candidate == needle {
			return r.Get(name)
		}
	}
	for _, name := range r.Names() {
		candidate := strings.ToLower(name)
		if strings.Contains(candidate, needle) || strings.Contains(needle, candidate) {
			return r.Get(name)
		}
	}
	return nil, false
}
