// Package targets holds the gateway's read-only view of configured
// upstreams, loaded once at startup from the same document as
// GatewayConfig.
package targets

import (
	"fmt"

	"github.com/ocx/gateway/internal/config"
)

// Registry is a load-once, map-backed lookup of configured targets,
// grounded on the read-accessor shape of internal/fabric.Hub.GetSpokes.
type Registry struct {
	byID map[string]config.Target
}

// NewRegistry builds a Registry from the targets declared in cfg.
func NewRegistry(cfg *config.GatewayConfig) (*Registry, error) {
	byID := make(map[string]config.Target, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if _, exists := byID[t.ID]; exists {
			return nil, fmt.Errorf("targets: duplicate target id %q", t.ID)
		}
		byID[t.ID] = t
	}
	return &Registry{byID: byID}, nil
}

// Get returns the target with the given id, if any.
func (r *Registry) Get(id string) (config.Target, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// IsUsableConnector reports whether id names an enabled MCP connector.
func (r *Registry) IsUsableConnector(id string) bool {
	t, ok := r.byID[id]
	return ok && t.Enabled && t.Type == config.TargetTypeConnector
}

// IsUsableAgent reports whether id names an enabled A2A agent.
func (r *Registry) IsUsableAgent(id string) bool {
	t, ok := r.byID[id]
	return ok && t.Enabled && t.Type == config.TargetTypeAgent
}
