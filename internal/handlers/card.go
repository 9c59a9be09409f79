package handlers

import (
	"encoding/json"
	"net/http"
)

// GatewayCard handles GET / with a service-discovery card, adapted from
// the teacher's HandleAgentCard and scoped to this gateway's two
// protocols.
func GatewayCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":        "Protocol Gateway",
			"description": "Bearer-authenticated HTTP front for stdio MCP connectors and HTTPS A2A agents.",
			"endpoints": map[string]string{
				"mcp":          "/mcp/v1/message",
				"a2a_message":  "/a2a/v1/message/send",
				"a2a_task":     "/a2a/v1/tasks/send",
				"a2a_task_get": "/a2a/v1/tasks/get",
				"a2a_cancel":   "/a2a/v1/tasks/cancel",
				"health":       "/health",
				"metrics":      "/metrics",
			},
			"supported_protocols": []string{"mcp", "a2a"},
			"authentication":      "Bearer token via Authorization header, or none if configured",
		})
	}
}
