package security

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/gateway/internal/config"
)

func sha256Hex(s string) string {
	digest := sha256.Sum256([]byte(s))
	return hex.EncodeToString(digest[:])
}

func noneModeConfig() *config.GatewayConfig {
	cfg, _ := config.Load("")
	return cfg
}

func bearerModeConfig(t *testing.T) *config.GatewayConfig {
	t.Helper()
	cfg := noneModeConfig()
	cfg.Auth.Mode = config.AuthModeBearer
	cfg.Auth.Tokens = []config.TokenConfig{
		{
			Name: "ci-token",
			// sha256("s3cr3t-token")
			Hash:        "sha256:" + sha256Hex("s3cr3t-token"),
			Permissions: []string{"mcp:tools.call:yfinance"},
		},
	}
	return cfg
}

func TestAuthGateNoneModeGrantsWildcard(t *testing.T) {
	gate, err := NewAuthGate(noneModeConfig())
	require.NoError(t, err)

	info, err := gate.Authenticate("")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", info.ClientID)
	assert.Equal(t, []string{"*"}, info.Permissions)
}

func TestAuthGateBearerModeAcceptsValidToken(t *testing.T) {
	gate, err := NewAuthGate(bearerModeConfig(t))
	require.NoError(t, err)

	info, err := gate.Authenticate("Bearer s3cr3t-token")
	require.NoError(t, err)
	assert.Equal(t, "ci-token", info.ClientID)
	assert.Equal(t, []string{"mcp:tools.call:yfinance"}, info.Permissions)
}

func TestAuthGateBearerModeRejectsWrongToken(t *testing.T) {
	gate, err := NewAuthGate(bearerModeConfig(t))
	require.NoError(t, err)

	_, err = gate.Authenticate("Bearer not-the-right-token")
	assert.Error(t, err)
}

func TestAuthGateBearerModeRejectsMissingHeader(t *testing.T) {
	gate, err := NewAuthGate(bearerModeConfig(t))
	require.NoError(t, err)

	_, err = gate.Authenticate("")
	assert.Error(t, err)
}

func TestAuthGateBearerModeRejectsMalformedScheme(t *testing.T) {
	gate, err := NewAuthGate(bearerModeConfig(t))
	require.NoError(t, err)

	_, err = gate.Authenticate("Basic dXNlcjpwYXNz")
	assert.Error(t, err)
}

func TestAuthGateIsPublicHealthMetricsAndCard(t *testing.T) {
	gate, err := NewAuthGate(noneModeConfig())
	require.NoError(t, err)

	assert.True(t, gate.IsPublic("/health"))
	assert.True(t, gate.IsPublic("/metrics"))
	assert.True(t, gate.IsPublic("/"))
	assert.False(t, gate.IsPublic("/mcp/v1/message"))
}

func TestHasPermissionWildcardStar(t *testing.T) {
	assert.True(t, HasPermission([]string{"*"}, "mcp:tools.call:anything"))
}

func TestHasPermissionExactMatch(t *testing.T) {
	held := []string{"mcp:tools.call:yfinance"}
	assert.True(t, HasPermission(held, "mcp:tools.call:yfinance"))
	assert.False(t, HasPermission(held, "mcp:tools.call:other"))
}

func TestHasPermissionNamespacePrefix(t *testing.T) {
	held := []string{"mcp:*"}
	assert.True(t, HasPermission(held, "mcp:tools.call:yfinance"))
	assert.False(t, HasPermission(held, "a2a:message.send:agent-1"))
}

func TestHasPermissionNoMatch(t *testing.T) {
	held := []string{"a2a:message.send:agent-1"}
	assert.False(t, HasPermission(held, "mcp:tools.call:yfinance"))
}
