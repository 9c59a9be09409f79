package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/ocx/gateway/internal/config"
	"github.com/ocx/gateway/internal/gatewayerr"
)

// AuthInfo is attached to every request after it clears the AuthGate.
type AuthInfo struct {
	ClientID    string
	Permissions []string
}

// hashSize is the fixed width of a SHA-256 digest; comparisons run over this
// fixed-length byte slice, never over the Base16 string or the raw token.
const hashSize = sha256.Size

// AuthGate validates bearer tokens against the configured set of token
// hashes using a constant-time comparison.
type AuthGate struct {
	mode         config.AuthMode
	hideNotFound bool
	tokens       []boundToken
	publicPaths  map[string]bool
}

type boundToken struct {
	name        string
	hash        [hashSize]byte
	permissions []string
}

// NewAuthGate builds an AuthGate from the gateway's auth configuration.
func NewAuthGate(cfg *config.GatewayConfig) (*AuthGate, error) {
	gate := &AuthGate{
		mode:         cfg.Auth.Mode,
		hideNotFound: cfg.HideNotFound(),
		publicPaths:  map[string]bool{"/health": true, "/metrics": true, "/": true},
	}

	for _, tok := range cfg.Auth.Tokens {
		hexDigest := strings.TrimPrefix(tok.Hash, "sha256:")
		raw, err := hex.DecodeString(hexDigest)
		if err != nil || len(raw) != hashSize {
			return nil, gatewayerr.Internal(err)
		}
		bound := boundToken{name: tok.Name, permissions: tok.Permissions}
		copy(bound.hash[:], raw)
		gate.tokens = append(gate.tokens, bound)
	}

	return gate, nil
}

// HideNotFound reports whether the hide-not-found policy is active.
func (g *AuthGate) HideNotFound() bool { return g.hideNotFound }

// IsPublic reports whether path bypasses authentication entirely.
func (g *AuthGate) IsPublic(path string) bool {
	return g.publicPaths[path]
}

// Authenticate validates the Authorization header for a non-public request
// and returns the AuthInfo to attach to the request context.
func (g *AuthGate) Authenticate(authHeader string) (*AuthInfo, error) {
	switch g.mode {
	case config.AuthModeNone:
		return &AuthInfo{ClientID: "anonymous", Permissions: []string{"*"}}, nil
	case config.AuthModeBearer:
		return g.authenticateBearer(authHeader)
	default:
		return nil, gatewayerr.Internal(nil)
	}
}

func (g *AuthGate) authenticateBearer(authHeader string) (*AuthInfo, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) || len(authHeader) <= len(prefix) {
		return nil, gatewayerr.Unauthorized("missing or malformed Authorization header")
	}
	presented := strings.TrimPrefix(authHeader, prefix)

	digest := sha256.Sum256([]byte(presented))

	for _, tok := range g.tokens {
		if subtle.ConstantTimeCompare(digest[:], tok.hash[:]) == 1 {
			return &AuthInfo{ClientID: tok.name, Permissions: tok.permissions}, nil
		}
	}

	return nil, gatewayerr.InvalidToken("no configured token matches the presented credential")
}

// PublicAuthInfo is the AuthInfo attached to requests on a public path.
func PublicAuthInfo() *AuthInfo {
	return &AuthInfo{ClientID: "anonymous", Permissions: nil}
}
