// Package config parses and validates the gateway's configuration: host,
// port, per-target queue limits, timeouts, auth mode, tokens, and the set of
// configured targets.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// AuthMode is the gateway's authentication mode.
type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeBearer AuthMode = "bearer"
)

const (
	maxBodyCapBytes = 100 * 1024 * 1024 // 100 MiB hard ceiling, regardless of input
	defaultBodyCap  = 1024 * 1024       // 1 MiB
)

var (
	hostForbidden  = regexp.MustCompile("[ <>{}|\\\\^`]")
	bodyCapPattern = regexp.MustCompile(`(?i)^\d+(kb|mb|gb)?$`)
	tokenHashRe    = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)
)

// TokenConfig is a single bearer-token credential: a display name (logged as
// client_id, never the secret), the token's SHA-256 hash, and the
// permissions it carries.
type TokenConfig struct {
	Name        string   `yaml:"name"`
	Hash        string   `yaml:"hash"`
	Permissions []string `yaml:"permissions"`
}

// TargetType distinguishes stdio MCP connectors from HTTPS A2A agents.
type TargetType string

const (
	TargetTypeConnector TargetType = "connector"
	TargetTypeAgent     TargetType = "agent"
)

// TargetProtocol is the JSON-RPC dialect a target speaks.
type TargetProtocol string

const (
	ProtocolMCP TargetProtocol = "mcp"
	ProtocolA2A TargetProtocol = "a2a"
)

// TargetRuntime selects how an MCP connector's subprocess is launched.
type TargetRuntime string

const (
	RuntimeProcess TargetRuntime = "process"
	RuntimeDocker  TargetRuntime = "docker"
)

// Target is a single configured upstream: either a stdio subprocess (MCP
// connector) or an HTTPS JSON-RPC agent (A2A).
type Target struct {
	ID       string         `yaml:"id"`
	Type     TargetType     `yaml:"type"`
	Protocol TargetProtocol `yaml:"protocol"`
	Enabled  bool           `yaml:"enabled"`

	// MCP connector fields.
	Command []string      `yaml:"command"`
	Env     []string      `yaml:"env"`
	Runtime TargetRuntime `yaml:"runtime"`
	Image   string        `yaml:"image"`

	// A2A agent field.
	URL string `yaml:"url"`
}

// ServerConfig holds host/port/body-cap settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	BodyCap        string `yaml:"body_cap"`
	LogLevel       string `yaml:"log_level"`
	ShutdownGrace  int    `yaml:"shutdown_grace_sec"`
	bodyCapBytes   int64  `yaml:"-"`
}

// QueueConfig holds per-target admission/timeout limits.
type QueueConfig struct {
	TimeoutMs            int `yaml:"timeout_ms"`
	MaxQueuePerTarget    int `yaml:"max_queue_per_target"`
	MaxInflightPerTarget int `yaml:"max_inflight_per_target"`
}

// AuthConfig holds the auth mode and configured tokens.
type AuthConfig struct {
	Mode         AuthMode      `yaml:"mode"`
	Tokens       []TokenConfig `yaml:"tokens"`
	HideNotFound *bool         `yaml:"hide_not_found"`
}

// GatewayConfig is the immutable, fully-validated configuration driving
// every component of the gateway.
type GatewayConfig struct {
	Server  ServerConfig `yaml:"server"`
	Queue   QueueConfig  `yaml:"queue"`
	Auth    AuthConfig   `yaml:"auth"`
	Targets []Target     `yaml:"targets"`
}

// Load reads a YAML document from path, merges it onto defaults, applies
// environment overrides, and validates the result. Any validation failure
// aborts with a descriptive error — callers are expected to treat this as a
// fatal startup error.
func Load(path string) (*GatewayConfig, error) {
	cfg := &GatewayConfig{}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: opening %s: %w", path, err)
			}
		} else {
			defer f.Close()
			decoder := yaml.NewDecoder(f)
			if err := decoder.Decode(cfg); err != nil {
				return nil, fmt.Errorf("config: decoding %s: %w", path, err)
			}
		}
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *GatewayConfig) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyCap == "" {
		c.Server.BodyCap = "1mb"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ShutdownGrace == 0 {
		c.Server.ShutdownGrace = 10
	}
	if c.Queue.TimeoutMs == 0 {
		c.Queue.TimeoutMs = 30000
	}
	if c.Queue.MaxQueuePerTarget == 0 {
		c.Queue.MaxQueuePerTarget = 10
	}
	if c.Queue.MaxInflightPerTarget == 0 {
		c.Queue.MaxInflightPerTarget = 1
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeNone
	}
	if c.Auth.HideNotFound == nil {
		hideDefault := true
		c.Auth.HideNotFound = &hideDefault
	}
	for i := range c.Targets {
		if c.Targets[i].Runtime == "" {
			c.Targets[i].Runtime = RuntimeProcess
		}
	}
}

func (c *GatewayConfig) applyEnvOverrides() {
	c.Server.Host = getEnv("GATEWAY_HOST", c.Server.Host)
	if v := getEnvInt("GATEWAY_PORT", -1); v >= 0 {
		c.Server.Port = v
	}
	c.Server.BodyCap = getEnv("GATEWAY_BODY_CAP", c.Server.BodyCap)
	c.Server.LogLevel = getEnv("GATEWAY_LOG_LEVEL", c.Server.LogLevel)

	if v := getEnvInt("GATEWAY_TIMEOUT_MS", 0); v > 0 {
		c.Queue.TimeoutMs = v
	}
	if v := getEnvInt("GATEWAY_MAX_QUEUE_PER_TARGET", -1); v >= 0 {
		c.Queue.MaxQueuePerTarget = v
	}

	if mode := getEnv("GATEWAY_AUTH_MODE", ""); mode != "" {
		c.Auth.Mode = AuthMode(mode)
	}
	if v := getEnv("GATEWAY_HIDE_NOT_FOUND", ""); v != "" {
		b := getEnvBool("GATEWAY_HIDE_NOT_FOUND", true)
		c.Auth.HideNotFound = &b
	}
}

// validate performs the construction-time checks from the spec. Each
// failure aborts startup.
func (c *GatewayConfig) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range [0, 65535]", c.Server.Port)
	}

	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		return fmt.Errorf("config: server.host must not be empty")
	}
	if hostForbidden.MatchString(host) {
		return fmt.Errorf("config: server.host %q contains a forbidden character", host)
	}
	c.Server.Host = host

	if !bodyCapPattern.MatchString(c.Server.BodyCap) {
		return fmt.Errorf("config: server.body_cap %q does not match ^\\d+(kb|mb|gb)?$", c.Server.BodyCap)
	}
	bytes, err := parseBodyCap(c.Server.BodyCap)
	if err != nil {
		return err
	}
	if bytes > maxBodyCapBytes {
		bytes = maxBodyCapBytes
	}
	c.Server.bodyCapBytes = bytes

	if c.Queue.MaxQueuePerTarget < 0 {
		return fmt.Errorf("config: queue.max_queue_per_target must be >= 0")
	}

	switch c.Auth.Mode {
	case AuthModeNone:
	case AuthModeBearer:
		for _, tok := range c.Auth.Tokens {
			if !tokenHashRe.MatchString(tok.Hash) {
				return fmt.Errorf("config: auth token %q has malformed hash (want sha256:<64 hex chars>)", tok.Name)
			}
		}
	default:
		return fmt.Errorf("config: auth.mode %q is not one of {none, bearer}", c.Auth.Mode)
	}

	for _, t := range c.Targets {
		if t.Type == TargetTypeConnector && t.Protocol != ProtocolMCP {
			return fmt.Errorf("config: target %q is type=connector but protocol=%q (must be mcp)", t.ID, t.Protocol)
		}
		if t.Type == TargetTypeAgent && t.Protocol != ProtocolA2A {
			return fmt.Errorf("config: target %q is type=agent but protocol=%q (must be a2a)", t.ID, t.Protocol)
		}
	}

	return nil
}

// BodyCapBytes returns the resolved, clamped body-size ceiling in bytes.
func (c *GatewayConfig) BodyCapBytes() int64 {
	if c.Server.bodyCapBytes == 0 {
		return defaultBodyCap
	}
	return c.Server.bodyCapBytes
}

// HideNotFound reports whether the hide-not-found security policy is active.
func (c *GatewayConfig) HideNotFound() bool {
	if c.Auth.HideNotFound == nil {
		return true
	}
	return *c.Auth.HideNotFound
}

// Addr returns the host:port string suitable for http.Server.Addr.
func (c *GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsBearerAuth reports whether bearer-token auth is configured.
func (c *GatewayConfig) IsBearerAuth() bool {
	return c.Auth.Mode == AuthModeBearer
}

func parseBodyCap(spec string) (int64, error) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	multiplier := int64(1)
	numeric := spec
	switch {
	case strings.HasSuffix(spec, "kb"):
		multiplier = 1024
		numeric = strings.TrimSuffix(spec, "kb")
	case strings.HasSuffix(spec, "mb"):
		multiplier = 1024 * 1024
		numeric = strings.TrimSuffix(spec, "mb")
	case strings.HasSuffix(spec, "gb"):
		multiplier = 1024 * 1024 * 1024
		numeric = strings.TrimSuffix(spec, "gb")
	}
	n, err := strconv.ParseInt(numeric, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid body_cap %q: %w", spec, err)
	}
	return n * multiplier, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}
