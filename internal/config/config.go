// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/focelda-proxy/config.toml",
	"configs/config.toml",
}

// DefaultEndpoint is the sample operation used when a request names no endpoint.
const DefaultEndpoint = "/get_articolobyid/C13S015336"

// Default envelope caps, in characters.
const (
	DefaultRawLimit     = 10000
	DefaultPreviewLimit = 1000
)

// Auth modes.
const (
	AuthModeBasic  = "basic"
	AuthModeBearer = "bearer"
	AuthModeAPIKey = "apikey"
	AuthModeNone   = "none"
)

// Credential sources.
const (
	SourceEnv   = "env"
	SourceVault = "vault"
	SourceAWS   = "aws"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	UpstreamURL string `kong:"help='Focelda service base URL (overrides config).',env='FOCELDA_BASE_URL'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	Lambda      bool   `kong:"help='Serve AWS Lambda invocations instead of listening on a port.',env='FOCELDA_LAMBDA'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Auth     AuthConfig     `toml:"auth"`
	Envelope EnvelopeConfig `toml:"envelope"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	// Lambda is set from the CLI or detected from the Lambda runtime environment.
	Lambda bool `toml:"-"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UpstreamConfig holds settings for the Focelda service.
type UpstreamConfig struct {
	BaseURL         string               `toml:"base_url"`
	TimeoutSeconds  int                  `toml:"timeout_seconds"`
	IdleConnections int                  `toml:"idle_connections"`
	DefaultEndpoint string               `toml:"default_endpoint"`
	CircuitBreaker  CircuitBreakerConfig `toml:"circuit_breaker"`
}

// Timeout returns the upstream call deadline.
func (u *UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// CircuitBreakerConfig controls the optional upstream circuit breaker.
type CircuitBreakerConfig struct {
	Enabled     bool `toml:"enabled"`
	MaxFailures int  `toml:"max_failures"` // consecutive transport failures before opening
	OpenSeconds int  `toml:"open_seconds"`
}

// AuthConfig selects how the proxy authenticates against the upstream and
// where the credentials come from. Credentials themselves never live in the
// config file.
type AuthConfig struct {
	Mode         string          `toml:"mode"`
	Source       string          `toml:"source"`
	UsernameEnv  string          `toml:"username_env"`
	PasswordEnv  string          `toml:"password_env"`
	APIKeyEnv    string          `toml:"api_key_env"`
	TokenEnv     string          `toml:"token_env"`
	APIKeyHeader string          `toml:"api_key_header"`
	Vault        VaultAuthConfig `toml:"vault"`
	AWS          AWSAuthConfig   `toml:"aws"`
}

// VaultAuthConfig locates the credentials in a Vault KV v2 engine.
// The Vault token is taken from VAULT_TOKEN.
type VaultAuthConfig struct {
	Address   string `toml:"address"`
	Mount     string `toml:"mount"`
	Path      string `toml:"path"`
	Namespace string `toml:"namespace"`
}

// AWSAuthConfig locates the credentials in AWS Secrets Manager.
type AWSAuthConfig struct {
	SecretID string `toml:"secret_id"`
	Region   string `toml:"region"`
}

// EnvelopeConfig caps the body snippets copied into the response envelope.
type EnvelopeConfig struct {
	RawLimit     int `toml:"raw_limit"`
	PreviewLimit int `toml:"preview_limit"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/focelda-proxy/config.toml then configs/config.toml. Finding nothing is
// not an error: the proxy then runs from defaults plus CLI/env overrides.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		cfg.Lambda = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.UpstreamURL != "" {
		c.Upstream.BaseURL = cli.UpstreamURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.Lambda {
		c.Lambda = true
	}
}

func (c *Config) validate() error {
	// Upstream URL: required. The legacy service is typically plain HTTP.
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil {
		return fmt.Errorf("upstream.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url must use http or https; got %q", c.Upstream.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream.base_url has no host; got %q", c.Upstream.BaseURL)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Upstream.CircuitBreaker.MaxFailures < 0 || c.Upstream.CircuitBreaker.OpenSeconds < 0 {
		return fmt.Errorf("upstream.circuit_breaker values must be non-negative")
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	if c.Envelope.RawLimit < 0 || c.Envelope.PreviewLimit < 0 {
		return fmt.Errorf("envelope limits must be non-negative")
	}
	// Compare against the raw cap that will be in effect after defaults.
	rawLimit := c.Envelope.RawLimit
	if rawLimit == 0 {
		rawLimit = DefaultRawLimit
	}
	if c.Envelope.PreviewLimit > rawLimit {
		return fmt.Errorf("envelope.preview_limit (%d) must not exceed envelope.raw_limit (%d)", c.Envelope.PreviewLimit, rawLimit)
	}

	// Auth fields.
	switch strings.ToLower(c.Auth.Mode) {
	case AuthModeBasic, AuthModeBearer, AuthModeAPIKey, AuthModeNone, "":
		// valid
	default:
		return fmt.Errorf("auth.mode must be one of: basic, bearer, apikey, none; got %q", c.Auth.Mode)
	}
	switch strings.ToLower(c.Auth.Source) {
	case SourceEnv, "":
		// valid
	case SourceVault:
		if c.Auth.Vault.Path == "" {
			return fmt.Errorf("auth.vault.path is required when auth.source is vault")
		}
	case SourceAWS:
		if c.Auth.AWS.SecretID == "" {
			return fmt.Errorf("auth.aws.secret_id is required when auth.source is aws")
		}
	default:
		return fmt.Errorf("auth.source must be one of: env, vault, aws; got %q", c.Auth.Source)
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/api/focelda", "/healthz", "/proxy/status"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1024 * 1024 // 1 MB; bodies only carry an endpoint selector
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 20
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Upstream.DefaultEndpoint == "" {
		c.Upstream.DefaultEndpoint = DefaultEndpoint
	}
	if c.Upstream.CircuitBreaker.MaxFailures == 0 {
		c.Upstream.CircuitBreaker.MaxFailures = 5
	}
	if c.Upstream.CircuitBreaker.OpenSeconds == 0 {
		c.Upstream.CircuitBreaker.OpenSeconds = 30
	}
	c.Auth.Mode = strings.ToLower(c.Auth.Mode)
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeBasic
	}
	c.Auth.Source = strings.ToLower(c.Auth.Source)
	if c.Auth.Source == "" {
		c.Auth.Source = SourceEnv
	}
	if c.Auth.UsernameEnv == "" {
		c.Auth.UsernameEnv = "FOCELDA_USER"
	}
	if c.Auth.PasswordEnv == "" {
		c.Auth.PasswordEnv = "FOCELDA_PASS"
	}
	if c.Auth.APIKeyEnv == "" {
		c.Auth.APIKeyEnv = "FOCELDA_API_KEY"
	}
	if c.Auth.TokenEnv == "" {
		c.Auth.TokenEnv = "FOCELDA_TOKEN"
	}
	if c.Auth.APIKeyHeader == "" {
		c.Auth.APIKeyHeader = "X-Api-Key"
	}
	if c.Auth.Vault.Mount == "" {
		c.Auth.Vault.Mount = "secret"
	}
	if c.Envelope.RawLimit == 0 {
		c.Envelope.RawLimit = DefaultRawLimit
	}
	if c.Envelope.PreviewLimit == 0 {
		c.Envelope.PreviewLimit = min(DefaultPreviewLimit, c.Envelope.RawLimit)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
