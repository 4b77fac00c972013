// Package credentials resolves the upstream credentials once at startup from
// an external source (environment, Vault or AWS Secrets Manager) and applies
// them to outbound requests.
package credentials

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"focelda-proxy-go/internal/config"
)

// Secret keys looked up in every source.
const (
	KeyUsername = "username"
	KeyPassword = "password"
	KeyAPIKey   = "api_key"
	KeyToken    = "token"
)

const fetchTimeout = 10 * time.Second

// ErrMissingCredentials is returned when the configured auth mode lacks the
// values it needs. The proxy refuses to start rather than fall back to defaults.
var ErrMissingCredentials = errors.New("credentials missing for configured auth mode")

// Source fetches raw secret values by key. Missing keys are simply absent.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (map[string]string, error)
}

// Credentials are immutable after Load.
type Credentials struct {
	Mode         string
	Username     string
	Password     string
	APIKey       string
	Token        string
	APIKeyHeader string
}

// Load builds the configured source, fetches the secret and checks that the
// auth mode has everything it needs.
func Load(cfg *config.Config, logger *slog.Logger) (*Credentials, error) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	src, err := NewSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return LoadFrom(ctx, cfg, src, logger)
}

// LoadFrom resolves credentials from an explicit source.
func LoadFrom(ctx context.Context, cfg *config.Config, src Source, logger *slog.Logger) (*Credentials, error) {
	creds := &Credentials{
		Mode:         cfg.Auth.Mode,
		APIKeyHeader: cfg.Auth.APIKeyHeader,
	}
	if creds.Mode == config.AuthModeNone {
		logger.Warn("upstream authentication disabled")
		return creds, nil
	}

	values, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("credentials: fetch from %s: %w", src.Name(), err)
	}
	creds.Username = values[KeyUsername]
	creds.Password = values[KeyPassword]
	creds.APIKey = values[KeyAPIKey]
	creds.Token = values[KeyToken]

	if err := creds.validate(); err != nil {
		return nil, fmt.Errorf("credentials: %s source: %w", src.Name(), err)
	}

	logger.Info("upstream credentials loaded",
		"source", src.Name(),
		"mode", creds.Mode,
		"username", creds.MaskedUsername(),
	)
	return creds, nil
}

// NewSource returns the Source selected by cfg.Auth.Source.
func NewSource(ctx context.Context, cfg *config.Config) (Source, error) {
	switch cfg.Auth.Source {
	case config.SourceEnv, "":
		return NewEnvSource(cfg.Auth), nil
	case config.SourceVault:
		return NewVaultSource(cfg.Auth.Vault)
	case config.SourceAWS:
		return NewAWSSource(ctx, cfg.Auth.AWS)
	}
	return nil, fmt.Errorf("credentials: unknown source %q", cfg.Auth.Source)
}

func (c *Credentials) validate() error {
	switch c.Mode {
	case config.AuthModeBasic:
		if c.Username == "" || c.Password == "" {
			return fmt.Errorf("%w: basic auth needs %s and %s", ErrMissingCredentials, KeyUsername, KeyPassword)
		}
	case config.AuthModeBearer:
		if c.Token == "" {
			return fmt.Errorf("%w: bearer auth needs %s", ErrMissingCredentials, KeyToken)
		}
	case config.AuthModeAPIKey:
		if c.APIKey == "" {
			return fmt.Errorf("%w: apikey auth needs %s", ErrMissingCredentials, KeyAPIKey)
		}
	case config.AuthModeNone:
	default:
		return fmt.Errorf("unknown auth mode %q", c.Mode)
	}
	return nil
}

// Apply attaches the authentication header for the configured mode.
// The Basic value is encoded on every call.
func (c *Credentials) Apply(h http.Header) {
	switch c.Mode {
	case config.AuthModeBasic:
		h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.Username+":"+c.Password)))
	case config.AuthModeBearer:
		h.Set("Authorization", "Bearer "+c.Token)
	case config.AuthModeAPIKey:
		h.Set(c.APIKeyHeader, c.APIKey)
	}
}

// Enabled reports whether an authentication header is sent upstream.
func (c *Credentials) Enabled() bool {
	return c.Mode != config.AuthModeNone
}

// AuthType is the human-readable scheme name echoed in envelopes.
func (c *Credentials) AuthType() string {
	switch c.Mode {
	case config.AuthModeBasic:
		return "Basic"
	case config.AuthModeBearer:
		return "Bearer"
	case config.AuthModeAPIKey:
		return "ApiKey"
	}
	return "None"
}

// MaskedUsername hides all but the first three characters of the local part,
// keeping the mail domain: "kenoby@example.it" becomes "ken***@example.it".
func (c *Credentials) MaskedUsername() string {
	return MaskUsername(c.Username)
}

// MaskUsername is MaskedUsername for an arbitrary value.
func MaskUsername(username string) string {
	if username == "" {
		return ""
	}
	local, domain, hasDomain := strings.Cut(username, "@")
	runes := []rune(local)
	prefix := ""
	if len(runes) > 3 {
		prefix = string(runes[:3])
	}
	if hasDomain {
		return prefix + "***@" + domain
	}
	return prefix + "***"
}
