package credentials

import (
	"context"
	"os"

	"focelda-proxy-go/internal/config"
)

// EnvSource reads credentials from environment variables named in the auth config.
type EnvSource struct {
	names map[string]string // secret key -> env var
}

// NewEnvSource creates an EnvSource.
func NewEnvSource(cfg config.AuthConfig) *EnvSource {
	return &EnvSource{names: map[string]string{
		KeyUsername: cfg.UsernameEnv,
		KeyPassword: cfg.PasswordEnv,
		KeyAPIKey:   cfg.APIKeyEnv,
		KeyToken:    cfg.TokenEnv,
	}}
}

// Name implements Source.
func (s *EnvSource) Name() string { return config.SourceEnv }

// Fetch implements Source. Unset or empty variables are left out.
func (s *EnvSource) Fetch(_ context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s.names))
	for key, env := range s.names {
		if env == "" {
			continue
		}
		if v, ok := os.LookupEnv(env); ok && v != "" {
			out[key] = v
		}
	}
	return out, nil
}
