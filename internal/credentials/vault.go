package credentials

import (
	"context"
	"errors"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"

	"focelda-proxy-go/internal/config"
)

// ErrSecretNotFound is returned when the configured secret path holds no data.
var ErrSecretNotFound = errors.New("secret not found")

// VaultSource reads credentials from a Vault KV v2 secret. The client picks up
// VAULT_TOKEN (and the other standard VAULT_* variables) from the environment.
type VaultSource struct {
	client *vaultapi.Client
	mount  string
	path   string
}

// NewVaultSource creates a VaultSource.
func NewVaultSource(cfg config.VaultAuthConfig) (*VaultSource, error) {
	apiConfig := vaultapi.DefaultConfig()
	if apiConfig.Error != nil {
		return nil, fmt.Errorf("vault config: %w", apiConfig.Error)
	}
	if cfg.Address != "" {
		apiConfig.Address = cfg.Address
	}

	client, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	return &VaultSource{client: client, mount: cfg.Mount, path: cfg.Path}, nil
}

// Name implements Source.
func (s *VaultSource) Name() string { return config.SourceVault }

// Fetch implements Source.
func (s *VaultSource) Fetch(ctx context.Context) (map[string]string, error) {
	fullPath := fmt.Sprintf("%s/data/%s", s.mount, s.path)

	secret, err := s.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fullPath, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, fullPath)
	}

	// KV v2 wraps values in a "data" key; deleted versions have data: null.
	dataValue, hasData := secret.Data["data"]
	if hasData && dataValue == nil {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, fullPath)
	}
	data, ok := dataValue.(map[string]any)
	if !ok {
		data = secret.Data
	}

	out := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok && s != "" {
			out[k] = s
		}
	}
	return out, nil
}
