package secretmanager

import (
	"os"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

// ProvideVault builds a client from VAULT_ADDR and VAULT_TOKEN. Without
// VAULT_ADDR it returns nil and configuration comes from files and the
// environment only.
func ProvideVault() (*vault.Client, error) {
	if os.Getenv("VAULT_ADDR") == "" {
		zap.L().Info("vault not configured, skipping secret overlay")
		return nil, nil
	}

	client, err := vault.New(
		vault.WithEnvironment(),
	)
	if err != nil {
		return nil, err
	}

	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		if err := client.SetToken(token); err != nil {
			return nil, err
		}
	}

	return client, nil
}
