package config

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "ReviewScout"

	// KeyringPostgresItem is the key for the store password
	KeyringPostgresItem = "postgres-password"
)

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// SavePostgresPassword stores the store password in the OS keychain
func (km *KeyringManager) SavePostgresPassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if err := keyring.Set(KeyringService, KeyringPostgresItem, password); err != nil {
		km.logger.Error("failed to save postgres password to keychain", "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("postgres password saved to keychain", "service", KeyringService)
	return nil
}

// GetPostgresPassword retrieves the store password; "" when not set
func (km *KeyringManager) GetPostgresPassword() (string, error) {
	password, err := keyring.Get(KeyringService, KeyringPostgresItem)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get postgres password from keychain", "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	return password, nil
}

// DeletePostgresPassword removes the store password from the OS keychain
func (km *KeyringManager) DeletePostgresPassword() error {
	err := keyring.Delete(KeyringService, KeyringPostgresItem)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}
