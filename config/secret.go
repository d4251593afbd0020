package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "sewstat"
	keyringUser    = "source-api-token"
)

// ErrTokenNotFound is returned when no token is stored in the keyring
var ErrTokenNotFound = errors.New("source api token not found in keyring")

// SourceToken returns the bearer token for the upstream API. The
// SOURCE_API_TOKEN variable wins over the OS keyring; an unavailable
// keyring yields an empty token.
func SourceToken() string {
	if token := os.Getenv("SOURCE_API_TOKEN"); token != "" {
		return token
	}
	token, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		return ""
	}
	return token
}

// SetSourceToken stores the upstream API token in the OS keyring
func SetSourceToken(token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return nil
}

// DeleteSourceToken removes the upstream API token from the OS keyring
func DeleteSourceToken() error {
	err := keyring.Delete(keyringService, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}
