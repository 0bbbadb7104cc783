// Package keyring stores secrets in the operating system keyring.
package keyring

import (
	"context"
	"errors"
	"fmt"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// DefaultService is the keyring service name secrets are filed under.
const DefaultService = "repodigest"

// GitHubTokenKey is the key of the GitHub API token.
const GitHubTokenKey = "github_token"

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*Store)(nil)

var (
	keyringSet    = gokeyring.Set
	keyringGet    = gokeyring.Get
	keyringDelete = gokeyring.Delete
)

// Store implements driven.CredentialStore on top of the system keyring.
type Store struct {
	service string
}

// NewStore returns a Store filing secrets under service. An empty service
// uses DefaultService.
func NewStore(service string) *Store {
	if service == "" {
		service = DefaultService
	}
	return &Store{service: service}
}

// Set stores or replaces the secret for key.
func (s *Store) Set(_ context.Context, key, secret string) error {
	if err := keyringSet(s.service, key, secret); err != nil {
		return fmt.Errorf("keyring set %q: %w", key, err)
	}
	return nil
}

// Get returns the secret for key, or "" when none is stored.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	secret, err := keyringGet(s.service, key)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %q: %w", key, err)
	}
	return secret, nil
}

// Delete removes the secret for key. A missing key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	err := keyringDelete(s.service, key)
	if err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %q: %w", key, err)
	}
	return nil
}
