package driven

import "context"

// CredentialStore defines the driven port for secret persistence outside the
// database (for example the operating system keyring).
type CredentialStore interface {
	// Set stores or replaces the secret for the given key.
	Set(ctx context.Context, key, secret string) error

	// Get retrieves the secret for the given key.
	// Returns ("", nil) if no secret exists for that key.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes the secret for the given key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
