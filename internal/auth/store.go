package auth

import (
	"context"
	"fmt"
	"os"
)

// CredentialStore is the sole owner of durable credential state. One
// credential per user key; Save has upsert semantics and the store, not
// the application, is the serialization point for concurrent writes.
type CredentialStore interface {
	// Save stores or replaces the credential for key.
	Save(ctx context.Context, key string, cred *Credential) error

	// Get returns the most recently saved credential for key, or
	// ErrNotFound. A store that cannot be reached returns
	// ErrStoreUnavailable, never a silent absence.
	Get(ctx context.Context, key string) (*Credential, error)

	// Delete removes any credential for key. Deleting an absent key
	// succeeds silently.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// NewCredentialStoreFromEnv selects the store backend: Postgres when
// DATABASE_URL is set, otherwise a local JSON file.
func NewCredentialStoreFromEnv(enc *Encryptor) (CredentialStore, error) {
	if connString := os.Getenv("DATABASE_URL"); connString != "" {
		return NewPostgresStore(connString, enc)
	}

	path := os.Getenv("CREDENTIALS_FILE_PATH")
	if path == "" {
		path = "credentials.json"
	}
	store, err := NewFileStore(path, enc)
	if err != nil {
		return nil, fmt.Errorf("file credential store: %w", err)
	}
	return store, nil
}
