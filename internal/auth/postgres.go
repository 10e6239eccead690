package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists credentials in a single user-keyed table. The
// row-level upsert makes concurrent saves for the same key last-writer-wins
// with no partial write observable.
type PostgresStore struct {
	db  *sql.DB
	enc *Encryptor
}

// NewPostgresStore opens the database, verifies connectivity and ensures
// the schema exists.
func NewPostgresStore(connString string, enc *Encryptor) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	// Pool limits sized for a single-process bot on a managed database.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresStore{db: db, enc: enc}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS user_credentials (
		user_id VARCHAR(255) PRIMARY KEY,
		credential_encrypted TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Save upserts the credential for key.
func (s *PostgresStore) Save(ctx context.Context, key string, cred *Credential) error {
	blob, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	encrypted, err := s.enc.Encrypt(blob)
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}

	query := `
		INSERT INTO user_credentials (user_id, credential_encrypted, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET
			credential_encrypted = EXCLUDED.credential_encrypted,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, encrypted); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the stored credential for key, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, key string) (*Credential, error) {
	var encrypted string
	query := `SELECT credential_encrypted FROM user_credentials WHERE user_id = $1`
	err := s.db.QueryRowContext(ctx, query, key).Scan(&encrypted)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	blob, err := s.enc.Decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential for %s: %w", key, err)
	}
	var cred Credential
	if err := json.Unmarshal(blob, &cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential for %s: %w", key, err)
	}
	return &cred, nil
}

// Delete removes the credential for key, if any.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_credentials WHERE user_id = $1`, key); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping tests the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
