package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps credentials in a local JSON file, one encrypted blob per
// user key. Meant for development and single-machine deployments; all
// access is serialized under one lock so per-key writes stay atomic.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	enc   *Encryptor
	blobs map[string]string
}

// NewFileStore loads (or creates) the credential file at path.
func NewFileStore(path string, enc *Encryptor) (*FileStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	store := &FileStore{path: abs, enc: enc, blobs: make(map[string]string)}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.blobs); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	return nil
}

// flush writes the full map out via a temp file and rename so a crash
// mid-write cannot leave a torn file.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.blobs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Save stores or replaces the credential for key.
func (s *FileStore) Save(ctx context.Context, key string, cred *Credential) error {
	blob, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	encrypted, err := s.enc.Encrypt(blob)
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.blobs[key]
	s.blobs[key] = encrypted
	if err := s.flush(); err != nil {
		// Aborted operation leaves no trace; the map must not hold state
		// the file does not.
		if existed {
			s.blobs[key] = prev
		} else {
			delete(s.blobs, key)
		}
		return err
	}
	return nil
}

// Get returns the stored credential for key, or ErrNotFound.
func (s *FileStore) Get(ctx context.Context, key string) (*Credential, error) {
	s.mu.RLock()
	encrypted, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
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
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.blobs[key]
	if !ok {
		return nil
	}
	delete(s.blobs, key)
	if err := s.flush(); err != nil {
		s.blobs[key] = prev
		return err
	}
	return nil
}

// Ping reports whether the credential file's directory is writable.
func (s *FileStore) Ping(ctx context.Context) error {
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
