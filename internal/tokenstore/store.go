package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrNotFound reports that no backend key is stored yet.
var ErrNotFound = errors.New("no backend key stored")

// ErrReadOnly reports a write attempt against a read-only store.
var ErrReadOnly = errors.New("store is read-only")

// Store reads and writes the backend API key. Write with an empty value
// clears the stored key.
type Store interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, key string) error
}

// EnvStore reads the key from an environment variable. Writes are rejected;
// the environment belongs to the process manager, not to us.
type EnvStore struct {
	Var string
}

// Read returns the variable's value, or ErrNotFound when unset or blank.
func (s *EnvStore) Read(_ context.Context) (string, error) {
	value := strings.TrimSpace(os.Getenv(s.Var))
	if value == "" {
		return "", fmt.Errorf("%w: environment variable %s is not set", ErrNotFound, s.Var)
	}
	return value, nil
}

// Write always fails with ErrReadOnly.
func (s *EnvStore) Write(_ context.Context, _ string) error {
	return fmt.Errorf("%w: cannot write environment variable %s", ErrReadOnly, s.Var)
}

// FileStore keeps the key in a plain file, created with 0600 permissions.
type FileStore struct {
	Path string
}

// Read returns the trimmed file contents, or ErrNotFound when the file is
// missing or empty.
func (s *FileStore) Read(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s does not exist", ErrNotFound, s.Path)
	}
	if err != nil {
		return "", fmt.Errorf("reading key file: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNotFound, s.Path)
	}
	return key, nil
}

// Write stores the key, creating parent directories as needed. An empty key
// removes the file.
func (s *FileStore) Write(_ context.Context, key string) error {
	if key == "" {
		if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing key file: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

// KeyringStore keeps the key in the OS keyring.
type KeyringStore struct {
	Service string
	User    string
}

// Read returns the keyring entry, or ErrNotFound when absent.
func (s *KeyringStore) Read(_ context.Context) (string, error) {
	key, err := keyring.Get(s.Service, s.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: no keyring entry for %s/%s", ErrNotFound, s.Service, s.User)
	}
	if err != nil {
		return "", fmt.Errorf("reading keyring: %w", err)
	}
	if key == "" {
		return "", fmt.Errorf("%w: keyring entry for %s/%s is empty", ErrNotFound, s.Service, s.User)
	}
	return key, nil
}

// Write stores the key in the keyring. An empty key deletes the entry.
func (s *KeyringStore) Write(_ context.Context, key string) error {
	if key == "" {
		if err := keyring.Delete(s.Service, s.User); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("deleting keyring entry: %w", err)
		}
		return nil
	}
	if err := keyring.Set(s.Service, s.User, key); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	return nil
}
