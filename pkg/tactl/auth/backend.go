package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const (
	DefaultKeyringService = "tradingagents-auth"
	DefaultKeyringUser    = "tokens"
)

// ErrSecretNotFound is returned by a SecretBackend that holds no entry.
var ErrSecretNotFound = errors.New("secret not found")

// SecretBackend is one place a serialized Token can live.
type SecretBackend interface {
	Name() string
	// Available is probed once when a TokenStore is constructed.
	Available() bool
	Read() ([]byte, error)
	Write(data []byte) error
	Delete() error
}

type KeyringBackend struct {
	Service string
	User    string
}

func NewKeyringBackend() *KeyringBackend {
	return &KeyringBackend{Service: DefaultKeyringService, User: DefaultKeyringUser}
}

func (k *KeyringBackend) Name() string { return "keyring" }

// Available reports whether a secret service answers at all. A missing entry
// still counts as available.
func (k *KeyringBackend) Available() bool {
	_, err := keyring.Get(k.Service, k.User)
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

func (k *KeyringBackend) Read() ([]byte, error) {
	secret, err := keyring.Get(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(secret), nil
}

func (k *KeyringBackend) Write(data []byte) error {
	return keyring.Set(k.Service, k.User, string(data))
}

func (k *KeyringBackend) Delete() error {
	err := keyring.Delete(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrSecretNotFound
	}
	return err
}

// FileBackend keeps the secret in a single file readable only by its owner.
type FileBackend struct {
	Path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

func (f *FileBackend) Name() string { return "file" }

func (f *FileBackend) Available() bool { return f.Path != "" }

func (f *FileBackend) Read() ([]byte, error) {
	content, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

// Write replaces the file atomically: data goes to a temp file in the same
// directory which is then renamed over the target.
func (f *FileBackend) Write(data []byte) (err error) {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to restrict token file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return os.Chmod(f.Path, 0o600)
}

func (f *FileBackend) Delete() error {
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrSecretNotFound
	}
	return err
}
