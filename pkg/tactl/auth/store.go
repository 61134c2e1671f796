package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devtrack/TradingAgents/pkg/metrics"
)

// Store persists the single session Token of the local profile.
type Store interface {
	Save(token Token) error
	// Load returns false when no token is stored.
	Load() (Token, bool, error)
	Clear() error
}

type StorageMode string

const (
	StorageAuto     StorageMode = "auto"
	StorageKeychain StorageMode = "keychain"
	StorageFile     StorageMode = "file"
)

func ParseStorageMode(s string) (StorageMode, error) {
	switch StorageMode(s) {
	case "", StorageAuto:
		return StorageAuto, nil
	case StorageKeychain, StorageFile:
		return StorageMode(s), nil
	default:
		return "", fmt.Errorf("unsupported token storage %q (expected auto, keychain or file)", s)
	}
}

// TokenStore writes to the secure backend when it was available at
// construction and to the file backend otherwise. Reads consult both.
// Concurrent writers from separate processes are not coordinated; the last
// Save wins.
type TokenStore struct {
	secure   SecretBackend
	fallback SecretBackend
	log      *zap.SugaredLogger
}

type StoreOption func(*TokenStore)

func WithStoreLogger(log *zap.SugaredLogger) StoreOption {
	return func(s *TokenStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewTokenStore probes secure once. A nil or unavailable secure backend
// leaves the store file-only.
func NewTokenStore(secure, fallback SecretBackend, opts ...StoreOption) *TokenStore {
	s := &TokenStore{fallback: fallback, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(s)
	}
	if secure != nil {
		if secure.Available() {
			s.secure = secure
		} else {
			s.log.Debugw("Secure token storage unavailable, using file storage", "backend", secure.Name())
		}
	}
	return s
}

// OpenTokenStore builds the store for the given mode with the default keyring
// entry and a file at path.
func OpenTokenStore(mode StorageMode, path string, log *zap.SugaredLogger) (*TokenStore, error) {
	file := NewFileBackend(path)
	switch mode {
	case StorageFile:
		return NewTokenStore(nil, file, WithStoreLogger(log)), nil
	case StorageKeychain:
		kr := NewKeyringBackend()
		if !kr.Available() {
			return nil, newError(ErrTokenStorage, "keychain storage requested but no keyring is available", nil)
		}
		return NewTokenStore(kr, file, WithStoreLogger(log)), nil
	default:
		return NewTokenStore(NewKeyringBackend(), file, WithStoreLogger(log)), nil
	}
}

// Backend names where Save will write.
func (s *TokenStore) Backend() string {
	return s.preferred().Name()
}

func (s *TokenStore) preferred() SecretBackend {
	if s.secure != nil {
		return s.secure
	}
	return s.fallback
}

func (s *TokenStore) Save(token Token) error {
	backend := s.preferred()
	data, err := encodeToken(token)
	if err != nil {
		return newError(ErrTokenStorage, "encode token", err)
	}
	err = backend.Write(data)
	metrics.TokenStoreOperations.WithLabelValues(backend.Name(), "save", metrics.Result(err)).Inc()
	if err != nil {
		return newError(ErrTokenStorage, "write "+backend.Name(), err)
	}
	s.log.Debugw("Stored token", "backend", backend.Name(), "expiresAt", token.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}

func (s *TokenStore) Load() (Token, bool, error) {
	if s.secure != nil {
		token, ok, err := s.loadFrom(s.secure)
		if err != nil || ok {
			return token, ok, err
		}
	}
	return s.loadFrom(s.fallback)
}

func (s *TokenStore) loadFrom(backend SecretBackend) (Token, bool, error) {
	data, err := backend.Read()
	if errors.Is(err, ErrSecretNotFound) {
		metrics.TokenStoreOperations.WithLabelValues(backend.Name(), "load", "miss").Inc()
		return Token{}, false, nil
	}
	if err != nil {
		metrics.TokenStoreOperations.WithLabelValues(backend.Name(), "load", "error").Inc()
		return Token{}, false, newError(ErrTokenStorage, "read "+backend.Name(), err)
	}
	token, err := decodeToken(data)
	metrics.TokenStoreOperations.WithLabelValues(backend.Name(), "load", metrics.Result(err)).Inc()
	if err != nil {
		return Token{}, false, newError(ErrTokenStorage, "malformed token in "+backend.Name(), err)
	}
	return token, true, nil
}

// Clear removes the token from every backend. Missing entries are not errors.
func (s *TokenStore) Clear() error {
	var errs []error
	for _, backend := range []SecretBackend{s.secure, s.fallback} {
		if backend == nil {
			continue
		}
		err := backend.Delete()
		if errors.Is(err, ErrSecretNotFound) {
			err = nil
		}
		metrics.TokenStoreOperations.WithLabelValues(backend.Name(), "clear", metrics.Result(err)).Inc()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		}
	}
	if len(errs) > 0 {
		return newError(ErrTokenStorage, "clear", errors.Join(errs...))
	}
	return nil
}

type storedToken struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken *string `json:"refresh_token"`
	TokenType    string  `json:"token_type"`
	Scope        *string `json:"scope"`
	ExpiresAt    string  `json:"expires_at"`
}

// Older caches wrote naive ISO-8601 timestamps without a zone.
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func encodeToken(token Token) ([]byte, error) {
	stored := storedToken{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresAt:   token.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	if token.RefreshToken != "" {
		stored.RefreshToken = &token.RefreshToken
	}
	if token.Scope != "" {
		stored.Scope = &token.Scope
	}
	return json.MarshalIndent(stored, "", "  ")
}

func decodeToken(data []byte) (Token, error) {
	var stored storedToken
	if err := json.Unmarshal(data, &stored); err != nil {
		return Token{}, fmt.Errorf("failed to parse token cache: %w", err)
	}
	if stored.AccessToken == "" {
		return Token{}, errors.New("token cache missing access_token")
	}
	expiresAt, err := parseExpiry(stored.ExpiresAt)
	if err != nil {
		return Token{}, err
	}
	token := Token{
		AccessToken: stored.AccessToken,
		TokenType:   stored.TokenType,
		ExpiresAt:   expiresAt,
	}
	if token.TokenType == "" {
		token.TokenType = defaultTokenType
	}
	if stored.RefreshToken != nil {
		token.RefreshToken = *stored.RefreshToken
	}
	if stored.Scope != nil {
		token.Scope = *stored.Scope
	}
	return token, nil
}

func parseExpiry(value string) (time.Time, error) {
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid expires_at %q", value)
}
