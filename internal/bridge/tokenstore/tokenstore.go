// Package tokenstore keeps the provider bearer credential in local storage
// and decides whether it is still usable.
package tokenstore

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"assistant-bridge/internal/domain"
)

// DefaultKey is the storage key holding the credential.
const DefaultKey = "assistant_bridge_token"

// Storage is the local key/value backend. localstore.File and
// localstore.Memory satisfy it.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store validates and persists one credential under a fixed key.
type Store struct {
	storage Storage
	key     string
	now     func() time.Time
	parser  *jwt.Parser
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) {
		if k := strings.TrimSpace(key); k != "" {
			s.key = k
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(storage Storage, opts ...Option) (*Store, error) {
	if storage == nil {
		return nil, errors.New("tokenstore: storage must not be nil")
	}
	s := &Store{
		storage: storage,
		key:     DefaultKey,
		now:     time.Now,
		parser:  jwt.NewParser(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the stored credential only when its expiry claim decodes and
// lies in the future. Anything it cannot decode counts as expired.
func (s *Store) Get() (domain.Credential, bool) {
	raw, ok, err := s.storage.Get(s.key)
	if err != nil {
		slog.Warn("tokenstore: read failed", "key", s.key, "err", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	exp, err := s.expiry(raw)
	if err != nil {
		return "", false
	}
	if !exp.After(s.now()) {
		return "", false
	}
	return domain.Credential(raw), true
}

// Set replaces any stored credential.
func (s *Store) Set(cred domain.Credential) error {
	if strings.TrimSpace(string(cred)) == "" {
		return errors.New("tokenstore: credential must not be empty")
	}
	if err := s.storage.Set(s.key, string(cred)); err != nil {
		return fmt.Errorf("tokenstore: set: %w", err)
	}
	return nil
}

func (s *Store) Clear() error {
	if err := s.storage.Delete(s.key); err != nil {
		return fmt.Errorf("tokenstore: clear: %w", err)
	}
	return nil
}

// expiry reads the exp claim without verifying the signature; the provider
// is the only party that can verify it.
func (s *Store) expiry(raw string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := s.parser.ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, fmt.Errorf("tokenstore: decode: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("tokenstore: missing exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
