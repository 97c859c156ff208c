package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"assistant-bridge/internal/domain"
)

type TokenStore interface {
	Get() (domain.Credential, bool)
	Set(cred domain.Credential) error
	Clear() error
}

type Authenticator interface {
	Authenticate(ctx context.Context) (domain.Credential, error)
}

// Credentials is the provider client's token source: the stored credential
// while it is valid, otherwise a fresh popup login.
type Credentials struct {
	mu    sync.Mutex
	store TokenStore
	auth  Authenticator
}

func NewCredentials(store TokenStore, auth Authenticator) (*Credentials, error) {
	if store == nil {
		return nil, errors.New("bridge: token store must not be nil")
	}
	if auth == nil {
		return nil, errors.New("bridge: authenticator must not be nil")
	}
	return &Credentials{store: store, auth: auth}, nil
}

func (c *Credentials) Token(ctx context.Context) (domain.Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cred, ok := c.store.Get(); ok {
		return cred, nil
	}
	cred, err := c.auth.Authenticate(ctx)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(cred); err != nil {
		return "", fmt.Errorf("bridge: persist credential: %w", err)
	}
	return cred, nil
}

func (c *Credentials) Invalidate() error {
	return c.store.Clear()
}
