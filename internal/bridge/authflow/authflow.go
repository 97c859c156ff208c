// Package authflow obtains a provider credential through the provider's login
// popup and a single-shot cross-window message.
package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"assistant-bridge/internal/domain"
)

const (
	DefaultTimeout = 60 * time.Second
	tokenMessage   = "provider-token"
	popupPath      = "/auth/popup"
)

var (
	ErrPopupBlocked = errors.New("authflow: popup blocked")
	ErrAuthTimeout  = errors.New("authflow: timed out waiting for provider login")
)

// Message is a cross-window message as delivered to the opener.
type Message struct {
	Origin string
	Data   json.RawMessage
}

type Popup interface {
	Close() error
}

// Opener opens a popup window at url. A nil popup or an error means the
// browser refused to open it.
type Opener interface {
	Open(url string) (Popup, error)
}

// Bus delivers cross-window messages. The returned func unsubscribes.
type Bus interface {
	Subscribe() (<-chan Message, func())
}

type tokenPayload struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Flow runs the popup handshake.
type Flow struct {
	opener   Opener
	bus      Bus
	origin   string
	loginURL string
	timeout  time.Duration
}

type Option func(*Flow)

func WithTimeout(d time.Duration) Option {
	return func(f *Flow) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// New builds a Flow that only trusts messages from providerBaseURL's origin.
// hostOrigin is passed to the popup so it knows where to post the token.
func New(opener Opener, bus Bus, providerBaseURL, hostOrigin string, opts ...Option) (*Flow, error) {
	if opener == nil {
		return nil, errors.New("authflow: opener must not be nil")
	}
	if bus == nil {
		return nil, errors.New("authflow: bus must not be nil")
	}
	origin, err := Origin(providerBaseURL)
	if err != nil {
		return nil, err
	}
	f := &Flow{
		opener:   opener,
		bus:      bus,
		origin:   origin,
		loginURL: loginURL(origin, hostOrigin),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Authenticate opens the popup and waits for the token message. The listener
// and timer are released on every return path.
func (f *Flow) Authenticate(ctx context.Context) (domain.Credential, error) {
	msgs, unsubscribe := f.bus.Subscribe()
	defer unsubscribe()

	popup, err := f.opener.Open(f.loginURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPopupBlocked, err)
	}
	if popup == nil {
		return "", ErrPopupBlocked
	}

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = popup.Close()
			return "", ctx.Err()
		case <-timer.C:
			_ = popup.Close()
			return "", ErrAuthTimeout
		case msg, ok := <-msgs:
			if !ok {
				_ = popup.Close()
				return "", errors.New("authflow: message bus closed")
			}
			token, accepted := f.accept(msg)
			if !accepted {
				continue
			}
			_ = popup.Close()
			return domain.Credential(token), nil
		}
	}
}

// accept reports whether msg is a token message from the provider origin.
func (f *Flow) accept(msg Message) (string, bool) {
	origin, err := Origin(msg.Origin)
	if err != nil || origin != f.origin {
		return "", false
	}
	var p tokenPayload
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		return "", false
	}
	if p.Type != tokenMessage {
		return "", false
	}
	token := strings.TrimSpace(p.Token)
	if token == "" {
		return "", false
	}
	return token, true
}

// Origin normalizes a URL to scheme://host[:port].
func Origin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("authflow: parse origin %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("authflow: origin %q needs scheme and host", raw)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}

func loginURL(providerOrigin, hostOrigin string) string {
	q := url.Values{}
	if hostOrigin = strings.TrimSpace(hostOrigin); hostOrigin != "" {
		q.Set("origin", hostOrigin)
	}
	if len(q) == 0 {
		return providerOrigin + popupPath
	}
	return providerOrigin + popupPath + "?" + q.Encode()
}
