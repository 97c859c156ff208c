package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"assistant-bridge/internal/domain"
)

// ErrTokenRejected is returned for 401 and 403 from the validation endpoint.
var ErrTokenRejected = domain.ErrTokenRejected

type validateResponse struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	} `json:"user"`
	Organization struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"organization"`
}

// Validator checks hand-off tokens against the provider's validation
// endpoint. It never stores the token it is given.
type Validator struct {
	rest *resty.Client
}

func NewValidator(baseURL string, opts ...Option) (*Validator, error) {
	rc, err := newRest(baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &Validator{rest: rc}, nil
}

func (v *Validator) ValidateToken(ctx context.Context, token string) (domain.ProviderIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ProviderIdentity{}, errors.New("provider: token must not be empty")
	}
	const path = "/api/auth/validate"
	res, err := v.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		Get(path)
	if err != nil {
		return domain.ProviderIdentity{}, fmt.Errorf("provider: validate request failed: %w", err)
	}
	if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden {
		return domain.ProviderIdentity{}, ErrTokenRejected
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return domain.ProviderIdentity{}, &APIError{StatusCode: res.StatusCode(), Path: path, Body: truncate(res.Body())}
	}

	var payload validateResponse
	if err := json.Unmarshal(res.Body(), &payload); err != nil {
		return domain.ProviderIdentity{}, fmt.Errorf("provider: decode validate response: %w", err)
	}
	if payload.User.ID == "" || payload.Organization.ID == "" {
		return domain.ProviderIdentity{}, errors.New("provider: validate response missing user or organization id")
	}
	return domain.ProviderIdentity{
		UserID:   payload.User.ID,
		Email:    payload.User.Email,
		Name:     payload.User.Name,
		Role:     payload.User.Role,
		TenantID: payload.Organization.ID,
		Tenant:   payload.Organization.Name,
	}, nil
}
