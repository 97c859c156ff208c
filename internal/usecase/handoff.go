package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"assistant-bridge/internal/domain"
	"assistant-bridge/internal/repository"
)

const (
	defaultSessionTTL    = 7 * 24 * time.Hour
	defaultDashboardPath = "/launches"
	signingKeyParam      = "/session-signing-key"
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (domain.ProviderIdentity, error)
}

type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

type AccountStore interface {
	GetWorkspace(ctx context.Context, tenantID string) (domain.Workspace, bool, error)
	CreateWorkspace(ctx context.Context, ws domain.Workspace) error
	GetUser(ctx context.Context, providerUserID string) (domain.HostUser, bool, error)
	SaveLogin(ctx context.Context, user domain.HostUser, m domain.Membership) error
}

type HandoffConfig struct {
	ParamPrefix   string
	HostBaseURL   string
	DashboardPath string
	SessionTTL    time.Duration
}

// HandoffService turns a provider token into a host session, provisioning
// the user and its tenant workspace on the way.
type HandoffService struct {
	validator   TokenValidator
	secrets     SecretGetter
	accounts    AccountStore
	paramPrefix string
	redirectURL string
	sessionTTL  time.Duration
	now         func() time.Time

	cacheMu    sync.RWMutex
	signingKey []byte
}

type HandoffInput struct {
	Token string
}

type HandoffOutput struct {
	Session     string
	ExpiresAt   time.Time
	RedirectURL string
	UserID      string
	WorkspaceID string
	Role        domain.HostRole
}

func NewHandoffService(v TokenValidator, secrets SecretGetter, accounts AccountStore, cfg HandoffConfig) (*HandoffService, error) {
	if v == nil {
		return nil, errors.New("usecase: token validator must not be nil")
	}
	if secrets == nil {
		return nil, errors.New("usecase: secret getter must not be nil")
	}
	if accounts == nil {
		return nil, errors.New("usecase: account store must not be nil")
	}
	prefix := strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	if prefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.HostBaseURL), "/")
	if base == "" {
		return nil, errors.New("usecase: host base URL must not be empty")
	}
	path := strings.TrimSpace(cfg.DashboardPath)
	if path == "" {
		path = defaultDashboardPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &HandoffService{
		validator:   v,
		secrets:     secrets,
		accounts:    accounts,
		paramPrefix: prefix,
		redirectURL: base + path,
		sessionTTL:  ttl,
		now:         time.Now,
	}, nil
}

func (s *HandoffService) Handoff(ctx context.Context, in HandoffInput) (HandoffOutput, error) {
	token := strings.TrimSpace(in.Token)
	if token == "" {
		return HandoffOutput{}, newError(ErrorInvalidInput, "missing_token", nil)
	}

	identity, err := s.validator.ValidateToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenRejected) {
			return HandoffOutput{}, newError(ErrorUnauthorized, "provider_token_rejected", err)
		}
		return HandoffOutput{}, newError(ErrorUpstream, "provider_validate_error", err)
	}

	key, err := s.ensureSigningKey(ctx)
	if err != nil {
		return HandoffOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	now := s.now().UTC()
	ws, err := s.ensureWorkspace(ctx, identity, now)
	if err != nil {
		return HandoffOutput{}, newError(ErrorInternal, "dynamodb_workspace_error", err)
	}

	user, found, err := s.accounts.GetUser(ctx, identity.UserID)
	if err != nil {
		return HandoffOutput{}, newError(ErrorInternal, "dynamodb_user_error", err)
	}
	if !found {
		user = repository.NewHostUser(newUUID(), identity, now)
	} else {
		user.Email = identity.Email
		user.Name = identity.Name
	}

	role := MapRole(identity.Role)
	if err := s.accounts.SaveLogin(ctx, user, repository.NewMembership(ws, user, role, now)); err != nil {
		return HandoffOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}

	expires := now.Add(s.sessionTTL)
	session, err := signSession(key, user.ID, ws.ID, role, now, expires)
	if err != nil {
		return HandoffOutput{}, newError(ErrorInternal, "session_sign_error", err)
	}

	return HandoffOutput{
		Session:     session,
		ExpiresAt:   expires,
		RedirectURL: s.redirectURL,
		UserID:      user.ID,
		WorkspaceID: ws.ID,
		Role:        role,
	}, nil
}

// ensureWorkspace returns the tenant's workspace, creating it on first login.
// When a concurrent login wins the create, the winner's record is used.
func (s *HandoffService) ensureWorkspace(ctx context.Context, identity domain.ProviderIdentity, now time.Time) (domain.Workspace, error) {
	ws, ok, err := s.accounts.GetWorkspace(ctx, identity.TenantID)
	if err != nil {
		return domain.Workspace{}, err
	}
	if ok {
		return ws, nil
	}

	name := strings.TrimSpace(identity.Tenant)
	if name == "" {
		name = identity.TenantID
	}
	ws = repository.NewWorkspace(newUUID(), identity.TenantID, name, now)
	err = s.accounts.CreateWorkspace(ctx, ws)
	if err == nil {
		return ws, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return domain.Workspace{}, err
	}
	ws, ok, err = s.accounts.GetWorkspace(ctx, identity.TenantID)
	if err != nil {
		return domain.Workspace{}, err
	}
	if !ok {
		return domain.Workspace{}, fmt.Errorf("usecase: workspace for tenant %s missing after conflict", identity.TenantID)
	}
	return ws, nil
}

func (s *HandoffService) ensureSigningKey(ctx context.Context) ([]byte, error) {
	s.cacheMu.RLock()
	if s.signingKey != nil {
		key := s.signingKey
		s.cacheMu.RUnlock()
		return key, nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.signingKey != nil {
		return s.signingKey, nil
	}

	v, err := s.secrets.GetSecret(ctx, s.paramPrefix+signingKeyParam)
	if err != nil {
		return nil, fmt.Errorf("usecase: load session signing key: %w", err)
	}
	s.signingKey = []byte(v)
	return s.signingKey, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
