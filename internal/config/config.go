// Package config reads service and bridge settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// SSO configures the hand-off Lambda.
type SSO struct {
	StateTable      string        `envconfig:"STATE_TABLE" required:"true"`
	ParamPrefix     string        `envconfig:"PARAM_PREFIX" required:"true"`
	ProviderBaseURL string        `envconfig:"PROVIDER_BASE_URL" required:"true"`
	HostBaseURL     string        `envconfig:"HOST_BASE_URL" required:"true"`
	DashboardPath   string        `envconfig:"HOST_DASHBOARD_PATH" default:"/launches"`
	SessionCookie   string        `envconfig:"SESSION_COOKIE" default:"auth"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
}

// Bridge configures the in-page assistant bridge.
type Bridge struct {
	ProviderBaseURL string        `envconfig:"PROVIDER_BASE_URL" required:"true"`
	HostBaseURL     string        `envconfig:"HOST_BASE_URL" required:"true"`
	StorageKey      string        `envconfig:"BRIDGE_STORAGE_KEY" default:"assistant_bridge_token"`
	StoragePath     string        `envconfig:"BRIDGE_STORAGE_PATH"`
	AuthTimeout     time.Duration `envconfig:"BRIDGE_AUTH_TIMEOUT" default:"60s"`
	StylesheetURL   string        `envconfig:"BRIDGE_STYLESHEET_URL"`
	EditorSelector  string        `envconfig:"BRIDGE_EDITOR_SELECTOR"`
	ToolbarSelector string        `envconfig:"BRIDGE_TOOLBAR_SELECTOR"`
	RequestTimeout  time.Duration `envconfig:"BRIDGE_REQUEST_TIMEOUT" default:"30s"`
}

func LoadSSO() (SSO, error) {
	var cfg SSO
	if err := envconfig.Process("", &cfg); err != nil {
		return SSO{}, fmt.Errorf("config: load sso: %w", err)
	}
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	if cfg.ParamPrefix == "" {
		return SSO{}, fmt.Errorf("config: PARAM_PREFIX must not be empty")
	}
	if !strings.HasPrefix(cfg.DashboardPath, "/") {
		cfg.DashboardPath = "/" + cfg.DashboardPath
	}
	return cfg, nil
}

func LoadBridge() (Bridge, error) {
	var cfg Bridge
	if err := envconfig.Process("", &cfg); err != nil {
		return Bridge{}, fmt.Errorf("config: load bridge: %w", err)
	}
	return cfg, nil
}
