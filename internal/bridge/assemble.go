package bridge

import (
	"errors"
	"fmt"
	"net/http"

	"assistant-bridge/internal/bridge/authflow"
	"assistant-bridge/internal/bridge/localstore"
	"assistant-bridge/internal/bridge/page"
	"assistant-bridge/internal/bridge/panel"
	"assistant-bridge/internal/bridge/tokenstore"
	"assistant-bridge/internal/config"
	"assistant-bridge/internal/integrations/host"
	"assistant-bridge/internal/integrations/provider"
)

// Environment holds what the embedding page provides. Storage and Bus are
// optional; the rest is required.
type Environment struct {
	Storage   tokenstore.Storage
	Opener    authflow.Opener
	Bus       authflow.Bus
	Clipboard host.Clipboard
	Emitter   host.Emitter
	Document  *page.Document
	// HTTPClient carries the page's cookies to the host. The provider gets
	// its own client.
	HTTPClient *http.Client
	Notifier   Notifier
}

// Assemble wires a Controller from configuration and the page environment.
func Assemble(cfg config.Bridge, env Environment) (*Controller, error) {
	if env.Document == nil {
		return nil, errors.New("bridge: document must not be nil")
	}

	storage := env.Storage
	if storage == nil {
		if cfg.StoragePath != "" {
			f, err := localstore.OpenFile(cfg.StoragePath)
			if err != nil {
				return nil, fmt.Errorf("bridge: open storage: %w", err)
			}
			storage = f
		} else {
			storage = localstore.NewMemory()
		}
	}
	store, err := tokenstore.New(storage, tokenstore.WithKey(cfg.StorageKey))
	if err != nil {
		return nil, err
	}

	bus := env.Bus
	if bus == nil {
		bus = authflow.NewChannelBus()
	}
	hostOrigin, err := authflow.Origin(cfg.HostBaseURL)
	if err != nil {
		return nil, fmt.Errorf("bridge: host origin: %w", err)
	}
	flow, err := authflow.New(env.Opener, bus, cfg.ProviderBaseURL, hostOrigin, authflow.WithTimeout(cfg.AuthTimeout))
	if err != nil {
		return nil, err
	}

	creds, err := NewCredentials(store, flow)
	if err != nil {
		return nil, err
	}
	client, err := provider.NewClient(cfg.ProviderBaseURL, creds, provider.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return nil, err
	}

	hostOpts := []host.Option{}
	if env.Emitter != nil {
		hostOpts = append(hostOpts, host.WithEmitter(env.Emitter))
	}
	if env.HTTPClient != nil {
		hostOpts = append(hostOpts, host.WithHTTPClient(env.HTTPClient))
	}
	hb, err := host.New(cfg.HostBaseURL, env.Document, env.Clipboard, hostOpts...)
	if err != nil {
		return nil, err
	}

	return New(Deps{
		Page:     env.Document,
		Provider: client,
		Host:     hb,
		Notifier: env.Notifier,
		Panel:    panel.New(),
	}, cfg.StylesheetURL)
}

// SelectorsFrom maps configured CSS selectors onto the document's selector
// set; empty values keep the defaults.
func SelectorsFrom(cfg config.Bridge) page.Selectors {
	return page.Selectors{Editor: cfg.EditorSelector, Toolbar: cfg.ToolbarSelector}
}
