// Package bridge coordinates the assistant panel embedded in the host's post
// editor: it keeps the launcher mounted, drives the provider conversation and
// hands generated content to the host.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"assistant-bridge/internal/bridge/authflow"
	"assistant-bridge/internal/bridge/panel"
	"assistant-bridge/internal/domain"
	"assistant-bridge/internal/integrations/provider"
)

// Page is the host document as the controller sees it.
type Page interface {
	EnsureStylesheet(href string) (bool, error)
	EditorPresent() bool
	HasLauncher() bool
	InjectLauncher() error
}

type Provider interface {
	ListAssistants(ctx context.Context) ([]domain.Assistant, error)
	CreateConversation(ctx context.Context, assistantID string) (domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]json.RawMessage, error)
	SendMessage(ctx context.Context, conversationID, text string) (json.RawMessage, error)
	FetchMediaBytes(ctx context.Context, url string) ([]byte, error)
}

type Host interface {
	InsertText(text string) bool
	UploadMedia(ctx context.Context, data []byte, filename string) (domain.HostMediaRecord, error)
}

// Notifier surfaces failures outside the message log: alerts block, toasts
// fade.
type Notifier interface {
	Alert(msg string)
	Toast(msg string)
}

type Deps struct {
	Page     Page
	Provider Provider
	Host     Host
	Notifier Notifier
	Panel    *panel.Panel
}

// Controller is the application context. Build one per page and hand it to
// whatever dispatches the page's events.
type Controller struct {
	page          Page
	provider      Provider
	host          Host
	notify        Notifier
	panel         *panel.Panel
	stylesheetURL string
}

func New(d Deps, stylesheetURL string) (*Controller, error) {
	if d.Page == nil {
		return nil, errors.New("bridge: page must not be nil")
	}
	if d.Provider == nil {
		return nil, errors.New("bridge: provider must not be nil")
	}
	if d.Host == nil {
		return nil, errors.New("bridge: host must not be nil")
	}
	if d.Notifier == nil {
		return nil, errors.New("bridge: notifier must not be nil")
	}
	p := d.Panel
	if p == nil {
		p = panel.New()
	}
	return &Controller{
		page:          d.Page,
		provider:      d.Provider,
		host:          d.Host,
		notify:        d.Notifier,
		panel:         p,
		stylesheetURL: stylesheetURL,
	}, nil
}

func (c *Controller) Panel() *panel.Panel {
	return c.panel
}

// Boot loads the stylesheet once and runs the first reconciliation.
func (c *Controller) Boot() error {
	if c.stylesheetURL != "" {
		if _, err := c.page.EnsureStylesheet(c.stylesheetURL); err != nil {
			return fmt.Errorf("bridge: load stylesheet: %w", err)
		}
	}
	_, err := c.Reconcile()
	return err
}

// OnMutation is the hook for every batch of host DOM changes.
func (c *Controller) OnMutation() {
	if _, err := c.Reconcile(); err != nil {
		slog.Warn("bridge: reconcile failed", "err", err)
	}
}

// Reconcile mounts the launcher when the editor is present without one. It
// never tears anything down; a missing editor is a no-op.
func (c *Controller) Reconcile() (bool, error) {
	if !c.page.EditorPresent() || c.page.HasLauncher() {
		return false, nil
	}
	if err := c.page.InjectLauncher(); err != nil {
		return false, fmt.Errorf("bridge: inject launcher: %w", err)
	}
	return true, nil
}

// Toggle opens or closes the panel. The first open loads the assistant list;
// a failure there is raised as an alert.
func (c *Controller) Toggle(ctx context.Context) error {
	if !c.panel.Toggle() {
		return nil
	}
	if _, loaded := c.panel.Assistants(); loaded {
		return nil
	}
	list, err := c.provider.ListAssistants(ctx)
	if err != nil {
		slog.Warn("bridge: list assistants failed", "err", err)
		c.notify.Alert("Could not load assistants: " + describe(err))
		return err
	}
	c.panel.SetAssistants(list)
	return nil
}

// SelectAssistant starts a new conversation, replacing the active one and
// its history.
func (c *Controller) SelectAssistant(ctx context.Context, assistantID string) error {
	a, ok := c.panel.Assistant(assistantID)
	if !ok {
		a = domain.Assistant{ID: assistantID}
	}
	conv, err := c.provider.CreateConversation(ctx, assistantID)
	if err != nil {
		slog.Warn("bridge: create conversation failed", "assistantId", assistantID, "err", err)
		c.notify.Alert("Could not start a conversation: " + describe(err))
		return err
	}
	c.panel.SetConversation(a, conv)
	return nil
}

// Resume reattaches the panel to an existing conversation and rebuilds its
// log from the provider.
func (c *Controller) Resume(ctx context.Context, assistantID, conversationID string) error {
	a, ok := c.panel.Assistant(assistantID)
	if !ok {
		a = domain.Assistant{ID: assistantID}
	}
	c.panel.SetConversation(a, domain.Conversation{ID: conversationID})
	raws, err := c.provider.ListMessages(ctx, conversationID)
	if err != nil {
		slog.Warn("bridge: list messages failed", "conversationId", conversationID, "err", err)
		c.notify.Alert("Could not load the conversation: " + describe(err))
		return err
	}
	msgs := make([]domain.Message, 0, len(raws))
	for _, raw := range raws {
		r, err := ParseReply(raw)
		if err != nil {
			slog.Warn("bridge: skipping undecodable message", "conversationId", conversationID, "err", err)
			continue
		}
		msgs = append(msgs, domain.Message{Role: r.Role, Text: r.Text, Media: r.Media})
	}
	c.panel.ReplaceMessages(conversationID, msgs)
	return nil
}

// Send appends the user's text at once, then the assistant's reply or an
// inline error once the provider answers.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	conv, err := c.panel.BeginSend(text)
	if err != nil {
		return err
	}

	raw, err := c.provider.SendMessage(ctx, conv.ID, text)
	if err != nil {
		slog.Warn("bridge: send message failed", "conversationId", conv.ID, "err", err)
		c.panel.FinishSend(conv.ID, errorMessage(err))
		return err
	}
	reply, err := ParseReply(raw)
	if err != nil {
		slog.Warn("bridge: malformed reply", "conversationId", conv.ID, "err", err)
		c.panel.FinishSend(conv.ID, errorMessage(err))
		return err
	}
	c.panel.FinishSend(conv.ID, domain.Message{Role: domain.RoleAssistant, Text: reply.Text, Media: reply.Media})
	return nil
}

// QuickAction fills the input with a canned prompt and sends it.
func (c *Controller) QuickAction(ctx context.Context, action panel.QuickAction) error {
	prompt, ok := panel.Prompt(action)
	if !ok {
		return fmt.Errorf("bridge: unknown quick action %q", action)
	}
	c.panel.SetInput(prompt)
	return c.Send(ctx, prompt)
}

// InsertMessage puts a message's text into the active editor, or on the
// clipboard when there is none.
func (c *Controller) InsertMessage(index int) (bool, error) {
	msg, ok := c.panel.Message(index)
	if !ok {
		return false, fmt.Errorf("bridge: no message at index %d", index)
	}
	if c.host.InsertText(msg.Text) {
		return true, nil
	}
	c.notify.Toast("No open editor found. The text was copied to your clipboard.")
	return false, nil
}

// TransferMedia copies a generated asset from the provider into the host's
// media library.
func (c *Controller) TransferMedia(ctx context.Context, messageIndex, mediaIndex int) (domain.HostMediaRecord, error) {
	msg, ok := c.panel.Message(messageIndex)
	if !ok || mediaIndex < 0 || mediaIndex >= len(msg.Media) {
		return domain.HostMediaRecord{}, fmt.Errorf("bridge: no media at %d/%d", messageIndex, mediaIndex)
	}
	item := msg.Media[mediaIndex]

	data, err := c.provider.FetchMediaBytes(ctx, item.RemoteURL)
	if err != nil {
		slog.Warn("bridge: media fetch failed", "url", item.RemoteURL, "err", err)
		c.notify.Toast("Could not download " + item.Filename + ": " + describe(err))
		return domain.HostMediaRecord{}, err
	}
	rec, err := c.host.UploadMedia(ctx, data, item.Filename)
	if err != nil {
		slog.Warn("bridge: media upload failed", "filename", item.Filename, "err", err)
		c.notify.Toast("Could not add " + item.Filename + " to your library: " + describe(err))
		return domain.HostMediaRecord{}, err
	}
	c.notify.Toast(item.Filename + " was added to your media library.")
	return rec, nil
}

func errorMessage(err error) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Text: "Error: " + describe(err)}
}

type statusCoder interface {
	HTTPStatusCode() int
}

func describe(err error) string {
	var sc statusCoder
	switch {
	case errors.Is(err, provider.ErrAuthExpired):
		return "your session expired, please try again to sign in"
	case errors.Is(err, authflow.ErrPopupBlocked):
		return "the sign-in popup was blocked, allow popups for this site"
	case errors.Is(err, authflow.ErrAuthTimeout):
		return "sign-in timed out"
	case errors.As(err, &sc):
		return fmt.Sprintf("request failed with status %d", sc.HTTPStatusCode())
	default:
		return err.Error()
	}
}
