package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"assistant-bridge/internal/domain"
)

const (
	// MarkerHeader identifies calls made by this integration.
	MarkerHeader = "X-Assistant-Bridge"
	markerValue  = "1"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
)

var ErrAuthExpired = errors.New("provider: authorization expired")

// TokenSource supplies the bearer credential and discards it when the
// provider rejects it.
type TokenSource interface {
	Token(ctx context.Context) (domain.Credential, error)
	Invalidate() error
}

// APIError captures a non-2xx provider response other than 401.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider: unexpected status %d from %s: %s", e.StatusCode, e.Path, e.Body)
}

func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// MediaFetchError captures a failed binary download.
type MediaFetchError struct {
	StatusCode int
	URL        string
}

func (e *MediaFetchError) Error() string {
	return fmt.Sprintf("provider: media fetch %s failed with status %d", e.URL, e.StatusCode)
}

func (e *MediaFetchError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client calls the provider REST API on behalf of the signed-in user.
type Client struct {
	rest   *resty.Client
	tokens TokenSource
}

type options struct {
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*options)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func newRest(baseURL string, opts []Option) (*resty.Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("provider: base URL must not be empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("provider: invalid base URL: %w", err)
	}
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	var rc *resty.Client
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	} else {
		rc = resty.New().SetTimeout(o.timeout)
	}
	return rc.SetBaseURL(baseURL).
		SetHeader(MarkerHeader, markerValue).
		SetRetryCount(0), nil
}

func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("provider: token source must not be nil")
	}
	rc, err := newRest(baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &Client{rest: rc, tokens: tokens}, nil
}

type createConversationRequest struct {
	AssistantID string `json:"assistantId"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type assistantEnvelope struct {
	Assistants []domain.Assistant `json:"assistants"`
}

func (c *Client) ListAssistants(ctx context.Context) ([]domain.Assistant, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/api/social/assistants", nil)
	if err != nil {
		return nil, err
	}
	var list []domain.Assistant
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var env assistantEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("provider: decode assistants: %w", err)
	}
	return env.Assistants, nil
}

func (c *Client) CreateConversation(ctx context.Context, assistantID string) (domain.Conversation, error) {
	assistantID = strings.TrimSpace(assistantID)
	if assistantID == "" {
		return domain.Conversation{}, errors.New("provider: assistant id must not be empty")
	}
	raw, err := c.doJSON(ctx, http.MethodPost, "/api/social/conversations", createConversationRequest{AssistantID: assistantID})
	if err != nil {
		return domain.Conversation{}, err
	}
	var conv domain.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return domain.Conversation{}, fmt.Errorf("provider: decode conversation: %w", err)
	}
	if conv.ID == "" {
		return domain.Conversation{}, errors.New("provider: conversation response missing id")
	}
	return conv, nil
}

// ListMessages returns the raw message objects of a conversation, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]json.RawMessage, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, conversationPath(conversationID), nil)
	if err != nil {
		return nil, err
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var env struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("provider: decode messages: %w", err)
	}
	return env.Messages, nil
}

// SendMessage posts a user message and returns the provider's reply body.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, conversationPath(conversationID), sendMessageRequest{Content: text})
}

// FetchMediaBytes downloads generated media with the same credential.
func (c *Client) FetchMediaBytes(ctx context.Context, mediaURL string) ([]byte, error) {
	mediaURL = strings.TrimSpace(mediaURL)
	if mediaURL == "" {
		return nil, errors.New("provider: media URL must not be empty")
	}
	res, err := c.send(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return nil, &MediaFetchError{StatusCode: res.StatusCode(), URL: mediaURL}
	}
	return res.Body(), nil
}

func conversationPath(conversationID string) string {
	return "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	res, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return nil, &APIError{StatusCode: res.StatusCode(), Path: path, Body: truncate(res.Body())}
	}
	raw := res.Body()
	if !json.Valid(raw) {
		return nil, fmt.Errorf("provider: decode response from %s: invalid JSON", path)
	}
	return json.RawMessage(raw), nil
}

// send performs one authenticated call. A 401 drops the stored credential and
// fails with ErrAuthExpired; the caller decides whether to try again.
func (c *Client) send(ctx context.Context, method, path string, body any) (*resty.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("provider: obtain credential: %w", err)
	}
	req := c.rest.R().
		SetContext(ctx).
		SetAuthToken(string(token)).
		SetHeader("Accept", "application/json")
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	res, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("provider: request failed: %w", err)
	}
	if res.StatusCode() == http.StatusUnauthorized {
		if err := c.tokens.Invalidate(); err != nil {
			return nil, errors.Join(ErrAuthExpired, err)
		}
		return nil, ErrAuthExpired
	}
	return res, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}
