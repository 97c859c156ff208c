// Package host talks to the host application's in-page extension points:
// its global event emitter, its clipboard fallback and its media library.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"

	"assistant-bridge/internal/domain"
)

const (
	InsertContentEvent = "insert-content"
	UploadPath         = "/api/media/upload"
	UploadField        = "file"
	CSRFMetaName       = "csrf-token"
	CSRFHeader         = "X-CSRF-Token"
)

// Emitter is the host's globally exposed event facility.
type Emitter interface {
	Emit(event string, payload any) error
}

type EmitterFunc func(event string, payload any) error

func (f EmitterFunc) Emit(event string, payload any) error { return f(event, payload) }

type Clipboard interface {
	WriteText(text string) error
}

// Page exposes the parts of the host document the bridge reads.
type Page interface {
	ActiveEditorID() (string, bool)
	Meta(name string) (string, bool)
}

// InsertPayload is the body of the insert-content event.
type InsertPayload struct {
	EditorID string `json:"editorId"`
	Content  string `json:"content"`
}

// UploadError captures a non-2xx response from the media endpoint.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("host: media upload failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *UploadError) HTTPStatusCode() int {
	return e.StatusCode
}

// Bridge inserts text into the active editor and uploads media into the
// host's library using the page's own session.
type Bridge struct {
	page      Page
	emitter   Emitter
	clipboard Clipboard
	rest      *resty.Client
	policy    *bluemonday.Policy
}

type Option func(*Bridge)

// WithEmitter sets the host emitter. Without one InsertText always falls
// back to the clipboard.
func WithEmitter(e Emitter) Option {
	return func(b *Bridge) {
		b.emitter = e
	}
}

// WithHTTPClient sets the client carrying the page's cookies.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(b *Bridge) {
		if httpClient != nil {
			b.rest = resty.NewWithClient(httpClient).SetBaseURL(b.rest.BaseURL)
		}
	}
}

func New(hostBaseURL string, page Page, clipboard Clipboard, opts ...Option) (*Bridge, error) {
	if page == nil {
		return nil, errors.New("host: page must not be nil")
	}
	if clipboard == nil {
		return nil, errors.New("host: clipboard must not be nil")
	}
	hostBaseURL = strings.TrimRight(strings.TrimSpace(hostBaseURL), "/")
	if hostBaseURL == "" {
		return nil, errors.New("host: base URL must not be empty")
	}
	b := &Bridge{
		page:      page,
		clipboard: clipboard,
		rest:      resty.New().SetBaseURL(hostBaseURL).SetTimeout(60 * time.Second),
		policy:    bluemonday.UGCPolicy(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// InsertText emits an insert-content event for the focused editor. When the
// emitter or the editor is missing, the text goes to the clipboard and
// InsertText reports false.
func (b *Bridge) InsertText(text string) bool {
	editorID, ok := b.page.ActiveEditorID()
	if b.emitter == nil || !ok || editorID == "" {
		b.copyToClipboard(text)
		return false
	}
	payload := InsertPayload{EditorID: editorID, Content: b.policy.Sanitize(text)}
	if err := b.emitter.Emit(InsertContentEvent, payload); err != nil {
		slog.Warn("host: insert-content emit failed", "editorId", editorID, "err", err)
		b.copyToClipboard(text)
		return false
	}
	return true
}

func (b *Bridge) copyToClipboard(text string) {
	if err := b.clipboard.WriteText(text); err != nil {
		slog.Warn("host: clipboard write failed", "err", err)
	}
}

// UploadMedia sends data to the host's media endpoint as multipart field
// "file", authenticated by the page session and its anti-forgery token.
func (b *Bridge) UploadMedia(ctx context.Context, data []byte, filename string) (domain.HostMediaRecord, error) {
	if len(data) == 0 {
		return domain.HostMediaRecord{}, errors.New("host: media must not be empty")
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return domain.HostMediaRecord{}, errors.New("host: filename must not be empty")
	}
	csrf, ok := b.page.Meta(CSRFMetaName)
	if !ok || strings.TrimSpace(csrf) == "" {
		return domain.HostMediaRecord{}, errors.New("host: anti-forgery token not found in page metadata")
	}

	contentType := mimetype.Detect(data).String()
	res, err := b.rest.R().
		SetContext(ctx).
		SetHeader(CSRFHeader, csrf).
		SetHeader("Accept", "application/json").
		SetMultipartField(UploadField, filename, contentType, bytes.NewReader(data)).
		Post(UploadPath)
	if err != nil {
		return domain.HostMediaRecord{}, fmt.Errorf("host: upload request failed: %w", err)
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		body := res.Body()
		if len(body) > 4096 {
			body = body[:4096]
		}
		return domain.HostMediaRecord{}, &UploadError{StatusCode: res.StatusCode(), Body: string(body)}
	}

	var rec domain.HostMediaRecord
	if err := json.Unmarshal(res.Body(), &rec); err != nil {
		return domain.HostMediaRecord{}, fmt.Errorf("host: decode upload response: %w", err)
	}
	return rec, nil
}

// MemoryClipboard holds the last written text.
type MemoryClipboard struct {
	mu   sync.Mutex
	text string
}

func (c *MemoryClipboard) WriteText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

func (c *MemoryClipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}
