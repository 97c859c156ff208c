package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"assistant-bridge/internal/bridge/page"
	"assistant-bridge/internal/bridge/panel"
	"assistant-bridge/internal/domain"
	"assistant-bridge/internal/integrations/provider"
)

const editorPage = `<html><head></head><body>
<div class="composer">
  <div role="toolbar"><button>Bold</button></div>
  <div id="post-editor" contenteditable="true"></div>
</div>
</body></html>`

type fakeProvider struct {
	assistants    []domain.Assistant
	listErr       error
	listCalls     int
	createErr     error
	created       []string
	sent          []string
	reply         json.RawMessage
	sendErr       error
	history       []json.RawMessage
	media         []byte
	mediaErr      error
	fetchedURLs   []string
	onSend        func()
	conversations int
}

func (f *fakeProvider) ListAssistants(_ context.Context) ([]domain.Assistant, error) {
	f.listCalls++
	return f.assistants, f.listErr
}

func (f *fakeProvider) CreateConversation(_ context.Context, assistantID string) (domain.Conversation, error) {
	if f.createErr != nil {
		return domain.Conversation{}, f.createErr
	}
	f.created = append(f.created, assistantID)
	f.conversations++
	return domain.Conversation{ID: "conv-" + assistantID + "-" + string(rune('0'+f.conversations))}, nil
}

func (f *fakeProvider) ListMessages(_ context.Context, _ string) ([]json.RawMessage, error) {
	return f.history, nil
}

func (f *fakeProvider) SendMessage(_ context.Context, _ string, text string) (json.RawMessage, error) {
	f.sent = append(f.sent, text)
	if f.onSend != nil {
		f.onSend()
	}
	return f.reply, f.sendErr
}

func (f *fakeProvider) FetchMediaBytes(_ context.Context, url string) ([]byte, error) {
	f.fetchedURLs = append(f.fetchedURLs, url)
	return f.media, f.mediaErr
}

type fakeHost struct {
	inserted  []string
	insertOK  bool
	uploads   []string
	uploadErr error
}

func (h *fakeHost) InsertText(text string) bool {
	h.inserted = append(h.inserted, text)
	return h.insertOK
}

func (h *fakeHost) UploadMedia(_ context.Context, data []byte, filename string) (domain.HostMediaRecord, error) {
	if h.uploadErr != nil {
		return domain.HostMediaRecord{}, h.uploadErr
	}
	h.uploads = append(h.uploads, filename)
	return domain.HostMediaRecord{ID: "m1", Name: filename, Path: "/media/" + filename}, nil
}

type fakeNotifier struct {
	alerts []string
	toasts []string
}

func (n *fakeNotifier) Alert(msg string) { n.alerts = append(n.alerts, msg) }
func (n *fakeNotifier) Toast(msg string) { n.toasts = append(n.toasts, msg) }

type fixture struct {
	ctrl     *Controller
	doc      *page.Document
	provider *fakeProvider
	host     *fakeHost
	notify   *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc, err := page.ParseString(editorPage, page.Selectors{})
	require.NoError(t, err)
	f := &fixture{
		doc:      doc,
		provider: &fakeProvider{assistants: []domain.Assistant{{ID: "A", Name: "Writer"}}},
		host:     &fakeHost{},
		notify:   &fakeNotifier{},
	}
	f.ctrl, err = New(Deps{Page: doc, Provider: f.provider, Host: f.host, Notifier: f.notify}, "https://cdn.example.com/bridge.css")
	require.NoError(t, err)
	return f
}

func countLaunchers(t *testing.T, doc *page.Document) int {
	t.Helper()
	html, err := doc.HTML()
	require.NoError(t, err)
	return strings.Count(html, page.LauncherAttr)
}

func TestNew_ValidatesDependencies(t *testing.T) {
	f := newFixture(t)
	_, err := New(Deps{Provider: f.provider, Host: f.host, Notifier: f.notify}, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "page")

	_, err = New(Deps{Page: f.doc, Host: f.host, Notifier: f.notify}, "")
	require.Error(t, err)

	_, err = New(Deps{Page: f.doc, Provider: f.provider, Notifier: f.notify}, "")
	require.Error(t, err)

	_, err = New(Deps{Page: f.doc, Provider: f.provider, Host: f.host}, "")
	require.Error(t, err)
}

func TestBoot_InjectsStylesheetAndLauncherOnce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.Boot())
	require.NoError(t, f.ctrl.Boot())

	html, err := f.doc.HTML()
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(html, "https://cdn.example.com/bridge.css"))
	require.Equal(t, 1, countLaunchers(t, f.doc))
}

func TestReconcile_IsLevelTriggered(t *testing.T) {
	f := newFixture(t)

	injected, err := f.ctrl.Reconcile()
	require.NoError(t, err)
	require.True(t, injected)

	for i := 0; i < 3; i++ {
		f.ctrl.OnMutation()
	}
	require.Equal(t, 1, countLaunchers(t, f.doc))

	// A navigation re-renders the editor without the launcher.
	require.NoError(t, f.doc.Replace(strings.NewReader(editorPage)))
	require.False(t, f.doc.HasLauncher())
	f.ctrl.OnMutation()
	require.Equal(t, 1, countLaunchers(t, f.doc))
}

func TestReconcile_NoEditorIsNoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.doc.Replace(strings.NewReader(`<html><body><p>feed</p></body></html>`)))

	injected, err := f.ctrl.Reconcile()
	require.NoError(t, err)
	require.False(t, injected)
	require.Equal(t, 0, countLaunchers(t, f.doc))
}

func TestToggle_LoadsAssistantsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Toggle(ctx))
	require.Equal(t, panel.Open, f.ctrl.Panel().State())
	require.NoError(t, f.ctrl.Toggle(ctx))
	require.Equal(t, panel.Closed, f.ctrl.Panel().State())
	require.NoError(t, f.ctrl.Toggle(ctx))

	require.Equal(t, 1, f.provider.listCalls)
	list, loaded := f.ctrl.Panel().Assistants()
	require.True(t, loaded)
	require.Equal(t, []domain.Assistant{{ID: "A", Name: "Writer"}}, list)
}

func TestToggle_ListFailureRaisesAlert(t *testing.T) {
	f := newFixture(t)
	f.provider.listErr = &provider.APIError{StatusCode: 503, Path: "/api/social/assistants"}

	err := f.ctrl.Toggle(context.Background())
	require.Error(t, err)
	require.Len(t, f.notify.alerts, 1)
	require.Contains(t, f.notify.alerts[0], "503")

	_, loaded := f.ctrl.Panel().Assistants()
	require.False(t, loaded)
}

func TestSend_ShortenScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.reply = json.RawMessage(`{"content":"ok"}`)

	require.NoError(t, f.ctrl.Toggle(ctx))
	require.NoError(t, f.ctrl.SelectAssistant(ctx, "A"))
	require.NoError(t, f.ctrl.Send(ctx, "shorten this"))

	require.Equal(t, []string{"shorten this"}, f.provider.sent)
	require.Equal(t, []domain.Message{
		{Role: domain.RoleUser, Text: "shorten this"},
		{Role: domain.RoleAssistant, Text: "ok"},
	}, f.ctrl.Panel().Messages())
	require.False(t, f.ctrl.Panel().Loading())
	require.Equal(t, "Writer", f.ctrl.Panel().Selected().Name)
}

func TestSend_AppendsUserMessageBeforeReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.reply = json.RawMessage(`{"content":"ok"}`)
	f.provider.onSend = func() {
		msgs := f.ctrl.Panel().Messages()
		require.Len(t, msgs, 1)
		require.Equal(t, domain.RoleUser, msgs[0].Role)
		require.True(t, f.ctrl.Panel().Loading())
		require.ErrorIs(t, f.ctrl.Send(ctx, "second"), panel.ErrBusy)
	}

	require.NoError(t, f.ctrl.SelectAssistant(ctx, "A"))
	require.NoError(t, f.ctrl.Send(ctx, "first"))
	require.Equal(t, []string{"first"}, f.provider.sent)
}

func TestSend_RejectedWithoutConversation(t *testing.T) {
	f := newFixture(t)
	err := f.ctrl.Send(context.Background(), "hello")
	require.ErrorIs(t, err, panel.ErrNoConversation)
	require.Empty(t, f.provider.sent)
	require.Empty(t, f.ctrl.Panel().Messages())
}

func TestSend_FailureAppendsInlineError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.sendErr = provider.ErrAuthExpired

	require.NoError(t, f.ctrl.SelectAssistant(ctx, "A"))
	err := f.ctrl.Send(ctx, "hello")
	require.ErrorIs(t, err, provider.ErrAuthExpired)

	msgs := f.ctrl.Panel().Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, domain.RoleAssistant, msgs[1].Role)
	require.True(t, strings.HasPrefix(msgs[1].Text, "Error: "))
	require.Contains(t, msgs[1].Text, "session expired")
	require.False(t, f.ctrl.Panel().Loading())
	require.Empty(t, f.notify.alerts)
}

func TestSend_ReplyCarriesMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.reply = json.RawMessage(`{"content":"here","pluginResults":[{"type":"image","url":"https://cdn.example.com/a.png"}]}`)

	require.NoError(t, f.ctrl.SelectAssistant(ctx, "A"))
	require.NoError(t, f.ctrl.Send(ctx, "draw"))

	msgs := f.ctrl.Panel().Messages()
	require.Equal(t, []domain.MediaItem{{Kind: domain.MediaImage, RemoteURL: "https://cdn.example.com/a.png", Filename: "image.png"}}, msgs[1].Media)
}

func TestSelectAssistant_ReplacesConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.reply = json.RawMessage(`{"content":"ok"}`)

	require.NoError(t, f.ctrl.SelectAssistant(ctx, "A"))
	first, _ := f.ctrl.Panel().Conversation()
	require.NoError(t, f.ctrl.Send(ctx, "hi"))
	require.NoError(t, f.ctrl.SelectAssistant(ctx, "A"))

	second, ok := f.ctrl.Panel().Conversation()
	require.True(t, ok)
	require.NotEqual(t, first.ID, second.ID)
	require.Empty(t, f.ctrl.Panel().Messages())
}

func TestSelectAssistant_FailureRaisesAlert(t *testing.T) {
	f := newFixture(t)
	f.provider.createErr = errors.New("boom")

	require.Error(t, f.ctrl.SelectAssistant(context.Background(), "A"))
	require.Len(t, f.notify.alerts, 1)
	_, ok := f.ctrl.Panel().Conversation()
	require.False(t, ok)
}

func TestResume_RebuildsLog(t *testing.T) {
	f := newFixture(t)
	f.provider.history = []json.RawMessage{
		json.RawMessage(`{"role":"user","content":"hi"}`),
		json.RawMessage(`not json`),
		json.RawMessage(`{"role":"assistant","message":{"content":"hello"}}`),
	}

	require.NoError(t, f.ctrl.Resume(context.Background(), "A", "conv-9"))
	conv, ok := f.ctrl.Panel().Conversation()
	require.True(t, ok)
	require.Equal(t, "conv-9", conv.ID)
	require.Equal(t, []domain.Message{
		{Role: domain.RoleUser, Text: "hi"},
		{Role: domain.RoleAssistant, Text: "hello"},
	}, f.ctrl.Panel().Messages())
}

func TestQuickAction_SendsCannedPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.reply = json.RawMessage(`{"content":"short"}`)

	require.NoError(t, f.ctrl.SelectAssistant(ctx, "A"))
	require.NoError(t, f.ctrl.QuickAction(ctx, panel.Shorten))

	want, _ := panel.Prompt(panel.Shorten)
	require.Equal(t, []string{want}, f.provider.sent)
	require.Empty(t, f.ctrl.Panel().Input())

	require.Error(t, f.ctrl.QuickAction(ctx, panel.QuickAction("translate")))
}

func TestInsertMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.reply = json.RawMessage(`{"content":"final copy"}`)
	require.NoError(t, f.ctrl.SelectAssistant(ctx, "A"))
	require.NoError(t, f.ctrl.Send(ctx, "write"))

	f.host.insertOK = true
	ok, err := f.ctrl.InsertMessage(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, f.notify.toasts)

	f.host.insertOK = false
	ok, err = f.ctrl.InsertMessage(1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, f.notify.toasts, 1)
	require.Contains(t, f.notify.toasts[0], "clipboard")
	require.Equal(t, []string{"final copy", "final copy"}, f.host.inserted)

	_, err = f.ctrl.InsertMessage(7)
	require.Error(t, err)
}

func TestTransferMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.reply = json.RawMessage(`{"content":"","pluginResults":[{"mimeType":"audio/mpeg","data":{"url":"https://cdn.example.com/v.mp3"}}]}`)
	f.provider.media = []byte("ID3")
	require.NoError(t, f.ctrl.SelectAssistant(ctx, "A"))
	require.NoError(t, f.ctrl.Send(ctx, "narrate"))

	rec, err := f.ctrl.TransferMedia(ctx, 1, 0)
	require.NoError(t, err)
	require.Equal(t, "audio.mp3", rec.Name)
	require.Equal(t, []string{"https://cdn.example.com/v.mp3"}, f.provider.fetchedURLs)
	require.Len(t, f.notify.toasts, 1)

	_, err = f.ctrl.TransferMedia(ctx, 1, 3)
	require.Error(t, err)
}

func TestTransferMedia_FailuresRaiseToast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.reply = json.RawMessage(`{"content":"x","pluginResults":[{"type":"video","url":"https://cdn.example.com/c.mp4"}]}`)
	require.NoError(t, f.ctrl.SelectAssistant(ctx, "A"))
	require.NoError(t, f.ctrl.Send(ctx, "film"))

	f.provider.mediaErr = &provider.MediaFetchError{StatusCode: 404, URL: "https://cdn.example.com/c.mp4"}
	_, err := f.ctrl.TransferMedia(ctx, 1, 0)
	require.Error(t, err)
	require.Len(t, f.notify.toasts, 1)
	require.Contains(t, f.notify.toasts[0], "404")

	f.provider.mediaErr = nil
	f.host.uploadErr = errors.New("disk full")
	_, err = f.ctrl.TransferMedia(ctx, 1, 0)
	require.Error(t, err)
	require.Len(t, f.notify.toasts, 2)
	require.Contains(t, f.notify.toasts[1], "video.mp4")
	require.Empty(t, f.host.uploads)
}
