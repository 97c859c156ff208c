// Package page models the host page's DOM as a goquery document so the
// controller can probe for the post editor and inject its launcher.
package page

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultEditorSelector  = `[contenteditable="true"]`
	DefaultToolbarSelector = `[role="toolbar"]`
	LauncherAttr           = "data-assistant-launcher"
	focusedAttr            = "data-focused"
)

const launcherHTML = `<button type="button" ` + LauncherAttr + `="true" class="assistant-bridge-launcher" aria-label="Open assistant">AI Assistant</button>`

// Selectors locate the host's editor and the toolbar region around it.
type Selectors struct {
	Editor  string
	Toolbar string
}

func (s Selectors) withDefaults() Selectors {
	if strings.TrimSpace(s.Editor) == "" {
		s.Editor = DefaultEditorSelector
	}
	if strings.TrimSpace(s.Toolbar) == "" {
		s.Toolbar = DefaultToolbarSelector
	}
	return s
}

// Document is a mutable snapshot of the host page.
type Document struct {
	mu  sync.Mutex
	doc *goquery.Document
	sel Selectors
}

func Parse(r io.Reader, sel Selectors) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("page: parse: %w", err)
	}
	return &Document{doc: doc, sel: sel.withDefaults()}, nil
}

func ParseString(html string, sel Selectors) (*Document, error) {
	return Parse(strings.NewReader(html), sel)
}

// Replace swaps in a new DOM, as a SPA navigation would.
func (d *Document) Replace(r io.Reader) error {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return fmt.Errorf("page: parse: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = doc
	return nil
}

// Mutate runs fn against the live DOM.
func (d *Document) Mutate(fn func(doc *goquery.Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.doc)
}

func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Html()
}

// editor returns the focused editor, or the first one when none is marked
// focused.
func (d *Document) editor() *goquery.Selection {
	editors := d.doc.Find(d.sel.Editor)
	if editors.Length() == 0 {
		return editors
	}
	focused := editors.FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr(focusedAttr)
		return v == "true"
	})
	if focused.Length() > 0 {
		return focused.First()
	}
	return editors.First()
}

// toolbar finds the nearest toolbar sharing an ancestor with the editor.
func (d *Document) toolbar(editor *goquery.Selection) *goquery.Selection {
	for p := editor.Parent(); p.Length() > 0; p = p.Parent() {
		if tb := p.Find(d.sel.Toolbar).First(); tb.Length() > 0 {
			return tb
		}
	}
	return editor.Slice(0, 0)
}

func (d *Document) EditorPresent() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.editor().Length() > 0
}

// ActiveEditorID returns the id attribute of the focused editor.
func (d *Document) ActiveEditorID() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.editor().Attr("id")
	id = strings.TrimSpace(id)
	return id, ok && id != ""
}

func (d *Document) HasLauncher() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	ed := d.editor()
	if ed.Length() == 0 {
		return false
	}
	return d.toolbar(ed).Find("[" + LauncherAttr + "]").Length() > 0
}

// InjectLauncher appends the launcher button to the editor's toolbar.
func (d *Document) InjectLauncher() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ed := d.editor()
	if ed.Length() == 0 {
		return errors.New("page: editor not present")
	}
	tb := d.toolbar(ed)
	if tb.Length() == 0 {
		return errors.New("page: toolbar not found near editor")
	}
	if tb.Find("["+LauncherAttr+"]").Length() > 0 {
		return nil
	}
	tb.AppendHtml(launcherHTML)
	return nil
}

// EnsureStylesheet adds a stylesheet link to the head unless one with the
// same href exists. It reports whether a link was added.
func (d *Document) EnsureStylesheet(href string) (bool, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return false, errors.New("page: stylesheet href must not be empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	exists := false
	d.doc.Find(`link[rel="stylesheet"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr("href"); v == href {
			exists = true
		}
		return !exists
	})
	if exists {
		return false, nil
	}
	head := d.doc.Find("head").First()
	if head.Length() == 0 {
		return false, errors.New("page: document has no head")
	}
	link := fmt.Sprintf(`<link rel="stylesheet" href="%s">`, htmlAttrEscape(href))
	head.AppendHtml(link)
	return true, nil
}

// Meta returns the content of <meta name=...>.
func (d *Document) Meta(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var content string
	found := false
	d.doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr("name"); v == name {
			content, found = s.Attr("content")
		}
		return !found
	})
	return content, found
}

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")

func htmlAttrEscape(s string) string {
	return attrEscaper.Replace(s)
}
