package panel

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"assistant-bridge/internal/domain"
)

type view struct {
	Open         bool
	Loading      bool
	CanSend      bool
	Assistants   []domain.Assistant
	SelectedID   string
	Conversation string
	Messages     []domain.Message
	Input        string
}

var policy = bluemonday.UGCPolicy()

var panelTmpl = template.Must(template.New("panel").Funcs(template.FuncMap{
	"markup": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(policy.Sanitize(s), "\n", "<br>"))
	},
	"quickActions": QuickActions,
}).Parse(`<div class="assistant-bridge-panel{{if .Open}} is-open{{end}}" data-state="{{if .Open}}open{{else}}closed{{end}}">
<header class="ab-header">
<select class="ab-assistants" name="assistant">
<option value="">Select an assistant</option>
{{- range .Assistants}}
<option value="{{.ID}}"{{if eq .ID $.SelectedID}} selected{{end}}>{{.Name}}</option>
{{- end}}
</select>
</header>
<ol class="ab-log"{{if .Conversation}} data-conversation="{{.Conversation}}"{{end}}>
{{- range $i, $m := .Messages}}
<li class="ab-msg ab-{{$m.Role}}" data-index="{{$i}}">
{{- if eq (print $m.Role) "assistant"}}<div class="ab-text">{{markup $m.Text}}</div><button type="button" class="ab-insert" data-index="{{$i}}">Insert</button>{{else}}<div class="ab-text">{{$m.Text}}</div>{{end}}
{{- range $j, $media := $m.Media}}
<figure class="ab-media ab-{{$media.Kind}}" data-index="{{$i}}" data-media="{{$j}}">
{{- if eq (print $media.Kind) "image"}}<img src="{{$media.RemoteURL}}" alt="{{$media.Filename}}">{{else if eq (print $media.Kind) "audio"}}<audio controls src="{{$media.RemoteURL}}"></audio>{{else}}<video controls src="{{$media.RemoteURL}}"></video>{{end}}
<button type="button" class="ab-transfer">Add to library</button>
</figure>
{{- end}}
</li>
{{- end}}
</ol>
<div class="ab-quick">
{{- range quickActions}}
<button type="button" class="ab-quick-action" data-action="{{.}}"{{if not $.CanSend}} disabled{{end}}>{{.Label}}</button>
{{- end}}
</div>
<form class="ab-compose">
<textarea name="message" placeholder="Ask the assistant...">{{.Input}}</textarea>
<button type="submit" class="ab-send"{{if not .CanSend}} disabled{{end}}>{{if .Loading}}Sending...{{else}}Send{{end}}</button>
</form>
</div>`))

// Render projects the current state into the panel's HTML.
func (p *Panel) Render() (string, error) {
	var buf bytes.Buffer
	if err := panelTmpl.Execute(&buf, p.snapshot()); err != nil {
		return "", fmt.Errorf("panel: render: %w", err)
	}
	return buf.String(), nil
}
