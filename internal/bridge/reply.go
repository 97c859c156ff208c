package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"assistant-bridge/internal/domain"
)

// Reply is a provider message reduced to what the panel shows.
type Reply struct {
	Role  domain.Role
	Text  string
	Media []domain.MediaItem
}

// replyBody lists every accepted reply shape. Text is taken from the first
// non-empty string among content, message.content and text, in that order.
type replyBody struct {
	Role          string          `json:"role"`
	Content       json.RawMessage `json:"content"`
	Message       *nestedMessage  `json:"message"`
	Text          json.RawMessage `json:"text"`
	PluginResults []pluginResult  `json:"pluginResults"`
}

type nestedMessage struct {
	Content       json.RawMessage `json:"content"`
	PluginResults []pluginResult  `json:"pluginResults"`
}

type pluginResult struct {
	Type     string `json:"type"`
	MimeType string `json:"mimeType"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Data     *struct {
		URL string `json:"url"`
	} `json:"data"`
}

var defaultFilenames = map[domain.MediaKind]string{
	domain.MediaImage: "image.png",
	domain.MediaAudio: "audio.mp3",
	domain.MediaVideo: "video.mp4",
}

// ParseReply decodes a provider message. A missing role means assistant.
func ParseReply(raw json.RawMessage) (Reply, error) {
	var body replyBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return Reply{}, fmt.Errorf("bridge: decode reply: %w", err)
	}

	candidates := []json.RawMessage{body.Content}
	if body.Message != nil {
		candidates = append(candidates, body.Message.Content)
	}
	candidates = append(candidates, body.Text)

	reply := Reply{Role: domain.RoleAssistant}
	if strings.EqualFold(strings.TrimSpace(body.Role), string(domain.RoleUser)) {
		reply.Role = domain.RoleUser
	}
	for _, c := range candidates {
		if s, ok := stringValue(c); ok {
			reply.Text = s
			break
		}
	}

	results := body.PluginResults
	if len(results) == 0 && body.Message != nil {
		results = body.Message.PluginResults
	}
	reply.Media = mediaItems(results)
	return reply, nil
}

// ExtractMediaItems returns the media generated in a provider reply.
func ExtractMediaItems(raw json.RawMessage) ([]domain.MediaItem, error) {
	reply, err := ParseReply(raw)
	if err != nil {
		return nil, err
	}
	return reply.Media, nil
}

func stringValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func mediaItems(results []pluginResult) []domain.MediaItem {
	var items []domain.MediaItem
	for _, r := range results {
		kind, ok := classify(r)
		if !ok {
			continue
		}
		url := strings.TrimSpace(r.URL)
		if url == "" && r.Data != nil {
			url = strings.TrimSpace(r.Data.URL)
		}
		if url == "" {
			continue
		}
		name := strings.TrimSpace(r.Filename)
		if name == "" {
			name = defaultFilenames[kind]
		}
		items = append(items, domain.MediaItem{Kind: kind, RemoteURL: url, Filename: name})
	}
	return items
}

// classify prefers the explicit type tag and falls back to the MIME prefix.
func classify(r pluginResult) (domain.MediaKind, bool) {
	switch domain.MediaKind(strings.ToLower(strings.TrimSpace(r.Type))) {
	case domain.MediaImage:
		return domain.MediaImage, true
	case domain.MediaAudio:
		return domain.MediaAudio, true
	case domain.MediaVideo:
		return domain.MediaVideo, true
	}
	mime := strings.ToLower(strings.TrimSpace(r.MimeType))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return domain.MediaImage, true
	case strings.HasPrefix(mime, "audio/"):
		return domain.MediaAudio, true
	case strings.HasPrefix(mime, "video/"):
		return domain.MediaVideo, true
	}
	return "", false
}
