package domain

// Assistant is a selectable provider persona.
type Assistant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MediaKind classifies generated media.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// MediaItem is a generated asset still hosted by the provider.
type MediaItem struct {
	Kind      MediaKind `json:"kind"`
	RemoteURL string    `json:"remoteUrl"`
	Filename  string    `json:"filename"`
}

// HostMediaRecord is what the host library returns after an upload.
type HostMediaRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Credential is an opaque provider bearer token.
type Credential string
