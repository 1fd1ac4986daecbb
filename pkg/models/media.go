package models

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImageDetails are the image-specific metadata fields
type ImageDetails struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
	Mode        string `json:"mode"`
	CameraMake  string `json:"camera_make,omitempty"`
	CameraModel string `json:"camera_model,omitempty"`
	Orientation string `json:"orientation,omitempty"`
	TakenAt     string `json:"taken_at,omitempty"`
}

// VideoDetails are the video-specific metadata fields
type VideoDetails struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`
	Format   string  `json:"format"`
	Codec    string  `json:"codec"`
}

// AudioDetails are the audio-specific metadata fields
type AudioDetails struct {
	Duration float64 `json:"duration"`
	Bitrate  int     `json:"bitrate"`
	Format   string  `json:"format"`
	Codec    string  `json:"codec"`
}

// MediaMetadata is a tagged union over the base/image/video/audio variants.
// Kind is the discriminator; exactly the details pointer matching Kind is
// non-nil (none for the base variant).
type MediaMetadata struct {
	Kind      MediaType
	FileSize  int64
	MimeType  string
	CreatedAt time.Time

	Image *ImageDetails
	Video *VideoDetails
	Audio *AudioDetails
}

// NewMediaMetadata returns a metadata record of the given kind with zeroed
// type-specific fields.
func NewMediaMetadata(kind MediaType, mimeType string, size int64) MediaMetadata {
	m := MediaMetadata{
		Kind:      kind,
		FileSize:  size,
		MimeType:  mimeType,
		CreatedAt: time.Now().UTC(),
	}
	switch kind {
	case MediaTypeImage:
		m.Image = &ImageDetails{}
	case MediaTypeVideo:
		m.Video = &VideoDetails{}
	case MediaTypeAudio:
		m.Audio = &AudioDetails{}
	case MediaTypeNone:
	}
	return m
}

type metadataBase struct {
	FileSize    int64     `json:"file_size"`
	MimeType    string    `json:"mime_type"`
	CreatedAt   time.Time `json:"created_at"`
	ContentType MediaType `json:"content_type"`
}

// MarshalJSON flattens the variant fields next to the base fields.
func (m MediaMetadata) MarshalJSON() ([]byte, error) {
	base := metadataBase{
		FileSize:    m.FileSize,
		MimeType:    m.MimeType,
		CreatedAt:   m.CreatedAt,
		ContentType: m.Kind,
	}

	switch m.Kind {
	case MediaTypeImage:
		d := ImageDetails{}
		if m.Image != nil {
			d = *m.Image
		}
		return json.Marshal(struct {
			metadataBase
			ImageDetails
		}{base, d})
	case MediaTypeVideo:
		d := VideoDetails{}
		if m.Video != nil {
			d = *m.Video
		}
		return json.Marshal(struct {
			metadataBase
			VideoDetails
		}{base, d})
	case MediaTypeAudio:
		d := AudioDetails{}
		if m.Audio != nil {
			d = *m.Audio
		}
		return json.Marshal(struct {
			metadataBase
			AudioDetails
		}{base, d})
	case MediaTypeNone:
	}
	return json.Marshal(base)
}

// UnmarshalJSON selects the variant from the content_type field.
func (m *MediaMetadata) UnmarshalJSON(data []byte) error {
	var base metadataBase
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	return m.decodeAs(data, base, base.ContentType)
}

// DecodeMediaMetadata decodes raw metadata as the variant named by kind,
// ignoring whatever content_type the payload claims. Unknown kinds fall back
// to the base variant.
func DecodeMediaMetadata(data []byte, kind MediaType) (MediaMetadata, error) {
	var m MediaMetadata
	var base metadataBase
	if err := json.Unmarshal(data, &base); err != nil {
		return m, err
	}
	err := m.decodeAs(data, base, kind)
	return m, err
}

func (m *MediaMetadata) decodeAs(data []byte, base metadataBase, kind MediaType) error {
	*m = MediaMetadata{
		Kind:      kind,
		FileSize:  base.FileSize,
		MimeType:  base.MimeType,
		CreatedAt: base.CreatedAt,
	}

	switch kind {
	case MediaTypeImage:
		m.Image = &ImageDetails{}
		return json.Unmarshal(data, m.Image)
	case MediaTypeVideo:
		m.Video = &VideoDetails{}
		return json.Unmarshal(data, m.Video)
	case MediaTypeAudio:
		m.Audio = &AudioDetails{}
		return json.Unmarshal(data, m.Audio)
	case MediaTypeNone:
	}
	m.Kind = MediaTypeNone
	return nil
}

// extensionForMIME is used when a URL carries no file extension
var extensionForMIME = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
	"audio/mpeg": ".mp3",
}

// Media is one downloaded asset cached inside a session directory
type Media struct {
	ID             string        `json:"id"`
	URL            string        `json:"url"`
	SourceURL      string        `json:"source_url"`
	FilePath       string        `json:"file_path"`
	ThumbnailPath  string        `json:"thumbnail_path,omitempty"`
	SessionID      string        `json:"session_id"`
	Metadata       MediaMetadata `json:"metadata"`
	MediaType      MediaType     `json:"media_type"`
	Filename       string        `json:"filename"`
	CachedFilename string        `json:"cached_filename"`
}

// NewMedia builds a record for a cached file. The media type always follows
// the metadata variant.
func NewMedia(rawURL, sourceURL, filePath, thumbnailPath, sessionID string, meta MediaMetadata) *Media {
	return &Media{
		ID:             uuid.NewString(),
		URL:            rawURL,
		SourceURL:      sourceURL,
		FilePath:       filePath,
		ThumbnailPath:  thumbnailPath,
		SessionID:      sessionID,
		Metadata:       meta,
		MediaType:      meta.Kind,
		Filename:       FilenameFromURL(rawURL, meta.MimeType),
		CachedFilename: filepath.Base(filePath),
	}
}

// UnmarshalJSON decodes the metadata variant chosen by media_type.
func (m *Media) UnmarshalJSON(data []byte) error {
	type mediaAlias Media
	aux := struct {
		*mediaAlias
		Metadata json.RawMessage `json:"metadata"`
	}{mediaAlias: (*mediaAlias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Metadata) == 0 || string(aux.Metadata) == "null" {
		m.Metadata = MediaMetadata{Kind: m.MediaType}
		return nil
	}
	meta, err := DecodeMediaMetadata(aux.Metadata, m.MediaType)
	if err != nil {
		return fmt.Errorf("decoding metadata for media %s: %w", m.ID, err)
	}
	m.Metadata = meta
	return nil
}

// DisplayName shortens long filenames for listings.
func (m *Media) DisplayName() string {
	if len(m.Filename) > 25 {
		return m.Filename[:22] + "..."
	}
	return m.Filename
}

// FileExtension returns the lower-cased extension of Filename, including the dot.
func (m *Media) FileExtension() string {
	return strings.ToLower(path.Ext(m.Filename))
}

// URLHash returns the hex MD5 digest of the source URL.
func (m *Media) URLHash() string {
	sum := md5.Sum([]byte(m.URL))
	return hex.EncodeToString(sum[:])
}

// FilenameFromURL derives a display filename from the last path segment of
// rawURL. When the segment has no extension one is chosen from mimeType.
func FilenameFromURL(rawURL, mimeType string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	if name == "" || name == "/" || name == "." {
		name = "media"
	}

	if path.Ext(name) == "" {
		ext, ok := extensionForMIME[mimeType]
		if !ok {
			ext = ".bin"
		}
		name += ext
	}
	return name
}
