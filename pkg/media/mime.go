package media

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// octetStream is reported when a file cannot be sniffed
const octetStream = "application/octet-stream"

// knownMIMETypes lists the MIME types of each category. Matching is a
// case-insensitive substring test, checked in order image, video, audio, so
// "video/ogg" is video and "audio/ogg" is audio.
var knownMIMETypes = []struct {
	kind  models.MediaType
	types []string
}{
	{models.MediaTypeImage, []string{
		"image/jpeg", "image/png", "image/gif", "image/webp", "image/svg+xml",
		"image/bmp", "image/tiff", "image/x-icon",
	}},
	{models.MediaTypeVideo, []string{
		"video/mp4", "video/webm", "video/ogg", "video/x-matroska",
		"video/quicktime", "video/x-msvideo", "video/x-flv", "application/vnd.rn-realmedia",
	}},
	{models.MediaTypeAudio, []string{
		"audio/mpeg", "audio/ogg", "audio/wav", "audio/webm",
		"audio/aac", "audio/flac", "audio/x-ms-wma", "audio/x-m4a",
	}},
}

// Classify maps a MIME type (parameters allowed) to its media category.
// Unlisted types still classify by their top-level prefix; anything else is
// MediaTypeNone.
func Classify(mimeType string) models.MediaType {
	lower := strings.ToLower(strings.TrimSpace(mimeType))
	if lower == "" {
		return models.MediaTypeNone
	}

	for _, group := range knownMIMETypes {
		for _, t := range group.types {
			if strings.Contains(lower, t) {
				return group.kind
			}
		}
	}

	switch {
	case strings.HasPrefix(lower, "image/"):
		return models.MediaTypeImage
	case strings.HasPrefix(lower, "video/"):
		return models.MediaTypeVideo
	case strings.HasPrefix(lower, "audio/"):
		return models.MediaTypeAudio
	}
	return models.MediaTypeNone
}

// SniffFile detects the MIME type of a file from its content, ignoring its
// name. Parameters such as charset are stripped.
func SniffFile(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return octetStream, fmt.Errorf("%w: sniffing '%s': %w", utils.ErrFilesystem, path, err)
	}
	return baseMIME(mtype.String()), nil
}

func baseMIME(value string) string {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return octetStream
	}
	return mediaType
}
