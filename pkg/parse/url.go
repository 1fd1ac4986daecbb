package parse

import (
	"net"
	"net/url"
	"path"
	"strings"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
)

// mediaExtensions maps file extensions to their media category.
// ".ogg" and ".webm" are containers for both audio and video; they classify as video.
var mediaExtensions = map[string]models.MediaType{
	".jpg": models.MediaTypeImage, ".jpeg": models.MediaTypeImage, ".png": models.MediaTypeImage,
	".gif": models.MediaTypeImage, ".bmp": models.MediaTypeImage, ".webp": models.MediaTypeImage,
	".svg": models.MediaTypeImage, ".tiff": models.MediaTypeImage, ".ico": models.MediaTypeImage,

	".mp4": models.MediaTypeVideo, ".webm": models.MediaTypeVideo, ".ogg": models.MediaTypeVideo,
	".mov": models.MediaTypeVideo, ".avi": models.MediaTypeVideo, ".mkv": models.MediaTypeVideo,
	".flv": models.MediaTypeVideo, ".wmv": models.MediaTypeVideo,

	".mp3": models.MediaTypeAudio, ".wav": models.MediaTypeAudio, ".flac": models.MediaTypeAudio,
	".aac": models.MediaTypeAudio, ".m4a": models.MediaTypeAudio, ".wma": models.MediaTypeAudio,
}

// NormalizeURL standardizes a URL for comparison and storage
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https), removes trailing slashes from paths (unless root "/"), ensures empty path becomes "/", and removes fragments
// The query string is preserved; media URLs are frequently distinguished only by it
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	// Work on a copy
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	// Remove default ports
	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil { // Host included a port
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host // Use hostname without default port
		}
	} // If no port or error, Host remains unchanged

	// Handle path normalization
	if normalized.Path == "" {
		normalized.Path = "/" // Ensure empty path becomes "/"
		normalized.RawPath = ""
	} else if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		// Trim every trailing slash so a second pass is a no-op
		normalized.Path = strings.TrimRight(normalized.Path, "/")
		normalized.RawPath = strings.TrimRight(normalized.RawPath, "/")
		if normalized.Path == "" {
			normalized.Path = "/"
			normalized.RawPath = ""
		}
	}

	normalized.Fragment = "" // Remove fragment
	normalized.RawFragment = ""

	return normalized.String()
}

// Normalize parses and normalizes a URL string. Strings that do not parse are
// returned unchanged so the function is total.
func Normalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	return NormalizeURL(u)
}

// IsValidURL reports whether rawURL is an absolute http(s) URL with a host.
func IsValidURL(rawURL string) bool {
	if rawURL == "" || strings.ContainsAny(rawURL, " \t\r\n") {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}

// MediaTypeForURL classifies a URL by the extension of its path.
// Returns MediaTypeNone for anything unknown or unparsable.
func MediaTypeForURL(rawURL string) models.MediaType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.MediaTypeNone
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return mediaExtensions[ext]
}

// IsMediaURL reports whether the URL path ends in a known media extension.
func IsMediaURL(rawURL string) bool {
	return MediaTypeForURL(rawURL) != models.MediaTypeNone
}

// BuildAbsoluteURL resolves ref against base, validates and normalizes the result.
// ok is false when resolution fails or the result is not a valid URL.
func BuildAbsoluteURL(base, ref string) (absolute string, ok bool) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	resolved := baseURL.ResolveReference(refURL)
	if !IsValidURL(resolved.String()) {
		return "", false
	}
	return NormalizeURL(resolved), true
}

// GetDomain returns the host[:port] part of a URL, lower-cased.
func GetDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// IsSameDomain compares the hosts of two URLs, ignoring scheme and path.
func IsSameDomain(a, b string) bool {
	da := GetDomain(a)
	return da != "" && da == GetDomain(b)
}

// FilterSameDomain keeps the URLs whose host equals base's host.
func FilterSameDomain(urls []string, base string) []string {
	baseDomain := GetDomain(base)
	var out []string
	for _, u := range urls {
		if baseDomain != "" && GetDomain(u) == baseDomain {
			out = append(out, u)
		}
	}
	return out
}

// RobotsURL returns scheme://host/robots.txt for the URL's origin.
func RobotsURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host + "/robots.txt"
}
