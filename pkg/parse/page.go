package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

// cssURLPattern matches url(...) references in inline styles and <style> blocks
var cssURLPattern = regexp.MustCompile(`url\(['"]?([^'"()]+)['"]?\)`)

var (
	// Keys whose subtrees are never mined (config blobs, embedded code)
	skipJSONKeys = []string{"script", "function", "options", "settings", "config"}
	// Keys whose string values are treated as candidate URLs
	urlJSONKeys   = []string{"src", "url", "href", "link", "image", "thumbnail", "poster", "source"}
	mediaJSONKeys = []string{"image", "photo", "picture", "img", "video", "audio", "media", "file"}
)

// skippedLinkPrefixes are href forms that never point at a crawlable resource
var skippedLinkPrefixes = []string{"javascript:", "mailto:", "tel:", "#"}

// urlSet collects unique absolute URLs
type urlSet map[string]struct{}

func (s urlSet) addResolved(base, ref string) {
	if abs, ok := BuildAbsoluteURL(base, ref); ok {
		s[abs] = struct{}{}
	}
}

func (s urlSet) addResolvedMedia(base, ref string) {
	if abs, ok := BuildAbsoluteURL(base, ref); ok && IsMediaURL(abs) {
		s[abs] = struct{}{}
	}
}

func (s urlSet) sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// NewDocument decodes body to UTF-8 using the declared content type (and any
// <meta charset>) and parses it into a goquery document.
func NewDocument(body []byte, contentType string) (*goquery.Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		// Unknown charset label: fall back to the raw bytes
		reader = bytes.NewReader(body)
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: HTML parse: %w", utils.ErrParsing, err)
	}
	return doc, nil
}

// ParseJSON decodes a JSON body into a generic tree.
func ParseJSON(body []byte) (any, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: JSON decode: %w", utils.ErrParsing, err)
	}
	return data, nil
}

// ExtractLinks returns every anchor href, every src attribute and every url()
// reference inside <style> blocks, resolved against baseURL.
func ExtractLinks(doc *goquery.Document, baseURL string) []string {
	links := urlSet{}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || hasSkippedPrefix(href) {
			return
		}
		links.addResolved(baseURL, href)
	})

	doc.Find("[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src != "" {
			links.addResolved(baseURL, src)
		}
	})

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		for _, ref := range cssURLs(s.Text()) {
			links.addResolved(baseURL, ref)
		}
	})

	return links.sorted()
}

// ExtractMediaURLs returns the media references of a page: img src and srcset
// candidates, video/audio/source src, video posters, anchors to media files
// and url() values in inline styles and <style> blocks that look like media.
func ExtractMediaURLs(doc *goquery.Document, baseURL string) []string {
	media := urlSet{}

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
			media.addResolved(baseURL, src)
		}
		for _, candidate := range srcsetCandidates(s.AttrOr("srcset", "")) {
			media.addResolved(baseURL, candidate)
		}
	})

	doc.Find("video, audio, source").Each(func(_ int, s *goquery.Selection) {
		if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
			media.addResolved(baseURL, src)
		}
		if goquery.NodeName(s) == "video" {
			if poster := strings.TrimSpace(s.AttrOr("poster", "")); poster != "" {
				media.addResolved(baseURL, poster)
			}
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href != "" && !hasSkippedPrefix(href) {
			media.addResolvedMedia(baseURL, href)
		}
	})

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		for _, ref := range cssURLs(s.AttrOr("style", "")) {
			media.addResolvedMedia(baseURL, ref)
		}
	})

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		for _, ref := range cssURLs(s.Text()) {
			media.addResolvedMedia(baseURL, ref)
		}
	})

	return media.sorted()
}

// ExtractMediaFromJSON walks a decoded JSON tree and returns media URLs found
// under URL-ish keys or as URL-looking strings inside arrays.
func ExtractMediaFromJSON(data any, baseURL string) []string {
	media := urlSet{}
	walkJSON(data, baseURL, media)
	return media.sorted()
}

func walkJSON(node any, baseURL string, media urlSet) {
	switch v := node.(type) {
	case map[string]any:
		for key, value := range v {
			lowerKey := strings.ToLower(key)
			if containsAny(lowerKey, skipJSONKeys) {
				continue
			}
			switch child := value.(type) {
			case string:
				if containsAny(lowerKey, urlJSONKeys) || containsAny(lowerKey, mediaJSONKeys) {
					media.addResolvedMedia(baseURL, child)
				}
			case map[string]any, []any:
				walkJSON(child, baseURL, media)
			}
		}
	case []any:
		for _, item := range v {
			switch child := item.(type) {
			case string:
				if strings.Contains(child, "://") || strings.HasPrefix(child, "/") {
					media.addResolvedMedia(baseURL, child)
				}
			case map[string]any, []any:
				walkJSON(child, baseURL, media)
			}
		}
	}
}

// srcsetCandidates returns the URL token of each comma-separated srcset entry.
func srcsetCandidates(srcset string) []string {
	var out []string
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(entry)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

func cssURLs(css string) []string {
	matches := cssURLPattern.FindAllStringSubmatch(css, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

func hasSkippedPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, p := range skippedLinkPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
