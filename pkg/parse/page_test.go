package parse

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "https://example.com/gallery/"

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := NewDocument([]byte(html), "text/html; charset=utf-8")
	require.NoError(t, err)
	return doc
}

func TestExtractLinks(t *testing.T) {
	doc := mustDoc(t, `<html><head>
<style>.hero { background: url('/img/hero.jpg'); } .x { background: url(bg.css.png) }</style>
</head><body>
<a href="/about/">About</a>
<a href="page2.html#top">Next</a>
<a href="javascript:void(0)">JS</a>
<a href="mailto:me@example.com">Mail</a>
<a href="tel:+123">Call</a>
<a href="#section">Anchor</a>
<a href="https://other.com/x">External</a>
<a href="http://[::1">Broken</a>
<script src="/static/app.js"></script>
<iframe src="/embed"></iframe>
</body></html>`)

	got := ExtractLinks(doc, testBase)

	assert.ElementsMatch(t, []string{
		"https://example.com/about",
		"https://example.com/gallery/page2.html",
		"https://other.com/x",
		"https://example.com/static/app.js",
		"https://example.com/embed",
		"https://example.com/img/hero.jpg",
		"https://example.com/gallery/bg.css.png",
	}, got)
}

func TestExtractMediaURLs(t *testing.T) {
	doc := mustDoc(t, `<html><head>
<style>body { background-image: url("/bg/paper.png"); } @import url("/css/theme.css");</style>
</head><body>
<img src="/a.png">
<img src="b.jpg" srcset="b-small.jpg 480w, /b-large.jpg 1080w , https://cdn.example.net/b-2x.jpg 2x">
<video src="/clip.mp4" poster="/poster.webp"><source src="/clip.webm" type="video/webm"></video>
<audio><source src="/song.mp3"></audio>
<a href="/download/photo.gif">Photo</a>
<a href="/download/readme.txt">Readme</a>
<div style="background: url('/tiles/tile.bmp')"></div>
<div style="background: url('/tiles/not-media')"></div>
</body></html>`)

	got := ExtractMediaURLs(doc, testBase)

	assert.ElementsMatch(t, []string{
		"https://example.com/a.png",
		"https://example.com/gallery/b.jpg",
		"https://example.com/gallery/b-small.jpg",
		"https://example.com/b-large.jpg",
		"https://cdn.example.net/b-2x.jpg",
		"https://example.com/clip.mp4",
		"https://example.com/poster.webp",
		"https://example.com/clip.webm",
		"https://example.com/song.mp3",
		"https://example.com/download/photo.gif",
		"https://example.com/tiles/tile.bmp",
		"https://example.com/bg/paper.png",
	}, got)
}

func TestExtractMediaURLs_ImgSrcKeptWithoutExtension(t *testing.T) {
	// img/video src values are taken as-is; only anchors and CSS need an extension match
	doc := mustDoc(t, `<img src="/render?id=5"><a href="/render?id=6">x</a>`)
	got := ExtractMediaURLs(doc, testBase)
	assert.Equal(t, []string{"https://example.com/render?id=5"}, got)
}

func TestExtractMediaURLs_Sorted(t *testing.T) {
	doc := mustDoc(t, `<img src="/z.png"><img src="/a.png"><img src="/a.png">`)
	got := ExtractMediaURLs(doc, testBase)
	assert.Equal(t, []string{"https://example.com/a.png", "https://example.com/z.png"}, got)
}

func TestNewDocument_DecodesCharset(t *testing.T) {
	// "café.png" encoded in ISO-8859-1
	body := []byte("<img src=\"/caf\xe9.png\">")
	doc, err := NewDocument(body, "text/html; charset=iso-8859-1")
	require.NoError(t, err)

	src, _ := doc.Find("img").Attr("src")
	assert.Equal(t, "/café.png", src)
}

func TestExtractMediaFromJSON(t *testing.T) {
	data, err := ParseJSON([]byte(`{
  "title": "gallery",
  "image": "/img/cover.jpg",
  "heroImageUrl": "https://cdn.example.net/hero.png",
  "thumbnail": "/thumbs/t.jpg?size=small",
  "website": "/about.html",
  "description": "/not/a/key/match.png",
  "items": [
    {"src": "/media/one.mp4"},
    {"photo": "two.webp"},
    ["/nested/list.mp3", "not-a-url.png", "https://x.org/page"]
  ],
  "gallery": ["/g/1.gif", "relative.gif", "//proto-relative.example.com/p.png"],
  "config": {"image": "/skip/config.png"},
  "playerOptions": {"video": "/skip/options.mp4"},
  "onloadScript": "/skip/script.png",
  "count": 3,
  "flag": true,
  "nothing": null
}`))
	require.NoError(t, err)

	got := ExtractMediaFromJSON(data, testBase)

	assert.ElementsMatch(t, []string{
		"https://example.com/img/cover.jpg",
		"https://cdn.example.net/hero.png",
		"https://example.com/thumbs/t.jpg?size=small",
		"https://example.com/media/one.mp4",
		"https://example.com/gallery/two.webp",
		"https://example.com/nested/list.mp3",
		"https://example.com/g/1.gif",
		"https://proto-relative.example.com/p.png",
	}, got)
	for _, u := range got {
		assert.False(t, strings.Contains(u, "/skip/"), "skipped key leaked: %s", u)
	}
}

func TestExtractMediaFromJSON_TopLevelArrayAndScalars(t *testing.T) {
	data, err := ParseJSON([]byte(`["/a.png", {"url": "/b.mp3"}, 5, "c.png"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a.png", "https://example.com/b.mp3"}, ExtractMediaFromJSON(data, testBase))

	scalar, err := ParseJSON([]byte(`"just a string"`))
	require.NoError(t, err)
	assert.Empty(t, ExtractMediaFromJSON(scalar, testBase))
}

func TestParseJSON_Invalid(t *testing.T) {
	_, err := ParseJSON([]byte(`{"unterminated": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON")
}
