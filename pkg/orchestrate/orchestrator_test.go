package orchestrate

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/cache"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// noTools stands in for missing ffprobe/ffmpeg binaries
type noTools struct{}

func (noTools) Run(context.Context, string, ...string) ([]byte, error) {
	return nil, errors.New("executable file not found")
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	picture := pngBytes(t)
	mux := http.NewServeMux()
	serveHTML := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = io.WriteString(w, body)
		}
	}
	mux.HandleFunc("/{$}", serveHTML(`<html><body><img src="/a.png"></body></html>`))
	mux.HandleFunc("/empty", serveHTML(`<html><body><p>nothing here</p></body></html>`))
	mux.HandleFunc("/broken", serveHTML(`<html><body><img src="/missing.png"></body></html>`))
	mux.HandleFunc("/a.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(picture)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	cfg.RequestTimeout = 5
	cfg.RobotsTimeout = 2 * time.Second
	mgr, err := cache.NewManager(t.TempDir(), testLogger())
	require.NoError(t, err)
	return NewOrchestrator(&cfg, mgr, noTools{}, testLogger())
}

func TestRun_DownloadsMedia(t *testing.T) {
	srv := newTestSite(t)
	o := newTestOrchestrator(t)

	res, err := o.Run(context.Background(), Request{URL: srv.URL, Depth: 0})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, 1, res.MediaCount)
	assert.Equal(t, 1, res.Stats.TotalPages)
	assert.Equal(t, 1, res.Stats.ImageCount)
	assert.Equal(t, 100.0, res.Summary.Pages.SuccessRate)
	require.Len(t, res.Media, 1)
	assert.Equal(t, models.MediaTypeImage, res.Media[0].MediaType)

	require.NotNil(t, res.CacheInfo)
	assert.Equal(t, o.Cache().GetSessionPath(res.SessionID), res.CacheInfo.Path)
	assert.Equal(t, 1, res.CacheInfo.MediaCount)
	assert.Positive(t, res.CacheInfo.DiskUsage)

	stored := o.Cache().GetMediaMetadata(res.SessionID)
	require.Len(t, stored, 1)
	assert.Equal(t, res.Media[0].ID, stored[0].ID)
}

func TestRun_NoMedia(t *testing.T) {
	srv := newTestSite(t)
	o := newTestOrchestrator(t)

	res, err := o.Run(context.Background(), Request{URL: srv.URL + "/empty", Depth: 0})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Zero(t, res.MediaCount)
	assert.Equal(t, NoMediaWarning, res.Warning)
	assert.Nil(t, res.CacheInfo)
	assert.True(t, o.Cache().SessionExists(res.SessionID))
}

func TestRun_AllDownloadsFail(t *testing.T) {
	srv := newTestSite(t)
	o := newTestOrchestrator(t)

	res, err := o.Run(context.Background(), Request{URL: srv.URL + "/broken", Depth: 0})
	require.NoError(t, err, "failed downloads are reported in the result, not as an error")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Found 1 media URLs but failed to download")
	assert.Equal(t, 1, res.Stats.TotalPages)
	assert.NotEmpty(t, res.SessionID)
}

func TestRun_InvalidURL(t *testing.T) {
	o := newTestOrchestrator(t)

	res, err := o.Run(context.Background(), Request{URL: "ftp:/nope"})
	require.ErrorIs(t, err, utils.ErrParsing)
	assert.Nil(t, res)
}

func TestRun_ClearsPreviousSession(t *testing.T) {
	srv := newTestSite(t)
	o := newTestOrchestrator(t)
	previous, err := o.Cache().CreateSession()
	require.NoError(t, err)

	res, err := o.Run(context.Background(), Request{URL: srv.URL + "/empty", PreviousSessionID: previous})
	require.NoError(t, err)

	assert.False(t, o.Cache().SessionExists(previous))
	assert.NotEqual(t, previous, res.SessionID)
}

func TestRun_UnreachableSeed(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	seed := dead.URL
	dead.Close()
	o := newTestOrchestrator(t)

	res, err := o.Run(context.Background(), Request{URL: seed})
	require.ErrorIs(t, err, utils.ErrCrawlFailed)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Crawl failed")
}

func TestRunAll_KeepsRequestOrder(t *testing.T) {
	srv := newTestSite(t)
	o := newTestOrchestrator(t)

	results := o.RunAll(context.Background(), []Request{
		{URL: srv.URL + "/empty"},
		{URL: "not-a-url"},
		{URL: srv.URL},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.Equal(t, NoMediaWarning, results[0].Warning)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "invalid URL")
	assert.True(t, results[2].Success)
	assert.Equal(t, 1, results[2].MediaCount)
	assert.NotEqual(t, results[0].SessionID, results[2].SessionID)
}
