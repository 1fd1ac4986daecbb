package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
)

// fakeRunner records invocations and answers from canned output. When
// writeLast is set, the last argument is treated as an output file and filled.
type fakeRunner struct {
	mu        sync.Mutex
	calls     [][]string
	output    []byte
	err       error
	writeLast []byte
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if f.writeLast != nil && len(args) > 0 {
		if err := os.WriteFile(args[len(args)-1], f.writeLast, 0o644); err != nil {
			return nil, err
		}
	}
	return f.output, f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

const videoProbe = `{
  "streams": [
    {"codec_type": "audio", "codec_name": "aac", "bit_rate": "128000"},
    {"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
    {"codec_type": "video", "codec_name": "mjpeg", "width": 320, "height": 240}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.480000", "bit_rate": "900000"}
}`

const audioProbe = `{
  "streams": [{"codec_type": "audio", "codec_name": "mp3"}],
  "format": {"format_name": "mp3", "duration": "215.3", "bit_rate": "192000"}
}`

func TestMetadataGenerator_Image(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "photo.png", pngBytes(t, 40, 20))
	gen := NewMetadataGenerator("ffprobe", &fakeRunner{}, testLogger())

	meta := gen.Generate(context.Background(), path, "image/png", 123)

	assert.Equal(t, models.MediaTypeImage, meta.Kind)
	assert.Equal(t, int64(123), meta.FileSize)
	assert.Equal(t, "image/png", meta.MimeType)
	require.NotNil(t, meta.Image)
	assert.Equal(t, 40, meta.Image.Width)
	assert.Equal(t, 20, meta.Image.Height)
	assert.Equal(t, "PNG", meta.Image.Format)
	assert.Equal(t, "RGB", meta.Image.Mode, "opaque PNGs are encoded without alpha")
	assert.Nil(t, meta.Video)
	assert.Nil(t, meta.Audio)
}

func TestMetadataGenerator_SVG(t *testing.T) {
	path := writeFile(t, t.TempDir(), "logo.svg", svgBytes)
	gen := NewMetadataGenerator("ffprobe", &fakeRunner{}, testLogger())

	meta := gen.Generate(context.Background(), path, "image/svg+xml", int64(len(svgBytes)))

	require.NotNil(t, meta.Image)
	assert.Equal(t, "SVG", meta.Image.Format)
	assert.Equal(t, "Vector", meta.Image.Mode)
	assert.Zero(t, meta.Image.Width)
}

func TestMetadataGenerator_CorruptImageZeroed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.png", []byte("\x89PNG\r\n\x1a\ngarbage"))
	gen := NewMetadataGenerator("ffprobe", &fakeRunner{}, testLogger())

	meta := gen.Generate(context.Background(), path, "image/png", 16)

	assert.Equal(t, models.MediaTypeImage, meta.Kind)
	require.NotNil(t, meta.Image)
	assert.Equal(t, models.ImageDetails{}, *meta.Image)
}

func TestMetadataGenerator_Video(t *testing.T) {
	runner := &fakeRunner{output: []byte(videoProbe)}
	gen := NewMetadataGenerator("/opt/ffprobe", runner, testLogger())

	meta := gen.Generate(context.Background(), "/tmp/clip.mp4", "video/mp4", 5000)

	require.NotNil(t, meta.Video)
	assert.Equal(t, models.VideoDetails{
		Width:    1920,
		Height:   1080,
		Duration: 12.48,
		Format:   "mov,mp4,m4a,3gp,3g2,mj2",
		Codec:    "h264",
	}, *meta.Video)

	require.Equal(t, 1, runner.callCount())
	assert.Equal(t, []string{"/opt/ffprobe", "-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", "/tmp/clip.mp4"}, runner.calls[0])
}

func TestMetadataGenerator_AudioBitrateFallback(t *testing.T) {
	gen := NewMetadataGenerator("ffprobe", &fakeRunner{output: []byte(audioProbe)}, testLogger())

	meta := gen.Generate(context.Background(), "/tmp/song.mp3", "audio/mpeg", 42)

	require.NotNil(t, meta.Audio)
	assert.Equal(t, models.AudioDetails{Duration: 215.3, Bitrate: 192000, Format: "mp3", Codec: "mp3"}, *meta.Audio)
}

func TestMetadataGenerator_ProbeFailures(t *testing.T) {
	tests := []struct {
		name   string
		runner *fakeRunner
	}{
		{"CommandError", &fakeRunner{err: errors.New("exec: \"ffprobe\": executable file not found")}},
		{"BadJSON", &fakeRunner{output: []byte("{not json")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewMetadataGenerator("ffprobe", tt.runner, testLogger())

			video := gen.Generate(context.Background(), "/tmp/v.webm", "video/webm", 1)
			require.NotNil(t, video.Video)
			assert.Equal(t, models.VideoDetails{}, *video.Video)

			audio := gen.Generate(context.Background(), "/tmp/a.ogg", "audio/ogg", 1)
			require.NotNil(t, audio.Audio)
			assert.Equal(t, models.AudioDetails{}, *audio.Audio)
		})
	}
}

func TestMetadataGenerator_KindFollowsMIME(t *testing.T) {
	gen := NewMetadataGenerator("ffprobe", &fakeRunner{err: errors.New("no ffprobe")}, testLogger())
	path := filepath.Join(t.TempDir(), "x")

	assert.Equal(t, models.MediaTypeVideo, gen.Generate(context.Background(), path, "application/vnd.rn-realmedia", 1).Kind)
	assert.Equal(t, models.MediaTypeNone, gen.Generate(context.Background(), path, "application/pdf", 1).Kind)
}
