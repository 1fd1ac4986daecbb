package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

func thumbConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.ThumbnailWidth = 60
	cfg.ThumbnailHeight = 40
	return &cfg
}

func decodeJPEG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err, "thumbnail must be a JPEG")
	return img
}

// pixelRGB returns the 8-bit RGB of the pixel at (x, y)
func pixelRGB(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func TestThumbnail_ImageKeepsAspect(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "wide.png", pngBytes(t, 200, 50))
	out := filepath.Join(dir, "thumbnails", "wide_thumb.jpg")
	gen := NewThumbnailGenerator(thumbConfig(), &fakeRunner{}, testLogger())

	require.True(t, gen.Generate(context.Background(), src, out, models.MediaTypeImage))

	img := decodeJPEG(t, out)
	assert.Equal(t, 60, img.Bounds().Dx())
	assert.Equal(t, 15, img.Bounds().Dy())
}

func TestThumbnail_SmallImageNotUpscaled(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "tiny.png", pngBytes(t, 10, 8))
	out := filepath.Join(dir, "tiny_thumb.jpg")
	gen := NewThumbnailGenerator(thumbConfig(), &fakeRunner{}, testLogger())

	require.True(t, gen.Generate(context.Background(), src, out, models.MediaTypeImage))
	assert.Equal(t, image.Rect(0, 0, 10, 8), decodeJPEG(t, out).Bounds())
}

// pngHeader returns a PNG holding only a signature and an IHDR chunk, enough
// for DecodeConfig to report the dimensions
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestThumbnail_OversizedImageGetsPlaceholder(t *testing.T) {
	dir := t.TempDir()
	data := pngHeader(60000, 60000)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 60000, cfg.Width)

	src := writeFile(t, dir, "huge.png", data)
	out := filepath.Join(dir, "thumbnails", "huge_thumb.jpg")
	gen := NewThumbnailGenerator(thumbConfig(), &fakeRunner{}, testLogger())

	err = gen.imageThumbnail(src, out)
	assert.ErrorIs(t, err, utils.ErrSizeLimitExceeded)

	require.True(t, gen.Generate(context.Background(), src, out, models.MediaTypeImage))
	img := decodeJPEG(t, out)
	assert.Equal(t, image.Rect(0, 0, 60, 40), img.Bounds(), "placeholder at full thumbnail size")
	r, g, b := pixelRGB(img, 1, 1)
	assert.InDelta(t, 0x21, r, 12)
	assert.InDelta(t, 0x96, g, 12)
	assert.InDelta(t, 0xF3, b, 12)
}

func TestThumbnail_Placeholders(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		data    []byte
		kind    models.MediaType
		r, g, b uint8
	}{
		{"SVG", "logo.svg", svgBytes, models.MediaTypeImage, 0x4C, 0xAF, 0x50},
		{"BrokenImage", "broken.png", []byte("not really a png"), models.MediaTypeImage, 0x21, 0x96, 0xF3},
		{"Audio", "song.mp3", mp3Bytes, models.MediaTypeAudio, 0xE9, 0x1E, 0x63},
		{"Unknown", "file.bin", []byte("??"), models.MediaTypeNone, 0x21, 0x96, 0xF3},
	}

	gen := NewThumbnailGenerator(thumbConfig(), &fakeRunner{}, testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeFile(t, dir, tt.file, tt.data)
			out := filepath.Join(dir, "thumbnails", tt.name+"_thumb.jpg")

			require.True(t, gen.Generate(context.Background(), src, out, tt.kind))

			img := decodeJPEG(t, out)
			assert.Equal(t, image.Rect(0, 0, 60, 40), img.Bounds())
			// Corner pixels carry the background; JPEG is lossy so allow some slack
			r, g, b := pixelRGB(img, 1, 1)
			assert.InDelta(t, tt.r, r, 12)
			assert.InDelta(t, tt.g, g, 12)
			assert.InDelta(t, tt.b, b, 12)
		})
	}
}

func TestThumbnail_VideoFrame(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "thumbnails", "clip_thumb.jpg")
	runner := &fakeRunner{writeLast: []byte("fake jpeg frame")}
	cfg := thumbConfig()
	cfg.FFmpegPath = "/usr/bin/ffmpeg"
	gen := NewThumbnailGenerator(cfg, runner, testLogger())

	require.True(t, gen.Generate(context.Background(), "/videos/clip.mp4", out, models.MediaTypeVideo))

	require.Equal(t, 1, runner.callCount())
	assert.Equal(t, []string{
		"/usr/bin/ffmpeg", "-i", "/videos/clip.mp4", "-ss", "00:00:03", "-frames:v", "1",
		"-vf", "scale=60:40:force_original_aspect_ratio=decrease", "-y", out,
	}, runner.calls[0])
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "fake jpeg frame", string(data), "ffmpeg output is kept as-is")
}

func TestThumbnail_VideoFallsBackToPlaceholder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "clip_thumb.jpg")
	gen := NewThumbnailGenerator(thumbConfig(), &fakeRunner{err: errors.New("exit status 1")}, testLogger())

	require.True(t, gen.Generate(context.Background(), "/videos/clip.mp4", out, models.MediaTypeVideo))

	r, g, b := pixelRGB(decodeJPEG(t, out), 1, 1)
	assert.InDelta(t, 0x3F, r, 12)
	assert.InDelta(t, 0x51, g, 12)
	assert.InDelta(t, 0xB5, b, 12)
}

func TestThumbnail_UnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	blocker := writeFile(t, dir, "blocker", []byte("x"))
	gen := NewThumbnailGenerator(thumbConfig(), &fakeRunner{}, testLogger())

	// The parent of the output path is a regular file
	assert.False(t, gen.Generate(context.Background(), "song.mp3", filepath.Join(blocker, "t.jpg"), models.MediaTypeAudio))
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{100, 100, 300, 300, 100, 100},
		{600, 300, 300, 300, 300, 150},
		{300, 900, 300, 300, 100, 300},
		{1000, 1, 300, 300, 300, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.maxW, tt.maxH)
		assert.Equal(t, [2]int{tt.wantW, tt.wantH}, [2]int{w, h})
	}
}
