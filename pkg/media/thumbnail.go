package media

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/config"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

const ffmpegTimeout = 60 * time.Second

// maxThumbnailPixels caps width*height of a source image before it is decoded
const maxThumbnailPixels = 89_478_485

// Placeholder background colors
var (
	colorDefault = color.RGBA{R: 0x21, G: 0x96, B: 0xF3, A: 0xFF} // #2196F3
	colorSVG     = color.RGBA{R: 0x4C, G: 0xAF, B: 0x50, A: 0xFF} // #4CAF50
	colorVideo   = color.RGBA{R: 0x3F, G: 0x51, B: 0xB5, A: 0xFF} // #3F51B5
	colorAudio   = color.RGBA{R: 0xE9, G: 0x1E, B: 0x63, A: 0xFF} // #E91E63
)

// ThumbnailGenerator writes JPEG previews for cached media. Anything it cannot
// render gets a labelled placeholder instead.
type ThumbnailGenerator struct {
	width       int
	height      int
	quality     int
	ffmpeg      string
	frameOffset string
	runner      CommandRunner
	log         *logrus.Entry
}

// NewThumbnailGenerator creates a generator sized from the app configuration
func NewThumbnailGenerator(cfg *config.AppConfig, runner CommandRunner, log *logrus.Entry) *ThumbnailGenerator {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &ThumbnailGenerator{
		width:       cfg.ThumbnailWidth,
		height:      cfg.ThumbnailHeight,
		quality:     cfg.ThumbnailQuality,
		ffmpeg:      cfg.FFmpegPath,
		frameOffset: cfg.VideoFrameOffset,
		runner:      runner,
		log:         log,
	}
}

// Generate writes a thumbnail of the file at path to outputPath. It returns
// false only when not even a placeholder could be written.
func (g *ThumbnailGenerator) Generate(ctx context.Context, path, outputPath string, kind models.MediaType) bool {
	logEntry := g.log.WithFields(logrus.Fields{"file": filepath.Base(path), "type": kind.String()})

	switch kind {
	case models.MediaTypeImage:
		if isSVG(path) {
			return g.placeholder(outputPath, "SVG Image", colorSVG, logEntry)
		}
		if err := g.imageThumbnail(path, outputPath); err != nil {
			logEntry.Warnf("Error generating image thumbnail: %v", err)
			return g.placeholder(outputPath, "Image Thumbnail Error", colorDefault, logEntry)
		}
		logEntry.Debugf("Generated image thumbnail: %s", outputPath)
		return true

	case models.MediaTypeVideo:
		if g.videoThumbnail(ctx, path, outputPath, logEntry) {
			logEntry.Debugf("Generated video thumbnail: %s", outputPath)
			return true
		}
		return g.placeholder(outputPath, "Video File", colorVideo, logEntry)

	case models.MediaTypeAudio:
		return g.placeholder(outputPath, "Audio File", colorAudio, logEntry)

	case models.MediaTypeNone:
	}
	return g.placeholder(outputPath, "File: "+filepath.Base(path), colorDefault, logEntry)
}

func isSVG(path string) bool {
	if strings.HasSuffix(strings.ToLower(path), ".svg") {
		return true
	}
	mimeType, err := SniffFile(path)
	return err == nil && mimeType == svgMIME
}

func (g *ThumbnailGenerator) imageThumbnail(path, outputPath string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening image '%s': %w", utils.ErrFilesystem, path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("%w: decoding image '%s': %w", utils.ErrParsing, path, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxThumbnailPixels {
		return fmt.Errorf("%w: image '%s' is %dx%d, above %d pixels", utils.ErrSizeLimitExceeded, path, cfg.Width, cfg.Height, maxThumbnailPixels)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewinding image '%s': %w", utils.ErrFilesystem, path, err)
	}

	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("%w: decoding image '%s': %w", utils.ErrParsing, path, err)
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), g.width, g.height)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// Transparent areas flatten onto white
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	return g.writeJPEG(outputPath, dst)
}

// videoThumbnail grabs one frame with ffmpeg. Success means a non-empty file exists.
func (g *ThumbnailGenerator) videoThumbnail(ctx context.Context, path, outputPath string, logEntry *logrus.Entry) bool {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		logEntry.Warnf("Error creating thumbnail directory: %v", err)
		return false
	}

	runCtx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", g.width, g.height)
	if _, err := g.runner.Run(runCtx, g.ffmpeg,
		"-i", path, "-ss", g.frameOffset, "-frames:v", "1", "-vf", scale, "-y", outputPath); err != nil {
		logEntry.Debugf("ffmpeg frame extraction failed: %v", err)
	}
	return utils.FileSize(outputPath) > 0
}

// placeholder writes a solid thumbnail with a centered white label
func (g *ThumbnailGenerator) placeholder(outputPath, label string, bg color.Color, logEntry *logrus.Entry) bool {
	img := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
	}
	textWidth := d.MeasureString(label).Ceil()
	d.Dot = fixed.P((g.width-textWidth)/2, g.height/2)
	d.DrawString(label)

	if err := g.writeJPEG(outputPath, img); err != nil {
		logEntry.Warnf("Error generating placeholder thumbnail: %v", err)
		return false
	}
	logEntry.Debugf("Generated placeholder thumbnail: %s", outputPath)
	return true
}

func (g *ThumbnailGenerator) writeJPEG(outputPath string, img image.Image) (err error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("%w: creating thumbnail directory: %w", utils.ErrFilesystem, err)
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("%w: creating thumbnail '%s': %w", utils.ErrFilesystem, outputPath, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: closing thumbnail '%s': %w", utils.ErrFilesystem, outputPath, closeErr)
		}
		if err != nil {
			os.Remove(outputPath)
		}
	}()

	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: g.quality}); err != nil {
		return fmt.Errorf("%w: encoding thumbnail '%s': %w", utils.ErrFilesystem, outputPath, err)
	}
	return nil
}

// fitWithin scales w x h down to fit inside maxW x maxH, keeping the aspect
// ratio. Images that already fit are left alone.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*ratio+0.5))
	nh := max(1, int(float64(h)*ratio+0.5))
	return nw, nh
}
