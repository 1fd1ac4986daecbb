package media

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/models"
)

const (
	svgMIME      = "image/svg+xml"
	streamInfoTimeout = 30 * time.Second
)

// CommandRunner runs an external tool and returns its standard output
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// MetadataGenerator builds the typed metadata record for a cached file.
// It never fails: inspection problems leave the type-specific fields zeroed.
type MetadataGenerator struct {
	ffprobe string
	runner  CommandRunner
	log     *logrus.Entry
}

// NewMetadataGenerator creates a generator probing audio/video with ffprobePath
func NewMetadataGenerator(ffprobePath string, runner CommandRunner, log *logrus.Entry) *MetadataGenerator {
	if runner == nil {
		runner = ExecRunner{}
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &MetadataGenerator{ffprobe: ffprobePath, runner: runner, log: log}
}

// Generate inspects the file at path. The variant follows the MIME prefix;
// media types outside image/, video/ and audio/ (RealMedia) use Classify.
func (g *MetadataGenerator) Generate(ctx context.Context, path, mimeType string, size int64) models.MediaMetadata {
	category, _, _ := strings.Cut(mimeType, "/")
	kind := models.MediaType(category)
	if !kind.IsValid() {
		kind = Classify(mimeType)
	}
	logEntry := g.log.WithFields(logrus.Fields{"file": filepath.Base(path), "mime": mimeType})

	switch kind {
	case models.MediaTypeImage:
		meta := models.NewMediaMetadata(models.MediaTypeImage, mimeType, size)
		if mimeType == svgMIME || strings.HasSuffix(strings.ToLower(path), ".svg") {
			meta.Image.Format = "SVG"
			meta.Image.Mode = "Vector"
			return meta
		}
		g.fillImage(path, meta.Image, logEntry)
		return meta

	case models.MediaTypeVideo:
		meta := models.NewMediaMetadata(models.MediaTypeVideo, mimeType, size)
		if info, ok := g.readStreams(ctx, path, logEntry); ok {
			if s := info.firstStream("video"); s != nil {
				meta.Video.Width = s.Width
				meta.Video.Height = s.Height
				meta.Video.Codec = s.CodecName
			}
			meta.Video.Format = info.Format.FormatName
			meta.Video.Duration = parseFloat(info.Format.Duration)
		}
		return meta

	case models.MediaTypeAudio:
		meta := models.NewMediaMetadata(models.MediaTypeAudio, mimeType, size)
		if info, ok := g.readStreams(ctx, path, logEntry); ok {
			if s := info.firstStream("audio"); s != nil {
				meta.Audio.Codec = s.CodecName
				meta.Audio.Bitrate = parseInt(s.BitRate)
			}
			if meta.Audio.Bitrate == 0 {
				meta.Audio.Bitrate = parseInt(info.Format.BitRate)
			}
			meta.Audio.Format = info.Format.FormatName
			meta.Audio.Duration = parseFloat(info.Format.Duration)
		}
		return meta
	}

	return models.NewMediaMetadata(models.MediaTypeNone, mimeType, size)
}

func (g *MetadataGenerator) fillImage(path string, details *models.ImageDetails, logEntry *logrus.Entry) {
	f, err := os.Open(path)
	if err != nil {
		logEntry.Warnf("Error opening image for metadata: %v", err)
		return
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		logEntry.Warnf("Error creating image metadata: %v", err)
		return
	}
	details.Width = cfg.Width
	details.Height = cfg.Height
	details.Format = strings.ToUpper(format)
	details.Mode = colorMode(cfg.ColorModel)

	if format == "jpeg" || format == "tiff" {
		fillExif(path, details, logEntry)
	}
}

// fillExif copies camera fields from the file's EXIF block, if it has one
func fillExif(path string, details *models.ImageDetails, logEntry *logrus.Entry) {
	rawExif, err := exif.SearchFileAndExtractExif(path)
	if err != nil || rawExif == nil {
		return
	}
	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		logEntry.Debugf("Unreadable EXIF block: %v", err)
		return
	}

	for _, entry := range entries {
		value := strings.TrimSpace(entry.Formatted)
		switch entry.TagName {
		case "Make":
			details.CameraMake = value
		case "Model":
			details.CameraModel = value
		case "Orientation":
			details.Orientation = value
		case "DateTimeOriginal":
			details.TakenAt = value
		case "DateTime":
			if details.TakenAt == "" {
				details.TakenAt = value
			}
		}
	}
}

// colorMode names a decoder color model the way image tools report modes
func colorMode(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	switch m {
	case color.RGBAModel, color.RGBA64Model, color.YCbCrModel:
		return "RGB"
	case color.NRGBAModel, color.NRGBA64Model, color.NYCbCrAModel:
		return "RGBA"
	case color.GrayModel, color.Gray16Model:
		return "L"
	case color.CMYKModel:
		return "CMYK"
	}
	return ""
}

// streamInfo is the subset of ffprobe's JSON output we read
type streamInfo struct {
	Streams []streamEntry `json:"streams"`
	Format  struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

type streamEntry struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	BitRate   string `json:"bit_rate"`
}

func (p *streamInfo) firstStream(codecType string) *streamEntry {
	for i := range p.Streams {
		if p.Streams[i].CodecType == codecType {
			return &p.Streams[i]
		}
	}
	return nil
}

func (g *MetadataGenerator) readStreams(ctx context.Context, path string, logEntry *logrus.Entry) (*streamInfo, bool) {
	infoCtx, cancel := context.WithTimeout(ctx, streamInfoTimeout)
	defer cancel()

	out, err := g.runner.Run(infoCtx, g.ffprobe,
		"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path)
	if err != nil {
		logEntry.Warnf("ffprobe failed: %v", err)
		return nil, false
	}

	var result streamInfo
	if err := json.Unmarshal(out, &result); err != nil {
		logEntry.Warnf("Unparsable ffprobe output: %v", err)
		return nil, false
	}
	return &result, true
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}
