package compress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"squish/internal/cascade"
	"squish/internal/config"
	"squish/internal/logging"
)

// Output formats understood by the backend.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatBMP  = "bmp"
	FormatWebP = "webp"
	FormatAVIF = "avif"
)

var formatAliases = map[string]string{
	"jpg":  FormatJPEG,
	"jpeg": FormatJPEG,
	"png":  FormatPNG,
	"gif":  FormatGIF,
	"bmp":  FormatBMP,
	"webp": FormatWebP,
	"avif": FormatAVIF,
}

// ErrUnsupportedFormat is returned for target formats the backend cannot write.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Option configures the backend.
type Option func(*ImageBackend)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(b *ImageBackend) {
		if exec != nil {
			b.exec = exec
		}
	}
}

// WithTempDir overrides where external encoders read and write scratch files.
func WithTempDir(dir string) Option {
	return func(b *ImageBackend) {
		b.tempDir = dir
	}
}

// ImageBackend decodes, resizes, and re-encodes images.
type ImageBackend struct {
	cwebp          string
	avifenc        string
	defaultQuality float64
	timeout        time.Duration
	tempDir        string
	exec           Executor
	logger         *slog.Logger
}

// New constructs a backend from the compression section of cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *ImageBackend {
	defaults := config.Default()
	if cfg == nil {
		cfg = &defaults
	}
	quality := cfg.Compression.DefaultQuality
	if quality <= 0 || quality > 1 {
		quality = defaults.Compression.DefaultQuality
	}
	backend := &ImageBackend{
		cwebp:          firstNonEmpty(cfg.Compression.CwebpBinary, defaults.Compression.CwebpBinary),
		avifenc:        firstNonEmpty(cfg.Compression.AvifencBinary, defaults.Compression.AvifencBinary),
		defaultQuality: quality,
		timeout:        cfg.AttemptTimeout(),
		exec:           commandExecutor{},
		logger:         logging.NewComponentLogger(logger, "compress"),
	}
	for _, opt := range opts {
		opt(backend)
	}
	return backend
}

// Dimensions reports the pixel size of artifact without decoding all pixels.
func (b *ImageBackend) Dimensions(_ context.Context, artifact cascade.Artifact) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(artifact.Bytes()))
	if err != nil {
		return 0, 0, fmt.Errorf("decode %s header: %w", artifact.Name, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Compress re-encodes artifact according to opts.
func (b *ImageBackend) Compress(ctx context.Context, artifact cascade.Artifact, opts cascade.Options) (cascade.Artifact, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	img, sourceFormat, err := image.Decode(bytes.NewReader(artifact.Bytes()))
	if err != nil {
		return cascade.Artifact{}, fmt.Errorf("decode %s: %w", artifact.Name, err)
	}
	format, err := NormalizeFormat(opts.TargetFormat, sourceFormat)
	if err != nil {
		return cascade.Artifact{}, err
	}
	img = Resize(img, opts.MaxDimension)
	quality := b.quality(opts.Quality)

	logging.WithContext(ctx, b.logger).Debug("encoding candidate",
		logging.String("source_format", sourceFormat),
		logging.String("target_format", format),
		logging.Float64("quality", quality),
		logging.Int("max_dimension", opts.MaxDimension),
	)

	var data []byte
	switch format {
	case FormatJPEG:
		data, err = encodeJPEG(img, quality)
	case FormatPNG:
		data, err = encodePNG(img)
	case FormatGIF:
		data, err = encodeGIF(img)
	case FormatBMP:
		data, err = encodeBMP(img)
	case FormatWebP:
		data, err = b.encodeExternal(ctx, img, FormatWebP, quality)
	case FormatAVIF:
		data, err = b.encodeExternal(ctx, img, FormatAVIF, quality)
	}
	if err != nil {
		return cascade.Artifact{}, err
	}
	return cascade.NewArtifact("", data), nil
}

func (b *ImageBackend) quality(q *float64) float64 {
	if q == nil {
		return b.defaultQuality
	}
	return math.Min(math.Max(*q, 0), 1)
}

// NormalizeFormat resolves the output format: target when set, else source.
func NormalizeFormat(target, source string) (string, error) {
	value := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(target), "."))
	value = strings.TrimPrefix(value, "image/")
	if value == "" {
		value = strings.ToLower(source)
	}
	if format, ok := formatAliases[value]; ok {
		return format, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
}

// Resize downscales img so its longest side is at most maxDimension. A
// non-positive maxDimension or an already small image is returned unchanged.
func Resize(img image.Image, maxDimension int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := max(w, h)
	if maxDimension <= 0 || longest <= maxDimension {
		return img
	}
	scale := float64(maxDimension) / float64(longest)
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality float64) ([]byte, error) {
	q := int(math.Round(quality * 100))
	q = min(max(q, 1), 100)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeGIF(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256, Drawer: draw.FloydSteinberg}); err != nil {
		return nil, fmt.Errorf("encode gif: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeBMP(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode bmp: %w", err)
	}
	return buf.Bytes(), nil
}

// flatten composites transparent pixels onto white; JPEG has no alpha.
func flatten(img image.Image) image.Image {
	if isOpaque(img) {
		return img
	}
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Over)
	return dst
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

func (b *ImageBackend) encodeExternal(ctx context.Context, img image.Image, format string, quality float64) ([]byte, error) {
	dir, err := os.MkdirTemp(b.tempDir, "squish-"+format+"-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.png")
	output := filepath.Join(dir, "output."+format)
	source, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(input, source, 0o600); err != nil {
		return nil, fmt.Errorf("write scratch input: %w", err)
	}

	q := fmt.Sprintf("%d", min(max(int(math.Round(quality*100)), 0), 100))
	var binary string
	var args []string
	switch format {
	case FormatWebP:
		binary = b.cwebp
		args = []string{"-quiet", "-q", q, input, "-o", output}
	case FormatAVIF:
		binary = b.avifenc
		args = []string{"-q", q, input, output}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err := b.exec.Run(ctx, binary, args); err != nil {
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("read %s output: %w", binary, err)
	}
	return data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
