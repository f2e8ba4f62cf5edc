package compress_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"testing"

	"squish/internal/cascade"
	"squish/internal/compress"
	"squish/internal/config"
)

func gradientPNG(t *testing.T, w, h int, alpha bool) cascade.Artifact {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if alpha && x < w/2 {
				a = 0
			}
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8((x + y) % 256), A: a})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return cascade.NewArtifact("fixture.png", buf.Bytes())
}

type stubExecutor struct {
	binary string
	args   []string
	err    error
	output []byte
}

func (s *stubExecutor) Run(_ context.Context, binary string, args []string) error {
	s.binary = binary
	s.args = append([]string(nil), args...)
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(args[len(args)-1], s.output, 0o600)
}

func newBackend(t *testing.T, opts ...compress.Option) *compress.ImageBackend {
	t.Helper()
	cfg := config.Default()
	opts = append([]compress.Option{compress.WithTempDir(t.TempDir())}, opts...)
	return compress.New(&cfg, nil, opts...)
}

func TestDimensions(t *testing.T) {
	backend := newBackend(t)
	w, h, err := backend.Dimensions(context.Background(), gradientPNG(t, 64, 32, false))
	if err != nil {
		t.Fatalf("Dimensions returned error: %v", err)
	}
	if w != 64 || h != 32 {
		t.Fatalf("dimensions = %dx%d, want 64x32", w, h)
	}
	if _, _, err := backend.Dimensions(context.Background(), cascade.NewArtifact("notes.txt", []byte("hello"))); err == nil {
		t.Fatal("expected error for non-image data")
	}
}

func TestCompressJPEGResizesAndFlattens(t *testing.T) {
	backend := newBackend(t)
	out, err := backend.Compress(context.Background(), gradientPNG(t, 200, 100, true), cascade.Options{
		TargetFormat: "jpg",
		Quality:      cascade.Float(0.6),
		MaxDimension: 50,
	})
	if err != nil {
		t.Fatalf("Compress returned error: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("output is not a jpeg: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Fatalf("resized to %dx%d, want 50x25", b.Dx(), b.Dy())
	}
	r, g, bl, _ := img.At(2, 12).RGBA()
	if r>>8 < 200 || g>>8 < 200 || bl>>8 < 200 {
		t.Fatalf("transparent area should flatten to white, got %d %d %d", r>>8, g>>8, bl>>8)
	}
}

func TestCompressKeepsSourceFormatWhenTargetEmpty(t *testing.T) {
	backend := newBackend(t)
	out, err := backend.Compress(context.Background(), gradientPNG(t, 16, 16, false), cascade.Options{})
	if err != nil {
		t.Fatalf("Compress returned error: %v", err)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(out.Bytes())); err != nil || format != "png" {
		t.Fatalf("expected png output, got %q (%v)", format, err)
	}
}

func TestCompressWebPUsesCwebp(t *testing.T) {
	exec := &stubExecutor{output: []byte("RIFFfakewebp")}
	backend := newBackend(t, compress.WithExecutor(exec))
	out, err := backend.Compress(context.Background(), gradientPNG(t, 8, 8, false), cascade.Options{
		TargetFormat: "webp",
		Quality:      cascade.Float(0.8),
	})
	if err != nil {
		t.Fatalf("Compress returned error: %v", err)
	}
	if string(out.Bytes()) != "RIFFfakewebp" {
		t.Fatalf("unexpected output %q", out.Bytes())
	}
	if exec.binary != "cwebp" {
		t.Fatalf("unexpected binary %q", exec.binary)
	}
	if exec.args[1] != "-q" || exec.args[2] != "80" {
		t.Fatalf("unexpected args %v", exec.args)
	}
}

func TestCompressAVIFFailurePropagates(t *testing.T) {
	exec := &stubExecutor{err: errors.New("exit status 1")}
	backend := newBackend(t, compress.WithExecutor(exec))
	_, err := backend.Compress(context.Background(), gradientPNG(t, 8, 8, false), cascade.Options{TargetFormat: "avif"})
	if err == nil {
		t.Fatal("expected encoder failure")
	}
	if exec.binary != "avifenc" || exec.args[1] != "82" {
		t.Fatalf("expected avifenc with default quality, got %s %v", exec.binary, exec.args)
	}
}

func TestNormalizeFormat(t *testing.T) {
	cases := []struct {
		target, source, want string
	}{
		{"JPG", "png", "jpeg"},
		{"image/webp", "png", "webp"},
		{"", "gif", "gif"},
		{".avif", "", "avif"},
	}
	for _, tc := range cases {
		got, err := compress.NormalizeFormat(tc.target, tc.source)
		if err != nil || got != tc.want {
			t.Fatalf("NormalizeFormat(%q, %q) = %q, %v; want %q", tc.target, tc.source, got, err, tc.want)
		}
	}
	if _, err := compress.NormalizeFormat("tiff", "png"); !errors.Is(err, compress.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestResizeLeavesSmallImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 20))
	if got := compress.Resize(img, 0); got != image.Image(img) {
		t.Fatal("zero max dimension should be a no-op")
	}
	if got := compress.Resize(img, 20); got != image.Image(img) {
		t.Fatal("image within bounds should be returned unchanged")
	}
	if b := compress.Resize(img, 5).Bounds(); b.Dx() != 3 || b.Dy() != 5 {
		t.Fatalf("unexpected resized bounds %v", b)
	}
}

func TestCompressTinyImageHonoursOnePixelBound(t *testing.T) {
	out, err := newBackend(t).Compress(context.Background(), gradientPNG(t, 3, 2, false), cascade.Options{
		TargetFormat: "png",
		MaxDimension: cascade.MaxDimension(3, 2, 0.25),
	})
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 1 || cfg.Height != 1 {
		t.Fatalf("output is %dx%d, want 1x1", cfg.Width, cfg.Height)
	}
}
