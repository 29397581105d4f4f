package imageload

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"
)

// memFile is an in-memory File, the shape a drop event hands over.
type memFile struct {
	name     string
	mimeType string
	data     []byte
	size     int64 // overrides len(data) when non-zero
	openErr  error
}

func (f *memFile) Name() string     { return f.name }
func (f *memFile) MimeType() string { return f.mimeType }

func (f *memFile) Size() int64 {
	if f.size != 0 {
		return f.size
	}
	return int64(len(f.data))
}

func (f *memFile) Open() (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }
func (failingReader) Close() error             { return nil }

type brokenFile struct{ memFile }

func (f *brokenFile) Open() (io.ReadCloser, error) { return failingReader{}, nil }

func solid(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}
	return buf.Bytes()
}

func pngFile(t *testing.T, name string, width, height int) *memFile {
	t.Helper()
	return &memFile{
		name:     name,
		mimeType: "image/png",
		data:     encodePNG(t, solid(width, height, color.NRGBA{R: 200, G: 40, B: 40, A: 255})),
	}
}

func dims(t *testing.T, u DataURL) (int, int) {
	t.Helper()
	data, err := u.Bytes()
	if err != nil {
		t.Fatalf("parsing data url: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding config: %v", err)
	}
	return cfg.Width, cfg.Height
}

func frameOf(t *testing.T, img image.Image) Frame {
	t.Helper()
	return Frame{
		URL:    EncodeDataURL("image/png", encodePNG(t, img)),
		Bitmap: &Bitmap{Image: img, Format: "png"},
	}
}
