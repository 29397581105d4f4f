package imageload

import (
	"bytes"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Encoding selects how a surface serializes its pixels.
type Encoding struct {
	Format  string
	Quality int
}

// Surface is an off-screen drawing area. It is owned by exactly one stage and
// must be disposed on every exit path.
type Surface interface {
	// DrawImage scales the sr region of src into the dr region of the surface.
	// sr is relative to the origin of src's bounds.
	DrawImage(src image.Image, sr, dr image.Rectangle)
	// Image returns the surface pixels.
	Image() image.Image
	DataURL() (DataURL, error)
	Dispose()
}

// SurfaceProvider allocates surfaces.
type SurfaceProvider interface {
	CreateSurface(width, height int, enc Encoding) (Surface, error)
}

const (
	DefaultMaxSurfaceSide = 16384
	DefaultMaxSurfaceArea = 16384 * 16384
)

// Resampling filters a RasterProvider can scale with.
const (
	ResampleCatmullRom = "catmullrom"
	ResampleLanczos3   = "lanczos3"
)

// RasterProvider allocates in-memory NRGBA surfaces.
type RasterProvider struct {
	MaxSide int
	MaxArea int64
	// Resampler is ResampleCatmullRom (the default) or ResampleLanczos3.
	Resampler string

	live atomic.Int64
}

// NewRasterProvider returns a provider with the default size limits.
func NewRasterProvider() *RasterProvider {
	return &RasterProvider{MaxSide: DefaultMaxSurfaceSide, MaxArea: DefaultMaxSurfaceArea}
}

// CreateSurface fails with ErrSurfaceUnavailable when the requested buffer
// is empty or exceeds the provider limits.
func (p *RasterProvider) CreateSurface(width, height int, enc Encoding) (Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrSurfaceUnavailable, width, height)
	}
	if p.MaxSide > 0 && (width > p.MaxSide || height > p.MaxSide) {
		return nil, fmt.Errorf("%w: %dx%d exceeds max side %d", ErrSurfaceUnavailable, width, height, p.MaxSide)
	}
	if p.MaxArea > 0 && int64(width)*int64(height) > p.MaxArea {
		return nil, fmt.Errorf("%w: %dx%d exceeds max area %d", ErrSurfaceUnavailable, width, height, p.MaxArea)
	}

	p.live.Add(1)
	return &rasterSurface{
		img:       image.NewNRGBA(image.Rect(0, 0, width, height)),
		enc:       enc,
		resampler: p.Resampler,
		provider:  p,
	}, nil
}

// Live returns the number of surfaces not yet disposed.
func (p *RasterProvider) Live() int64 {
	return p.live.Load()
}

type rasterSurface struct {
	img       *image.NRGBA
	enc       Encoding
	resampler string
	provider  *RasterProvider
	once      sync.Once
}

func (s *rasterSurface) DrawImage(src image.Image, sr, dr image.Rectangle) {
	if s.img == nil {
		return
	}
	sr = sr.Add(src.Bounds().Min)
	if sr.Size() == dr.Size() {
		draw.Draw(s.img, dr, src, sr.Min, draw.Src)
		return
	}
	if s.resampler == ResampleLanczos3 {
		scaled := resize.Resize(uint(dr.Dx()), uint(dr.Dy()), imaging.Crop(src, sr), resize.Lanczos3)
		draw.Draw(s.img, dr, scaled, scaled.Bounds().Min, draw.Src)
		return
	}
	draw.CatmullRom.Scale(s.img, dr, src, sr, draw.Src, nil)
}

func (s *rasterSurface) Image() image.Image {
	return s.img
}

func (s *rasterSurface) DataURL() (DataURL, error) {
	if s.img == nil {
		return "", fmt.Errorf("%w: surface already disposed", ErrSurfaceUnavailable)
	}
	return encodeImage(s.img, s.enc)
}

// encodeImage serializes img as a PNG or JPEG data URL.
func encodeImage(img image.Image, enc Encoding) (DataURL, error) {
	format, mimeType := imaging.PNG, "image/png"
	var opts []imaging.EncodeOption
	if enc.Format == FormatJPEG {
		format, mimeType = imaging.JPEG, "image/jpeg"
		opts = []imaging.EncodeOption{imaging.JPEGQuality(enc.Quality)}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return "", fmt.Errorf("encoding %s: %w", mimeType, err)
	}
	return EncodeDataURL(mimeType, buf.Bytes()), nil
}

// Dispose releases the pixel buffer. Safe to call more than once.
func (s *rasterSurface) Dispose() {
	s.once.Do(func() {
		s.img = nil
		s.provider.live.Add(-1)
	})
}
