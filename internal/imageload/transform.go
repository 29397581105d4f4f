package imageload

import (
	"context"
	"fmt"
	"image"
)

// Frame pairs a data URL with its decoded bitmap so consecutive stages do
// not need to decode what the previous stage just drew. URL is empty when a
// stage skipped encoding because a later stage redraws the pixels.
type Frame struct {
	URL    DataURL
	Bitmap *Bitmap
}

// Encoded fills in URL when a stage left it empty.
func (f Frame) Encoded(enc Encoding) (Frame, error) {
	if f.URL != "" {
		return f, nil
	}
	url, err := encodeImage(f.Bitmap.Image, enc)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}
	f.URL = url
	return f, nil
}

// CropOptions configures the center-square crop.
type CropOptions struct {
	Enabled bool
	// Size is the output side; 0 means the image's shorter side. It never
	// exceeds the shorter side.
	Size int
}

// CropWindow returns the centered m×m source region and the output side for
// a w×h image.
func CropWindow(w, h, size int) (image.Rectangle, int) {
	m := min(w, h)
	side := m
	if size > 0 && size < m {
		side = size
	}
	x, y := (w-m)/2, (h-m)/2
	return image.Rect(x, y, x+m, y+m), side
}

// cropRedraws reports whether cropping a w×h image changes its pixels.
func cropRedraws(w, h int, opts CropOptions) bool {
	if !opts.Enabled {
		return false
	}
	_, side := CropWindow(w, h, opts.Size)
	return w != h || side != w
}

// CompressedSize returns the dimensions of a w×h image scaled so its shorter
// side equals target. ok is false when no downscale is needed.
func CompressedSize(w, h, target int) (nw, nh int, ok bool) {
	m := min(w, h)
	if target <= 0 || m <= target {
		return w, h, false
	}
	scale := func(v int) int {
		return int((int64(v)*int64(target) + int64(m)/2) / int64(m))
	}
	if w == m {
		return target, max(1, scale(h)), true
	}
	return max(1, scale(w)), target, true
}

// Cropper produces center-square crops.
type Cropper struct {
	surfaces SurfaceProvider
	enc      Encoding
}

// NewCropper returns a cropper drawing on surfaces from p.
func NewCropper(p SurfaceProvider, enc Encoding) *Cropper {
	return &Cropper{surfaces: p, enc: enc}
}

// Crop returns in unchanged when cropping is disabled or the image is
// already a square of the requested side.
func (c *Cropper) Crop(ctx context.Context, in Frame, opts CropOptions) (Frame, error) {
	if !opts.Enabled {
		return in, nil
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	w, h := in.Bitmap.Width(), in.Bitmap.Height()
	if !cropRedraws(w, h, opts) {
		return in, nil
	}

	window, side := CropWindow(w, h, opts.Size)
	return render(c.surfaces, c.enc, in.Bitmap, window, side, side, true)
}

// Compressor downscales images whose shorter side exceeds a target.
type Compressor struct {
	surfaces SurfaceProvider
	enc      Encoding
	// SkipEncode leaves the output Frame's URL empty, for when a later stage
	// redraws the pixels anyway.
	SkipEncode bool
}

// NewCompressor returns a compressor drawing on surfaces from p.
func NewCompressor(p SurfaceProvider, enc Encoding) *Compressor {
	return &Compressor{surfaces: p, enc: enc}
}

// Compress never upscales: images already at or under target are returned
// unchanged.
func (c *Compressor) Compress(ctx context.Context, in Frame, target int) (Frame, error) {
	w, h := in.Bitmap.Width(), in.Bitmap.Height()
	nw, nh, ok := CompressedSize(w, h, target)
	if !ok {
		return in, nil
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	return render(c.surfaces, c.enc, in.Bitmap, image.Rect(0, 0, w, h), nw, nh, !c.SkipEncode)
}

// render draws the src window of bm onto a fresh w×h surface and, when
// encode is set, encodes it. The surface is disposed before returning on
// every path.
func render(p SurfaceProvider, enc Encoding, bm *Bitmap, src image.Rectangle, w, h int, encode bool) (Frame, error) {
	surface, err := p.CreateSurface(w, h, enc)
	if err != nil {
		return Frame{}, err
	}
	defer surface.Dispose()

	surface.DrawImage(bm.Image, src, image.Rect(0, 0, w, h))

	out := Frame{Bitmap: &Bitmap{Image: surface.Image(), Format: enc.Format}}
	if encode {
		if out.URL, err = surface.DataURL(); err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
		}
	}
	return out, nil
}
