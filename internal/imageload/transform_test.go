package imageload

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngEncoding = Encoding{Format: FormatPNG}

func TestCropWindow(t *testing.T) {
	tests := []struct {
		name       string
		w, h, size int
		wantRect   image.Rectangle
		wantSide   int
	}{
		{"landscape", 400, 300, 0, image.Rect(50, 0, 350, 300), 300},
		{"portrait", 300, 400, 0, image.Rect(0, 50, 300, 350), 300},
		{"square", 256, 256, 0, image.Rect(0, 0, 256, 256), 256},
		{"odd margin floors", 401, 300, 0, image.Rect(50, 0, 350, 300), 300},
		{"fixed size downsamples", 400, 300, 100, image.Rect(50, 0, 350, 300), 100},
		{"fixed size capped at min side", 400, 300, 1000, image.Rect(50, 0, 350, 300), 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, side := CropWindow(tt.w, tt.h, tt.size)
			assert.Equal(t, tt.wantRect, r)
			assert.Equal(t, tt.wantSide, side)
		})
	}
}

func TestCompressedSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h, target int
		wantW, wantH int
		wantOK       bool
	}{
		{"landscape", 1000, 500, 250, 500, 250, true},
		{"portrait", 500, 1000, 250, 250, 500, true},
		{"rounds long side", 1001, 500, 250, 501, 250, true},
		{"at target", 500, 250, 250, 500, 250, false},
		{"below target", 100, 80, 250, 100, 80, false},
		{"no target", 1000, 500, 0, 1000, 500, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, ok := CompressedSize(tt.w, tt.h, tt.target)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestCropper_CentersWindow(t *testing.T) {
	// Blue margins, red 300x300 center.
	img := solid(400, 300, color.NRGBA{B: 255, A: 255})
	red := color.NRGBA{R: 255, A: 255}
	for y := 0; y < 300; y++ {
		for x := 50; x < 350; x++ {
			img.Set(x, y, red)
		}
	}

	p := NewRasterProvider()
	out, err := NewCropper(p, pngEncoding).Crop(context.Background(), frameOf(t, img), CropOptions{Enabled: true})
	require.NoError(t, err)

	w, h := dims(t, out.URL)
	assert.Equal(t, 300, w)
	assert.Equal(t, 300, h)

	for _, pt := range []image.Point{{0, 0}, {299, 0}, {0, 299}, {299, 299}, {150, 150}} {
		assert.Equal(t, red, color.NRGBAModel.Convert(out.Bitmap.Image.At(pt.X, pt.Y)), "pixel %v", pt)
	}
	assert.Zero(t, p.Live(), "surface must be disposed")
}

func TestCropper_FixedSize(t *testing.T) {
	p := NewRasterProvider()
	out, err := NewCropper(p, pngEncoding).Crop(context.Background(),
		frameOf(t, solid(400, 300, color.White)), CropOptions{Enabled: true, Size: 64})
	require.NoError(t, err)

	w, h := dims(t, out.URL)
	assert.Equal(t, 64, w)
	assert.Equal(t, 64, h)
}

func TestCropper_Identity(t *testing.T) {
	p := NewRasterProvider()
	c := NewCropper(p, pngEncoding)

	t.Run("disabled", func(t *testing.T) {
		in := frameOf(t, solid(400, 300, color.White))
		out, err := c.Crop(context.Background(), in, CropOptions{})
		require.NoError(t, err)
		assert.Equal(t, in.URL, out.URL)
	})

	t.Run("already square", func(t *testing.T) {
		in := frameOf(t, solid(128, 128, color.White))
		out, err := c.Crop(context.Background(), in, CropOptions{Enabled: true})
		require.NoError(t, err)
		assert.Equal(t, in.URL, out.URL)
		assert.Equal(t, 128, out.Bitmap.Width())
		assert.Equal(t, 128, out.Bitmap.Height())
	})
}

func TestCompressor(t *testing.T) {
	p := NewRasterProvider()
	c := NewCompressor(p, pngEncoding)

	out, err := c.Compress(context.Background(), frameOf(t, solid(1000, 500, color.White)), 250)
	require.NoError(t, err)
	w, h := dims(t, out.URL)
	assert.Equal(t, 500, w)
	assert.Equal(t, 250, h)
	assert.Zero(t, p.Live())

	in := frameOf(t, solid(200, 100, color.White))
	out, err = c.Compress(context.Background(), in, 250)
	require.NoError(t, err)
	assert.Equal(t, in.URL, out.URL, "no-op must not re-encode")
}

func TestResamplers(t *testing.T) {
	for _, resampler := range []string{ResampleCatmullRom, ResampleLanczos3} {
		t.Run(resampler, func(t *testing.T) {
			p := NewRasterProvider()
			p.Resampler = resampler

			// Blue margins, red center: the crop must only see red.
			img := solid(800, 400, color.NRGBA{B: 255, A: 255})
			red := color.NRGBA{R: 255, A: 255}
			for y := 0; y < 400; y++ {
				for x := 200; x < 600; x++ {
					img.Set(x, y, red)
				}
			}

			out, err := NewCropper(p, pngEncoding).Crop(context.Background(), frameOf(t, img), CropOptions{Enabled: true, Size: 100})
			require.NoError(t, err)
			assert.Equal(t, 100, out.Bitmap.Width())
			assert.Equal(t, 100, out.Bitmap.Height())
			assert.Equal(t, red, color.NRGBAModel.Convert(out.Bitmap.Image.At(50, 50)))

			out, err = NewCompressor(p, pngEncoding).Compress(context.Background(), frameOf(t, img), 200)
			require.NoError(t, err)
			w, h := dims(t, out.URL)
			assert.Equal(t, 400, w)
			assert.Equal(t, 200, h)
			assert.Zero(t, p.Live())
		})
	}
}

func TestCompressor_JPEGOutput(t *testing.T) {
	c := NewCompressor(NewRasterProvider(), Encoding{Format: FormatJPEG, Quality: 70})
	out, err := c.Compress(context.Background(), frameOf(t, solid(600, 300, color.White)), 100)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", out.URL.MimeType())
}

func TestRasterProvider_Limits(t *testing.T) {
	p := &RasterProvider{MaxSide: 100, MaxArea: 50 * 50}

	_, err := p.CreateSurface(0, 10, pngEncoding)
	assert.ErrorIs(t, err, ErrSurfaceUnavailable)
	_, err = p.CreateSurface(101, 10, pngEncoding)
	assert.ErrorIs(t, err, ErrSurfaceUnavailable)
	_, err = p.CreateSurface(60, 60, pngEncoding)
	assert.ErrorIs(t, err, ErrSurfaceUnavailable)

	s, err := p.CreateSurface(50, 50, pngEncoding)
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.Live())
	s.Dispose()
	s.Dispose()
	assert.Zero(t, p.Live())

	_, err = s.DataURL()
	assert.ErrorIs(t, err, ErrSurfaceUnavailable)
}

func TestCompressor_SurfaceUnavailable(t *testing.T) {
	p := &RasterProvider{MaxSide: 10}
	_, err := NewCompressor(p, pngEncoding).Compress(context.Background(), frameOf(t, solid(100, 50, color.White)), 20)
	require.ErrorIs(t, err, ErrSurfaceUnavailable)
	assert.Zero(t, p.Live())
}
