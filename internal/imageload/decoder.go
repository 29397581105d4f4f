package imageload

import (
	"bytes"
	"context"
	"fmt"
	"image"

	// imaging registers jpeg, png, gif, bmp and tiff but not webp.
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
)

// Bitmap is a decoded raster.
type Bitmap struct {
	Image  image.Image
	Format string
}

// Width is the natural pixel width.
func (b *Bitmap) Width() int { return b.Image.Bounds().Dx() }

// Height is the natural pixel height.
func (b *Bitmap) Height() int { return b.Image.Bounds().Dy() }

func (b *Bitmap) minSide() int { return min(b.Width(), b.Height()) }

// Decode decodes the image embedded in u. EXIF orientation is applied, so
// the reported size is the size a viewer would display. Images with more than
// maxPixels pixels are rejected from their header, before any pixel buffer is
// allocated; maxPixels <= 0 disables the check.
func Decode(ctx context.Context, u DataURL, maxPixels int64) (*Bitmap, error) {
	return await(ctx, func() (*Bitmap, error) {
		_, data, err := ParseDataURL(u)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}

		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if pixels := int64(cfg.Width) * int64(cfg.Height); maxPixels > 0 && pixels > maxPixels {
			return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, maxPixels)
		}

		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if img.Bounds().Empty() {
			return nil, fmt.Errorf("%w: empty image", ErrDecode)
		}
		return &Bitmap{Image: img, Format: format}, nil
	})
}
