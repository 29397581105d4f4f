package imageload

import "strings"

// Output encodings a surface can produce.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// DefaultAcceptedMimeTypes is the dialog filter and validation allow-list used
// when Options.AcceptedMimeTypes is empty. The leading "image" accepts every
// image subtype; the explicit entries only shape the dialog filter.
var DefaultAcceptedMimeTypes = []string{"image", "image/png", "image/jpeg", "image/jpg", "image/bmp"}

// DefaultMaxDecodePixels bounds the pixel count of a decoded source image.
const DefaultMaxDecodePixels = 40_000_000

// DefaultJPEGQuality matches the quality browsers use for canvas JPEG export.
const DefaultJPEGQuality = 92

// Options configures one load call. Zero values mean "not configured".
type Options struct {
	// CropToSquare crops the result to a centered square. With SquareSize
	// unset the side is the image's shorter dimension. A positive SquareSize
	// enables the crop on its own.
	CropToSquare bool
	SquareSize   int

	// CompressTargetMinSide downscales so the shorter side equals the target.
	CompressTargetMinSide int

	MaxFileSizeMB     float64
	AcceptedMimeTypes []string
	// MaxPixels rejects images whose header declares more pixels; 0 is
	// unlimited.
	MaxPixels int64

	// OutputFormat applies to images re-encoded by the cropper or compressor.
	OutputFormat string
	JPEGQuality  int
}

// DefaultOptions returns options with no crop, no compression, no file size
// limit, the default accept list and the default pixel limit.
func DefaultOptions() Options {
	return Options{
		AcceptedMimeTypes: append([]string(nil), DefaultAcceptedMimeTypes...),
		MaxPixels:         DefaultMaxDecodePixels,
		OutputFormat:      FormatPNG,
		JPEGQuality:       DefaultJPEGQuality,
	}
}

func (o Options) accept() []string {
	if len(o.AcceptedMimeTypes) == 0 {
		return DefaultAcceptedMimeTypes
	}
	return o.AcceptedMimeTypes
}

func (o Options) constraints() Constraints {
	return Constraints{AcceptedMimeTypes: o.accept(), MaxFileSizeMB: o.MaxFileSizeMB}
}

func (o Options) encoding() Encoding {
	enc := Encoding{Format: strings.ToLower(o.OutputFormat), Quality: o.JPEGQuality}
	if enc.Format == "jpg" {
		enc.Format = FormatJPEG
	}
	if enc.Format != FormatJPEG {
		enc.Format = FormatPNG
	}
	if enc.Quality <= 0 || enc.Quality > 100 {
		enc.Quality = DefaultJPEGQuality
	}
	return enc
}

func (o Options) crop() CropOptions {
	return CropOptions{Enabled: o.CropToSquare || o.SquareSize > 0, Size: o.SquareSize}
}

func (o Options) needsDecode() bool {
	return o.crop().Enabled || o.CompressTargetMinSide > 0
}
