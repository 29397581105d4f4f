// Package imageload turns a chosen or dropped image file into a base64 data
// URL, optionally compressed so its shorter side fits a target and cropped to
// a centered square.
//
// The pipeline is strictly sequential:
//
//	validating → reading → decoding → compressing → cropping → resolved
//
// and any stage may end it in failed. When neither crop nor compression is
// requested the file's bytes are returned as read, without decoding.
package imageload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChooserIDPrefix prefixes the per-call id of the transient chooser element.
const ChooserIDPrefix = "image-loader-"

// Result is the outcome of a successful load.
type Result struct {
	DataURL  DataURL
	MimeType string
	// Width and Height are zero when the image was never decoded.
	Width   int
	Height  int
	Decoded bool

	FileName string
	FileSize int64
}

// Loader runs the image pipeline. It holds no per-call state and is safe for
// concurrent use.
type Loader struct {
	host     Host
	surfaces SurfaceProvider
	logger   *zap.Logger
}

// New creates a Loader. host may be nil when only transfers are loaded;
// surfaces defaults to a RasterProvider.
func New(host Host, surfaces SurfaceProvider, logger *zap.Logger) *Loader {
	if surfaces == nil {
		surfaces = NewRasterProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{host: host, surfaces: surfaces, logger: logger}
}

// LoadImageViaDialog mounts a file chooser on the host, waits for the user's
// selection and runs the pipeline on it. The chooser is removed exactly once
// whatever the outcome. Cancelling ctx abandons a dialog the user never
// confirms.
func (l *Loader) LoadImageViaDialog(ctx context.Context, opts Options) (*Result, error) {
	if l.host == nil {
		return nil, failed(StageIdle, errors.New("no UI host configured"))
	}

	id := ChooserIDPrefix + uuid.NewString()
	chooser, err := l.host.Mount(ctx, id, opts.accept())
	if err != nil {
		return nil, failed(StageIdle, fmt.Errorf("mounting chooser: %w", err))
	}

	defer func() {
		if rerr := chooser.Remove(); rerr != nil {
			l.logger.Warn("removing chooser", zap.String("id", id), zap.Error(rerr))
		}
	}()

	sel, err := chooser.Choose(ctx)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		l.logger.Debug("dialog ended without selection", zap.String("id", id), zap.Error(err))
		return nil, failed(StageChoosing, err)
	}

	return l.run(ctx, sel, opts, zap.String("chooser", id))
}

// LoadImageFromTransfer runs the pipeline on an externally supplied
// selection, such as the files of a drop event or an upload.
func (l *Loader) LoadImageFromTransfer(ctx context.Context, sel *FileSelection, opts Options) (*Result, error) {
	return l.run(ctx, sel, opts)
}

func (l *Loader) run(ctx context.Context, sel *FileSelection, opts Options, fields ...zap.Field) (*Result, error) {
	start := time.Now()
	log := l.logger.With(fields...)

	fail := func(stage Stage, err error) (*Result, error) {
		if ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
			err = fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		log.Debug("image pipeline failed",
			zap.String("stage", string(stage)),
			zap.String("kind", KindOf(err)),
			zap.Error(err),
		)
		return nil, failed(stage, err)
	}

	file, err := Validate(sel, opts.constraints())
	if err != nil {
		return fail(StageValidating, err)
	}
	log = log.With(zap.String("file", file.Name()), zap.Int64("size", file.Size()))

	url, err := ReadAsDataURL(ctx, file)
	if err != nil {
		return fail(StageReading, err)
	}

	res := &Result{
		DataURL:  url,
		MimeType: url.MimeType(),
		FileName: file.Name(),
		FileSize: file.Size(),
	}

	if !opts.needsDecode() {
		log.Debug("image pipeline resolved without decoding", zap.Duration("elapsed", time.Since(start)))
		return res, nil
	}

	bm, err := Decode(ctx, url, opts.MaxPixels)
	if err != nil {
		return fail(StageDecoding, err)
	}
	log.Debug("image decoded",
		zap.String("format", bm.Format),
		zap.Int("width", bm.Width()),
		zap.Int("height", bm.Height()),
	)

	enc := opts.encoding()
	crop := opts.crop()
	frame := Frame{URL: url, Bitmap: bm}

	nw, nh, _ := CompressedSize(bm.Width(), bm.Height(), opts.CompressTargetMinSide)
	compressor := NewCompressor(l.surfaces, enc)
	compressor.SkipEncode = cropRedraws(nw, nh, crop)

	frame, err = compressor.Compress(ctx, frame, opts.CompressTargetMinSide)
	if err != nil {
		return fail(StageCompressing, err)
	}

	frame, err = NewCropper(l.surfaces, enc).Crop(ctx, frame, crop)
	if err != nil {
		return fail(StageCropping, err)
	}
	if frame, err = frame.Encoded(enc); err != nil {
		return fail(StageCropping, err)
	}

	res.DataURL = frame.URL
	res.MimeType = frame.URL.MimeType()
	res.Width = frame.Bitmap.Width()
	res.Height = frame.Bitmap.Height()
	res.Decoded = true

	log.Debug("image pipeline resolved",
		zap.Int("width", res.Width),
		zap.Int("height", res.Height),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}
