package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/image-loader/internal/imageload"
	"github.com/fleveque/image-loader/internal/model"
	"github.com/fleveque/image-loader/internal/service"
	"github.com/fleveque/image-loader/internal/source"
)

// Kinds reported for failures that happen before the pipeline runs.
const (
	kindBadRequest    = "bad_request"
	kindFetchError    = "fetch_error"
	kindUploadTooLong = "upload_too_large"
)

// ImageHandler converts uploaded or remote images to data URLs.
type ImageHandler struct {
	images    *service.ImageService
	fetcher   *source.Fetcher
	defaults  imageload.Options
	maxUpload int64
	logger    *zap.Logger
}

// NewImageHandler creates an ImageHandler. defaults are the configured
// pipeline options; requests may override crop and compression.
func NewImageHandler(
	images *service.ImageService,
	fetcher *source.Fetcher,
	defaults imageload.Options,
	maxUpload int64,
	logger *zap.Logger,
) *ImageHandler {
	return &ImageHandler{
		images:    images,
		fetcher:   fetcher,
		defaults:  defaults,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// imageResponse is the body of a successful conversion.
type imageResponse struct {
	DataURL  string `json:"data_url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime_type"`
}

// Upload converts the multipart field "file".
// Route: POST /api/v1/images?crop=true&square_size=256&compress=512
func (h *ImageHandler) Upload(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, http.StatusRequestEntityTooLarge, kindUploadTooLong, "upload exceeds the size limit")
			return
		}
		abortWithError(c, http.StatusBadRequest, kindBadRequest, "expected a multipart form with a file field")
		return
	}

	opts, err := h.uploadOptions(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, kindBadRequest, err.Error())
		return
	}

	sel, err := source.FromMultipart(form.File["file"])
	if err != nil {
		h.logger.Warn("reading upload", zap.Error(err))
		abortWithError(c, http.StatusBadRequest, kindBadRequest, "unreadable upload")
		return
	}

	res, err := h.images.Convert(c.Request.Context(), model.SourceUpload, sel, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newImageResponse(res))
}

// fetchRequest is the JSON body of the fetch endpoint. Pointer fields
// distinguish "not given" from zero.
type fetchRequest struct {
	URL        string `json:"url" binding:"required,url"`
	Crop       *bool  `json:"crop"`
	SquareSize *int   `json:"square_size" binding:"omitempty,min=0"`
	Compress   *int   `json:"compress" binding:"omitempty,min=0"`
}

// Fetch downloads an image by URL and converts it.
// Route: POST /api/v1/images/fetch
func (h *ImageHandler) Fetch(c *gin.Context) {
	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, kindBadRequest, "invalid request: "+err.Error())
		return
	}

	opts := h.defaults
	if req.Crop != nil {
		opts.CropToSquare = *req.Crop
	}
	if req.SquareSize != nil {
		opts.SquareSize = *req.SquareSize
	}
	if req.Compress != nil {
		opts.CompressTargetMinSide = *req.Compress
	}
	if req.Crop != nil && !*req.Crop {
		opts.SquareSize = 0
	}

	ctx := c.Request.Context()
	sel, err := h.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		if ctx.Err() != nil {
			h.fail(c, err)
			return
		}
		if errors.Is(err, source.ErrTooLarge) {
			abortWithError(c, http.StatusRequestEntityTooLarge, imageload.KindFileTooLarge, err.Error())
			return
		}
		h.logger.Warn("fetching image", zap.String("url", req.URL), zap.Error(err))
		abortWithError(c, http.StatusBadGateway, kindFetchError, err.Error())
		return
	}

	res, err := h.images.Convert(ctx, model.SourceURL, sel, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newImageResponse(res))
}

// uploadOptions overlays crop, square_size and compress taken from the form
// or, when absent there, from the query string. A square_size enables the
// crop unless crop is explicitly false.
func (h *ImageHandler) uploadOptions(c *gin.Context) (imageload.Options, error) {
	opts := h.defaults

	cropOff := false
	if v := formOrQuery(c, "crop"); v != "" {
		crop, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid crop: %q", v)
		}
		opts.CropToSquare = crop
		cropOff = !crop
	}
	if v := formOrQuery(c, "square_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid square_size: %q", v)
		}
		opts.SquareSize = n
	}
	if v := formOrQuery(c, "compress"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid compress: %q", v)
		}
		opts.CompressTargetMinSide = n
	}
	if cropOff {
		opts.SquareSize = 0
	}
	return opts, nil
}

func formOrQuery(c *gin.Context, key string) string {
	if v := c.PostForm(key); v != "" {
		return v
	}
	return c.Query(key)
}

func (h *ImageHandler) fail(c *gin.Context, err error) {
	kind := imageload.KindOf(err)
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("image conversion failed", zap.String("kind", kind), zap.Error(err))
	}
	abortWithError(c, status, kind, err.Error())
}

// StatusFor maps a pipeline error to an HTTP status.
func StatusFor(err error) int {
	switch imageload.KindOf(err) {
	case imageload.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case imageload.KindNoFileChosen,
		imageload.KindWrongFileCount,
		imageload.KindNotAnImage,
		imageload.KindReadError,
		imageload.KindDecodeError:
		return http.StatusUnprocessableEntity
	case imageload.KindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func newImageResponse(res *imageload.Result) imageResponse {
	return imageResponse{
		DataURL:  res.DataURL.String(),
		Width:    res.Width,
		Height:   res.Height,
		MimeType: res.MimeType,
	}
}

func abortWithError(c *gin.Context, status int, kind, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "kind": kind})
}
