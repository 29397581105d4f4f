// Package service contains the application logic sitting between the
// transports (CLI, HTTP) and the image pipeline. ImageService runs the
// loader and records every run in the conversion log, so the admin stats can
// report how conversions went without ever storing the images themselves.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/image-loader/internal/imageload"
	"github.com/fleveque/image-loader/internal/model"
	"github.com/fleveque/image-loader/internal/storage"
)

// ImageService is the main entry point for conversions.
type ImageService struct {
	loader *imageload.Loader
	repo   storage.ConversionRepository // nil disables the conversion log
	logger *zap.Logger
}

// NewImageService wires a loader to an optional conversion log.
func NewImageService(loader *imageload.Loader, repo storage.ConversionRepository, logger *zap.Logger) *ImageService {
	return &ImageService{loader: loader, repo: repo, logger: logger}
}

// Convert runs the pipeline on a selection obtained from src.
func (s *ImageService) Convert(
	ctx context.Context,
	src model.ConversionSource,
	sel *imageload.FileSelection,
	opts imageload.Options,
) (*imageload.Result, error) {
	start := time.Now()
	res, err := s.loader.LoadImageFromTransfer(ctx, sel, opts)
	s.record(ctx, src, selectedFile(sel), opts, res, err, time.Since(start))
	return res, err
}

// LoadFromDialog asks the loader's host for a file and runs the pipeline.
func (s *ImageService) LoadFromDialog(ctx context.Context, opts imageload.Options) (*imageload.Result, error) {
	start := time.Now()
	res, err := s.loader.LoadImageViaDialog(ctx, opts)
	s.record(ctx, model.SourceDialog, nil, opts, res, err, time.Since(start))
	return res, err
}

// Stats summarizes the conversion log.
type Stats struct {
	Total          int64             `json:"total"`
	Resolved       int64             `json:"resolved"`
	Failed         int64             `json:"failed"`
	FailuresByKind []model.KindCount `json:"failures_by_kind"`
}

// Stats reads the counters from the conversion log.
func (s *ImageService) Stats(ctx context.Context) (*Stats, error) {
	if s.repo == nil {
		return &Stats{FailuresByKind: []model.KindCount{}}, nil
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting conversions: %w", err)
	}
	resolved, err := s.repo.CountByStatus(ctx, model.StatusResolved)
	if err != nil {
		return nil, fmt.Errorf("counting resolved conversions: %w", err)
	}
	failed, err := s.repo.CountByStatus(ctx, model.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("counting failed conversions: %w", err)
	}
	kinds, err := s.repo.CountFailuresByKind(ctx)
	if err != nil {
		return nil, err
	}
	if kinds == nil {
		kinds = []model.KindCount{}
	}

	return &Stats{Total: total, Resolved: resolved, Failed: failed, FailuresByKind: kinds}, nil
}

// Recent returns the latest conversions, newest first.
func (s *ImageService) Recent(ctx context.Context, limit int) ([]model.Conversion, error) {
	if s.repo == nil {
		return []model.Conversion{}, nil
	}
	conversions, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if conversions == nil {
		conversions = []model.Conversion{}
	}
	return conversions, nil
}

// Conversion returns one logged conversion. It returns storage.ErrNotFound
// when the id is unknown or the conversion log is disabled.
func (s *ImageService) Conversion(ctx context.Context, id int64) (*model.Conversion, error) {
	if s.repo == nil {
		return nil, storage.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// record writes one row to the conversion log. A logging failure never
// fails the conversion itself.
func (s *ImageService) record(
	ctx context.Context,
	src model.ConversionSource,
	file imageload.File,
	opts imageload.Options,
	res *imageload.Result,
	runErr error,
	elapsed time.Duration,
) {
	c := &model.Conversion{
		Source:     src,
		Options:    describeOptions(opts),
		DurationMs: elapsed.Milliseconds(),
	}
	if file != nil {
		c.FileName = file.Name()
		c.MimeType = file.MimeType()
		c.FileSize = file.Size()
	}

	if runErr != nil {
		msg := runErr.Error()
		c.Status = model.StatusFailed
		c.ErrorKind = imageload.KindOf(runErr)
		c.ErrorMessage = &msg
		s.logger.Info("conversion failed",
			zap.String("source", string(src)),
			zap.String("kind", c.ErrorKind),
			zap.Error(runErr),
		)
	} else {
		c.Status = model.StatusResolved
		c.FileName = res.FileName
		c.FileSize = res.FileSize
		if c.MimeType == "" {
			c.MimeType = res.MimeType
		}
		c.Width = res.Width
		c.Height = res.Height
		c.OutputLength = len(res.DataURL)
		s.logger.Info("conversion resolved",
			zap.String("source", string(src)),
			zap.String("file", res.FileName),
			zap.Int("width", res.Width),
			zap.Int("height", res.Height),
			zap.Duration("elapsed", elapsed),
		)
	}

	if s.repo == nil {
		return
	}
	// The request context may already be cancelled; the row is still wanted.
	if err := s.repo.Create(context.WithoutCancel(ctx), c); err != nil {
		s.logger.Error("recording conversion",
			zap.String("source", string(src)),
			zap.Error(err),
		)
	}
}

// selectedFile returns the single file of sel, if there is exactly one.
func selectedFile(sel *imageload.FileSelection) imageload.File {
	if sel == nil || len(sel.Files) != 1 {
		return nil
	}
	return sel.Files[0]
}

// describeOptions renders the options that change the output, in a stable
// order, e.g. "crop=256 compress=512 format=png".
func describeOptions(o imageload.Options) string {
	var parts []string
	if o.CropToSquare || o.SquareSize > 0 {
		if o.SquareSize > 0 {
			parts = append(parts, fmt.Sprintf("crop=%d", o.SquareSize))
		} else {
			parts = append(parts, "crop=min")
		}
	}
	if o.CompressTargetMinSide > 0 {
		parts = append(parts, fmt.Sprintf("compress=%d", o.CompressTargetMinSide))
	}
	if o.MaxFileSizeMB > 0 {
		parts = append(parts, fmt.Sprintf("max_mb=%g", o.MaxFileSizeMB))
	}
	if o.OutputFormat != "" {
		parts = append(parts, "format="+strings.ToLower(o.OutputFormat))
	}
	return strings.Join(parts, " ")
}
