// Package main provides the image-loader command line tool.
//
//	image-loader convert photo.jpg --crop --compress 256 --out-dir ./out
//	image-loader pick --crop --square-size 128
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fleveque/image-loader/internal/config"
	"github.com/fleveque/image-loader/internal/imageload"
	"github.com/fleveque/image-loader/internal/logging"
	"github.com/fleveque/image-loader/internal/model"
	"github.com/fleveque/image-loader/internal/service"
	"github.com/fleveque/image-loader/internal/source"
	"github.com/fleveque/image-loader/internal/storage"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadFlags are shared by convert and pick. Unset flags keep the value from
// the configuration.
type loadFlags struct {
	crop       bool
	squareSize int
	compress   int
	maxSizeMB  float64
	accept     []string
	format     string
	outDir     string
	noLog      bool
}

func (f *loadFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.BoolVar(&f.crop, "crop", false, "Crop the result to a centered square")
	fs.IntVar(&f.squareSize, "square-size", 0, "Side of the square crop (0: the shorter side)")
	fs.IntVar(&f.compress, "compress", 0, "Downscale so the shorter side equals this")
	fs.Float64Var(&f.maxSizeMB, "max-size-mb", 0, "Reject files larger than this many MB")
	fs.StringSliceVar(&f.accept, "accept", nil, "Accepted mime types, e.g. image/png,image/jpeg")
	fs.StringVar(&f.format, "format", "", "Output encoding for transformed images: png or jpeg")
	fs.StringVar(&f.outDir, "out-dir", "", "Write images under this directory instead of printing data URLs")
	fs.BoolVar(&f.noLog, "no-log", false, "Do not record conversions in the database")
}

// options overlays the flags the user actually set on the configured defaults.
func (f *loadFlags) options(cmd *cobra.Command, cfg *config.Config) (imageload.Options, error) {
	opts := cfg.Loader.Options()
	fs := cmd.Flags()

	if fs.Changed("crop") {
		opts.CropToSquare = f.crop
	}
	if fs.Changed("square-size") {
		opts.SquareSize = f.squareSize
	}
	// A square size alone enables the crop; an explicit --crop=false wins.
	if fs.Changed("crop") && !f.crop {
		opts.SquareSize = 0
	}
	if fs.Changed("compress") {
		opts.CompressTargetMinSide = f.compress
	}
	if fs.Changed("max-size-mb") {
		opts.MaxFileSizeMB = f.maxSizeMB
	}
	if fs.Changed("accept") {
		opts.AcceptedMimeTypes = f.accept
	}
	if fs.Changed("format") {
		switch f.format {
		case imageload.FormatPNG, imageload.FormatJPEG, "jpg":
			opts.OutputFormat = f.format
		default:
			return opts, fmt.Errorf("unknown format %q: use png or jpeg", f.format)
		}
	}
	if opts.SquareSize < 0 || opts.CompressTargetMinSide < 0 || opts.MaxFileSizeMB < 0 {
		return opts, fmt.Errorf("sizes must not be negative")
	}
	return opts, nil
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "image-loader",
		Short:        "Load images as data URLs, optionally compressed and cropped to a square",
		SilenceUsage: true,
	}

	root.AddCommand(convertCmd(), pickCmd())
	return root
}

func convertCmd() *cobra.Command {
	var flags loadFlags

	cmd := &cobra.Command{
		Use:   "convert [path...]",
		Short: "Convert one image file given on the command line",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, &flags, func(ctx context.Context, a *app, opts imageload.Options) (*imageload.Result, error) {
				sel, err := source.FromPaths(args...)
				if err != nil {
					return nil, err
				}
				return a.images.Convert(ctx, model.SourcePath, sel, opts)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func pickCmd() *cobra.Command {
	var flags loadFlags

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Prompt for an image path and convert it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, &flags, func(ctx context.Context, a *app, opts imageload.Options) (*imageload.Result, error) {
				return a.images.LoadFromDialog(ctx, opts)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// app holds what a single CLI run needs.
type app struct {
	images *service.ImageService
}

type loadFunc func(ctx context.Context, a *app, opts imageload.Options) (*imageload.Result, error)

// withApp loads config, wires the service, runs load under a context
// cancelled by Ctrl+C and prints or writes the result.
func withApp(cmd *cobra.Command, flags *loadFlags, load loadFunc) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	opts, err := flags.options(cmd, cfg)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	var repo storage.ConversionRepository
	if cfg.Storage.DatabasePath != "" && !flags.noLog {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
		db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		repo = storage.NewConversionRepository(db)
	}

	// Prompts go to stderr so stdout carries only the data URL.
	host := source.NewTerminalHost(cmd.InOrStdin(), cmd.ErrOrStderr())
	loader := imageload.New(host, cfg.Loader.SurfaceProvider(), logger)
	a := &app{images: service.NewImageService(loader, repo, logger)}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := load(ctx, a, opts)
	if err != nil {
		return err
	}

	outDir := flags.outDir
	if outDir == "" {
		outDir = cfg.Storage.OutputDir
	}
	return emit(cmd.OutOrStdout(), outDir, res)
}

// emit prints the data URL, or writes the image under outDir and prints the
// written path.
func emit(w io.Writer, outDir string, res *imageload.Result) error {
	if outDir == "" {
		_, err := fmt.Fprintln(w, res.DataURL)
		return err
	}

	dir, err := storage.NewOutputDir(outDir)
	if err != nil {
		return err
	}
	path, err := dir.Write(res.FileName, res.DataURL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, path)
	return err
}
