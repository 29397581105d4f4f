// Package config handles application configuration using Viper.
// Values come from defaults, an optional YAML file, a .env file and
// environment variables, merged in that order of increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/fleveque/image-loader/internal/imageload"
)

// EnvPrefix prefixes every environment override: IMGLOAD_SERVER_PORT=9090.
const EnvPrefix = "IMGLOAD"

// Config is the root configuration struct.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
	Loader    LoaderConfig    `mapstructure:"loader"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	// MaxUploadMB bounds the multipart body before the loader sees it.
	MaxUploadMB int64 `mapstructure:"max_upload_mb" validate:"min=1"`
}

type StorageConfig struct {
	// DatabasePath enables the conversion log; empty disables it.
	DatabasePath string `mapstructure:"database_path"`
	OutputDir    string `mapstructure:"output_dir"`
}

type AuthConfig struct {
	APIKeys   []string `mapstructure:"api_keys"`
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `mapstructure:"burst" validate:"min=1"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`
}

// LoaderConfig holds the default pipeline options. Requests may override
// crop and compression per call.
type LoaderConfig struct {
	CropToSquare          bool     `mapstructure:"crop_to_square"`
	SquareSize            int      `mapstructure:"square_size" validate:"min=0"`
	CompressTargetMinSide int      `mapstructure:"compress_target_min_side" validate:"min=0"`
	MaxFileSizeMB         float64  `mapstructure:"max_file_size_mb" validate:"min=0"`
	AcceptedMimeTypes     []string `mapstructure:"accepted_mime_types"`
	OutputFormat          string   `mapstructure:"output_format" validate:"oneof=png jpeg"`
	JPEGQuality           int      `mapstructure:"jpeg_quality" validate:"min=1,max=100"`
	// MaxDecodePixels caps the pixel count of source images; 0 keeps the
	// pipeline default.
	MaxDecodePixels int64 `mapstructure:"max_decode_pixels" validate:"min=0"`
	// MaxSurfaceSide caps the side of any drawing surface; 0 is unlimited.
	MaxSurfaceSide int    `mapstructure:"max_surface_side" validate:"min=0"`
	Resampler      string `mapstructure:"resampler" validate:"oneof=catmullrom lanczos3"`
}

type FetchConfig struct {
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxBytes int64         `mapstructure:"max_bytes" validate:"min=1"`
}

// Load reads configuration from a YAML file, a .env file and environment
// variables. configPath may be empty, in which case IMGLOAD_CONFIG_PATH or
// ./config.yaml is tried.
func Load(configPath string) (*Config, error) {
	// A missing .env is normal; real environment variables still apply.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("storage.database_path", "./storage/image-loader.db")
	v.SetDefault("storage.output_dir", "")
	// Every key needs a default, or AutomaticEnv never maps its variable.
	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("auth.admin_keys", []string{})
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("loader.crop_to_square", false)
	v.SetDefault("loader.square_size", 0)
	v.SetDefault("loader.compress_target_min_side", 0)
	v.SetDefault("loader.max_file_size_mb", 0)
	v.SetDefault("loader.accepted_mime_types", imageload.DefaultAcceptedMimeTypes)
	v.SetDefault("loader.output_format", imageload.FormatPNG)
	v.SetDefault("loader.jpeg_quality", imageload.DefaultJPEGQuality)
	v.SetDefault("loader.max_decode_pixels", imageload.DefaultMaxDecodePixels)
	v.SetDefault("loader.max_surface_side", imageload.DefaultMaxSurfaceSide)
	v.SetDefault("loader.resampler", imageload.ResampleCatmullRom)
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.max_bytes", 32<<20)

	if configPath == "" {
		configPath = os.Getenv(EnvPrefix + "_CONFIG_PATH")
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Ignore "not found" for the implicit file; defaults and env are enough.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Loader.OutputFormat = strings.ToLower(cfg.Loader.OutputFormat)
	if cfg.Loader.OutputFormat == "jpg" {
		cfg.Loader.OutputFormat = imageload.FormatJPEG
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of the whole configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Address returns the listen address string like "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Options converts the loader section into pipeline options.
func (l LoaderConfig) Options() imageload.Options {
	opts := imageload.DefaultOptions()
	opts.CropToSquare = l.CropToSquare
	opts.SquareSize = l.SquareSize
	opts.CompressTargetMinSide = l.CompressTargetMinSide
	opts.MaxFileSizeMB = l.MaxFileSizeMB
	if len(l.AcceptedMimeTypes) > 0 {
		opts.AcceptedMimeTypes = append([]string(nil), l.AcceptedMimeTypes...)
	}
	if l.MaxDecodePixels > 0 {
		opts.MaxPixels = l.MaxDecodePixels
	}
	if l.OutputFormat != "" {
		opts.OutputFormat = l.OutputFormat
	}
	if l.JPEGQuality > 0 {
		opts.JPEGQuality = l.JPEGQuality
	}
	return opts
}

// SurfaceProvider builds the raster provider the loader draws on.
func (l LoaderConfig) SurfaceProvider() *imageload.RasterProvider {
	p := imageload.NewRasterProvider()
	if l.MaxSurfaceSide > 0 {
		p.MaxSide = l.MaxSurfaceSide
	}
	p.Resampler = l.Resampler
	return p
}
