package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fleveque/image-loader/internal/imageload"
)

// OutputDir writes decoded data URLs to files under a base directory.
type OutputDir struct {
	baseDir string
}

// NewOutputDir creates the base directory if needed.
func NewOutputDir(baseDir string) (*OutputDir, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &OutputDir{baseDir: baseDir}, nil
}

// PathFor returns where an image named name with the given mime type is
// written. The source extension is replaced by the one matching mimeType.
func (o *OutputDir) PathFor(name, mimeType string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}

	ext := ".bin"
	if m := mimetype.Lookup(mimeType); m != nil {
		ext = m.Extension()
	}
	return filepath.Join(o.baseDir, base+ext)
}

// Write decodes u and stores the bytes, returning the written path.
func (o *OutputDir) Write(name string, u imageload.DataURL) (string, error) {
	mimeType, data, err := imageload.ParseDataURL(u)
	if err != nil {
		return "", fmt.Errorf("decoding data url: %w", err)
	}

	path := o.PathFor(name, mimeType)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing image file: %w", err)
	}
	return path, nil
}
