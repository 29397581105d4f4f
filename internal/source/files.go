// Package source turns the ways a file can reach the loader (paths on disk,
// multipart uploads, remote URLs, an interactive prompt) into selections the
// image pipeline understands.
package source

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fleveque/image-loader/internal/imageload"
)

// octetStream is what clients send when they don't know the type.
const octetStream = "application/octet-stream"

// pathFile is a file on disk. Its type is sniffed from content, the way a
// browser fills in File.type for a picked file.
type pathFile struct {
	path     string
	mimeType string
	size     int64
}

func (f *pathFile) Name() string                 { return filepath.Base(f.path) }
func (f *pathFile) MimeType() string             { return f.mimeType }
func (f *pathFile) Size() int64                  { return f.size }
func (f *pathFile) Open() (io.ReadCloser, error) { return os.Open(f.path) }

// FromPaths builds a selection from file paths. No paths yields a nil
// selection, i.e. nothing was chosen.
func FromPaths(paths ...string) (*imageload.FileSelection, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	files := make([]imageload.File, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}

		mt, err := mimetype.DetectFile(p)
		if err != nil {
			return nil, fmt.Errorf("detecting type of %s: %w", p, err)
		}

		files = append(files, &pathFile{path: p, mimeType: mt.String(), size: info.Size()})
	}
	return imageload.NewSelection(files...), nil
}

// memoryFile holds its content in memory.
type memoryFile struct {
	name     string
	mimeType string
	data     []byte
}

// NewMemoryFile returns a File over data. An empty mimeType is sniffed.
func NewMemoryFile(name, mimeType string, data []byte) imageload.File {
	if mimeType == "" || mimeType == octetStream {
		mimeType = mimetype.Detect(data).String()
	}
	return &memoryFile{name: name, mimeType: mimeType, data: data}
}

func (f *memoryFile) Name() string     { return f.name }
func (f *memoryFile) MimeType() string { return f.mimeType }
func (f *memoryFile) Size() int64      { return int64(len(f.data)) }

func (f *memoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// uploadFile is one part of a multipart upload.
type uploadFile struct {
	header   *multipart.FileHeader
	mimeType string
}

func (f *uploadFile) Name() string     { return f.header.Filename }
func (f *uploadFile) MimeType() string { return f.mimeType }
func (f *uploadFile) Size() int64      { return f.header.Size }

func (f *uploadFile) Open() (io.ReadCloser, error) {
	return f.header.Open()
}

// FromMultipart builds a selection from uploaded parts. The declared
// Content-Type of each part is trusted unless it is missing or generic, in
// which case the content is sniffed. A nil slice yields a nil selection.
func FromMultipart(headers []*multipart.FileHeader) (*imageload.FileSelection, error) {
	if headers == nil {
		return nil, nil
	}

	files := make([]imageload.File, 0, len(headers))
	for _, h := range headers {
		mt := h.Header.Get("Content-Type")
		if mt == "" || mt == octetStream {
			sniffed, err := sniffUpload(h)
			if err != nil {
				return nil, err
			}
			mt = sniffed
		}
		files = append(files, &uploadFile{header: h, mimeType: mt})
	}
	return imageload.NewSelection(files...), nil
}

func sniffUpload(h *multipart.FileHeader) (string, error) {
	f, err := h.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload %s: %w", h.Filename, err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("detecting type of %s: %w", h.Filename, err)
	}
	return mt.String(), nil
}
