package imageload

import (
	"fmt"
	"io"
	"mime"
	"strings"
)

const bytesPerMB = 1024 * 1024

// File is one entry of a selection: what a file input or a drop hands over.
type File interface {
	Name() string
	MimeType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// FileSelection is the ordered list of files a dialog or transfer produced.
// A nil *FileSelection means no selection was made at all.
type FileSelection struct {
	Files []File
}

// NewSelection wraps files into a selection.
func NewSelection(files ...File) *FileSelection {
	return &FileSelection{Files: files}
}

// Constraints restricts what Validate accepts.
type Constraints struct {
	// AcceptedMimeTypes entries "image" and "image/*" accept any image
	// subtype, anything else must match exactly. Empty accepts any image.
	AcceptedMimeTypes []string
	// MaxFileSizeMB is ignored when zero or negative.
	MaxFileSizeMB float64
}

// Validate checks that sel holds exactly one image file within the size
// limit and returns that file. Rules are checked in order; the first
// failure wins.
func Validate(sel *FileSelection, c Constraints) (File, error) {
	if sel == nil {
		return nil, ErrNoFileChosen
	}
	if n := len(sel.Files); n != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrWrongFileCount, n)
	}
	f := sel.Files[0]
	if f == nil {
		return nil, ErrNoFileChosen
	}

	if !isAcceptedImage(f.MimeType(), c.AcceptedMimeTypes) {
		return nil, fmt.Errorf("%w: %q has type %q", ErrNotAnImage, f.Name(), f.MimeType())
	}

	if c.MaxFileSizeMB > 0 {
		sizeMB := float64(f.Size()) / bytesPerMB
		if sizeMB > c.MaxFileSizeMB {
			return nil, fmt.Errorf("%w: %.2f MB exceeds %.2f MB", ErrFileTooLarge, sizeMB, c.MaxFileSizeMB)
		}
	}

	return f, nil
}

func isAcceptedImage(mimeType string, accept []string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	typ, sub, ok := strings.Cut(mediaType, "/")
	if !ok || typ != "image" || sub == "" {
		return false
	}
	if len(accept) == 0 {
		return true
	}
	for _, a := range accept {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "image" || a == "image/*" || a == mediaType {
			return true
		}
	}
	return false
}
