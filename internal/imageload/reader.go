package imageload

import (
	"context"
	"fmt"
	"io"
)

// ReadAsDataURL reads the whole file and encodes it as a data URL carrying
// the file's declared mime type. Any failure wraps ErrRead.
func ReadAsDataURL(ctx context.Context, f File) (DataURL, error) {
	return await(ctx, func() (DataURL, error) {
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: opening %q: %v", ErrRead, f.Name(), err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("%w: reading %q: %v", ErrRead, f.Name(), err)
		}
		return EncodeDataURL(f.MimeType(), data), nil
	})
}
