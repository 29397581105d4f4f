package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/image-loader/internal/imageload"
)

// ErrTooLarge is returned when a remote body exceeds the fetcher's limit.
var ErrTooLarge = errors.New("remote image exceeds the download limit")

// Fetcher downloads remote images into single-file selections.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *zap.Logger
}

// NewFetcher creates a fetcher. Bodies larger than maxBytes are rejected with
// ErrTooLarge; 0 disables the limit.
func NewFetcher(timeout time.Duration, maxBytes int64, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Fetch downloads rawURL. The type comes from the response's Content-Type,
// falling back to sniffing when the server sends none or a generic one.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*imageload.FileSelection, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "image-loader/1.0")
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, rawURL)
	}

	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes declared, limit %d", ErrTooLarge, resp.ContentLength, f.maxBytes)
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	// A chunked body carries no length up front.
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, f.maxBytes)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = u.Host
	}

	file := NewMemoryFile(name, resp.Header.Get("Content-Type"), data)
	f.logger.Debug("fetched remote image",
		zap.String("url", rawURL),
		zap.String("mime_type", file.MimeType()),
		zap.Int("bytes", len(data)),
	)
	return imageload.NewSelection(file), nil
}
