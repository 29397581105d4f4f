package source

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/image-loader/internal/imageload"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0644))
	return p
}

func TestFromPaths(t *testing.T) {
	data := testPNG(t, 4, 4)
	// The extension lies; the type comes from the content.
	p := writeTemp(t, "picture.dat", data)

	sel, err := FromPaths(p)
	require.NoError(t, err)
	require.Len(t, sel.Files, 1)

	f := sel.Files[0]
	assert.Equal(t, "picture.dat", f.Name())
	assert.Equal(t, "image/png", f.MimeType())
	assert.Equal(t, int64(len(data)), f.Size())

	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFromPaths_Edges(t *testing.T) {
	sel, err := FromPaths()
	require.NoError(t, err)
	assert.Nil(t, sel)

	_, err = FromPaths(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	_, err = FromPaths(t.TempDir())
	assert.Error(t, err)

	text := writeTemp(t, "notes.txt", []byte("hello world"))
	sel, err = FromPaths(text)
	require.NoError(t, err)
	_, err = imageload.Validate(sel, imageload.Constraints{})
	assert.ErrorIs(t, err, imageload.ErrNotAnImage)
}

func TestNewMemoryFile_Sniffs(t *testing.T) {
	f := NewMemoryFile("x", "", testPNG(t, 2, 2))
	assert.Equal(t, "image/png", f.MimeType())

	f = NewMemoryFile("x", "image/jpeg", []byte("whatever"))
	assert.Equal(t, "image/jpeg", f.MimeType())
}

func multipartHeaders(t *testing.T, parts map[string]string, data []byte) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, contentType := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"]
}

func TestFromMultipart(t *testing.T) {
	data := testPNG(t, 3, 3)

	sel, err := FromMultipart(multipartHeaders(t, map[string]string{"a.png": "image/png"}, data))
	require.NoError(t, err)
	require.Len(t, sel.Files, 1)
	assert.Equal(t, "a.png", sel.Files[0].Name())
	assert.Equal(t, "image/png", sel.Files[0].MimeType())
	assert.Equal(t, int64(len(data)), sel.Files[0].Size())

	sel, err = FromMultipart(multipartHeaders(t, map[string]string{"blob": octetStream}, data))
	require.NoError(t, err)
	assert.Equal(t, "image/png", sel.Files[0].MimeType())

	sel, err = FromMultipart(nil)
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestFetcher(t *testing.T) {
	data := testPNG(t, 5, 5)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/typed.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(data)
		case "/untyped":
			w.Header().Set("Content-Type", octetStream)
			_, _ = w.Write(data)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, 1<<20, zap.NewNop())

	sel, err := f.Fetch(context.Background(), srv.URL+"/typed.png")
	require.NoError(t, err)
	require.Len(t, sel.Files, 1)
	assert.Equal(t, "typed.png", sel.Files[0].Name())
	assert.Equal(t, "image/png", sel.Files[0].MimeType())

	sel, err = f.Fetch(context.Background(), srv.URL+"/untyped")
	require.NoError(t, err)
	assert.Equal(t, "image/png", sel.Files[0].MimeType())

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), "file:///etc/passwd")
	assert.Error(t, err)
}

func TestFetcher_LimitsBody(t *testing.T) {
	payload := bytes.Repeat([]byte{1}, 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if r.URL.Path == "/chunked.png" {
			// Flushing before the end forces chunked encoding, so no
			// Content-Length reaches the client.
			_, _ = w.Write(payload[:100])
			w.(http.Flusher).Flush()
			_, _ = w.Write(payload[100:])
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, 1024, zap.NewNop())

	tests := []struct {
		name string
		path string
	}{
		{"declared length", "/big.png"},
		{"chunked body", "/chunked.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := f.Fetch(context.Background(), srv.URL+tt.path)
			assert.ErrorIs(t, err, ErrTooLarge)
			assert.Nil(t, sel)
		})
	}

	sel, err := NewFetcher(5*time.Second, 4096, zap.NewNop()).Fetch(context.Background(), srv.URL+"/big.png")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), sel.Files[0].Size(), "a body exactly at the limit is kept whole")
}

func TestTerminalHost(t *testing.T) {
	p := writeTemp(t, "a.png", testPNG(t, 2, 2))
	in := strings.NewReader(p + "\n\n")
	var out bytes.Buffer
	h := NewTerminalHost(in, &out)

	c, err := h.Mount(context.Background(), "one", []string{"image/png"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.Mounted())

	sel, err := c.Choose(context.Background())
	require.NoError(t, err)
	require.Len(t, sel.Files, 1)
	assert.Contains(t, out.String(), "image/png")

	// Empty line: nothing chosen.
	sel, err = c.Choose(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sel)

	// EOF: nothing chosen either.
	sel, err = c.Choose(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sel)

	require.NoError(t, c.Remove())
	assert.Error(t, c.Remove())
	assert.Zero(t, h.Mounted())
}

func TestTerminalHost_Cancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	h := NewTerminalHost(pr, io.Discard)

	c, err := h.Mount(context.Background(), "one", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Choose(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = h.Mount(context.Background(), "one", nil)
	assert.Error(t, err, "ids must be unique while mounted")
}
