package imageload

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DataURL is binary image data embedded in a string:
// data:<mime>;base64,<payload>
type DataURL string

const dataURLPrefix = "data:"

// EncodeDataURL builds a base64 data URL for data with the given mime type.
func EncodeDataURL(mimeType string, data []byte) DataURL {
	var b strings.Builder
	b.Grow(len(dataURLPrefix) + len(mimeType) + len(";base64,") + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString(dataURLPrefix)
	b.WriteString(mimeType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return DataURL(b.String())
}

// ParseDataURL splits a base64 data URL into its mime type and decoded bytes.
// Only base64 payloads are accepted since that is all the pipeline produces.
func ParseDataURL(u DataURL) (string, []byte, error) {
	s := string(u)
	if !strings.HasPrefix(s, dataURLPrefix) {
		return "", nil, fmt.Errorf("missing %q prefix", dataURLPrefix)
	}
	meta, payload, ok := strings.Cut(s[len(dataURLPrefix):], ",")
	if !ok {
		return "", nil, fmt.Errorf("missing payload separator")
	}
	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("payload is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decoding base64 payload: %w", err)
	}
	return mediaType, data, nil
}

// MimeType returns the media type declared in the URL, or "" if malformed.
func (u DataURL) MimeType() string {
	s, ok := strings.CutPrefix(string(u), dataURLPrefix)
	if !ok {
		return ""
	}
	meta, _, ok := strings.Cut(s, ",")
	if !ok {
		return ""
	}
	mediaType, _, _ := strings.Cut(meta, ";")
	return mediaType
}

// Bytes returns the decoded payload.
func (u DataURL) Bytes() ([]byte, error) {
	_, data, err := ParseDataURL(u)
	return data, err
}

func (u DataURL) String() string {
	return string(u)
}
