// Package media turns uploaded images into URLs that can be stored on documents.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrBadDataURL         = errors.New("malformed data url")
	ErrNotImage           = errors.New("content is not an image")
	ErrTooLarge           = errors.New("image exceeds size limit")
	ErrUploadsUnsupported = errors.New("direct uploads are not configured")
)

const (
	DefaultMaxBytes        = 2 << 20
	allowedImagePrefix     = "image/"
	dataURLBase64Separator = ";base64,"
)

// Store persists an image given as a data URL and returns the URL to save on a document.
type Store interface {
	Save(ctx context.Context, key, dataURL string) (string, error)
}

// Uploader hands out URLs the browser can PUT an image to directly.
type Uploader interface {
	PresignUpload(ctx context.Context, key, contentType string) (uploadURL, publicURL string, err error)
}

// EncodeDataURL renders raw image bytes as a base64 data URL with a sniffed MIME type.
func EncodeDataURL(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), allowedImagePrefix) {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}
	return "data:" + mt.String() + dataURLBase64Separator + base64.StdEncoding.EncodeToString(data), nil
}

// DecodeDataURL returns the sniffed content type and bytes of an image data URL.
// The declared type is ignored in favour of the detected one.
func DecodeDataURL(dataURL string, maxBytes int) (string, []byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", nil, ErrBadDataURL
	}
	i := strings.Index(dataURL, dataURLBase64Separator)
	if i < 0 {
		return "", nil, ErrBadDataURL
	}
	payload := dataURL[i+len(dataURLBase64Separator):]
	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+2 {
		return "", nil, ErrTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return "", nil, ErrTooLarge
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), allowedImagePrefix) {
		return "", nil, fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}
	return mt.String(), data, nil
}

// Inline keeps images inside the document as validated data URLs.
type Inline struct {
	MaxBytes int
}

func NewInline(maxBytes int) *Inline {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Inline{MaxBytes: maxBytes}
}

func (s *Inline) Save(_ context.Context, _ string, dataURL string) (string, error) {
	if isRemote(dataURL) {
		return dataURL, nil
	}
	contentType, data, err := DecodeDataURL(dataURL, s.MaxBytes)
	if err != nil {
		return "", err
	}
	return "data:" + contentType + dataURLBase64Separator + base64.StdEncoding.EncodeToString(data), nil
}

func (s *Inline) PresignUpload(context.Context, string, string) (string, string, error) {
	return "", "", ErrUploadsUnsupported
}

// isRemote reports whether the value already points at a hosted image.
func isRemote(v string) bool {
	return strings.HasPrefix(v, "https://") || strings.HasPrefix(v, "http://")
}
