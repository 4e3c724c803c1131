package imageclass

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedFormat = errors.New("unsupported image type")

var allowedExt = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".webp": {},
}

// AllowedExtensions lists the accepted upload extensions.
func AllowedExtensions() []string {
	return []string{"png", "jpg", "jpeg", "gif", "bmp", "webp"}
}

// Supported reports whether name has an accepted image extension.
func Supported(name string) bool {
	_, ok := allowedExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Decode errors for oversized input, by bytes or by declared dimensions.
var (
	ErrTooLarge      = errors.New("image exceeds size limit")
	ErrTooManyPixels = errors.New("image has too many pixels")
)

// DefaultMaxPixels caps width*height before any pixel data is allocated.
const DefaultMaxPixels = 89_478_485

// Decode reads at most limit bytes (no cap when limit <= 0) and decodes the
// image, rejecting anything larger than DefaultMaxPixels.
func Decode(r io.Reader, limit int64) (image.Image, string, error) {
	return DecodeLimited(r, limit, DefaultMaxPixels)
}

// DecodeLimited is Decode with an explicit pixel budget. The header is
// checked against maxPixels before the full decode; maxPixels <= 0 uses
// DefaultMaxPixels.
func DecodeLimited(r io.Reader, limit, maxPixels int64) (image.Image, string, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, "", ErrTooLarge
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFormat
		}
		return nil, "", fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("decode image header: empty %dx%d image", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFormat
		}
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}
