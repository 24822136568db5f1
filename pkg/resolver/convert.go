package resolver

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	// Registers the webp decoder; email images occasionally arrive as webp.
	_ "golang.org/x/image/webp"

	"github.com/ihainan/scholar-data-proxy/pkg/errdefs"
)

// Format is a requested image output format.
type Format string

const (
	// FormatPNG is the canonical cached format.
	FormatPNG Format = "png"

	// FormatJPEG is derived from the cached PNG at read time.
	FormatJPEG Format = "jpg"
)

// ParseFormat validates a caller-supplied format string. Empty defaults to
// PNG.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return "", errdefs.New(errdefs.KindValidation, "unsupported format %q, use png or jpg", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// FlattenWhite composites an image onto an opaque white canvas, using the
// alpha channel as the paste mask, and encodes the result as PNG. Text
// recognition downstream works much better on black-on-white than on
// transparent backgrounds. Already-opaque images come out as plain opaque
// PNG unchanged in their visible pixels.
func FlattenWhite(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindUpstream, err, "decode image")
	}

	bounds := img.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	flat := imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeAs derives the requested output format from canonical PNG bytes.
// PNG is returned as-is; JPEG is re-encoded at high quality. Derived
// formats are never persisted.
func EncodeAs(pngData []byte, format Format) ([]byte, string, error) {
	if format != FormatJPEG {
		return pngData, FormatPNG.ContentType(), nil
	}

	img, err := imaging.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, "", fmt.Errorf("decode cached png: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), FormatJPEG.ContentType(), nil
}
