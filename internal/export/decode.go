package export

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for DecodeConfig
	_ "image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"

	"github.com/tphakala/ppe-go/internal/errors"
)

// MaxImagePixels bounds decoded frame size to keep a single request from
// exhausting memory.
const MaxImagePixels = 50_000_000

// DecodeImage decodes a JPEG or PNG frame, applying EXIF orientation.
func DecodeImage(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.New(err).Component("export").Category(errors.CategoryFileIO).Build()
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes an in-memory JPEG or PNG frame.
func DecodeBytes(data []byte) (image.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(err, "")
	}
	if format != "jpeg" && format != "png" {
		return nil, decodeError(fmt.Errorf("unsupported image format %q", format), format)
	}
	if cfg.Width*cfg.Height > MaxImagePixels {
		return nil, decodeError(fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height), format)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, decodeError(err, format)
	}
	return img, nil
}

// OpenImage decodes an image file from disk.
func OpenImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.FileError(err, path)
	}
	defer f.Close()
	return DecodeImage(f)
}

func decodeError(err error, format string) error {
	return errors.New(err).
		Component("export").
		Category(errors.CategoryImageDecode).
		Context("format", format).
		Build()
}

// IsDecodeError reports whether err came from decoding a frame.
func IsDecodeError(err error) bool {
	return errors.IsCategory(err, errors.CategoryImageDecode)
}
