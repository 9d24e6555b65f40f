package frames

import (
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"

	"github.com/trailsense/go-detect/images"
)

// DecodeImage opens and decodes a still image by its classified format.
func DecodeImage(path string, format images.Format) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening image")
	}
	defer f.Close()

	var img image.Image
	switch format {
	case images.FormatJPEG:
		img, err = jpeg.Decode(f)
	case images.FormatPNG:
		img, err = png.Decode(f)
	case images.FormatGIF:
		img, err = gif.Decode(f)
	case images.FormatWebP:
		img, err = webp.Decode(f)
	default:
		return nil, errors.Errorf("no decoder for format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", format)
	}
	return img, nil
}
