package common

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ImageFromRGBA wraps tightly packed RGBA8 rows, as returned by a renderer readback, in an
// image.RGBA without copying.
//
// Parameters:
//   - pix: the pixels, 4 bytes each
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - *image.RGBA: the image sharing pix
//   - error: an error if pix has the wrong length
func ImageFromRGBA(pix []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height*4 {
		return nil, fmt.Errorf("rgba pixels: %d bytes for %dx%d", len(pix), width, height)
	}
	return &image.RGBA{Pix: pix, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}, nil
}

// EncodeImage writes img in the format named by ext: ".png", ".bmp", ".tif" or ".tiff".
//
// Parameters:
//   - w: the destination
//   - img: the image to encode
//   - ext: the file extension selecting the format, case-insensitive
//
// Returns:
//   - error: an error for an unknown format or a failed write
func EncodeImage(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported image format %q", ext)
	}
}

// SaveImage encodes img to path, choosing the format from the path's extension.
//
// Parameters:
//   - path: the output file
//   - img: the image to write
//
// Returns:
//   - error: an error if the file cannot be created or encoded
func SaveImage(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := EncodeImage(f, img, filepath.Ext(path)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}
