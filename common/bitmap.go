package common

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// minRowsPerBand is the smallest band of rows handed to a single conversion task.
// Smaller bands cost more in scheduling than they save in parallelism.
const minRowsPerBand = 32

var (
	convertPoolOnce sync.Once
	convertPool     worker.DynamicWorkerPool
)

// conversionPool returns the shared worker pool used for pixel conversion. It is created on
// first use and its workers live for the rest of the process, blocked on the task queue
// between loads. The pool takes an idle timeout but its workers never read it.
func conversionPool() worker.DynamicWorkerPool {
	convertPoolOnce.Do(func() {
		convertPool = worker.NewDynamicWorkerPool(runtime.NumCPU(), 256, 1*time.Second)
	})
	return convertPool
}

// DecodeBitmap decodes an encoded image (PNG, JPEG, BMP, TIFF or WebP) into a packed RGB bitmap.
// When width and height are both positive the image is resampled to that size, otherwise the
// native image size is kept.
//
// Parameters:
//   - r: the reader providing the encoded image bytes
//   - width: the target width in pixels, or 0 to keep the source width
//   - height: the target height in pixels, or 0 to keep the source height
//
// Returns:
//   - *Bitmap: the decoded bitmap
//   - error: an error if the image could not be decoded
func DecodeBitmap(r io.Reader, width, height int) (*Bitmap, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if width > 0 && height > 0 {
		img = Resample(img, width, height)
	}
	return BitmapFromImage(img), nil
}

// LoadBitmap reads and decodes the image file at path into a packed RGB bitmap.
// See DecodeBitmap for the meaning of width and height.
//
// Parameters:
//   - path: the image file path
//   - width: the target width in pixels, or 0 to keep the source width
//   - height: the target height in pixels, or 0 to keep the source height
//
// Returns:
//   - *Bitmap: the decoded bitmap
//   - error: an error if the file could not be read or decoded
func LoadBitmap(path string, width, height int) (*Bitmap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file %s: %w", path, err)
	}
	bmp, err := DecodeBitmap(bytes.NewReader(data), width, height)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bmp, nil
}

// Resample scales img to exactly width x height pixels using bilinear filtering.
// The result is an *image.RGBA anchored at the origin.
//
// Parameters:
//   - img: the source image
//   - width: the target width in pixels
//   - height: the target height in pixels
//
// Returns:
//   - *image.RGBA: the resampled image
func Resample(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// BitmapFromImage converts any image into a packed RGB bitmap of straight (non-premultiplied)
// color, discarding alpha.
// Rows are converted in parallel bands on the shared conversion pool.
//
// Parameters:
//   - img: the source image
//
// Returns:
//   - *Bitmap: the converted bitmap
func BitmapFromImage(img image.Image) *Bitmap {
	bounds := img.Bounds()
	bmp := NewBitmap(bounds.Dx(), bounds.Dy())
	if bmp.Width == 0 || bmp.Height == 0 {
		return bmp
	}

	bands := bmp.Height / minRowsPerBand
	if bands < 1 {
		convertRows(bmp, img, 0, bmp.Height)
		return bmp
	}

	pool := conversionPool()
	rowsPerBand := (bmp.Height + bands - 1) / bands

	// The pool is shared between calls, so a WaitGroup is the per-call barrier.
	var wg sync.WaitGroup
	for id, y0 := 0, 0; y0 < bmp.Height; id, y0 = id+1, y0+rowsPerBand {
		y1 := min(y0+rowsPerBand, bmp.Height)
		wg.Add(1)
		start, end := y0, y1
		pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				convertRows(bmp, img, start, end)
				return nil, nil
			},
		})
	}
	wg.Wait()

	return bmp
}

// convertRows writes rows [y0, y1) of img into bmp as packed, non-premultiplied RGB.
// *image.RGBA sources are read directly and un-premultiplied with the same arithmetic as
// color.NRGBAModel, which every other source goes through.
func convertRows(bmp *Bitmap, img image.Image, y0, y1 int) {
	bounds := img.Bounds()
	stride := bmp.Stride()

	if rgba, ok := img.(*image.RGBA); ok {
		for y := y0; y < y1; y++ {
			src := rgba.Pix[rgba.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			dst := bmp.Pix[y*stride : (y+1)*stride]
			for x := 0; x < bmp.Width; x++ {
				a := uint32(src[x*4+3])
				dst[x*3+0] = unpremultiply(src[x*4+0], a)
				dst[x*3+1] = unpremultiply(src[x*4+1], a)
				dst[x*3+2] = unpremultiply(src[x*4+2], a)
			}
		}
		return
	}

	for y := y0; y < y1; y++ {
		dst := bmp.Pix[y*stride : (y+1)*stride]
		for x := 0; x < bmp.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			dst[x*3+0] = c.R
			dst[x*3+1] = c.G
			dst[x*3+2] = c.B
		}
	}
}

// unpremultiply recovers the straight 8-bit channel from a premultiplied one with alpha a.
func unpremultiply(v byte, a uint32) byte {
	switch a {
	case 0xff:
		return v
	case 0:
		return 0
	}
	return uint8((uint32(v) * 0x101 * 0xffff / (a * 0x101)) >> 8)
}
