// Package preprocess turns an arbitrary report photo or scan into a binary
// raster suited to text recognition.
package preprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Preprocessor normalises encoded image bytes into a cleaned binary raster.
type Preprocessor interface {
	Preprocess(ctx context.Context, data []byte) (*image.Gray, error)
}

// ErrEmptyImage is wrapped in an ImageDecodeError when no bytes were given.
var ErrEmptyImage = errors.New("empty image data")

// ImageDecodeError reports input bytes that are not a decodable image.
type ImageDecodeError struct {
	Err error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

const (
	minScale         = 2.0
	defaultBlockSize = 11
	defaultOffset    = 2.0
)

// Option configures the imaging preprocessor.
type Option func(*Imaging)

// WithScale sets the upscale factor. Values below 2 are raised to 2.
func WithScale(f float64) Option {
	return func(p *Imaging) { p.scale = math.Max(f, minScale) }
}

// WithBlockSize sets the neighbourhood size of the adaptive threshold. Even
// sizes are rounded up and sizes below 3 are ignored.
func WithBlockSize(n int) Option {
	return func(p *Imaging) {
		if n < 3 {
			return
		}
		if n%2 == 0 {
			n++
		}
		p.blockSize = n
	}
}

// WithOffset sets the constant subtracted from the local mean before
// comparison.
func WithOffset(c float64) Option {
	return func(p *Imaging) { p.offset = c }
}

// WithDenoise toggles the final majority filter.
func WithDenoise(on bool) Option {
	return func(p *Imaging) { p.denoise = on }
}

// Imaging is the default Preprocessor, built on disintegration/imaging:
// decode, upscale (CatmullRom), grayscale, adaptive Gaussian threshold and a
// 3x3 majority filter.
type Imaging struct {
	scale     float64
	blockSize int
	offset    float64
	denoise   bool
}

// New returns an Imaging preprocessor with the default parameters
// (scale 2, block 11, offset 2, denoise on).
func New(opts ...Option) *Imaging {
	p := &Imaging{
		scale:     minScale,
		blockSize: defaultBlockSize,
		offset:    defaultOffset,
		denoise:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Preprocess decodes data and returns a raster whose pixels are 0 or 255.
func (p *Imaging) Preprocess(ctx context.Context, data []byte) (*image.Gray, error) {
	if len(data) == 0 {
		return nil, &ImageDecodeError{Err: ErrEmptyImage}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ImageDecodeError{Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * p.scale))
	h := int(math.Round(float64(b.Dy()) * p.scale))
	gray := grayFromNRGBA(imaging.Grayscale(imaging.Resize(img, w, h, imaging.CatmullRom)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mean := grayFromNRGBA(imaging.Blur(gray, gaussianSigma(p.blockSize)))
	bin := adaptiveThreshold(gray, mean, p.offset)

	if !p.denoise {
		return bin, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return majorityFilter(bin), nil
}

// gaussianSigma derives the kernel sigma for a block size the same way
// OpenCV does for a Gaussian adaptive threshold.
func gaussianSigma(blockSize int) float64 {
	return 0.3*((float64(blockSize)-1)*0.5-1) + 0.8
}

// grayFromNRGBA copies the red channel of an already grayscale image.
func grayFromNRGBA(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		srow := src.Pix[y*src.Stride:]
		drow := dst.Pix[y*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			drow[x] = srow[x*4]
		}
	}
	return dst
}

func adaptiveThreshold(src, mean *image.Gray, offset float64) *image.Gray {
	dst := image.NewGray(src.Rect)
	for i, v := range src.Pix {
		if float64(v) > float64(mean.Pix[i])-offset {
			dst.Pix[i] = 255
		}
	}
	return dst
}

// majorityFilter sets each pixel to the majority value of its 3x3
// neighbourhood, which removes isolated speckles left by thresholding.
func majorityFilter(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(src.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var black, total int
			for dy := -1; dy <= 1; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					total++
					if src.Pix[yy*src.Stride+xx] == 0 {
						black++
					}
				}
			}
			if black*2 <= total {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}
