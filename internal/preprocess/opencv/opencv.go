//go:build opencv

// Package opencv provides a Preprocessor backed by OpenCV through gocv. It
// mirrors the default pipeline with OpenCV's bicubic resize, Gaussian
// adaptive threshold and non-local means denoising.
//
// Build with -tags opencv; OpenCV 4 must be installed.
package opencv

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/nikhilbhutani/labocr/internal/preprocess"
)

// Preprocessor implements preprocess.Preprocessor with gocv.
type Preprocessor struct {
	Scale     float64
	BlockSize int
	Offset    float32
}

// New returns a Preprocessor with scale 2, block 11 and offset 2.
func New() *Preprocessor {
	return &Preprocessor{Scale: 2, BlockSize: 11, Offset: 2}
}

var _ preprocess.Preprocessor = (*Preprocessor)(nil)

func (p *Preprocessor) Preprocess(ctx context.Context, data []byte) (*image.Gray, error) {
	if len(data) == 0 {
		return nil, &preprocess.ImageDecodeError{Err: preprocess.ErrEmptyImage}
	}
	src, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, &preprocess.ImageDecodeError{Err: err}
	}
	defer src.Close()
	if src.Empty() {
		return nil, &preprocess.ImageDecodeError{Err: fmt.Errorf("opencv could not decode %d bytes", len(data))}
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Point{}, p.Scale, p.Scale, gocv.InterpolationCubic)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(resized, &gray, gocv.ColorBGRToGray)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(gray, &thresh, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, p.BlockSize, p.Offset)

	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.FastNlMeansDenoising(thresh, &denoised)

	img, err := denoised.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert mat: %w", err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("unexpected raster type %T", img)
	}
	return g, nil
}
