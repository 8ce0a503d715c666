//go:build !opencv

package app

import (
	"github.com/nikhilbhutani/labocr/internal/config"
	"github.com/nikhilbhutani/labocr/internal/preprocess"
)

const preprocessorName = "imaging"

// NewPreprocessor returns the pure Go preprocessor. Build with -tags opencv
// to use OpenCV instead.
func NewPreprocessor(cfg config.OCRConfig) preprocess.Preprocessor {
	return preprocess.New(
		preprocess.WithScale(cfg.Scale),
		preprocess.WithBlockSize(cfg.ThresholdBlock),
		preprocess.WithOffset(cfg.ThresholdOffset),
	)
}
