//go:build opencv

package app

import (
	"github.com/nikhilbhutani/labocr/internal/config"
	"github.com/nikhilbhutani/labocr/internal/preprocess"
	"github.com/nikhilbhutani/labocr/internal/preprocess/opencv"
)

const preprocessorName = "opencv"

func NewPreprocessor(cfg config.OCRConfig) preprocess.Preprocessor {
	p := opencv.New()
	if cfg.Scale > p.Scale {
		p.Scale = cfg.Scale
	}
	if cfg.ThresholdBlock >= 3 && cfg.ThresholdBlock%2 == 1 {
		p.BlockSize = cfg.ThresholdBlock
	}
	p.Offset = float32(cfg.ThresholdOffset)
	return p
}
