// Package app assembles the processing pipeline from configuration. It is
// shared by the API server, the worker and the command line tool.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/labocr/internal/config"
	"github.com/nikhilbhutani/labocr/internal/labreport"
	"github.com/nikhilbhutani/labocr/internal/llm"
	"github.com/nikhilbhutani/labocr/internal/ocr"
	"github.com/nikhilbhutani/labocr/internal/ocr/tesseract"
	"github.com/nikhilbhutani/labocr/internal/pipeline"
)

// OCRConfig maps the OCR section of the configuration to recognizer settings.
func OCRConfig(cfg config.OCRConfig) ocr.Config {
	oc := ocr.DefaultConfig()
	if cfg.Language != "" {
		oc.Language = cfg.Language
	}
	oc.PageSegMode = cfg.PageSegMode
	oc.EngineMode = cfg.EngineMode
	return oc
}

// NewRecognizer returns the recognizer selected by OCR_BACKEND.
func NewRecognizer(cfg *config.Config) (ocr.Recognizer, error) {
	oc := OCRConfig(cfg.OCR)
	switch cfg.OCR.Backend {
	case "", "cli":
		return ocr.NewCLIRecognizer(cfg.OCR.TesseractPath, oc), nil
	case "tesseract":
		return tesseract.New(oc), nil
	case "vision":
		gw := llm.NewGateway(cfg.LLM)
		return ocr.NewVisionRecognizer(gw, cfg.LLM.DefaultProvider, cfg.LLM.DefaultModel), nil
	default:
		return nil, fmt.Errorf("unknown OCR backend %q", cfg.OCR.Backend)
	}
}

// NewProcessor builds a pipeline over the configured preprocessor and
// recognizer. Cache and auditor are optional pipeline options. The extractor
// logs its per-line events through slog.Default().
func NewProcessor(cfg *config.Config, opts ...pipeline.Option) (*pipeline.Processor, error) {
	rec, err := NewRecognizer(cfg)
	if err != nil {
		return nil, fmt.Errorf("create recognizer: %w", err)
	}

	switch r := rec.(type) {
	case *ocr.CLIRecognizer:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if !r.IsAvailable(ctx) {
			slog.Warn("tesseract binary not available, image reports will fail", "path", cfg.OCR.TesseractPath)
		}
	case *tesseract.Recognizer:
		slog.Info("using libtesseract", "version", r.Version())
	}

	pre := NewPreprocessor(cfg.OCR)
	slog.Info("pipeline ready", "recognizer", rec.Name(), "preprocessor", preprocessorName)

	extractor := labreport.NewExtractor(labreport.WithLogger(slog.Default()))
	opts = append([]pipeline.Option{pipeline.WithExtractor(extractor)}, opts...)

	return pipeline.New(pre, rec, opts...), nil
}
