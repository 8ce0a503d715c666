// Package tesseract recognizes rasters in-process through libtesseract.
//
// Building this package needs cgo and the tesseract/leptonica development
// headers (apt-get install libtesseract-dev libleptonica-dev).
package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/nikhilbhutani/labocr/internal/ocr"
)

const engine = "tesseract"

// Recognizer opens one gosseract client per call, so it is safe for
// concurrent use. The engine mode is left at libtesseract's default.
type Recognizer struct {
	cfg       ocr.Config
	newClient func() *gosseract.Client
}

func New(cfg ocr.Config) *Recognizer {
	return &Recognizer{cfg: cfg, newClient: gosseract.NewClient}
}

func (r *Recognizer) Name() string { return engine }

// Version reports the linked libtesseract version.
func (r *Recognizer) Version() string {
	return gosseract.Version()
}

func (r *Recognizer) Recognize(ctx context.Context, raster *image.Gray) (string, error) {
	if err := ocr.CheckRaster(engine, raster); err != nil {
		return "", err
	}
	data, err := ocr.EncodePNG(raster)
	if err != nil {
		return "", &ocr.RecognitionError{Engine: engine, Err: err}
	}

	type result struct {
		text string
		err  error
	}
	// Buffered so the worker never blocks after a cancelled caller leaves.
	resultCh := make(chan result, 1)
	go func() {
		text, err := r.recognize(data)
		resultCh <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return "", &ocr.RecognitionError{Engine: engine, Err: res.err}
		}
		return res.text, nil
	}
}

func (r *Recognizer) recognize(data []byte) (string, error) {
	c := r.newClient()
	defer c.Close()

	lang := r.cfg.Language
	if lang == "" {
		lang = "eng"
	}
	if err := c.SetLanguage(strings.Split(lang, "+")...); err != nil {
		return "", fmt.Errorf("set language %q: %w", lang, err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(r.cfg.PageSegMode)); err != nil {
		return "", fmt.Errorf("set page segmentation mode %d: %w", r.cfg.PageSegMode, err)
	}
	if r.cfg.Whitelist != "" {
		if err := c.SetVariable(gosseract.SettableVariable("tessedit_char_whitelist"), r.cfg.Whitelist); err != nil {
			return "", fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
