// Package ocr turns a preprocessed grayscale raster into raw text.
//
// Recognition quality is best-effort: an unreadable raster yields whatever
// text the engine produced, possibly empty. Only an engine that cannot run
// at all reports a *RecognitionError.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strconv"
)

// ErrEmptyRaster is wrapped by a RecognitionError when the raster has no pixels.
var ErrEmptyRaster = errors.New("empty raster")

// Recognizer converts a raster into text.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, raster *image.Gray) (string, error)
}

// Config mirrors the tesseract knobs shared by the engine backends.
type Config struct {
	Language    string // tesseract language codes joined by "+", e.g. "eng+hin"
	PageSegMode int    // --psm
	EngineMode  int    // --oem
	Whitelist   string // tessedit_char_whitelist, empty for no restriction
}

// DefaultConfig treats the report as a single uniform block of text read by
// the LSTM engine.
func DefaultConfig() Config {
	return Config{
		Language:    "eng",
		PageSegMode: 6,
		EngineMode:  1,
	}
}

// Args renders the config as tesseract command line flags.
func (c Config) Args() []string {
	lang := c.Language
	if lang == "" {
		lang = "eng"
	}
	args := []string{
		"-l", lang,
		"--psm", strconv.Itoa(c.PageSegMode),
		"--oem", strconv.Itoa(c.EngineMode),
	}
	if c.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+c.Whitelist)
	}
	return args
}

// RecognitionError reports that an engine could not process a raster.
type RecognitionError struct {
	Engine string
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognize with %s: %v", e.Engine, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// CheckRaster returns a RecognitionError for a nil or zero-sized raster.
func CheckRaster(engine string, raster *image.Gray) error {
	if raster == nil || raster.Bounds().Empty() {
		return &RecognitionError{Engine: engine, Err: ErrEmptyRaster}
	}
	return nil
}

// EncodePNG encodes the raster losslessly for engines that take file bytes.
func EncodePNG(raster *image.Gray) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, raster); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
