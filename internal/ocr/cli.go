package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

const cliEngine = "tesseract-cli"

// CLIRecognizer runs the tesseract binary against a temporary PNG.
type CLIRecognizer struct {
	tesseractPath string
	cfg           Config
	tempDir       string
	logger        *slog.Logger
}

type CLIOption func(*CLIRecognizer)

// WithTempDir stages rasters in dir instead of os.TempDir().
func WithTempDir(dir string) CLIOption {
	return func(r *CLIRecognizer) { r.tempDir = dir }
}

func WithCLILogger(l *slog.Logger) CLIOption {
	return func(r *CLIRecognizer) { r.logger = l }
}

// NewCLIRecognizer resolves path through $PATH; an empty path means "tesseract".
func NewCLIRecognizer(path string, cfg Config, opts ...CLIOption) *CLIRecognizer {
	if path == "" {
		path = "tesseract"
	}
	if resolved, err := exec.LookPath(path); err == nil {
		path = resolved
	}
	r := &CLIRecognizer{
		tesseractPath: path,
		cfg:           cfg,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *CLIRecognizer) Name() string { return cliEngine }

func (r *CLIRecognizer) IsAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, r.tesseractPath, "--version")
	return cmd.Run() == nil
}

func (r *CLIRecognizer) Recognize(ctx context.Context, raster *image.Gray) (string, error) {
	if err := CheckRaster(cliEngine, raster); err != nil {
		return "", err
	}

	path, err := r.stage(raster)
	if err != nil {
		return "", &RecognitionError{Engine: cliEngine, Err: err}
	}
	defer r.remove(path)

	args := append([]string{path, "stdout"}, r.cfg.Args()...)
	cmd := exec.CommandContext(ctx, r.tesseractPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", &RecognitionError{Engine: cliEngine, Err: fmt.Errorf("tesseract OCR: %w", err)}
	}

	return strings.TrimSpace(string(output)), nil
}

func (r *CLIRecognizer) stage(raster *image.Gray) (string, error) {
	data, err := EncodePNG(raster)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(r.tempDir, "labocr-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		r.remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		r.remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}

func (r *CLIRecognizer) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("failed to remove temp image", "path", path, "error", err)
	}
}
