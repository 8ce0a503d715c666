package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/labocr/internal/app"
	"github.com/nikhilbhutani/labocr/internal/config"
	"github.com/nikhilbhutani/labocr/internal/labreport"
	"github.com/nikhilbhutani/labocr/internal/pipeline"
)

var cmdExtract = &cli.Command{
	Name:      "extract",
	Usage:     "Run OCR and extraction on report files, one JSON line per file",
	ArgsUsage: "FILE...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "backend",
			Usage:   "Recognizer: cli, tesseract or vision",
			Sources: cli.EnvVars("OCR_BACKEND"),
			Value:   "cli",
		},
		&cli.BoolFlag{
			Name:  "text",
			Usage: "Treat files as already recognized text and skip OCR",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Files processed in parallel",
			Value: 4,
		},
		&cli.IntFlag{
			Name:    "psm",
			Usage:   "Tesseract page segmentation mode",
			Sources: cli.EnvVars("OCR_PSM"),
			Value:   6,
		},
		&cli.StringFlag{
			Name:    "lang",
			Usage:   "Tesseract language(s), e.g. eng or eng+hin",
			Sources: cli.EnvVars("OCR_LANGUAGE"),
			Value:   "eng",
		},
	},
	Action: runExtract,
}

type fileResult struct {
	File      string                 `json:"file"`
	IsSuccess bool                   `json:"is_success"`
	Data      []labreport.TestRecord `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

type reportProcessor interface {
	ProcessDocument(ctx context.Context, data []byte, contentType string) (*labreport.Result, error)
	ProcessText(ctx context.Context, text string) (*labreport.Result, error)
}

func runExtract(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return cli.Exit("at least one FILE is required", 2)
	}
	setupLogging(cmd)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.OCR.Backend = cmd.String("backend")
	cfg.OCR.PageSegMode = cmd.Int("psm")
	cfg.OCR.Language = cmd.String("lang")
	if err := cfg.Validate(); err != nil {
		return err
	}

	processor, err := app.NewProcessor(cfg, pipeline.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	results := extractFiles(ctx, processor, files, cmd.Bool("text"), cmd.Int("concurrency"))

	enc := json.NewEncoder(cmd.Root().Writer)
	failed := 0
	for _, r := range results {
		if !r.IsSuccess {
			failed++
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", failed, len(files)), 1)
	}
	return nil
}

// extractFiles processes files with bounded parallelism and returns results
// in input order. A failing file never stops the others.
func extractFiles(ctx context.Context, processor reportProcessor, files []string, asText bool, concurrency int) []fileResult {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, file := range files {
		g.Go(func() error {
			results[i] = extractFile(ctx, processor, file, asText)
			return nil
		})
	}
	g.Wait()
	return results
}

func extractFile(ctx context.Context, processor reportProcessor, file string, asText bool) fileResult {
	out := fileResult{File: file}

	data, err := os.ReadFile(file)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	var res *labreport.Result
	if asText {
		res, err = processor.ProcessText(ctx, string(data))
	} else {
		res, err = processor.ProcessDocument(ctx, data, mime.TypeByExtension(filepath.Ext(file)))
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}

	out.IsSuccess = res.IsSuccess
	out.Data = res.Data
	if out.Data == nil {
		out.Data = []labreport.TestRecord{}
	}
	return out
}

func setupLogging(cmd *cli.Command) {
	level := slog.LevelWarn
	if cmd.Root().Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.Root().ErrWriter, &slog.HandlerOptions{Level: level})))
}
