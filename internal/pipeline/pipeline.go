// Package pipeline runs a lab report through preprocessing, recognition and
// extraction, in that order, and returns either a full result or an error
// naming the stage that failed.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/labocr/internal/audit"
	"github.com/nikhilbhutani/labocr/internal/cache"
	"github.com/nikhilbhutani/labocr/internal/labreport"
	"github.com/nikhilbhutani/labocr/internal/ocr"
	"github.com/nikhilbhutani/labocr/internal/preprocess"
)

// Stage sentinels. Errors returned by a Processor wrap exactly one of them
// alongside the originating typed error.
var (
	ErrPreprocess = errors.New("preprocess")
	ErrRecognize  = errors.New("recognize")
	ErrExtract    = errors.New("extract")
)

// TextCache stores recognizer output keyed by image digest.
type TextCache interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
}

// Auditor records run metadata.
type Auditor interface {
	Record(ctx context.Context, run audit.Run) error
}

type Option func(*Processor)

func WithExtractor(e *labreport.Extractor) Option {
	return func(p *Processor) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithCache skips preprocessing and recognition for images seen within ttl.
func WithCache(c TextCache, ttl time.Duration) Option {
	return func(p *Processor) {
		p.cache = c
		p.cacheTTL = ttl
	}
}

func WithAuditor(a Auditor) Option {
	return func(p *Processor) { p.auditor = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// Processor is safe for concurrent use when its collaborators are.
type Processor struct {
	pre       preprocess.Preprocessor
	rec       ocr.Recognizer
	extractor *labreport.Extractor
	cache     TextCache
	cacheTTL  time.Duration
	auditor   Auditor
	logger    *slog.Logger
}

func New(pre preprocess.Preprocessor, rec ocr.Recognizer, opts ...Option) *Processor {
	p := &Processor{
		pre:       pre,
		rec:       rec,
		extractor: labreport.NewExtractor(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Recognizer returns the name of the configured recognizer.
func (p *Processor) Recognizer() string {
	return p.rec.Name()
}

// ProcessLabReport turns encoded image bytes into test records.
func (p *Processor) ProcessLabReport(ctx context.Context, image []byte) (*labreport.Result, error) {
	run := p.newRun("image")
	run.ImageDigest = Digest(image)
	run.Recognizer = p.rec.Name()
	start := time.Now()

	res, err := p.processImage(ctx, image, &run)
	p.finish(ctx, &run, start, res, err)
	return res, err
}

// ProcessText runs extraction alone over already recognized text.
func (p *Processor) ProcessText(ctx context.Context, text string) (*labreport.Result, error) {
	run := p.newRun("text")
	start := time.Now()

	res, err := p.extract(text, &run)
	p.finish(ctx, &run, start, res, err)
	return res, err
}

func (p *Processor) processImage(ctx context.Context, image []byte, run *audit.Run) (*labreport.Result, error) {
	key := cacheKey(p.rec.Name(), run.ImageDigest)
	if text, ok := p.cached(ctx, key); ok {
		run.CacheHit = true
		return p.extract(text, run)
	}

	run.Stage = audit.StagePreprocess
	raster, err := p.pre.Preprocess(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("process lab report: %w: %w", ErrPreprocess, err)
	}

	run.Stage = audit.StageRecognize
	text, err := p.rec.Recognize(ctx, raster)
	if err != nil {
		return nil, fmt.Errorf("process lab report: %w: %w", ErrRecognize, err)
	}
	p.logger.Debug("recognized text",
		"recognizer", p.rec.Name(),
		"digest", run.ImageDigest,
		"chars", len(text),
	)

	p.store(ctx, key, text)
	return p.extract(text, run)
}

func (p *Processor) extract(text string, run *audit.Run) (*labreport.Result, error) {
	run.Stage = audit.StageExtract
	res, err := p.extractor.Extract(text)
	if err != nil {
		return nil, fmt.Errorf("process lab report: %w: %w", ErrExtract, err)
	}
	run.Stage = audit.StageDone
	run.RecordCount = len(res.Data)
	run.OutOfRangeCount = len(res.OutOfRange())

	p.logger.Debug("extraction complete",
		"run_id", run.ID,
		"records", run.RecordCount,
		"out_of_range", run.OutOfRangeCount,
	)
	return &res, nil
}

func (p *Processor) cached(ctx context.Context, key string) (string, bool) {
	if p.cache == nil {
		return "", false
	}
	text, err := p.cache.GetString(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			p.logger.Warn("ocr cache lookup failed", "key", key, "error", err)
		}
		return "", false
	}
	return text, true
}

func (p *Processor) store(ctx context.Context, key, text string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.SetString(ctx, key, text, p.cacheTTL); err != nil {
		p.logger.Warn("ocr cache store failed", "key", key, "error", err)
	}
}

func (p *Processor) newRun(source string) audit.Run {
	return audit.Run{ID: uuid.New(), Source: source}
}

func (p *Processor) finish(ctx context.Context, run *audit.Run, start time.Time, res *labreport.Result, err error) {
	run.DurationMs = time.Since(start).Milliseconds()
	run.CreatedAt = start.UTC()
	if err != nil {
		run.Status = audit.StatusFailed
		run.Error = err.Error()
		p.logger.Warn("lab report processing failed",
			"run_id", run.ID,
			"source", run.Source,
			"stage", run.Stage,
			"error", err,
		)
	} else {
		run.Status = audit.StatusSucceeded
		p.logger.Info("lab report processed",
			"run_id", run.ID,
			"source", run.Source,
			"records", len(res.Data),
			"cache_hit", run.CacheHit,
			"duration_ms", run.DurationMs,
		)
	}

	if p.auditor == nil {
		return
	}
	if aerr := p.auditor.Record(context.WithoutCancel(ctx), *run); aerr != nil {
		p.logger.Warn("failed to record processing run", "run_id", run.ID, "error", aerr)
	}
}

// Digest is the hex SHA-256 of the input bytes.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func cacheKey(recognizer, digest string) string {
	return "ocr:" + recognizer + ":" + digest
}
