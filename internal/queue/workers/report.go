package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/labocr/internal/labreport"
	"github.com/nikhilbhutani/labocr/internal/pipeline"
	"github.com/nikhilbhutani/labocr/internal/queue"
	"github.com/nikhilbhutani/labocr/internal/storage"
	"github.com/nikhilbhutani/labocr/internal/webhook"
)

var errReportTooLarge = fmt.Errorf("report exceeds %d bytes", queue.MaxReportSize)

type ReportProcessor interface {
	ProcessDocument(ctx context.Context, data []byte, contentType string) (*labreport.Result, error)
}

type Notifier interface {
	Deliver(ctx context.Context, req webhook.DeliveryRequest) (int, error)
}

type ReportWorker struct {
	processor ReportProcessor
	storage   storage.Storage
	bucket    string
	notifier  Notifier
	secret    string
}

func NewReportWorker(processor ReportProcessor, store storage.Storage, bucket string, notifier Notifier, secret string) *ReportWorker {
	return &ReportWorker{
		processor: processor,
		storage:   store,
		bucket:    bucket,
		notifier:  notifier,
		secret:    secret,
	}
}

func (w *ReportWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ReportProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if _, err := uuid.Parse(payload.JobID); err != nil {
		return w.reject(ctx, payload, fmt.Errorf("parse job ID: %v", err))
	}
	if payload.ObjectPath == "" {
		return w.reject(ctx, payload, fmt.Errorf("job %s has no object path", payload.JobID))
	}

	slog.Info("processing lab report", "job_id", payload.JobID, "content_type", payload.ContentType)

	data, err := w.download(ctx, payload.ObjectPath)
	if errors.Is(err, errReportTooLarge) {
		return w.reject(ctx, payload, err)
	}
	if err != nil {
		return err
	}

	result := queue.ReportResult{JobID: payload.JobID}
	res, err := w.processor.ProcessDocument(ctx, data, payload.ContentType)
	switch {
	case err == nil:
		result.IsSuccess = true
		result.Data = res.Data
	case ctx.Err() != nil:
		return fmt.Errorf("process report: %w", err)
	case errors.Is(err, pipeline.ErrRecognize) && retriesLeft(ctx):
		return fmt.Errorf("process report: %w", err)
	default:
		slog.Warn("lab report failed", "job_id", payload.JobID, "error", err)
		result.Error = err.Error()
	}

	if err := w.notify(ctx, payload, result); err != nil {
		return err
	}

	w.cleanup(ctx, payload)

	slog.Info("lab report job finished", "job_id", payload.JobID, "is_success", result.IsSuccess, "records", len(result.Data))
	return nil
}

// reject ends a job that can never succeed. The callback still receives a
// failed result and the stored upload is removed when the payload names them.
func (w *ReportWorker) reject(ctx context.Context, payload queue.ReportProcessPayload, cause error) error {
	slog.Warn("rejecting lab report job", "job_id", payload.JobID, "error", cause)

	result := queue.ReportResult{JobID: payload.JobID, Error: cause.Error()}
	if err := w.notify(ctx, payload, result); err != nil {
		slog.Warn("failed to deliver rejected job result", "job_id", payload.JobID, "error", err)
	}
	w.cleanup(ctx, payload)

	return fmt.Errorf("%v: %w", cause, asynq.SkipRetry)
}

func (w *ReportWorker) cleanup(ctx context.Context, payload queue.ReportProcessPayload) {
	if payload.ObjectPath == "" {
		return
	}
	if err := w.storage.Delete(context.WithoutCancel(ctx), w.bucket, payload.ObjectPath); err != nil {
		slog.Warn("failed to delete processed report", "job_id", payload.JobID, "path", payload.ObjectPath, "error", err)
	}
}

func (w *ReportWorker) download(ctx context.Context, path string) ([]byte, error) {
	reader, err := w.storage.Download(ctx, w.bucket, path)
	if err != nil {
		return nil, fmt.Errorf("download report: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, queue.MaxReportSize+1))
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if len(data) > queue.MaxReportSize {
		return nil, fmt.Errorf("report %s: %w", path, errReportTooLarge)
	}
	return data, nil
}

func (w *ReportWorker) notify(ctx context.Context, payload queue.ReportProcessPayload, result queue.ReportResult) error {
	if payload.CallbackURL == "" {
		return nil
	}
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if _, err := w.notifier.Deliver(ctx, webhook.DeliveryRequest{
		URL:     payload.CallbackURL,
		Secret:  w.secret,
		Event:   webhook.EventReportProcessed,
		Payload: body,
	}); err != nil {
		return fmt.Errorf("deliver result: %w", err)
	}
	return nil
}

func retriesLeft(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return ok && retried < maxRetry
}
