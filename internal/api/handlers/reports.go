package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/labocr/internal/auth"
	"github.com/nikhilbhutani/labocr/internal/labreport"
	"github.com/nikhilbhutani/labocr/internal/pipeline"
	"github.com/nikhilbhutani/labocr/internal/queue"
	"github.com/nikhilbhutani/labocr/internal/storage"
)

type ReportProcessor interface {
	ProcessDocument(ctx context.Context, data []byte, contentType string) (*labreport.Result, error)
	ProcessText(ctx context.Context, text string) (*labreport.Result, error)
}

type JobQueue interface {
	EnqueueReportProcess(ctx context.Context, payload queue.ReportProcessPayload) error
}

// Async holds what the async endpoint needs. A nil *Async disables it.
type Async struct {
	Storage storage.Storage
	Bucket  string
	Queue   JobQueue
}

type ReportHandler struct {
	processor ReportProcessor
	async     *Async
}

func NewReportHandler(processor ReportProcessor, async *Async) *ReportHandler {
	return &ReportHandler{processor: processor, async: async}
}

// Extract processes an uploaded report synchronously.
func (h *ReportHandler) Extract(w http.ResponseWriter, r *http.Request) {
	data, contentType, _, ok := readUpload(w, r)
	if !ok {
		return
	}

	res, err := h.processor.ProcessDocument(r.Context(), data, contentType)
	if err != nil {
		writeProcessingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type extractTextRequest struct {
	Text string `json:"text"`
}

// ExtractText parses already recognized text.
func (h *ReportHandler) ExtractText(w http.ResponseWriter, r *http.Request) {
	var req extractTextRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, queue.MaxReportSize)).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.processor.ProcessText(r.Context(), req.Text)
	if err != nil {
		writeProcessingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ExtractAsync stores the upload and queues it; the result is posted to callback_url.
func (h *ReportHandler) ExtractAsync(w http.ResponseWriter, r *http.Request) {
	if h.async == nil {
		writeFailure(w, http.StatusServiceUnavailable, "async processing is not configured")
		return
	}

	data, contentType, filename, ok := readUpload(w, r)
	if !ok {
		return
	}

	callback := r.FormValue("callback_url")
	if !validCallback(callback) {
		writeFailure(w, http.StatusBadRequest, "callback_url must be an absolute http(s) URL")
		return
	}

	jobID := uuid.NewString()
	objectPath := "reports/" + jobID + strings.ToLower(filepath.Ext(filename))

	if err := h.async.Storage.Upload(r.Context(), h.async.Bucket, objectPath, data, contentType); err != nil {
		slog.Error("failed to store report", "job_id", jobID, "error", err)
		writeFailure(w, http.StatusBadGateway, "failed to store report")
		return
	}

	err := h.async.Queue.EnqueueReportProcess(r.Context(), queue.ReportProcessPayload{
		JobID:       jobID,
		ObjectPath:  objectPath,
		ContentType: contentType,
		CallbackURL: callback,
	})
	if err != nil {
		slog.Error("failed to enqueue report", "job_id", jobID, "error", err)
		if derr := h.async.Storage.Delete(context.WithoutCancel(r.Context()), h.async.Bucket, objectPath); derr != nil {
			slog.Warn("failed to delete orphaned report", "job_id", jobID, "error", derr)
		}
		writeFailure(w, http.StatusServiceUnavailable, "failed to queue report")
		return
	}

	attrs := []any{"job_id", jobID, "content_type", contentType}
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		attrs = append(attrs, "subject", claims.Subject)
	}
	slog.Info("report queued", attrs...)

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "queued"})
}

func readUpload(w http.ResponseWriter, r *http.Request) (data []byte, contentType, filename string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, queue.MaxReportSize+1<<20)
	if err := r.ParseMultipartForm(queue.MaxReportSize); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid multipart form")
		return nil, "", "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "file required")
		return nil, "", "", false
	}
	defer file.Close()

	data, err = readFile(file)
	if err != nil {
		writeFailure(w, http.StatusRequestEntityTooLarge, err.Error())
		return nil, "", "", false
	}
	if len(data) == 0 {
		writeFailure(w, http.StatusBadRequest, "file is empty")
		return nil, "", "", false
	}

	contentType = header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, header.Filename, true
}

func readFile(f multipart.File) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, queue.MaxReportSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > queue.MaxReportSize {
		return nil, errors.New("file exceeds 20MB limit")
	}
	return data, nil
}

func validCallback(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// writeProcessingError maps pipeline stages to statuses: unreadable input is
// the caller's fault, a failing engine is an upstream fault.
func writeProcessingError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrPreprocess), errors.Is(err, pipeline.ErrDocument):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrRecognize):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		slog.Error("report processing failed", "error", err)
	}
	writeFailure(w, status, err.Error())
}
