package audit

import (
	"time"

	"github.com/google/uuid"
)

// Stages a processing run can reach.
const (
	StageDecode     = "decode"
	StagePreprocess = "preprocess"
	StageRecognize  = "recognize"
	StageExtract    = "extract"
	StageDone       = "done"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is the metadata of one processing call. Extracted values are never stored.
type Run struct {
	ID              uuid.UUID `json:"id"`
	Source          string    `json:"source"` // image, pdf, docx, text
	ImageDigest     string    `json:"image_digest,omitempty"`
	Recognizer      string    `json:"recognizer,omitempty"`
	Stage           string    `json:"stage"`
	Status          string    `json:"status"`
	CacheHit        bool      `json:"cache_hit"`
	RecordCount     int       `json:"record_count"`
	OutOfRangeCount int       `json:"out_of_range_count"`
	DurationMs      int64     `json:"duration_ms"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type StatusCount struct {
	Status     string `json:"status"`
	Stage      string `json:"stage"`
	Runs       int    `json:"runs"`
	Records    int    `json:"records"`
	OutOfRange int    `json:"out_of_range"`
}
