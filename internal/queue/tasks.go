package queue

import (
	"encoding/json"

	"github.com/nikhilbhutani/labocr/internal/labreport"
)

const TypeReportProcess = "report:process"

// MaxReportSize bounds uploads accepted for processing.
const MaxReportSize = 20 << 20

type ReportProcessPayload struct {
	JobID       string `json:"job_id"`
	ObjectPath  string `json:"object_path"`
	ContentType string `json:"content_type"`
	CallbackURL string `json:"callback_url"`
}

// ReportResult is the webhook body sent when a job finishes. It encodes as
// {job_id, is_success, data} on success and {job_id, is_success, error} otherwise.
type ReportResult struct {
	JobID     string
	IsSuccess bool
	Data      []labreport.TestRecord
	Error     string
}

func (r ReportResult) MarshalJSON() ([]byte, error) {
	if r.IsSuccess {
		data := r.Data
		if data == nil {
			data = []labreport.TestRecord{}
		}
		return json.Marshal(struct {
			JobID     string                 `json:"job_id"`
			IsSuccess bool                   `json:"is_success"`
			Data      []labreport.TestRecord `json:"data"`
		}{r.JobID, true, data})
	}
	return json.Marshal(struct {
		JobID     string `json:"job_id"`
		IsSuccess bool   `json:"is_success"`
		Error     string `json:"error"`
	}{r.JobID, false, r.Error})
}
