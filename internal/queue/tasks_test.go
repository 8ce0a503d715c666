package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/labocr/internal/labreport"
)

func TestReportResultJSON(t *testing.T) {
	ok, err := json.Marshal(ReportResult{JobID: "j1", IsSuccess: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"job_id":"j1","is_success":true,"data":[]}`, string(ok))

	withData, err := json.Marshal(ReportResult{JobID: "j1", IsSuccess: true, Data: []labreport.TestRecord{
		{TestName: "GLUCOSE", TestValue: "250", TestUnit: "-", BioReferenceRange: "-"},
	}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"job_id":"j1","is_success":true,"data":[{"test_name":"GLUCOSE","test_value":"250","test_unit":"-","bio_reference_range":"-","lab_test_out_of_range":false}]}`, string(withData))

	failed, err := json.Marshal(ReportResult{JobID: "j2", Error: "process lab report: preprocess: decode image: bad"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"job_id":"j2","is_success":false,"error":"process lab report: preprocess: decode image: bad"}`, string(failed))
}
