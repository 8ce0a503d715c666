package labreport

import "strings"

// NotAvailable is the placeholder written for a missing unit or reference range.
const NotAvailable = "-"

// TestRecord is a single lab test result recovered from a report line.
type TestRecord struct {
	TestName          string `json:"test_name"`
	TestValue         string `json:"test_value"`
	TestUnit          string `json:"test_unit"`
	BioReferenceRange string `json:"bio_reference_range"`
	OutOfRange        bool   `json:"lab_test_out_of_range"`
}

// NewTestRecord builds a record from captured fields, applying the "-"
// defaults, name normalisation and the out-of-range rule.
func NewTestRecord(f Fields) TestRecord {
	unit := orNotAvailable(f.Unit)
	ref := orNotAvailable(f.ReferenceRange)
	return TestRecord{
		TestName:          strings.ToUpper(strings.TrimSpace(f.TestName)),
		TestValue:         f.Value,
		TestUnit:          unit,
		BioReferenceRange: ref,
		OutOfRange:        EvaluateOutOfRange(f.Value, ref),
	}
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

// Result is the outcome of one extraction run.
type Result struct {
	IsSuccess bool         `json:"is_success"`
	Data      []TestRecord `json:"data"`
}

// OutOfRange returns the records flagged as abnormal, in result order.
func (r Result) OutOfRange() []TestRecord {
	var out []TestRecord
	for _, rec := range r.Data {
		if rec.OutOfRange {
			out = append(out, rec)
		}
	}
	return out
}
