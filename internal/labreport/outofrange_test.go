package labreport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		in     string
		want   Range
		wantOK bool
	}{
		{"70-110", Range{70, 110}, true},
		{"13.0-17.0", Range{13, 17}, true},
		{" 4.5 - 11 ", Range{4.5, 11}, true},
		{"-5-5", Range{-5, 5}, true},
		{"-2 - 2", Range{-2, 2}, true},
		{"abc-xyz", Range{}, false},
		{"70", Range{}, false},
		{"", Range{}, false},
		{"-", Range{}, false},
		{"70-110-150", Range{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRange(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ref   string
		want  bool
	}{
		{"inside", "95", "70-110", false},
		{"above", "120", "70-110", true},
		{"below", "50", "70-110", true},
		{"low boundary", "70", "70-110", false},
		{"high boundary", "110", "70-110", false},
		{"malformed range", "95", "abc-xyz", false},
		{"non numeric value", "POSITIVE", "70-110", false},
		{"positive without range", "POSITIVE", NotAvailable, true},
		{"positive lowercase", "positive", "", true},
		{"negative without range", "NEGATIVE", NotAvailable, false},
		{"number without range", "250", NotAvailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateOutOfRange(tt.value, tt.ref))
		})
	}
}

func TestNewTestRecord_Defaults(t *testing.T) {
	rec := NewTestRecord(Fields{TestName: "  hba1c ", Value: "6.1", Unit: " "})
	assert.Equal(t, TestRecord{
		TestName:          "HBA1C",
		TestValue:         "6.1",
		TestUnit:          NotAvailable,
		BioReferenceRange: NotAvailable,
	}, rec)
}
