package labreport

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `Patient Name: John Doe
Hemoglobin 13.5 g/dL 13.0-17.0
HBsAg POSITIVE
Glucose: 250`

func TestExtract_SampleReport(t *testing.T) {
	res, err := Extract(sampleReport)
	require.NoError(t, err)
	require.True(t, res.IsSuccess)

	want := []TestRecord{
		{TestName: "HEMOGLOBIN", TestValue: "13.5", TestUnit: "g/dL", BioReferenceRange: "13.0-17.0", OutOfRange: false},
		{TestName: "HBSAG", TestValue: "POSITIVE", TestUnit: "-", BioReferenceRange: "-", OutOfRange: true},
		{TestName: "GLUCOSE", TestValue: "250", TestUnit: "-", BioReferenceRange: "-", OutOfRange: false},
	}
	assert.Equal(t, want, res.Data)
}

func TestExtract_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\t\r\n  "} {
		res, err := Extract(in)
		require.NoError(t, err)
		assert.True(t, res.IsSuccess)
		assert.NotNil(t, res.Data)
		assert.Empty(t, res.Data)
	}
}

func TestExtract_RangeSemantics(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Glucose 95 mg/dL 70-110", false},
		{"Glucose 120 mg/dL 70-110", true},
		{"Glucose 70 mg/dL 70-110", false},
		{"Glucose 110 mg/dL 70-110", false},
		{"Glucose 69.9 mg/dL 70-110", true},
		{"Glucose 95 70 - 110", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			res, err := Extract(tt.line)
			require.NoError(t, err)
			require.Len(t, res.Data, 1)
			assert.Equal(t, "GLUCOSE", res.Data[0].TestName)
			assert.Equal(t, tt.want, res.Data[0].OutOfRange)
		})
	}
}

func TestExtract_Qualitative(t *testing.T) {
	res, err := Extract("HIV Antibody NEGATIVE\nHCV Antibody positive\nVDRL Negative")
	require.NoError(t, err)
	require.Len(t, res.Data, 3)

	assert.Equal(t, "HIV ANTIBODY", res.Data[0].TestName)
	assert.Equal(t, "NEGATIVE", res.Data[0].TestValue)
	assert.False(t, res.Data[0].OutOfRange)

	assert.Equal(t, "HCV ANTIBODY", res.Data[1].TestName)
	assert.Equal(t, "positive", res.Data[1].TestValue)
	assert.True(t, res.Data[1].OutOfRange)

	assert.False(t, res.Data[2].OutOfRange)
}

func TestExtract_UnitWithoutRange(t *testing.T) {
	res, err := Extract("Serum Creatinine 1.2 mg/dL")
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, TestRecord{
		TestName:          "SERUM CREATININE",
		TestValue:         "1.2",
		TestUnit:          "mg/dL",
		BioReferenceRange: NotAvailable,
	}, res.Data[0])
}

func TestExtract_RangeWithoutUnit(t *testing.T) {
	res, err := Extract("Platelet Count 450 150-400")
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, NotAvailable, res.Data[0].TestUnit)
	assert.Equal(t, "150-400", res.Data[0].BioReferenceRange)
	assert.True(t, res.Data[0].OutOfRange)
}

func TestExtract_FiltersHeaderLines(t *testing.T) {
	in := strings.Join([]string{
		"Report Date 12.03.2024",
		"Sample No. 4471",
		"Doctor Smith 2",
		"Mobile 9876543210",
		"Name: 42",
		"ESR 12 mm/hr 0-20",
	}, "\n")

	res, err := Extract(in)
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "ESR", res.Data[0].TestName)

	for _, rec := range res.Data {
		lower := strings.ToLower(rec.TestName)
		for _, term := range BlockedTerms {
			assert.NotContains(t, lower, term)
		}
	}
}

func TestExtract_Dedup(t *testing.T) {
	in := "Hemoglobin 13.5 g/dL 13.0-17.0\nESR 10\nhemoglobin 13.5 g/dL 13.0-17.0\nHemoglobin 14.0 g/dL 13.0-17.0"
	res, err := Extract(in)
	require.NoError(t, err)
	require.Len(t, res.Data, 3)
	assert.Equal(t, "HEMOGLOBIN", res.Data[0].TestName)
	assert.Equal(t, "13.5", res.Data[0].TestValue)
	assert.Equal(t, "ESR", res.Data[1].TestName)
	assert.Equal(t, "14.0", res.Data[2].TestValue)

	seen := map[TestRecord]bool{}
	for _, rec := range res.Data {
		assert.False(t, seen[rec], "duplicate record %+v", rec)
		seen[rec] = true
	}
}

func TestExtract_Idempotent(t *testing.T) {
	first, err := Extract(sampleReport)
	require.NoError(t, err)
	second, err := Extract(sampleReport)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtract_CRLF(t *testing.T) {
	res, err := Extract("ESR 12 mm/hr 0-20\r\nHBsAg NEGATIVE\r\n")
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "ESR", res.Data[0].TestName)
	assert.Equal(t, "HBSAG", res.Data[1].TestName)
}

func TestExtract_NumericClaimsMixedLine(t *testing.T) {
	res, err := Extract("HIV 1 NEGATIVE")
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "HIV", res.Data[0].TestName)
	assert.Equal(t, "1", res.Data[0].TestValue)
}

func TestExtract_LeadingJunk(t *testing.T) {
	in := strings.Join([]string{
		"* HBsAg POSITIVE",
		"| Hemoglobin 13.5 g/dL 13.0-17.0 |",
		"25 OH Vitamin D 18 ng/mL 30-100",
		"#3 Urea: 32",
	}, "\n")

	res, err := Extract(in)
	require.NoError(t, err)
	assert.Equal(t, []TestRecord{
		{TestName: "HBSAG", TestValue: "POSITIVE", TestUnit: "-", BioReferenceRange: "-", OutOfRange: true},
		{TestName: "HEMOGLOBIN", TestValue: "13.5", TestUnit: "g/dL", BioReferenceRange: "13.0-17.0"},
		{TestName: "OH VITAMIN D", TestValue: "18", TestUnit: "ng/mL", BioReferenceRange: "30-100", OutOfRange: true},
		{TestName: "UREA", TestValue: "32", TestUnit: "-", BioReferenceRange: "-"},
	}, res.Data)
}

func TestExtract_BlankNameFallsThrough(t *testing.T) {
	res, err := Extract("Glucose: 250\nDengue NS1 negative")
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "GLUCOSE", res.Data[0].TestName)
	assert.Equal(t, "250", res.Data[0].TestValue)
	assert.Equal(t, "DENGUE NS", res.Data[1].TestName)
	assert.Equal(t, "1", res.Data[1].TestValue)
}

func TestExtract_NegativeBounds(t *testing.T) {
	res, err := Extract("Base Excess -3 mmol/L -2 - 2\nBase Excess 1 mmol/L -2 - 2")
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, TestRecord{TestName: "BASE EXCESS", TestValue: "-3", TestUnit: "mmol/L", BioReferenceRange: "-2 - 2", OutOfRange: true}, res.Data[0])
	assert.False(t, res.Data[1].OutOfRange)
}

func TestExtract_InvalidUTF8(t *testing.T) {
	_, err := Extract("Hemoglobin 13.5\xff")
	require.Error(t, err)

	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.ErrorIs(t, err, ErrInvalidText)
}

type panicMatcher struct{}

func (panicMatcher) Name() string       { return "panic" }
func (panicMatcher) Match(string) Match { panic("boom") }

func TestExtractor_RecoversMatcherPanic(t *testing.T) {
	e := NewExtractor(WithMatchers(panicMatcher{}))
	res, err := e.Extract("Hemoglobin 13.5")
	require.Error(t, err)

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Contains(t, extErr.Error(), "boom")
	assert.False(t, res.IsSuccess)
}

func TestExtractor_CustomMatchers(t *testing.T) {
	e := NewExtractor(WithMatchers(ColonMatcher))
	res, err := e.Extract("Hemoglobin 13.5 g/dL\nGlucose: 250")
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "GLUCOSE", res.Data[0].TestName)
}

func TestExtractor_LogsDebugEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := NewExtractor(WithLogger(logger)).Extract(sampleReport)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"extracted text"`)
	assert.Contains(t, buf.String(), `"msg":"processed results"`)
	assert.Contains(t, buf.String(), `"records":3`)
}

func TestExtractor_Concurrent(t *testing.T) {
	e := NewExtractor()
	want, err := e.Extract(sampleReport)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Extract(sampleReport)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestResult_OutOfRange(t *testing.T) {
	res, err := Extract(sampleReport)
	require.NoError(t, err)
	abnormal := res.OutOfRange()
	require.Len(t, abnormal, 1)
	assert.Equal(t, "HBSAG", abnormal[0].TestName)
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("  a \n\n b\r\nc\r  \n")
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Empty(t, SplitLines(""))
}
