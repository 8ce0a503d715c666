package textextract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Patient Name: John Doe</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Hemo</w:t></w:r><w:r><w:t>globin</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>13.5</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>g/dL</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>13.0-17.0</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Dengue NS1</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>POSITIVE</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
    <w:p><w:r><w:t>Glucose:</w:t></w:r><w:r><w:tab/><w:t>250</w:t></w:r></w:p>
  </w:body>
</w:document>`

func buildDOCX(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDOCXKeepsRows(t *testing.T) {
	data := buildDOCX(t, map[string]string{
		"[Content_Types].xml": "<Types/>",
		"word/document.xml":   documentXML,
	})

	got, err := Extract(bytes.NewReader(data), int64(len(data)), KindDOCX)
	require.NoError(t, err)
	assert.Equal(t,
		"Patient Name: John Doe\nHemoglobin 13.5 g/dL 13.0-17.0\nDengue NS1 POSITIVE\nGlucose: 250\n",
		got.Content)
	assert.Equal(t, "docx", got.Metadata["type"])
}

func TestExtractDOCXWithoutDocument(t *testing.T) {
	data := buildDOCX(t, map[string]string{"word/styles.xml": "<w:styles/>"})

	_, err := Extract(bytes.NewReader(data), int64(len(data)), ".docx")
	assert.ErrorContains(t, err, "word/document.xml not found")
}

func TestExtractTXT(t *testing.T) {
	data := []byte("\n  Hemoglobin 13.5 g/dL 13.0-17.0\r\nGlucose: 250  \n")

	got, err := Extract(bytes.NewReader(data), int64(len(data)), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "Hemoglobin 13.5 g/dL 13.0-17.0\r\nGlucose: 250", got.Content)
	assert.Equal(t, 1, got.Pages)
}

func TestExtractRejects(t *testing.T) {
	data := []byte("definitely not a pdf")

	_, err := Extract(bytes.NewReader(data), int64(len(data)), KindPDF)
	assert.ErrorContains(t, err, "open PDF")

	_, err = Extract(bytes.NewReader(data), int64(len(data)), ".odt")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		contentType, filename, want string
	}{
		{"application/pdf", "", KindPDF},
		{"text/plain; charset=utf-8", "", KindTXT},
		{"image/jpeg", "", KindImage},
		{docxMIME, "", KindDOCX},
		{"application/octet-stream", "report.PNG", KindImage},
		{"", "scan.tiff", KindImage},
		{"", "report.docx", KindDOCX},
		{"application/octet-stream", "report.odt", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.contentType, tt.filename), "%q %q", tt.contentType, tt.filename)
	}
}

func TestJoinRow(t *testing.T) {
	row := pdf.TextHorizontal{
		{X: 50, W: 5, S: "3", FontSize: 10},
		{X: 10, W: 5, S: "H", FontSize: 10},
		{X: 15, W: 5, S: "b", FontSize: 10},
		{X: 55, W: 5, S: ".", FontSize: 10},
		{X: 60, W: 5, S: "5", FontSize: 10},
	}
	assert.Equal(t, "Hb 3.5", joinRow(row))
}
