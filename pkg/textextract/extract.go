// Package textextract recovers the text layer of digital lab reports so they
// can skip OCR. Line structure is kept: one table row or paragraph per line.
package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document kinds recognised by Classify.
const (
	KindPDF   = "pdf"
	KindDOCX  = "docx"
	KindTXT   = "txt"
	KindImage = "image"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var ErrUnsupportedType = errors.New("unsupported file type")

type ExtractedText struct {
	Content  string
	Pages    int
	Metadata map[string]string
}

// Classify maps a content type, falling back to the file extension, to a kind.
// It returns "" for anything it cannot handle.
func Classify(contentType, filename string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case mediaType == "application/pdf":
			return KindPDF
		case mediaType == docxMIME:
			return KindDOCX
		case mediaType == "text/plain":
			return KindTXT
		case strings.HasPrefix(mediaType, "image/"):
			return KindImage
		}
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	case ".txt":
		return KindTXT
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return KindImage
	}
	return ""
}

func Extract(data io.ReaderAt, size int64, kind string) (*ExtractedText, error) {
	switch strings.ToLower(strings.TrimPrefix(kind, ".")) {
	case KindPDF, "application/pdf":
		return extractPDF(data, size)
	case KindDOCX, docxMIME:
		return extractDOCX(data, size)
	case KindTXT, "text/plain":
		return extractTXT(data, size)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, kind)
	}
}

func SupportedTypes() []string {
	return []string{".pdf", ".docx", ".txt"}
}

func extractPDF(data io.ReaderAt, size int64) (result *ExtractedText, err error) {
	// ledongthuc/pdf panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("read PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			if line := joinRow(row.Content); line != "" {
				buf.WriteString(line)
				buf.WriteString("\n")
			}
		}
	}

	return &ExtractedText{
		Content: buf.String(),
		Pages:   numPages,
		Metadata: map[string]string{
			"type": KindPDF,
		},
	}, nil
}

// joinRow concatenates glyph runs left to right, inserting a space where the
// horizontal gap is wider than a fifth of the font size.
func joinRow(texts pdf.TextHorizontal) string {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var b strings.Builder
	end := 0.0
	for i, t := range sorted {
		if i > 0 && t.X-end > t.FontSize*0.2 {
			b.WriteByte(' ')
		}
		b.WriteString(t.S)
		end = t.X + t.W
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func extractDOCX(data io.ReaderAt, size int64) (*ExtractedText, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	for _, f := range reader.File {
		if path.Clean(f.Name) != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()

		text, err := docxText(rc)
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}
		return &ExtractedText{
			Content: text,
			Pages:   1,
			Metadata: map[string]string{
				"type": KindDOCX,
			},
		}, nil
	}

	return nil, fmt.Errorf("open DOCX: word/document.xml not found")
}

// docxText writes one line per paragraph outside tables and one line per
// table row, with the cells of a row separated by spaces.
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out    strings.Builder
		line   strings.Builder
		inText bool
		cells  int
	)
	flush := func() {
		if s := strings.Join(strings.Fields(line.String()), " "); s != "" {
			out.WriteString(s)
			out.WriteByte('\n')
		}
		line.Reset()
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteByte(' ')
			case "tc":
				cells++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if cells > 0 {
					line.WriteByte(' ')
				} else {
					flush()
				}
			case "tc":
				cells--
				line.WriteByte(' ')
			case "tr":
				flush()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	flush()
	return out.String(), nil
}

func extractTXT(data io.ReaderAt, size int64) (*ExtractedText, error) {
	buf := make([]byte, size)
	_, err := data.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read TXT: %w", err)
	}

	return &ExtractedText{
		Content: string(bytes.TrimSpace(buf)),
		Pages:   1,
		Metadata: map[string]string{
			"type": KindTXT,
		},
	}, nil
}
