package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nikhilbhutani/labocr/internal/audit"
	"github.com/nikhilbhutani/labocr/internal/labreport"
	"github.com/nikhilbhutani/labocr/pkg/textextract"
)

// MinTextLayer is the shortest PDF text layer treated as a digital report.
const MinTextLayer = 50

var (
	// ErrDocument marks an upload that could not be read as a report.
	ErrDocument = errors.New("read document")
	// ErrNoTextLayer is returned for scanned PDFs. Their pages must be
	// submitted as images.
	ErrNoTextLayer = errors.New("pdf has no text layer")
)

// ProcessDocument dispatches on content type: images go through OCR, while
// PDF, DOCX and plain text bodies are read directly. An empty or generic
// content type is sniffed from the bytes.
func (p *Processor) ProcessDocument(ctx context.Context, data []byte, contentType string) (*labreport.Result, error) {
	kind := textextract.Classify(contentType, "")
	if kind == "" {
		kind = textextract.Classify(http.DetectContentType(data), "")
	}

	switch kind {
	case textextract.KindImage:
		return p.ProcessLabReport(ctx, data)
	case "":
		return nil, fmt.Errorf("process document: %w: %w: %s", ErrDocument, textextract.ErrUnsupportedType, contentType)
	}

	run := p.newRun(kind)
	run.ImageDigest = Digest(data)
	start := time.Now()

	res, err := p.processTextLayer(data, kind, &run)
	p.finish(ctx, &run, start, res, err)
	return res, err
}

func (p *Processor) processTextLayer(data []byte, kind string, run *audit.Run) (*labreport.Result, error) {
	run.Stage = audit.StageDecode
	doc, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), kind)
	if err != nil {
		return nil, fmt.Errorf("process document: %w: %w", ErrDocument, err)
	}

	if kind == textextract.KindPDF {
		if n := len(strings.TrimSpace(doc.Content)); n < MinTextLayer {
			return nil, fmt.Errorf("process document: %w: %w (%d chars)", ErrDocument, ErrNoTextLayer, n)
		}
	}

	p.logger.Debug("read document text",
		"run_id", run.ID,
		"kind", kind,
		"pages", doc.Pages,
		"chars", len(doc.Content),
	)
	return p.extract(doc.Content, run)
}
