package labreport

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// BlockedTerms are substrings that mark report header or metadata lines
// rather than test results. Matching is done on the lowercased test name.
var BlockedTerms = []string{"date", "no.", "name", "doctor", "mobile"}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for debug events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMatchers replaces the default matchers. Order is priority order.
func WithMatchers(ms ...Matcher) Option {
	return func(e *Extractor) {
		if len(ms) > 0 {
			e.matchers = append([]Matcher(nil), ms...)
		}
	}
}

// Extractor turns raw recognizer output into test records. It holds no
// per-call state and is safe for concurrent use.
type Extractor struct {
	matchers []Matcher
	blocked  []string
	logger   *slog.Logger
}

// NewExtractor returns an Extractor with the default matchers.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		matchers: DefaultMatchers(),
		blocked:  BlockedTerms,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = NewExtractor()

// Extract runs the default extractor over raw.
func Extract(raw string) (Result, error) {
	return defaultExtractor.Extract(raw)
}

// Extract parses raw text line by line. Lines that match no pattern are
// skipped; an empty result is still a success.
func (e *Extractor) Extract(raw string) (res Result, err error) {
	if !utf8.ValidString(raw) {
		return Result{}, &ExtractionError{Err: ErrInvalidText}
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = &ExtractionError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	lines := SplitLines(raw)
	e.logger.Debug("extracted text", "lines", len(lines), "chars", len(raw))

	records := make([]TestRecord, 0, len(lines))
	seen := make(map[TestRecord]struct{}, len(lines))
	for i, line := range lines {
		rec, ok := e.extractLine(line)
		if !ok {
			e.logger.Debug("line discarded", "line", i+1)
			continue
		}
		if _, dup := seen[rec]; dup {
			e.logger.Debug("duplicate record dropped", "line", i+1, "test_name", rec.TestName)
			continue
		}
		seen[rec] = struct{}{}
		records = append(records, rec)
	}

	e.logger.Debug("processed results", "records", len(records))
	return Result{IsSuccess: true, Data: records}, nil
}

// extractLine tries each matcher in order. A match whose name is blocked or
// blank counts as no match and the next matcher is tried.
func (e *Extractor) extractLine(line string) (TestRecord, bool) {
	for _, m := range e.matchers {
		match := m.Match(line)
		if !match.OK || !e.acceptName(match.TestName) {
			continue
		}
		return NewTestRecord(match.Fields), true
	}
	return TestRecord{}, false
}

func (e *Extractor) acceptName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, term := range e.blocked {
		if strings.Contains(lower, term) {
			return false
		}
	}
	return true
}

// SplitLines splits text on any line break, trims each line and drops blank
// ones, preserving order.
func SplitLines(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	lines := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}
