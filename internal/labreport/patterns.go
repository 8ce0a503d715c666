package labreport

import (
	"fmt"
	"regexp"
)

// Fields are the values a Matcher captured from one line. Unit and
// ReferenceRange are empty when the pattern has no such capture.
type Fields struct {
	TestName       string
	Value          string
	Unit           string
	ReferenceRange string
}

// Match is the result of applying a Matcher to a line. OK is false when the
// line did not match, in which case Fields is the zero value.
type Match struct {
	Fields
	OK bool
}

// Matcher decomposes a single report line into test fields.
type Matcher interface {
	Name() string
	Match(line string) Match
}

// Test names are letters, whitespace, parentheses, dots and hyphens, matched
// lazily so the shortest name followed by a value wins. Patterns are not
// anchored: the leftmost match is taken, so table borders, bullets and serial
// numbers before the name are skipped. The leftmost match may capture a blank
// name ("Glucose: 250" for the numeric pattern); the Extractor rejects it and
// moves on to the next pattern.
const (
	namePart   = `(?P<name>[A-Za-z\s().-]+?)`
	numberPart = `-?\d+\.?\d*`
	unitPart   = `(?P<unit>[A-Za-z/%]+)?`
)

var (
	// NumericMatcher handles "Hemoglobin 13.5 g/dL 13.0-17.0".
	NumericMatcher = MustRegexpMatcher("numeric",
		`(?i)`+namePart+`\s*(?P<value>`+numberPart+`)\s*`+unitPart+
			`\s*(?P<range>`+numberPart+`\s*-\s*`+numberPart+`)?`)

	// QualitativeMatcher handles "HBsAg POSITIVE".
	QualitativeMatcher = MustRegexpMatcher("qualitative",
		`(?i)`+namePart+`\s*(?P<value>POSITIVE|NEGATIVE)\s*`+unitPart)

	// ColonMatcher handles "Glucose: 250".
	ColonMatcher = MustRegexpMatcher("colon",
		`(?i)`+namePart+`\s*:\s*(?P<value>`+numberPart+`)`)
)

// DefaultMatchers returns the matchers in priority order.
func DefaultMatchers() []Matcher {
	return []Matcher{NumericMatcher, QualitativeMatcher, ColonMatcher}
}

// RegexpMatcher is a Matcher backed by a regular expression with the named
// groups "name" and "value" and, optionally, "unit" and "range".
type RegexpMatcher struct {
	name     string
	re       *regexp.Regexp
	nameIdx  int
	valueIdx int
	unitIdx  int
	rangeIdx int
}

// NewRegexpMatcher compiles expr into a matcher.
func NewRegexpMatcher(name, expr string) (*RegexpMatcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	m := &RegexpMatcher{
		name:     name,
		re:       re,
		nameIdx:  re.SubexpIndex("name"),
		valueIdx: re.SubexpIndex("value"),
		unitIdx:  re.SubexpIndex("unit"),
		rangeIdx: re.SubexpIndex("range"),
	}
	if m.nameIdx < 0 || m.valueIdx < 0 {
		return nil, fmt.Errorf("pattern %q needs (?P<name>) and (?P<value>) groups", expr)
	}
	return m, nil
}

// MustRegexpMatcher is like NewRegexpMatcher but panics on error.
func MustRegexpMatcher(name, expr string) *RegexpMatcher {
	m, err := NewRegexpMatcher(name, expr)
	if err != nil {
		panic("labreport: " + name + ": " + err.Error())
	}
	return m
}

func (m *RegexpMatcher) Name() string { return m.name }

func (m *RegexpMatcher) Match(line string) Match {
	sub := m.re.FindStringSubmatch(line)
	if sub == nil {
		return Match{}
	}
	return Match{
		OK: true,
		Fields: Fields{
			TestName:       sub[m.nameIdx],
			Value:          sub[m.valueIdx],
			Unit:           group(sub, m.unitIdx),
			ReferenceRange: group(sub, m.rangeIdx),
		},
	}
}

func group(sub []string, idx int) string {
	if idx < 0 || idx >= len(sub) {
		return ""
	}
	return sub[idx]
}
