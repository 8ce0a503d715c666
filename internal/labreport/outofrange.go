package labreport

import (
	"regexp"
	"strconv"
	"strings"
)

var rangePattern = regexp.MustCompile(`^\s*(-?\d+\.?\d*)\s*-\s*(-?\d+\.?\d*)\s*$`)

// Range is an inclusive numeric reference interval.
type Range struct {
	Low  float64
	High float64
}

// Contains reports whether v lies within [Low, High].
func (r Range) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// ParseRange parses a "low-high" reference range. The second result is false
// when s is not a well-formed numeric pair.
func ParseRange(s string) (Range, bool) {
	m := rangePattern.FindStringSubmatch(s)
	if m == nil {
		return Range{}, false
	}
	low, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Range{}, false
	}
	high, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Range{}, false
	}
	return Range{Low: low, High: high}, true
}

// EvaluateOutOfRange decides whether a captured value is abnormal.
//
// With a reference range present, the value is out of range when it parses as
// a number strictly outside the range; any parse failure yields false. Without
// a range, a POSITIVE qualitative result is out of range.
func EvaluateOutOfRange(value, referenceRange string) bool {
	if ref := strings.TrimSpace(referenceRange); ref != "" && ref != NotAvailable {
		r, ok := ParseRange(ref)
		if !ok {
			return false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return false
		}
		return !r.Contains(v)
	}
	return strings.EqualFold(strings.TrimSpace(value), "POSITIVE")
}
