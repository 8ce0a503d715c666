// Package labreport extracts structured test results from the raw text of a
// recognised lab report.
//
// Each line is matched against an ordered list of patterns (numeric value with
// optional unit and reference range, qualitative POSITIVE/NEGATIVE, and
// "name: value"). The first pattern that yields an acceptable test name wins.
// Header lines such as patient name, dates and doctor details are filtered by
// name. Records are deduplicated by full equality and keep first-seen order.
//
// A line carrying both a number and a qualitative token is claimed by the
// numeric pattern, so "HIV 1 & 2 NEGATIVE" yields the value "1".
package labreport
