// Package extract turns listing documents (rendered HTML, markdown, or a
// vision model's JSON reply) into property drafts.
//
// Every field is resolved by an ordered list of rules. The first rule that
// matches wins, so the order of each list is part of its behaviour.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Rule inspects a document and reports a value when it matches.
type Rule[T any] func(d *Document) (T, bool)

// First applies rules in order and returns the first match.
func First[T any](d *Document, rules ...Rule[T]) (T, bool) {
	for _, r := range rules {
		if v, ok := r(d); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// textGroup returns the first capture group of re in the visible text.
func textGroup(d *Document, re *regexp.Regexp) (string, bool) {
	m := re.FindStringSubmatch(d.Text)
	if m == nil || len(m) < 2 {
		return "", false
	}
	s := strings.TrimSpace(m[1])
	return s, s != ""
}

// intRule matches re and parses its first group as an integer.
func intRule(re *regexp.Regexp) Rule[int] {
	return func(d *Document) (int, bool) {
		s, ok := textGroup(d, re)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
}

// numberRule matches re and parses its first group with Brazilian number
// conventions.
func numberRule(re *regexp.Regexp) Rule[float64] {
	return func(d *Document) (float64, bool) {
		s, ok := textGroup(d, re)
		if !ok {
			return 0, false
		}
		v, ok := ParseNumber(s)
		return v, ok && v > 0
	}
}

// priceRule is numberRule with the price sanity floor. Every occurrence is
// tried so a small value early in the page does not hide the real price.
func priceRule(re *regexp.Regexp) Rule[float64] {
	return func(d *Document) (float64, bool) {
		for _, m := range re.FindAllStringSubmatch(d.Text, -1) {
			if v, ok := ParseNumber(m[1]); ok && v >= MinPrice {
				return v, true
			}
		}
		return 0, false
	}
}
