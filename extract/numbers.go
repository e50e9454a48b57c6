package extract

import (
	"strconv"
	"strings"
)

// MinPrice is the sanity floor below which a currency match is treated as a
// false positive (unit counts, fees, condo charges).
const MinPrice = 10000

// ParseNumber parses a number written with Brazilian conventions: "." groups
// thousands and "," marks decimals. "235.000,00" is 235000, "1.234,5" is
// 1234.5 and "80,50" is 80.5. Without a comma, dots followed by exactly
// three digits are thousand separators, so "68.585" is 68585 while "80.5"
// stays 80.5.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimRight(s, ".,")
	if s == "" {
		return 0, false
	}

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
		s = strings.ReplaceAll(s, ",", "")
	} else if strings.Contains(s, ".") && thousandGrouped(s) {
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func thousandGrouped(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts[0]) == 0 || len(parts[0]) > 3 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func itoa(n int) string { return strconv.Itoa(n) }
