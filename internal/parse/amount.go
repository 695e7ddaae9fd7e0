package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// Amount parsing is the single source of truth for monetary values in both
// the structured mapper and the heuristic extractors. Engines emit amounts
// in whatever convention the receipt used ("54.50 CHF", "€10.50",
// "1,234.56", "1.234,56"), so comma and dot are treated as interchangeable
// separators and disambiguated by position.

const currencyClass = `[$€£¥₣]|(?i:CHF|EUR|USD|GBP|JPY|CAD|AUD|SEK|NOK|DKK|Fr\.|kr)`

var (
	amountToken = regexp.MustCompile(
		`(` + currencyClass + `)?\s?(-?\d+(?:[.,']\d{3})*(?:[.,]\d{1,2})?)\s?(` + currencyClass + `)?`)
	decimalTail   = regexp.MustCompile(`[.,]\d{1,2}$`)
	currencyOnly  = regexp.MustCompile(`^(?:` + currencyClass + `)$`)
	currencyStrip = regexp.MustCompile(`^(?:` + currencyClass + `)\s?|\s?(?:` + currencyClass + `)$`)
)

// AmountMatch is an amount-like token located inside a line of text.
type AmountMatch struct {
	Text  string // the full matched token, including any currency marker
	Value float64
	Start int
	End   int
}

// ParseAmount parses a monetary string. Comma and dot are disambiguated by
// position: when both appear the later one is the decimal separator; a lone
// separator followed by exactly two digits at the end of the string is a
// decimal point regardless of symbol.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	for {
		stripped := currencyStrip.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = strings.TrimSpace(stripped)
	}
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || currencyOnly.MatchString(s) {
		return 0, false
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return 0, false
		}
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		// The separator that appears last is the decimal point.
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case dots+commas > 1:
		// Repeated identical separators can only be thousands grouping.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", "")
	case dots+commas == 1:
		idx := strings.IndexAny(s, ".,")
		after := len(s) - idx - 1
		if after == 3 && idx >= 1 && idx <= 3 {
			// "1.234" / "1,234": thousands grouping.
			s = s[:idx] + s[idx+1:]
		} else {
			s = s[:idx] + "." + s[idx+1:]
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

// FindAmounts returns the amount-like tokens on a line, in order. A numeric
// token only counts as an amount when it carries a currency marker or a
// decimal part; bare integers (street numbers, phone fragments) are ignored.
func FindAmounts(line string) []AmountMatch {
	var out []AmountMatch
	for _, m := range amountToken.FindAllStringSubmatchIndex(line, -1) {
		curBefore := m[2] != -1
		curAfter := m[6] != -1
		num := line[m[4]:m[5]]
		if !curBefore && !curAfter && !decimalTail.MatchString(num) {
			continue
		}
		v, ok := ParseAmount(num)
		if !ok {
			continue
		}
		out = append(out, AmountMatch{
			Text:  line[m[0]:m[1]],
			Value: v,
			Start: m[0],
			End:   m[1],
		})
	}
	return out
}
