package parse

import (
	"regexp"
	"time"
)

// datePattern couples a regexp with the meaning of its three capture groups.
// Pattern order is the only disambiguation applied to ambiguous day/month
// order: the first syntactically valid match wins.
type datePattern struct {
	re        *regexp.Regexp
	yearIdx   int
	monthIdx  int
	dayIdx    int
	shortYear bool
}

var datePatterns = []datePattern{
	// ISO, with or without an adjacent time component.
	{regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`), 1, 2, 3, false},
	{regexp.MustCompile(`\b(\d{4})/(\d{1,2})/(\d{1,2})\b`), 1, 2, 3, false},
	// Month-first (US) before day-first: same text, pattern order decides.
	{regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`), 3, 1, 2, false},
	{regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`), 3, 2, 1, false},
	// Dotted European and dashed day-first.
	{regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{4})\b`), 3, 2, 1, false},
	{regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`), 3, 2, 1, false},
	// Two-digit years last: they are the most ambiguous.
	{regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2})\b`), 3, 1, 2, true},
	{regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(\d{2})\b`), 3, 2, 1, true},
}

func buildDate(p datePattern, m []string) (time.Time, bool) {
	y := atoi(m[p.yearIdx])
	mo := atoi(m[p.monthIdx])
	d := atoi(m[p.dayIdx])
	if p.shortYear {
		if y >= 70 {
			y += 1900
		} else {
			y += 2000
		}
	}
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 31 -> Mar 2), which we reject.
	if t.Year() != y || t.Month() != time.Month(mo) || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// ParseDate parses a single date string using the ordered pattern list.
func ParseDate(s string) (time.Time, bool) {
	for _, p := range datePatterns {
		if m := p.re.FindStringSubmatch(s); m != nil {
			if t, ok := buildDate(p, m); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// ExtractDate finds the first valid date anywhere in the text. Dates may
// appear inline next to times or other tokens, so matching runs against the
// whole text rather than line by line.
func ExtractDate(text string) *time.Time {
	for _, p := range datePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			if t, ok := buildDate(p, m); ok {
				return &t
			}
		}
	}
	return nil
}

// FormatDate renders a date in the canonical ISO form.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
