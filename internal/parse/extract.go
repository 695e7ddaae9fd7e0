package parse

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Heuristic field extractors for plain recognized text. Each extractor is
// independent and runs against the same line-split, whitespace-trimmed text;
// they are only consulted when an engine returned no usable structured
// payload.

const merchantScanLines = 5

// merchantKeywords mark lines that very likely name the business.
var merchantKeywords = []string{
	"store", "market", "shop", "grocery", "cafe", "café", "coffee",
	"restaurant", "pharmacy", "bakery", "supermarket", "deli",
	"markt", "laden", "apotheke", "bäckerei",
	"magasin", "boutique", "épicerie",
	"ストア", "マート", "商店", "超市", "약국",
}

// totalKeywords mark the line carrying the grand total.
var totalKeywords = []string{
	"total", "amount due", "balance due", "grand total", "sum",
	"summe", "gesamt", "gesamtbetrag", "montant", "totale", "importe",
	"合計", "总计", "總計", "합계",
}

// itemExcludeKeywords mark lines that are not purchased items.
var itemExcludeKeywords = []string{
	"total", "subtotal", "sub-total", "tax", "vat", "mwst", "tva", "gst",
	"tip", "change", "cash", "card", "credit", "debit", "visa",
	"mastercard", "balance", "due", "payment", "tender",
	"summe", "gesamt", "rabatt", "discount",
	"合計", "小計", "税", "お釣り", "釣り",
}

var quantityPrefix = regexp.MustCompile(`^(\d{1,3})\s*[xX×]\s+`)

// SplitLines splits recognized text into trimmed, non-empty lines.
func SplitLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func containsAny(line string, keywords []string) bool {
	lower := strings.ToLower(line)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// plausibleMerchantLine reports whether a line could be a business name:
// reasonable length, contains letters, and does not open with a digit
// (street addresses and dates do).
func plausibleMerchantLine(line string) bool {
	runes := []rune(line)
	if len(runes) < 3 || len(runes) > 50 {
		return false
	}
	if unicode.IsDigit(runes[0]) {
		return false
	}
	for _, r := range runes {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// ExtractMerchant scans the first few lines for a business-name keyword and
// falls back to the leading plausible header lines, concatenating up to
// three of them to capture multi-line headers.
func ExtractMerchant(lines []string) string {
	limit := merchantScanLines
	if len(lines) < limit {
		limit = len(lines)
	}
	for i := 0; i < limit; i++ {
		if plausibleMerchantLine(lines[i]) && containsAny(lines[i], merchantKeywords) {
			return lines[i]
		}
	}
	var header []string
	for i := 0; i < limit && len(header) < 3; i++ {
		if !plausibleMerchantLine(lines[i]) {
			if len(header) > 0 {
				break
			}
			continue
		}
		header = append(header, lines[i])
	}
	return strings.Join(header, " ")
}

// ExtractTotal searches from the bottom of the document upward for a line
// with a total keyword and an adjacent amount. When no keyword line carries
// an amount it falls back to the single largest amount in the document;
// that fallback can pick up a tax or tender line, which is the accepted
// worst case of the heuristic.
func ExtractTotal(lines []string) *float64 {
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		lower := strings.ToLower(line)
		if !containsAny(line, totalKeywords) {
			continue
		}
		if strings.Contains(lower, "subtotal") || strings.Contains(lower, "sub-total") || strings.Contains(lower, "sub total") {
			continue
		}
		amounts := FindAmounts(line)
		if len(amounts) == 0 {
			continue
		}
		v := amounts[len(amounts)-1].Value
		if v >= 0 {
			return &v
		}
	}

	var largest *float64
	for _, line := range lines {
		for _, a := range FindAmounts(line) {
			if a.Value <= 0 {
				continue
			}
			if largest == nil || a.Value > *largest {
				v := a.Value
				largest = &v
			}
		}
	}
	return largest
}

// ExtractItems parses purchased items line by line. A leading "N x" marker
// is treated as a quantity; the last amount on the line is the extended
// price for the whole line, so the unit price is derived by dividing.
func ExtractItems(lines []string) []LineItem {
	var items []LineItem
	for _, line := range lines {
		if containsAny(line, itemExcludeKeywords) {
			continue
		}

		qty := 1
		rest := line
		if m := quantityPrefix.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				qty = n
			}
			rest = line[len(m[0]):]
		}

		amounts := FindAmounts(rest)
		if len(amounts) == 0 {
			continue
		}
		extended := amounts[len(amounts)-1].Value
		if extended < 0 {
			continue
		}

		name := rest
		for i := len(amounts) - 1; i >= 0; i-- {
			name = name[:amounts[i].Start] + name[amounts[i].End:]
		}
		name = strings.Trim(name, " \t-–—.,:;*@")
		name = strings.Join(strings.Fields(name), " ")
		if name == "" {
			continue
		}

		items = append(items, LineItem{
			Name:      name,
			UnitPrice: roundCents(extended / float64(qty)),
			Quantity:  qty,
		})
	}
	return items
}

func roundCents(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
