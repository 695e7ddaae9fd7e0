package parse

import (
	"encoding/json"
	"strings"
)

// Structured payloads are a loosely-typed array of section objects: a
// merchant block, an invoice block, one object per line item, a summary
// block, and assorted contact/server blocks. Every key is optional and
// engines are free to add keys we have never seen, so decoding must never
// fail on extras.

// Section is one object from an engine's structured_data array.
type Section struct {
	Name       string        `json:"name"`
	Address    string        `json:"address"`
	City       string        `json:"city"`
	Email      string        `json:"email"`
	Invoice    *InvoiceBlock `json:"invoice"`
	Item       string        `json:"item"`
	Quantity   any           `json:"quantity"`
	UnitPrice  any           `json:"unit_price"`
	TotalPrice any           `json:"total_price"`
	Summary    *SummaryBlock `json:"summary"`
	Contact    *ContactBlock `json:"contact"`
	Server     string        `json:"server"`
}

// InvoiceBlock carries invoice metadata.
type InvoiceBlock struct {
	Number string `json:"number"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Table  string `json:"table"`
}

// SummaryBlock carries the receipt totals.
type SummaryBlock struct {
	Total       any    `json:"total"`
	TaxIncluded string `json:"tax_included"`
}

// ContactBlock carries merchant contact details.
type ContactBlock struct {
	Phone string `json:"phone"`
	Fax   string `json:"fax"`
	Email string `json:"email"`
}

// flexAmount coerces a JSON value that may be a number or a formatted
// string ("9.00 CHF") into a float.
func flexAmount(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		return ParseAmount(x)
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// flexQuantity coerces a JSON quantity into a positive integer, defaulting
// to one.
func flexQuantity(v any) int {
	switch x := v.(type) {
	case float64:
		if n := int(x); n > 0 {
			return n
		}
	case string:
		if f, ok := ParseAmount(x); ok && int(f) > 0 {
			return int(f)
		}
	}
	return 1
}

// MapSections maps a structured payload onto a canonical record. It returns
// nil when the payload has no identifiable merchant, invoice, item or
// summary sections; it never invents fields. Malformed payloads also yield
// nil so the caller can fall back to text extraction.
func MapSections(raw json.RawMessage) *ParsedReceipt {
	if len(raw) == 0 {
		return nil
	}
	var sections []Section
	if err := json.Unmarshal(raw, &sections); err != nil {
		// Some engines emit a single object rather than an array.
		var one Section
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil
		}
		sections = []Section{one}
	}

	rec := &ParsedReceipt{}
	for _, s := range sections {
		if rec.Merchant == "" && strings.TrimSpace(s.Name) != "" {
			rec.Merchant = strings.TrimSpace(s.Name)
		}
		if rec.Date == nil && s.Invoice != nil && s.Invoice.Date != "" {
			if t, ok := ParseDate(s.Invoice.Date); ok {
				rec.Date = &t
			}
		}
		if item := strings.TrimSpace(s.Item); item != "" {
			qty := flexQuantity(s.Quantity)
			unit, haveUnit := flexAmount(s.UnitPrice)
			if !haveUnit {
				if ext, ok := flexAmount(s.TotalPrice); ok {
					unit = roundCents(ext / float64(qty))
					haveUnit = true
				}
			}
			if !haveUnit || unit < 0 {
				unit = 0
			}
			rec.Items = append(rec.Items, LineItem{Name: item, UnitPrice: unit, Quantity: qty})
		}
		if rec.Total == nil && s.Summary != nil {
			if v, ok := flexAmount(s.Summary.Total); ok {
				rec.Total = &v
			}
		}
	}

	if rec.Merchant == "" && rec.Date == nil && len(rec.Items) == 0 && rec.Total == nil {
		return nil
	}
	return rec
}
