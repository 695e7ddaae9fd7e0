package parse

import "time"

// LineItem is a single purchased item on a receipt.
type LineItem struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// ParsedReceipt is the engine-agnostic record produced by normalization.
// Merchant, Date and Total are optional; RawText is always retained for
// audit purposes.
type ParsedReceipt struct {
	Merchant   string     `json:"merchant,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	Total      *float64   `json:"total,omitempty"`
	Items      []LineItem `json:"items"`
	RawText    string     `json:"raw_text"`
	Engine     string     `json:"engine"`
	Confidence float64    `json:"confidence"`
}

// Empty reports whether the record carries no usable information at all.
// A receipt with only raw text is not empty: the text is still useful to
// a human reviewer.
func (r *ParsedReceipt) Empty() bool {
	return r.Merchant == "" && r.Total == nil && len(r.Items) == 0 && r.RawText == ""
}
