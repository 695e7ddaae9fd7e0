package record

import "time"

// Item is a stored line item. Prices are kept in cents to avoid float
// drift in persisted data.
type Item struct {
	Name           string `json:"name"`
	UnitPriceCents int    `json:"unit_price"`
	Quantity       int    `json:"quantity"`
}

// Receipt is the persisted form of a processed document: the canonical
// pipeline output plus file bookkeeping. A zero Date means no date could
// be recovered.
type Receipt struct {
	ID          string    `json:"id"`
	Merchant    string    `json:"merchant,omitempty"`
	Date        time.Time `json:"date"`
	TotalCents  int       `json:"total"`
	Items       []Item    `json:"items"`
	RawText     string    `json:"raw_text"`
	Engine      string    `json:"engine"`
	Confidence  float64   `json:"confidence"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
