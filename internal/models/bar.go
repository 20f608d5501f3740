package models

import "time"

// PriceBar represents one row of historical OHLCV data.
type PriceBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// PriceField selects which column of a PriceBar feeds volatility estimation.
type PriceField string

const (
	FieldOpen  PriceField = "open"
	FieldHigh  PriceField = "high"
	FieldLow   PriceField = "low"
	FieldClose PriceField = "close"
)

// Value returns the selected price of b. Unknown fields fall back to Close.
func (f PriceField) Value(b PriceBar) float64 {
	switch f {
	case FieldOpen:
		return b.Open
	case FieldHigh:
		return b.High
	case FieldLow:
		return b.Low
	default:
		return b.Close
	}
}

// Valid reports whether f is a known price field.
func (f PriceField) Valid() bool {
	switch f {
	case FieldOpen, FieldHigh, FieldLow, FieldClose:
		return true
	}
	return false
}
