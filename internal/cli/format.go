package cli

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// FormatValue rounds v half away from zero to places decimals.
// NaN and ±Inf are printed as-is.
func FormatValue(v float64, places int32) string {
	if !isFinite(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// FormatSigned is FormatValue with an explicit plus sign for positive values.
func FormatSigned(v float64, places int32) string {
	s := FormatValue(v, places)
	if v > 0 && !math.IsInf(v, 1) {
		return "+" + s
	}
	return s
}

// FormatPercent formats a fraction (0.2) as a percentage (20.00%).
func FormatPercent(fraction float64, places int32) string {
	if !isFinite(fraction) {
		return strconv.FormatFloat(fraction, 'f', -1, 64) + "%"
	}
	return decimal.NewFromFloat(fraction).Shift(2).StringFixed(places) + "%"
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
