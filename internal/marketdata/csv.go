// Package marketdata loads historical price series from CSV files.
package marketdata

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	perrors "option-pricer/internal/errors"
	"option-pricer/internal/models"
)

// dateLayouts are the date formats accepted in the Date column, covering
// plain dates and the timezone-qualified timestamps written by common
// market-data exporters.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02-Jan-2006",
	"01/02/2006",
}

// csvRow is one record of an OHLCV CSV file.
type csvRow struct {
	Date   string  `csv:"Date"`
	Open   float64 `csv:"Open"`
	High   float64 `csv:"High"`
	Low    float64 `csv:"Low"`
	Close  float64 `csv:"Close"`
	Volume int64   `csv:"Volume"`
}

// LoadCSV reads price bars from a CSV file.
func LoadCSV(path string) ([]models.PriceBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perrors.NewDataError(path, 0, "opening file", err)
	}
	defer f.Close()

	return readCSV(path, f)
}

// ReadCSV reads price bars from r. The header must contain Date and at
// least the price column that will be used; bars are returned in
// chronological order.
func ReadCSV(r io.Reader) ([]models.PriceBar, error) {
	return readCSV("reader", r)
}

func readCSV(source string, r io.Reader) ([]models.PriceBar, error) {
	var rows []*csvRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, perrors.NewDataError(source, 0, "decoding csv", err)
	}
	if len(rows) == 0 {
		return nil, perrors.NewDataError(source, 0, "no rows", perrors.ErrDataNotFound)
	}

	bars := make([]models.PriceBar, 0, len(rows))
	for i, row := range rows {
		date, err := parseDate(row.Date)
		if err != nil {
			// Line 1 is the header.
			return nil, perrors.NewDataError(source, i+2, "parsing date", err)
		}
		bars = append(bars, models.PriceBar{
			Date:   date,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
	return bars, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, perrors.InvalidInput("date", s, fmt.Sprintf("expected one of %s", strings.Join(dateLayouts[:2], ", ")))
}

// Prices extracts one price column from bars, oldest first.
func Prices(bars []models.PriceBar, field models.PriceField) ([]float64, error) {
	if !field.Valid() {
		return nil, perrors.InvalidInput("field", field, "must be open, high, low or close")
	}
	prices := make([]float64, len(bars))
	for i, b := range bars {
		prices[i] = field.Value(b)
	}
	return prices, nil
}
