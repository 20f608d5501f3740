package marketdata

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	perrors "option-pricer/internal/errors"
	"option-pricer/internal/models"
)

const sampleCSV = `Date,Open,High,Low,Close,Volume
2024-01-04,101.0,103.5,100.2,102.8,1200
2024-01-02,99.0,100.5,98.1,100.0,1000
2024-01-03,100.0,102.0,99.5,101.4,1500
`

func TestReadCSV_SortsChronologically(t *testing.T) {
	bars, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("len(bars) = %d, want 3", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i-1].Date.Before(bars[i].Date) {
			t.Errorf("bars not sorted at %d: %v >= %v", i, bars[i-1].Date, bars[i].Date)
		}
	}
	if bars[0].High != 100.5 || bars[2].Close != 102.8 || bars[1].Volume != 1500 {
		t.Errorf("unexpected bars: %+v", bars)
	}
}

func TestReadCSV_TimezoneDates(t *testing.T) {
	data := "Date,Open,High,Low,Close,Volume\n" +
		"2023-01-03 00:00:00-05:00,130.28,130.90,124.17,125.07,112117500\n" +
		"2023-01-04 00:00:00-05:00,126.89,128.66,125.08,126.36,89113600\n"
	bars, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if bars[0].Date.Day() != 3 || bars[1].Volume != 89113600 {
		t.Errorf("unexpected bars: %+v", bars)
	}
}

func TestReadCSV_BadDate(t *testing.T) {
	data := "Date,Open,High,Low,Close,Volume\n2024-01-02,1,1,1,1,1\nyesterday,1,1,1,1,1\n"
	_, err := ReadCSV(strings.NewReader(data))

	var dataErr *perrors.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected DataError, got %v", err)
	}
	if dataErr.Line != 3 {
		t.Errorf("Line = %d, want 3", dataErr.Line)
	}
	if !errors.Is(err, perrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput in chain, got %v", err)
	}
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Date,Open,High,Low,Close,Volume\n"))
	var dataErr *perrors.DataError
	if !errors.As(err, &dataErr) {
		t.Errorf("expected DataError for header-only file, got %v", err)
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}

	bars, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	prices, err := Prices(bars, models.FieldHigh)
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	want := []float64{100.5, 102.0, 103.5}
	for i := range want {
		if prices[i] != want[i] {
			t.Errorf("prices[%d] = %v, want %v", i, prices[i], want[i])
		}
	}

	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Prices(bars, models.PriceField("mid")); !errors.Is(err, perrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown field, got %v", err)
	}
}
