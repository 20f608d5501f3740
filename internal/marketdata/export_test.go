package marketdata

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	perrors "option-pricer/internal/errors"
)

func TestWritePathsCSV(t *testing.T) {
	paths := [][]float64{
		{100, 101, 103},
		{100, 99.5, 98},
	}

	var buf bytes.Buffer
	if err := WritePathsCSV(&buf, paths, 1); err != nil {
		t.Fatalf("WritePathsCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"t,path_0,path_1",
		"0,100,100",
		"0.5,101,99.5",
		"1,103,98",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWritePathsCSV_Errors(t *testing.T) {
	var buf bytes.Buffer

	if err := WritePathsCSV(&buf, nil, 1); !errors.Is(err, perrors.ErrInsufficientData) {
		t.Errorf("no paths: %v", err)
	}
	if err := WritePathsCSV(&buf, [][]float64{{100}}, 1); !errors.Is(err, perrors.ErrInvalidInput) {
		t.Errorf("no steps: %v", err)
	}
	if err := WritePathsCSV(&buf, [][]float64{{100, 101}, {100}}, 1); !errors.Is(err, perrors.ErrInvalidInput) {
		t.Errorf("ragged paths: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("rejected input wrote %q", buf.String())
	}
}
