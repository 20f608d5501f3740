package marketdata

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	perrors "option-pricer/internal/errors"
)

// WritePathsCSV writes simulated paths with one row per time step. The first
// column is the time t in years on an even grid over [0, maturity]; column
// i+1 holds trajectory i.
func WritePathsCSV(w io.Writer, paths [][]float64, maturity float64) error {
	if len(paths) == 0 {
		return perrors.InsufficientData("paths", 0, 1)
	}
	steps := len(paths[0]) - 1
	if steps < 1 {
		return perrors.InvalidInput("paths", len(paths[0]), "each path needs a start and at least one step")
	}
	for i, path := range paths {
		if len(path) != steps+1 {
			return perrors.InvalidInput("paths", i, "trajectories must have equal length")
		}
	}

	writer := gocsv.DefaultCSVWriter(w)

	header := make([]string, len(paths)+1)
	header[0] = "t"
	for i := range paths {
		header[i+1] = "path_" + strconv.Itoa(i)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	record := make([]string, len(paths)+1)
	for j := 0; j <= steps; j++ {
		record[0] = formatFloat(maturity * float64(j) / float64(steps))
		for i, path := range paths {
			record[i+1] = formatFloat(path[j])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
