package report

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// WriteDriversCSV exports the drivers table. Period columns are labeled
// with their date ranges.
func WriteDriversCSV(path string, dt *DriverTable, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	refLabel := periodLabel(dt.RefStart, dt.RefEnd)
	currLabel := periodLabel(dt.CurrStart, dt.CurrEnd)
	header := []string{"variable", "units", refLabel, currLabel, "pct_change"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			r.Variable,
			r.Units,
			formatFloat(r.Ref),
			formatFloat(r.Curr),
			formatFloat(r.PctChange),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func periodLabel(start, end time.Time) string {
	return start.Format("Jan 02, 2006") + "-" + end.Format("Jan 02, 2006")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
