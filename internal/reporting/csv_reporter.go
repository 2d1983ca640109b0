// internal/reporting/csv_reporter.go
package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVReporter writes the final table, statuses included, as CSV. It is the
// downloadable sheet an operator can diff against the source.
type CSVReporter struct {
	writer io.WriteCloser
}

func NewCSVReporter(w io.WriteCloser) *CSVReporter {
	return &CSVReporter{writer: w}
}

func (r *CSVReporter) Write(report *Report) error {
	if report == nil || report.Table == nil {
		return fmt.Errorf("csv report needs a table")
	}
	cw := csv.NewWriter(r.writer)
	if err := cw.Write(report.Table.Headers); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(report.Table.Rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}

func (r *CSVReporter) Close() error {
	return r.writer.Close()
}
