// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/formpilot/internal/ledger"
	"github.com/xkilldash9x/formpilot/internal/records"
	"github.com/xkilldash9x/formpilot/internal/runner"
)

// Report is everything known about a finished run.
type Report struct {
	Summary runner.Summary
	Table   *records.Table
	Actions []ledger.Entry
}

// Reporter defines the interface for writing a run report to an output.
type Reporter interface {
	Write(report *Report) error
	// Close finalizes the report and closes any underlying file handle.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format writing to outputPath, or to stdout when
// the path is empty or "stdout".
func New(format, outputPath string) (Reporter, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	if outputPath == "" || outputPath == "stdout" {
		return NewWriter(format, os.Stdout)
	}

	path, err := homedir.Expand(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand output path: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return newReporter(format, f), nil
}

// NewWriter creates a reporter for format on w. Close leaves w open.
func NewWriter(format string, w io.Writer) (Reporter, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	return newReporter(format, &nopWriteCloser{w}), nil
}

func checkFormat(format string) error {
	switch format {
	case "csv", "json":
		return nil
	}
	return fmt.Errorf("unsupported output format: %s", format)
}

func newReporter(format string, w io.WriteCloser) Reporter {
	if format == "json" {
		return NewJSONReporter(w)
	}
	return NewCSVReporter(w)
}
