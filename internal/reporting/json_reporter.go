// internal/reporting/json_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/formpilot/internal/ledger"
	"github.com/xkilldash9x/formpilot/internal/runner"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonDocument struct {
	Summary  runner.Summary      `json:"summary"`
	Duration string              `json:"duration_text"`
	Headers  []string            `json:"headers"`
	Rows     []map[string]string `json:"rows"`
	Actions  []ledger.Entry      `json:"actions"`
}

// JSONReporter writes the summary, the final table and the action log as a
// single JSON document. Write may be called once.
type JSONReporter struct {
	writer  io.WriteCloser
	mu      sync.Mutex
	written bool
}

func NewJSONReporter(w io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: w}
}

func (r *JSONReporter) Write(report *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.written {
		return fmt.Errorf("json report already written")
	}
	if report == nil {
		return fmt.Errorf("json report is nil")
	}

	doc := jsonDocument{
		Summary:  report.Summary,
		Duration: report.Summary.Duration.String(),
		Actions:  report.Actions,
	}
	if doc.Actions == nil {
		doc.Actions = []ledger.Entry{}
	}
	if t := report.Table; t != nil {
		doc.Headers = t.Headers
		doc.Rows = make([]map[string]string, len(t.Rows))
		for i := range t.Rows {
			m := make(map[string]string, len(t.Headers))
			for j, h := range t.Headers {
				m[h] = t.Cell(i, j)
			}
			doc.Rows[i] = m
		}
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode json report: %w", err)
	}
	r.written = true
	return nil
}

func (r *JSONReporter) Close() error {
	return r.writer.Close()
}
