// internal/reporting/reporter_test.go
package reporting_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot/internal/ledger"
	"github.com/xkilldash9x/formpilot/internal/records"
	"github.com/xkilldash9x/formpilot/internal/reporting"
	"github.com/xkilldash9x/formpilot/internal/runner"
)

func sampleReport() *reporting.Report {
	return &reporting.Report{
		Summary: runner.Summary{
			RunID:     "run-1",
			Flow:      "signup",
			Processed: 2,
			Duration:  1500 * time.Millisecond,
			ByStatus:  map[records.Status]int{records.StatusOK: 1, records.StatusFailed: 1},
		},
		Table: records.NewTable(
			[]string{"Status:", "Email"},
			[][]string{{"OK", "a@x.com"}, {"FAILED", "b,c@x.com"}},
		),
		Actions: []ledger.Entry{{Email: "a@x.com", SheetRow: 2, Action: "Signup", Result: "OK"}},
	}
}

func TestNew_Stdout(t *testing.T) {
	for _, path := range []string{"", "stdout"} {
		r, err := reporting.New("csv", path)
		require.NoError(t, err)
		assert.NotNil(t, r)
		// Close is a no-op for the stdout wrapper.
		assert.NoError(t, r.Close())
	}
}

func TestNewWriter(t *testing.T) {
	var buf strings.Builder
	r, err := reporting.NewWriter("csv", &buf)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleReport()))
	require.NoError(t, r.Close())
	assert.Contains(t, buf.String(), "a@x.com")

	_, err = reporting.NewWriter("xml", &buf)
	assert.Error(t, err)
}

func TestNew_Failure_UnsupportedFormat(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "output.sarif")
	r, err := reporting.New("sarif", tmpFile)
	assert.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "unsupported output format: sarif")

	// No file is left behind for a rejected format.
	_, err = os.Stat(tmpFile)
	assert.True(t, os.IsNotExist(err))
}

func TestNew_Failure_FileCreation(t *testing.T) {
	r, err := reporting.New("csv", t.TempDir())
	assert.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "failed to create output file")
}

func TestCSVReporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	r, err := reporting.New("csv", path)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleReport()))
	require.NoError(t, r.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Status:", "Email"},
		{"OK", "a@x.com"},
		{"FAILED", "b,c@x.com"},
	}, rows)
}

func TestJSONReporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r, err := reporting.New("json", path)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleReport()))
	assert.Error(t, r.Write(sampleReport()), "a second write must be rejected")
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Summary struct {
			RunID     string         `json:"run_id"`
			Processed int            `json:"processed"`
			ByStatus  map[string]int `json:"by_status"`
		} `json:"summary"`
		Duration string              `json:"duration_text"`
		Rows     []map[string]string `json:"rows"`
		Actions  []ledger.Entry      `json:"actions"`
	}
	require.NoError(t, jsoniter.Unmarshal(data, &doc))
	assert.Equal(t, "run-1", doc.Summary.RunID)
	assert.Equal(t, 2, doc.Summary.Processed)
	assert.Equal(t, 1, doc.Summary.ByStatus["FAILED"])
	assert.Equal(t, "1.5s", doc.Duration)
	require.Len(t, doc.Rows, 2)
	assert.Equal(t, "b,c@x.com", doc.Rows[1]["Email"])
	require.Len(t, doc.Actions, 1)
	assert.Equal(t, "Signup", doc.Actions[0].Action)
	assert.True(t, strings.HasSuffix(string(data), "\n"))
}
