// File: internal/records/table.go
package records

import (
	"fmt"
	"strings"
)

// Table is the full contents of a record store: uniquified headers and the
// data rows below them, each padded to the header width.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable cleans the raw headers and normalizes every row to the header width.
func NewTable(rawHeaders []string, rows [][]string) *Table {
	headers := CleanHeaders(rawHeaders)
	width := len(headers)
	normalized := make([][]string, len(rows))
	for i, row := range rows {
		// Trailing empty cells are commonly omitted by the Sheets API.
		if len(row) > width {
			width = len(row)
		}
		normalized[i] = row
	}
	for len(headers) < width {
		headers = append(headers, fmt.Sprintf("Unknown_Col_%d", len(headers)))
	}
	for i, row := range normalized {
		padded := make([]string, width)
		copy(padded, row)
		normalized[i] = padded
	}
	return &Table{Headers: headers, Rows: normalized}
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Cell returns the value at (row, col), or "" when out of range or col < 0.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// SetCell updates the in-memory copy. It does not persist.
func (t *Table) SetCell(row, col int, value string) error {
	if row < 0 || row >= len(t.Rows) {
		return fmt.Errorf("row %d out of range [0,%d)", row, len(t.Rows))
	}
	if col < 0 || col >= len(t.Headers) {
		return fmt.Errorf("column %d out of range [0,%d)", col, len(t.Headers))
	}
	t.Rows[row][col] = value
	return nil
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := &Table{Headers: append([]string(nil), t.Headers...), Rows: make([][]string, len(t.Rows))}
	for i, row := range t.Rows {
		c.Rows[i] = append([]string(nil), row...)
	}
	return c
}

// CleanHeaders makes every header unique. Empty headers become
// Unknown_Col_<i>; the second and later copies of a header X become X_1, X_2...
func CleanHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unknown_Col_%d", i)
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			out[i] = fmt.Sprintf("%s_%d", h, n+1)
			continue
		}
		seen[h] = 0
		out[i] = h
	}
	return out
}
