// File: internal/records/columns.go
package records

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/formpilot/internal/config"
)

// ErrColumnNotFound is returned when a required column cannot be located.
var ErrColumnNotFound = errors.New("column not found")

// NoColumn marks a logical field that is absent from the table.
const NoColumn = -1

// Columns maps each logical field to a 0-based column index, or NoColumn.
type Columns struct {
	Email    int
	Username int
	Password int
	FullName int
	Status   int
}

// Index returns the column bound to a logical field.
func (c Columns) Index(f Field) int {
	switch f {
	case FieldEmail:
		return c.Email
	case FieldUsername:
		return c.Username
	case FieldPassword:
		return c.Password
	case FieldFullName:
		return c.FullName
	case FieldStatus:
		return c.Status
	}
	return NoColumn
}

// Discover locates one column. A fixed Index wins; otherwise the candidate
// names are tried as exact matches in order, then the keyword as a
// case-insensitive substring over the headers from left to right.
func Discover(headers []string, rule config.ColumnRule) int {
	if rule.Index > 0 && rule.Index <= len(headers) {
		return rule.Index - 1
	}
	for _, name := range rule.Names {
		for i, h := range headers {
			if h == name {
				return i
			}
		}
	}
	if kw := strings.ToLower(strings.TrimSpace(rule.Keyword)); kw != "" {
		for i, h := range headers {
			if strings.Contains(strings.ToLower(h), kw) {
				return i
			}
		}
	}
	return NoColumn
}

// ResolveColumns discovers every logical column. Email and status are
// required; the remaining fields resolve to NoColumn when absent.
func ResolveColumns(headers []string, rules config.ColumnsConfig) (Columns, error) {
	cols := Columns{
		Email:    Discover(headers, rules.Email),
		Username: Discover(headers, rules.Username),
		Password: Discover(headers, rules.Password),
		FullName: Discover(headers, rules.FullName),
		Status:   Discover(headers, rules.Status),
	}
	if cols.Email == NoColumn {
		return cols, fmt.Errorf("email: %w (tried %v, keyword %q)", ErrColumnNotFound, rules.Email.Names, rules.Email.Keyword)
	}
	if cols.Status == NoColumn {
		return cols, fmt.Errorf("status: %w (tried %v)", ErrColumnNotFound, rules.Status.Names)
	}
	return cols, nil
}

// Records projects the table rows onto Record values.
func Records(t *Table, cols Columns) []Record {
	out := make([]Record, t.Len())
	for i := range t.Rows {
		cells := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			cells[h] = t.Cell(i, j)
		}
		out[i] = Record{
			Row:      i,
			Email:    strings.TrimSpace(t.Cell(i, cols.Email)),
			Username: strings.TrimSpace(t.Cell(i, cols.Username)),
			FullName: strings.TrimSpace(t.Cell(i, cols.FullName)),
			Password: strings.TrimSpace(t.Cell(i, cols.Password)),
			Status:   ParseStatus(t.Cell(i, cols.Status)),
			Cells:    cells,
		}
	}
	return out
}

// DuplicateMask flags every record whose identity already appeared earlier in
// the slice. It always runs over the full set so that windowed runs agree on
// which rows are duplicates. Records without an email are never duplicates.
func DuplicateMask(recs []Record) []bool {
	mask := make([]bool, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for i, r := range recs {
		key := r.Identity()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			mask[i] = true
			continue
		}
		seen[key] = struct{}{}
	}
	return mask
}
