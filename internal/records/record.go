// File: internal/records/record.go
package records

import (
	"fmt"
	"strings"
)

// Status is the per-record outcome written back to the status column. The
// values are the literal strings the sheet has always carried.
type Status string

const (
	StatusUnprocessed Status = ""
	StatusDuplicate   Status = "DUP"
	StatusOK          Status = "OK"
	StatusManualCheck Status = "OK (Manual Check)"
	StatusFailed      Status = "FAILED"
	StatusSkipped     Status = "SKIPPED"
)

// ParseStatus maps a raw cell value onto a Status. Unknown text is kept verbatim
// so a hand-edited cell is never silently rewritten.
func ParseStatus(raw string) Status {
	trimmed := strings.TrimSpace(raw)
	for _, s := range []Status{StatusDuplicate, StatusOK, StatusManualCheck, StatusFailed, StatusSkipped} {
		if strings.EqualFold(trimmed, string(s)) {
			return s
		}
	}
	return Status(trimmed)
}

// Terminal reports whether a record carrying this status must never be
// reprocessed by a later run.
func (s Status) Terminal() bool {
	return s == StatusOK || s == StatusDuplicate
}

// Label is the status as shown in filters and reports, with the empty status
// rendered as "Blank".
func (s Status) Label() string {
	if s == StatusUnprocessed {
		return "Blank"
	}
	return string(s)
}

// Field names one logical column of a record.
type Field string

const (
	FieldEmail    Field = "email"
	FieldUsername Field = "username"
	FieldPassword Field = "password"
	FieldFullName Field = "full_name"
	FieldStatus   Field = "status"
)

// Record is one input row. Row is the 0-based index among data rows; the
// header is not counted.
type Record struct {
	Row      int
	Email    string
	Username string
	FullName string
	Password string
	Status   Status
	Cells    map[string]string
}

// SheetRow is the 1-based row number an operator sees, with the header on row 1.
func (r Record) SheetRow() int {
	return r.Row + 2
}

// Identity is the key used for duplicate detection.
func (r Record) Identity() string {
	return strings.ToLower(strings.TrimSpace(r.Email))
}

// Get returns the value of a logical field.
func (r Record) Get(f Field) string {
	switch f {
	case FieldEmail:
		return r.Email
	case FieldUsername:
		return r.Username
	case FieldPassword:
		return r.Password
	case FieldFullName:
		return r.FullName
	case FieldStatus:
		return string(r.Status)
	}
	return ""
}

// Set updates a logical field in place.
func (r *Record) Set(f Field, value string) error {
	switch f {
	case FieldEmail:
		r.Email = value
	case FieldUsername:
		r.Username = value
	case FieldPassword:
		r.Password = value
	case FieldFullName:
		r.FullName = value
	case FieldStatus:
		r.Status = Status(value)
	default:
		return fmt.Errorf("unknown record field %q", f)
	}
	return nil
}
