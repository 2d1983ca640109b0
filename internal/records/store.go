// File: internal/records/store.go
package records

import "context"

// Store is the spreadsheet-like persistence layer holding input rows and
// status output. Row indexes are data-row indexes; each implementation owns
// its header offset. WriteCell is a single synchronous write with no batching.
type Store interface {
	ReadAll(ctx context.Context) (*Table, error)
	WriteCell(ctx context.Context, row, col int, value string) error
}
