// Package tabular defines the narrow contract the expense engine needs from
// a remote row store: append, update, delete, read-all. Any backend meeting
// it (spreadsheet, SQL table, in-memory fake) is interchangeable; none is
// assumed to offer multi-row atomicity.
package tabular

import "context"

// Row is one data row with the backend's opaque reference to it. Refs stay
// valid across appends; backends may invalidate them after deletes, so
// callers re-scan rather than caching refs.
type Row struct {
	Ref    string
	Values []string
}

type (
	// Store is the tabular store collaborator interface. All idempotency in
	// the engine is achieved with application-level dedup keys on top of
	// these four primitives.
	Store interface {
		// AppendRow appends a row to the named sheet and returns its ref.
		AppendRow(ctx context.Context, sheet string, values []string) (string, error)

		// UpdateRow overwrites the row identified by ref.
		UpdateRow(ctx context.Context, sheet, ref string, values []string) error

		// DeleteRow removes the row identified by ref.
		DeleteRow(ctx context.Context, sheet, ref string) error

		// FindAll returns every data row of the sheet in stable order.
		FindAll(ctx context.Context, sheet string) ([]Row, error)
	}

	// Migrator is implemented by backends whose schema (header row) must be
	// created or extended before use.
	Migrator interface {
		// EnsureSheet creates the sheet if missing and rewrites its header
		// row when it does not match the expected columns.
		EnsureSheet(ctx context.Context, sheet string, header []string) error
	}
)
