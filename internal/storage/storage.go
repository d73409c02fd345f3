// Package storage maps the loosely-typed rows of the tabular store to the
// strongly-typed domain records, immediately at the boundary. Rows that do
// not parse are skipped with a warning instead of leaking stringly-typed
// data inward.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kanakku/internal/core"
	"kanakku/internal/tabular"

	"github.com/shopspring/decimal"
)

// Repositories bundles the three typed repositories over one store.
type Repositories struct {
	Templates *TemplateRepo
	Expenses  *ExpenseRepo
	Items     *ItemRepo
}

func New(store tabular.Store) *Repositories {
	return &Repositories{
		Templates: &TemplateRepo{store: store},
		Expenses:  &ExpenseRepo{store: store},
		Items:     &ItemRepo{store: store},
	}
}

// Migrate ensures every sheet exists with the expected header.
func Migrate(ctx context.Context, store tabular.Store) error {
	m, ok := store.(tabular.Migrator)
	if !ok {
		return nil
	}
	for _, sheet := range []string{tabular.SheetRecurring, tabular.SheetExpenses, tabular.SheetExpenseItems} {
		if err := m.EnsureSheet(ctx, sheet, tabular.Schemas[sheet]); err != nil {
			return fmt.Errorf("ensure sheet %s: %w", sheet, err)
		}
	}
	return nil
}

// upstream wraps raw store failures as retryable upstream errors while
// letting already-typed domain errors pass through.
func upstream(op string, err error) error {
	var nf *core.NotFoundError
	var up *core.UpstreamError
	if errors.As(err, &nf) || errors.As(err, &up) {
		return err
	}
	return &core.UpstreamError{Op: op, Cause: err}
}

func parseAmountCol(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return core.ParseAmount(s)
}

func formatAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	return d.StringFixed(2)
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Older rows may carry date-only purchase timestamps.
		d, derr := core.ParseDate(s)
		if derr != nil {
			return time.Time{}, err
		}
		return d.Time, nil
	}
	return t.UTC(), nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
