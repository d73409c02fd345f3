package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"kanakku/internal/core"
	"kanakku/internal/tabular"

	"github.com/google/uuid"
)

// ItemRepo reads and writes receipt line items on the "expense_items" sheet.
type ItemRepo struct {
	store tabular.Store
}

type itemRow struct {
	ref  string
	item core.ExpenseItem
}

// AppendAll writes the items for one expense and returns their generated
// ids. It stops at the first failure; the caller owns the compensating
// cleanup of whatever was already written.
func (r *ItemRepo) AppendAll(ctx context.Context, userEmail, expenseID string, items []core.ExpenseItem) ([]string, error) {
	ids := make([]string, 0, len(items))
	now := time.Now().UTC()
	for _, it := range items {
		it.ID = uuid.NewString()
		it.UserEmail = userEmail
		it.ExpenseID = expenseID
		it.CreatedAt = now
		if it.NormalizedName == "" {
			it.NormalizedName = strings.ToLower(strings.TrimSpace(it.ItemName))
		}
		if _, err := r.store.AppendRow(ctx, tabular.SheetExpenseItems, encodeItem(it)); err != nil {
			return ids, upstream("append expense item", err)
		}
		ids = append(ids, it.ID)
	}
	return ids, nil
}

// ListByExpense returns the items belonging to one header, ordered by line_no.
func (r *ItemRepo) ListByExpense(ctx context.Context, expenseID string) ([]core.ExpenseItem, error) {
	rows, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.ExpenseItem
	for _, row := range rows {
		if row.item.ExpenseID == expenseID {
			out = append(out, row.item)
		}
	}
	return out, nil
}

// DeleteByExpense removes every item row referencing the header. Used both
// by explicit expense deletion and by the compensating rollback; the first
// delete failure is returned.
func (r *ItemRepo) DeleteByExpense(ctx context.Context, expenseID string) error {
	// Refs shift after each delete on positional backends, so re-scan until
	// no row for the expense remains.
	for {
		rows, err := r.scan(ctx)
		if err != nil {
			return err
		}
		found := false
		for _, row := range rows {
			if row.item.ExpenseID == expenseID {
				found = true
				if err := r.store.DeleteRow(ctx, tabular.SheetExpenseItems, row.ref); err != nil {
					return upstream("delete expense item", err)
				}
				break
			}
		}
		if !found {
			return nil
		}
	}
}

func (r *ItemRepo) scan(ctx context.Context) ([]itemRow, error) {
	raw, err := r.store.FindAll(ctx, tabular.SheetExpenseItems)
	if err != nil {
		return nil, upstream("list expense items", err)
	}
	out := make([]itemRow, 0, len(raw))
	for _, row := range raw {
		it, err := decodeItem(row.Values)
		if err != nil {
			slog.WarnContext(ctx, "skipping unparsable expense item row", "ref", row.Ref, "error", err)
			continue
		}
		out = append(out, itemRow{ref: row.Ref, item: it})
	}
	return out, nil
}

// Column order follows tabular.ExpenseItemColumns.
func encodeItem(it core.ExpenseItem) []string {
	qty := ""
	if !it.Quantity.IsZero() {
		qty = it.Quantity.String()
	}
	unitPrice := ""
	if !it.UnitPrice.IsZero() {
		unitPrice = formatAmount(it.UnitPrice)
	}
	return []string{
		it.ID,
		it.UserEmail,
		it.ExpenseID,
		strconv.Itoa(it.LineNo),
		it.ItemName,
		it.NormalizedName,
		it.Category,
		qty,
		it.Unit,
		unitPrice,
		formatAmount(it.LineTotal),
		formatAmount(it.Tax),
		formatAmount(it.Discount),
		it.AttributesJSON,
		formatTimestamp(it.CreatedAt),
	}
}

func decodeItem(values []string) (core.ExpenseItem, error) {
	get := func(i int) string { return tabular.Col(values, i) }

	if strings.TrimSpace(get(0)) == "" {
		return core.ExpenseItem{}, fmt.Errorf("missing id")
	}
	lineNo, err := strconv.Atoi(strings.TrimSpace(get(3)))
	if err != nil {
		return core.ExpenseItem{}, fmt.Errorf("line_no %q: %w", get(3), err)
	}
	qty, err := parseAmountCol(get(7))
	if err != nil {
		return core.ExpenseItem{}, fmt.Errorf("quantity %q: %w", get(7), err)
	}
	unitPrice, err := parseAmountCol(get(9))
	if err != nil {
		return core.ExpenseItem{}, fmt.Errorf("unit_price %q: %w", get(9), err)
	}
	lineTotal, err := parseAmountCol(get(10))
	if err != nil {
		return core.ExpenseItem{}, fmt.Errorf("line_total %q: %w", get(10), err)
	}
	tax, err := parseAmountCol(get(11))
	if err != nil {
		return core.ExpenseItem{}, fmt.Errorf("tax %q: %w", get(11), err)
	}
	discount, err := parseAmountCol(get(12))
	if err != nil {
		return core.ExpenseItem{}, fmt.Errorf("discount %q: %w", get(12), err)
	}
	createdAt, err := parseTimestamp(get(14))
	if err != nil {
		return core.ExpenseItem{}, fmt.Errorf("created_at %q: %w", get(14), err)
	}
	return core.ExpenseItem{
		ID:             get(0),
		UserEmail:      get(1),
		ExpenseID:      get(2),
		LineNo:         lineNo,
		ItemName:       get(4),
		NormalizedName: get(5),
		Category:       get(6),
		Quantity:       qty,
		Unit:           get(8),
		UnitPrice:      unitPrice,
		LineTotal:      lineTotal,
		Tax:            tax,
		Discount:       discount,
		AttributesJSON: get(13),
		CreatedAt:      createdAt,
	}, nil
}
