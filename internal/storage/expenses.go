package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kanakku/internal/core"
	"kanakku/internal/tabular"

	"github.com/google/uuid"
)

// ExpenseRepo reads and writes expense headers on the "expenses" sheet.
type ExpenseRepo struct {
	store tabular.Store
}

type expenseRow struct {
	ref    string
	header core.ExpenseHeader
}

// Append writes a new header row. The id and created_at are assigned here
// when the caller left them empty, matching how the legacy store behaved.
func (r *ExpenseRepo) Append(ctx context.Context, h core.ExpenseHeader) (string, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	if _, err := r.store.AppendRow(ctx, tabular.SheetExpenses, encodeExpense(h)); err != nil {
		return "", upstream("append expense", err)
	}
	return h.ID, nil
}

// FindByFingerprint returns the first header matching (user, fingerprint),
// or nil when none exists. Headers without a fingerprint never match.
func (r *ExpenseRepo) FindByFingerprint(ctx context.Context, userEmail, fingerprint string) (*core.ExpenseHeader, error) {
	if fingerprint == "" {
		return nil, nil
	}
	rows, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.header.UserEmail == userEmail && row.header.Fingerprint == fingerprint {
			h := row.header
			return &h, nil
		}
	}
	return nil, nil
}

// ListByUser returns every header owned by the user.
func (r *ExpenseRepo) ListByUser(ctx context.Context, userEmail string) ([]core.ExpenseHeader, error) {
	rows, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.ExpenseHeader
	for _, row := range rows {
		if row.header.UserEmail == userEmail {
			out = append(out, row.header)
		}
	}
	return out, nil
}

// Get returns one header by id.
func (r *ExpenseRepo) Get(ctx context.Context, expenseID string) (core.ExpenseHeader, error) {
	rows, err := r.scan(ctx)
	if err != nil {
		return core.ExpenseHeader{}, err
	}
	for _, row := range rows {
		if row.header.ID == expenseID {
			return row.header, nil
		}
	}
	return core.ExpenseHeader{}, &core.NotFoundError{Kind: "expense", ID: expenseID}
}

// Update rewrites the header row identified by h.ID.
func (r *ExpenseRepo) Update(ctx context.Context, h core.ExpenseHeader) error {
	rows, err := r.scan(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.header.ID == h.ID {
			if h.CreatedAt.IsZero() {
				h.CreatedAt = row.header.CreatedAt
			}
			if err := r.store.UpdateRow(ctx, tabular.SheetExpenses, row.ref, encodeExpense(h)); err != nil {
				return upstream("update expense", err)
			}
			return nil
		}
	}
	return &core.NotFoundError{Kind: "expense", ID: h.ID}
}

// Delete removes the header row by id.
func (r *ExpenseRepo) Delete(ctx context.Context, expenseID string) error {
	rows, err := r.scan(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.header.ID == expenseID {
			if err := r.store.DeleteRow(ctx, tabular.SheetExpenses, row.ref); err != nil {
				return upstream("delete expense", err)
			}
			return nil
		}
	}
	return &core.NotFoundError{Kind: "expense", ID: expenseID}
}

func (r *ExpenseRepo) scan(ctx context.Context) ([]expenseRow, error) {
	raw, err := r.store.FindAll(ctx, tabular.SheetExpenses)
	if err != nil {
		return nil, upstream("list expenses", err)
	}
	out := make([]expenseRow, 0, len(raw))
	for _, row := range raw {
		h, err := decodeExpense(row.Values)
		if err != nil {
			slog.WarnContext(ctx, "skipping unparsable expense row", "ref", row.Ref, "error", err)
			continue
		}
		out = append(out, expenseRow{ref: row.Ref, header: h})
	}
	return out, nil
}

// Column order follows tabular.ExpenseColumns.
func encodeExpense(h core.ExpenseHeader) []string {
	return []string{
		h.ID,
		h.UserEmail,
		formatTimestamp(h.PurchasedAt),
		h.MerchantName,
		h.MerchantID,
		h.Category,
		formatAmount(h.Amount),
		h.Currency,
		formatAmount(h.Tax),
		formatAmount(h.Tip),
		formatAmount(h.Discount),
		h.PaymentMethod,
		h.Description,
		h.Notes,
		h.Fingerprint,
		formatTimestamp(h.CreatedAt),
	}
}

func decodeExpense(values []string) (core.ExpenseHeader, error) {
	get := func(i int) string { return tabular.Col(values, i) }

	if strings.TrimSpace(get(0)) == "" {
		return core.ExpenseHeader{}, fmt.Errorf("missing id")
	}
	purchasedAt, err := parseTimestamp(get(2))
	if err != nil {
		return core.ExpenseHeader{}, fmt.Errorf("purchased_at %q: %w", get(2), err)
	}
	amount, err := parseAmountCol(get(6))
	if err != nil {
		return core.ExpenseHeader{}, fmt.Errorf("amount %q: %w", get(6), err)
	}
	tax, err := parseAmountCol(get(8))
	if err != nil {
		return core.ExpenseHeader{}, fmt.Errorf("tax %q: %w", get(8), err)
	}
	tip, err := parseAmountCol(get(9))
	if err != nil {
		return core.ExpenseHeader{}, fmt.Errorf("tip %q: %w", get(9), err)
	}
	discount, err := parseAmountCol(get(10))
	if err != nil {
		return core.ExpenseHeader{}, fmt.Errorf("discount %q: %w", get(10), err)
	}
	createdAt, err := parseTimestamp(get(15))
	if err != nil {
		return core.ExpenseHeader{}, fmt.Errorf("created_at %q: %w", get(15), err)
	}
	return core.ExpenseHeader{
		ID:            get(0),
		UserEmail:     get(1),
		PurchasedAt:   purchasedAt,
		MerchantName:  get(3),
		MerchantID:    get(4),
		Category:      get(5),
		Amount:        amount,
		Currency:      get(7),
		Tax:           tax,
		Tip:           tip,
		Discount:      discount,
		PaymentMethod: get(11),
		Description:   get(12),
		Notes:         get(13),
		Fingerprint:   get(14),
		CreatedAt:     createdAt,
	}, nil
}
