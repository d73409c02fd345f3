package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"kanakku/internal/core"
	"kanakku/internal/tabular"

	"github.com/google/uuid"
)

// TemplateRepo reads and writes recurring templates on the "recurring" sheet.
type TemplateRepo struct {
	store tabular.Store
}

type templateRow struct {
	ref string
	tpl core.RecurringTemplate
}

// ListByUser returns the user's templates. Unparsable rows are skipped.
func (r *TemplateRepo) ListByUser(ctx context.Context, userID string) ([]core.RecurringTemplate, error) {
	rows, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.RecurringTemplate
	for _, row := range rows {
		if row.tpl.UserID == userID {
			out = append(out, row.tpl)
		}
	}
	return out, nil
}

// Get returns one template by id within a user's scope.
func (r *TemplateRepo) Get(ctx context.Context, userID, templateID string) (core.RecurringTemplate, error) {
	rows, err := r.scan(ctx)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	for _, row := range rows {
		if row.tpl.UserID == userID && row.tpl.ID == templateID {
			return row.tpl, nil
		}
	}
	return core.RecurringTemplate{}, &core.NotFoundError{Kind: "template", ID: templateID}
}

// Upsert creates or replaces a template matched by (user, description,
// category). The existing watermark and id survive an update; day_of_month
// is clamped before it is stored.
func (r *TemplateRepo) Upsert(ctx context.Context, tpl core.RecurringTemplate) (core.RecurringTemplate, error) {
	tpl.DayOfMonth = core.ClampDayOfMonth(tpl.DayOfMonth)
	if tpl.Status == "" {
		tpl.Status = core.StatusActive
	}
	if err := tpl.Validate(); err != nil {
		return core.RecurringTemplate{}, &core.ValidationError{Msg: err.Error()}
	}

	rows, err := r.scan(ctx)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	for _, row := range rows {
		if row.tpl.UserID == tpl.UserID && row.tpl.Description == tpl.Description && row.tpl.Category == tpl.Category {
			tpl.ID = row.tpl.ID
			tpl.LastProcessed = row.tpl.LastProcessed
			if err := r.store.UpdateRow(ctx, tabular.SheetRecurring, row.ref, encodeTemplate(tpl)); err != nil {
				return core.RecurringTemplate{}, upstream("update template", err)
			}
			return tpl, nil
		}
	}

	tpl.ID = "recur_" + uuid.NewString()
	if _, err := r.store.AppendRow(ctx, tabular.SheetRecurring, encodeTemplate(tpl)); err != nil {
		return core.RecurringTemplate{}, upstream("append template", err)
	}
	return tpl, nil
}

// AdvanceWatermark moves last_processed forward to date. Regressions are
// silently ignored so a partial retry of an older batch cannot move the
// watermark backwards.
func (r *TemplateRepo) AdvanceWatermark(ctx context.Context, userID, templateID string, date core.Date) error {
	rows, err := r.scan(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.tpl.UserID != userID || row.tpl.ID != templateID {
			continue
		}
		if !row.tpl.LastProcessed.IsZero() && !date.After(row.tpl.LastProcessed.Time) {
			return nil
		}
		tpl := row.tpl
		tpl.LastProcessed = date
		if err := r.store.UpdateRow(ctx, tabular.SheetRecurring, row.ref, encodeTemplate(tpl)); err != nil {
			return upstream("advance watermark", err)
		}
		return nil
	}
	return &core.NotFoundError{Kind: "template", ID: templateID}
}

// Delete removes the template row.
func (r *TemplateRepo) Delete(ctx context.Context, userID, templateID string) error {
	rows, err := r.scan(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.tpl.UserID == userID && row.tpl.ID == templateID {
			if err := r.store.DeleteRow(ctx, tabular.SheetRecurring, row.ref); err != nil {
				return upstream("delete template", err)
			}
			return nil
		}
	}
	return &core.NotFoundError{Kind: "template", ID: templateID}
}

func (r *TemplateRepo) scan(ctx context.Context) ([]templateRow, error) {
	raw, err := r.store.FindAll(ctx, tabular.SheetRecurring)
	if err != nil {
		return nil, upstream("list templates", err)
	}
	out := make([]templateRow, 0, len(raw))
	for _, row := range raw {
		tpl, err := decodeTemplate(row.Values)
		if err != nil {
			slog.WarnContext(ctx, "skipping unparsable recurring row", "ref", row.Ref, "error", err)
			continue
		}
		out = append(out, templateRow{ref: row.Ref, tpl: tpl})
	}
	return out, nil
}

// Column order follows tabular.RecurringColumns.
func encodeTemplate(t core.RecurringTemplate) []string {
	last := ""
	if !t.LastProcessed.IsZero() {
		last = t.LastProcessed.ISO()
	}
	return []string{
		t.UserID,
		t.Description,
		t.Category,
		strconv.Itoa(t.DayOfMonth),
		formatAmount(t.DefaultCost),
		t.StartDate.ISO(),
		last,
		t.ID,
		string(t.Status),
	}
}

func decodeTemplate(values []string) (core.RecurringTemplate, error) {
	get := func(i int) string { return tabular.Col(values, i) }

	day, err := strconv.Atoi(strings.TrimSpace(get(3)))
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("day_of_month %q: %w", get(3), err)
	}
	cost, err := parseAmountCol(get(4))
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("default_cost %q: %w", get(4), err)
	}
	start, err := core.ParseDate(get(5))
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("start_date_iso %q: %w", get(5), err)
	}
	var last core.Date
	if s := strings.TrimSpace(get(6)); s != "" {
		last, err = core.ParseDate(s)
		if err != nil {
			return core.RecurringTemplate{}, fmt.Errorf("last_processed_iso %q: %w", s, err)
		}
	}
	status := core.TemplateStatus(strings.TrimSpace(get(8)))
	if status == "" {
		status = core.StatusActive
	}
	if !status.Valid() {
		return core.RecurringTemplate{}, fmt.Errorf("unknown status %q", get(8))
	}
	return core.RecurringTemplate{
		ID:            get(7),
		UserID:        get(0),
		Description:   get(1),
		Category:      get(2),
		DayOfMonth:    core.ClampDayOfMonth(day),
		DefaultCost:   cost,
		StartDate:     start,
		LastProcessed: last,
		Status:        status,
	}, nil
}
