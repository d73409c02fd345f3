package services

import (
	"context"
	"testing"
	"time"

	"kanakku/internal/cache"
	"kanakku/internal/core"
	"kanakku/internal/storage"
	"kanakku/internal/tabular/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testUser = "user@example.com"

func newTestServices(t *testing.T) (*Services, *storage.Repositories, *memory.Store) {
	t.Helper()
	store := memory.New()
	repos := storage.New(store)
	memo := cache.NewLRUCache[Summary](16, time.Minute)
	svcs := New(repos, nil, memo)
	return svcs, repos, store
}

func seedTemplate(t *testing.T, repos *storage.Repositories, day int, start core.Date) core.RecurringTemplate {
	t.Helper()
	tpl, err := repos.Templates.Upsert(context.Background(), core.RecurringTemplate{
		UserID:      testUser,
		Description: "Rent",
		Category:    "Housing",
		DayOfMonth:  day,
		DefaultCost: decimal.NewFromInt(100),
		StartDate:   start,
	})
	require.NoError(t, err)
	return tpl
}

func TestConfirmMaterializesDueOccurrence(t *testing.T) {
	svcs, repos, _ := newTestServices(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repos, 10, core.NewDate(2024, 1, 1))
	asOf := core.NewDate(2024, 1, 31)

	processed, err := svcs.Confirm.Confirm(ctx, testUser, asOf, []Selection{
		{TemplateID: tpl.ID, DateISO: "2024-01-10"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	headers, err := repos.Expenses.ListByUser(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, headers, 1)
	require.Equal(t, "Rent", headers[0].Description)
	require.True(t, headers[0].Amount.Equal(decimal.NewFromInt(100)))

	// Watermark advanced to the confirmed date.
	got, err := repos.Templates.Get(ctx, testUser, tpl.ID)
	require.NoError(t, err)
	require.Equal(t, "2024-01-10", got.LastProcessed.ISO())
}

func TestConfirmIsIdempotent(t *testing.T) {
	svcs, repos, _ := newTestServices(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repos, 10, core.NewDate(2024, 1, 1))
	asOf := core.NewDate(2024, 1, 31)
	selections := []Selection{{TemplateID: tpl.ID, DateISO: "2024-01-10"}}

	first, err := svcs.Confirm.Confirm(ctx, testUser, asOf, selections)
	require.NoError(t, err)
	require.Equal(t, 1, first)

	second, err := svcs.Confirm.Confirm(ctx, testUser, asOf, selections)
	require.NoError(t, err)
	require.Equal(t, 0, second, "second confirm must create no new expenses")

	headers, err := repos.Expenses.ListByUser(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, headers, 1)
}

func TestConfirmUsesCostOverride(t *testing.T) {
	svcs, repos, _ := newTestServices(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repos, 10, core.NewDate(2024, 1, 1))

	processed, err := svcs.Confirm.Confirm(ctx, testUser, core.NewDate(2024, 1, 31), []Selection{
		{TemplateID: tpl.ID, DateISO: "2024-01-10", Cost: core.AmountFromFloat(123.45)},
	})
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	headers, err := repos.Expenses.ListByUser(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, headers, 1)
	require.True(t, headers[0].Amount.Equal(core.AmountFromFloat(123.45)))
}

func TestConfirmSkipsNonPositiveCost(t *testing.T) {
	svcs, repos, _ := newTestServices(t)
	ctx := context.Background()
	tpl, err := repos.Templates.Upsert(ctx, core.RecurringTemplate{
		UserID:      testUser,
		Description: "Freebie",
		Category:    "Misc",
		DayOfMonth:  5,
		DefaultCost: decimal.Zero,
		StartDate:   core.NewDate(2024, 1, 1),
	})
	require.NoError(t, err)

	processed, err := svcs.Confirm.Confirm(ctx, testUser, core.NewDate(2024, 1, 31), []Selection{
		{TemplateID: tpl.ID, DateISO: "2024-01-05"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, processed)

	headers, err := repos.Expenses.ListByUser(ctx, testUser)
	require.NoError(t, err)
	require.Empty(t, headers)
}

func TestConfirmSkipsUnknownTemplateAndBadDate(t *testing.T) {
	svcs, repos, _ := newTestServices(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repos, 10, core.NewDate(2024, 1, 1))

	processed, err := svcs.Confirm.Confirm(ctx, testUser, core.NewDate(2024, 1, 31), []Selection{
		{TemplateID: "recur_missing", DateISO: "2024-01-10"},
		{TemplateID: tpl.ID, DateISO: "not-a-date"},
		{TemplateID: tpl.ID, DateISO: "2024-01-10"},
	})
	require.NoError(t, err, "per-item failures must not abort the batch")
	require.Equal(t, 1, processed)
}

func TestConfirmNeverDueSelectionLeavesWatermarkAlone(t *testing.T) {
	svcs, repos, _ := newTestServices(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repos, 10, core.NewDate(2024, 1, 1))
	asOf := core.NewDate(2024, 1, 31)

	// A date far beyond asOf, and a date the template never produces, must
	// both be skipped without touching the watermark.
	processed, err := svcs.Confirm.Confirm(ctx, testUser, asOf, []Selection{
		{TemplateID: tpl.ID, DateISO: "2099-01-10"},
		{TemplateID: tpl.ID, DateISO: "2024-01-11"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, processed)

	got, err := repos.Templates.Get(ctx, testUser, tpl.ID)
	require.NoError(t, err)
	require.True(t, got.LastProcessed.IsZero(),
		"watermark must not advance for a selection that was never due, got %s", got.LastProcessed.ISO())

	// The unpaid January occurrence is still due.
	due, err := svcs.Due.DueFor(ctx, testUser, asOf)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "2024-01-10", due[0].Date.ISO())
}

func TestConfirmSatisfiedSelectionAdvancesWatermark(t *testing.T) {
	svcs, repos, _ := newTestServices(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repos, 10, core.NewDate(2024, 1, 1))

	// A manual entry already satisfies January, so the occurrence is not in
	// the due list. Confirming it creates nothing but still marks the month
	// processed.
	_, err := repos.Expenses.Append(ctx, core.ExpenseHeader{
		UserEmail:   testUser,
		PurchasedAt: time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC),
		Description: "Rent",
		Category:    "Housing",
		Amount:      core.AmountFromFloat(100),
	})
	require.NoError(t, err)

	processed, err := svcs.Confirm.Confirm(ctx, testUser, core.NewDate(2024, 1, 31), []Selection{
		{TemplateID: tpl.ID, DateISO: "2024-01-10"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, processed)

	got, err := repos.Templates.Get(ctx, testUser, tpl.ID)
	require.NoError(t, err)
	require.Equal(t, "2024-01-10", got.LastProcessed.ISO())
}

func TestConfirmRejectsNegativeCostOverride(t *testing.T) {
	svcs, repos, _ := newTestServices(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repos, 10, core.NewDate(2024, 1, 1))

	// A negative override must skip the selection, not fall back to the
	// template default.
	processed, err := svcs.Confirm.Confirm(ctx, testUser, core.NewDate(2024, 1, 31), []Selection{
		{TemplateID: tpl.ID, DateISO: "2024-01-10", Cost: core.AmountFromFloat(-5)},
	})
	require.NoError(t, err)
	require.Equal(t, 0, processed)

	headers, err := repos.Expenses.ListByUser(ctx, testUser)
	require.NoError(t, err)
	require.Empty(t, headers)
}

func TestConfirmWatermarkAdvancesToMaxDate(t *testing.T) {
	svcs, repos, _ := newTestServices(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repos, 10, core.NewDate(2024, 1, 1))
	asOf := core.NewDate(2024, 3, 31)

	processed, err := svcs.Confirm.Confirm(ctx, testUser, asOf, []Selection{
		{TemplateID: tpl.ID, DateISO: "2024-03-10"},
		{TemplateID: tpl.ID, DateISO: "2024-01-10"},
		{TemplateID: tpl.ID, DateISO: "2024-02-10"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, processed)

	got, err := repos.Templates.Get(ctx, testUser, tpl.ID)
	require.NoError(t, err)
	require.Equal(t, "2024-03-10", got.LastProcessed.ISO())
}

func TestConfirmWatermarkNeverRegresses(t *testing.T) {
	svcs, repos, _ := newTestServices(t)
	ctx := context.Background()
	tpl := seedTemplate(t, repos, 10, core.NewDate(2024, 1, 1))
	asOf := core.NewDate(2024, 3, 31)

	_, err := svcs.Confirm.Confirm(ctx, testUser, asOf, []Selection{
		{TemplateID: tpl.ID, DateISO: "2024-03-10"},
	})
	require.NoError(t, err)

	// A later batch replaying only an earlier month must not move the
	// watermark backwards.
	_, err = svcs.Confirm.Confirm(ctx, testUser, asOf, []Selection{
		{TemplateID: tpl.ID, DateISO: "2024-01-10"},
	})
	require.NoError(t, err)

	got, err := repos.Templates.Get(ctx, testUser, tpl.ID)
	require.NoError(t, err)
	require.Equal(t, "2024-03-10", got.LastProcessed.ISO())
}
