package services

import (
	"context"
	"testing"
	"time"

	"kanakku/internal/core"

	"github.com/stretchr/testify/require"
)

func addExpense(t *testing.T, svcs *Services, day time.Time, category string, amount float64) string {
	t.Helper()
	id, err := svcs.Expenses.Create(context.Background(), core.ExpenseHeader{
		UserEmail:   testUser,
		PurchasedAt: day,
		Description: "test expense",
		Category:    category,
		Amount:      core.AmountFromFloat(amount),
	})
	require.NoError(t, err)
	return id
}

func TestSummarizeAggregates(t *testing.T) {
	svcs, _, _ := newTestServices(t)
	ctx := context.Background()

	addExpense(t, svcs, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "Food", 20)
	addExpense(t, svcs, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), "Food", 30)
	addExpense(t, svcs, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), "Travel", 50)

	sum, err := svcs.Analysis.Summarize(ctx, testUser, AnalysisFilters{})
	require.NoError(t, err)
	require.Equal(t, 3, sum.Count)
	require.True(t, sum.Total.Equal(core.AmountFromFloat(100)))
	require.True(t, sum.ByCategory["Food"].Equal(core.AmountFromFloat(50)))
	require.True(t, sum.ByMonth["2024-01"].Equal(core.AmountFromFloat(50)))

	jan, err := svcs.Analysis.Summarize(ctx, testUser, AnalysisFilters{Year: 2024, Month: 1})
	require.NoError(t, err)
	require.Equal(t, 2, jan.Count)
	require.True(t, jan.Total.Equal(core.AmountFromFloat(50)))
}

func TestSummarizeCacheInvalidatedByMutation(t *testing.T) {
	svcs, _, _ := newTestServices(t)
	ctx := context.Background()

	addExpense(t, svcs, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "Food", 20)

	before, err := svcs.Analysis.Summarize(ctx, testUser, AnalysisFilters{})
	require.NoError(t, err)
	require.Equal(t, 1, before.Count)

	// A mutation invalidates the memo before returning; the next read must
	// see the new expense, not the cached aggregate.
	addExpense(t, svcs, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), "Food", 30)

	after, err := svcs.Analysis.Summarize(ctx, testUser, AnalysisFilters{})
	require.NoError(t, err)
	require.Equal(t, 2, after.Count)
	require.True(t, after.Total.Equal(core.AmountFromFloat(50)))
}

func TestSummarizeCacheInvalidatedByDelete(t *testing.T) {
	svcs, _, _ := newTestServices(t)
	ctx := context.Background()

	id := addExpense(t, svcs, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "Food", 20)
	addExpense(t, svcs, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), "Food", 30)

	_, err := svcs.Analysis.Summarize(ctx, testUser, AnalysisFilters{})
	require.NoError(t, err)

	require.NoError(t, svcs.Expenses.Delete(ctx, testUser, id))

	after, err := svcs.Analysis.Summarize(ctx, testUser, AnalysisFilters{})
	require.NoError(t, err)
	require.Equal(t, 1, after.Count)
	require.True(t, after.Total.Equal(core.AmountFromFloat(30)))
}

func TestSummarizeFillDetachedFromCallerContext(t *testing.T) {
	svcs, _, _ := newTestServices(t)

	addExpense(t, svcs, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "Food", 20)

	// The fill is shared across collapsed waiters, so one abandoned caller
	// must not poison it with its cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := svcs.Analysis.Summarize(ctx, testUser, AnalysisFilters{})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Count)
}

func TestExpenseUpdatePreservesFingerprint(t *testing.T) {
	svcs, repos, _ := newTestServices(t)
	ctx := context.Background()

	result, err := svcs.Ingest.Ingest(ctx, testUser, receiptHeader(10.48), receiptItems(), false)
	require.NoError(t, err)

	original, err := repos.Expenses.Get(ctx, result.ExpenseID)
	require.NoError(t, err)

	edited := original
	edited.Description = "edited description"
	edited.Fingerprint = "client-supplied-garbage"
	require.NoError(t, svcs.Expenses.Update(ctx, edited))

	got, err := repos.Expenses.Get(ctx, result.ExpenseID)
	require.NoError(t, err)
	require.Equal(t, original.Fingerprint, got.Fingerprint)
	require.Equal(t, "edited description", got.Description)
}

func TestExpenseDeleteRemovesItems(t *testing.T) {
	svcs, repos, _ := newTestServices(t)
	ctx := context.Background()

	result, err := svcs.Ingest.Ingest(ctx, testUser, receiptHeader(10.48), receiptItems(), false)
	require.NoError(t, err)

	require.NoError(t, svcs.Expenses.Delete(ctx, testUser, result.ExpenseID))

	items, err := repos.Items.ListByExpense(ctx, result.ExpenseID)
	require.NoError(t, err)
	require.Empty(t, items)

	_, _, err = svcs.Expenses.Get(ctx, testUser, result.ExpenseID)
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
}
