package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"kanakku/internal/cache"
	"kanakku/internal/core"
	"kanakku/internal/storage"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// AnalysisFilters narrows an aggregation to a year or a year-month.
// Zero values mean "all".
type AnalysisFilters struct {
	Year  int
	Month int
}

// Summary is the read-side aggregate served by the analysis endpoint.
type Summary struct {
	Total      decimal.Decimal
	Count      int
	ByCategory map[string]decimal.Decimal
	ByMonth    map[string]decimal.Decimal
}

// AnalysisService aggregates a user's expenses with a TTL+LRU memo in front
// of the store. Concurrent fills for the same key collapse through
// singleflight; every mutating operation invalidates the user's entries
// synchronously before returning.
type AnalysisService struct {
	repos *storage.Repositories
	memo  *cache.LRUCache[Summary]
	group singleflight.Group
}

func NewAnalysisService(repos *storage.Repositories, memo *cache.LRUCache[Summary]) *AnalysisService {
	return &AnalysisService{repos: repos, memo: memo}
}

// Summarize returns the aggregate for (user, filters), from cache when fresh.
func (s *AnalysisService) Summarize(ctx context.Context, userEmail string, filters AnalysisFilters) (Summary, error) {
	key := analysisKey(userEmail, filters)
	if sum, ok := s.memo.Get(key); ok {
		return sum, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// The fill is shared by every collapsed waiter, so it must outlive
		// the first caller's cancellation.
		sum, err := s.compute(context.WithoutCancel(ctx), userEmail, filters)
		if err != nil {
			return Summary{}, err
		}
		s.memo.Set(key, sum)
		return sum, nil
	})
	if err != nil {
		return Summary{}, err
	}
	return v.(Summary), nil
}

// InvalidateUser drops every cached aggregate for the user. Implements the
// Invalidator used by the mutation paths.
func (s *AnalysisService) InvalidateUser(userEmail string) {
	n := s.memo.DeletePrefix(userEmail + "|")
	if n > 0 {
		slog.Debug("invalidated analysis cache", "user", userEmail, "entries", n)
	}
}

func (s *AnalysisService) compute(ctx context.Context, userEmail string, filters AnalysisFilters) (Summary, error) {
	headers, err := s.repos.Expenses.ListByUser(ctx, userEmail)
	if err != nil {
		return Summary{}, fmt.Errorf("list expenses: %w", err)
	}

	sum := Summary{
		Total:      decimal.Zero,
		ByCategory: make(map[string]decimal.Decimal),
		ByMonth:    make(map[string]decimal.Decimal),
	}
	for _, h := range headers {
		d := core.DateOf(h.PurchasedAt)
		if filters.Year != 0 && d.Year() != filters.Year {
			continue
		}
		if filters.Month != 0 && d.MonthIndex() != filters.Month {
			continue
		}
		sum.Total = sum.Total.Add(h.Amount)
		sum.Count++
		sum.ByCategory[h.Category] = sum.ByCategory[h.Category].Add(h.Amount)
		sum.ByMonth[d.MonthKey()] = sum.ByMonth[d.MonthKey()].Add(h.Amount)
	}
	return sum, nil
}

func analysisKey(userEmail string, f AnalysisFilters) string {
	return userEmail + "|" + strconv.Itoa(f.Year) + "|" + strconv.Itoa(f.Month)
}
