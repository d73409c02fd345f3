package http

import (
	"net/http"
	"strings"

	"kanakku/internal/core"
	"kanakku/internal/services"
)

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeError(w, r, &core.ValidationError{Msg: "missing user"})
		return
	}
	filters := services.AnalysisFilters{
		Year:  intQuery(r, "year"),
		Month: intQuery(r, "month"),
	}
	if filters.Month < 0 || filters.Month > 12 {
		writeError(w, r, &core.ValidationError{Msg: "invalid month"})
		return
	}

	sum, err := s.svcs.Analysis.Summarize(r.Context(), user, filters)
	if err != nil {
		writeError(w, r, err)
		return
	}

	byCategory := make(map[string]float64, len(sum.ByCategory))
	for k, v := range sum.ByCategory {
		byCategory[k] = v.InexactFloat64()
	}
	byMonth := make(map[string]float64, len(sum.ByMonth))
	for k, v := range sum.ByMonth {
		byMonth[k] = v.InexactFloat64()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":       sum.Total.InexactFloat64(),
		"count":       sum.Count,
		"by_category": byCategory,
		"by_month":    byMonth,
	})
}
